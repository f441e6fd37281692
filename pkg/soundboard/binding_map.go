package soundboard

import (
	"fmt"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

// aliasMap translates keypad key names into one or more hotkeys.
type aliasMap struct {
	m    map[string][]string
	lock sync.RWMutex
}

func newAliasMap() *aliasMap {
	return &aliasMap{
		m: make(map[string][]string),
	}
}

// aliasMapFromConfigs merges user aliases with the internal ones, ignoring
// empty and duplicate hotkeys.
func aliasMapFromConfigs(userMapping map[string][]string, internalMapping map[string][]string) *aliasMap {
	resultMap := newAliasMap()

	for key, hotkeys := range userMapping {
		resultMap.set(catalog.NormalizeHotkey(key), normalizeHotkeys(hotkeys, nil))
	}

	for key, hotkeys := range internalMapping {
		key = catalog.NormalizeHotkey(key)

		existing, _ := resultMap.get(key)
		resultMap.set(key, append(existing, normalizeHotkeys(hotkeys, existing)...))
	}

	return resultMap
}

// normalizeHotkeys drops empties and anything already in existing
func normalizeHotkeys(hotkeys []string, existing []string) []string {
	normalized := funk.Map(hotkeys, catalog.NormalizeHotkey).([]string)

	return funk.UniqString(funk.FilterString(normalized, func(s string) bool {
		return s != "" && !funk.ContainsString(existing, s)
	}))
}

// resolve returns the hotkeys a key press stands for. Keys without an alias
// stand for themselves.
func (m *aliasMap) resolve(key string) []string {
	key = catalog.NormalizeHotkey(key)
	if m == nil {
		return []string{key}
	}

	if hotkeys, ok := m.get(key); ok && len(hotkeys) > 0 {
		return hotkeys
	}

	return []string{key}
}

func (m *aliasMap) get(key string) ([]string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	value, ok := m.m[key]
	return value, ok
}

func (m *aliasMap) set(key string, value []string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.m[key] = value
}

// String returns a human-readable representation of the aliasMap.
func (m *aliasMap) String() string {
	m.lock.RLock()
	defer m.lock.RUnlock()

	hotkeyCount := 0
	for _, hotkeys := range m.m {
		hotkeyCount += len(hotkeys)
	}

	return fmt.Sprintf("<%d keys aliased to %d hotkeys>", len(m.m), hotkeyCount)
}

// bindingMap holds the enabled shortcuts by hotkey. Several shortcuts may share one.
type bindingMap struct {
	m          map[string][]catalog.Shortcut
	lock       sync.RWMutex
	lastLoaded time.Time
}

func newBindingMap() *bindingMap {
	return &bindingMap{
		m: make(map[string][]catalog.Shortcut),
	}
}

// replace swaps in the enabled subset of shortcuts.
func (b *bindingMap) replace(shortcuts []catalog.Shortcut) {
	enabled := funk.Filter(shortcuts, func(s catalog.Shortcut) bool {
		return s.Enabled
	}).([]catalog.Shortcut)

	m := make(map[string][]catalog.Shortcut, len(enabled))
	for _, shortcut := range enabled {
		hotkey := catalog.NormalizeHotkey(shortcut.Hotkey)
		if hotkey == "" {
			continue
		}
		m[hotkey] = append(m[hotkey], shortcut)
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	b.m = m
	b.lastLoaded = time.Now()
}

func (b *bindingMap) get(hotkey string) []catalog.Shortcut {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.m[catalog.NormalizeHotkey(hotkey)]
}

func (b *bindingMap) loadedAt() time.Time {
	b.lock.RLock()
	defer b.lock.RUnlock()

	return b.lastLoaded
}

// String returns a human-readable representation of the bindingMap.
func (b *bindingMap) String() string {
	b.lock.RLock()
	defer b.lock.RUnlock()

	shortcutCount := 0
	for _, shortcuts := range b.m {
		shortcutCount += len(shortcuts)
	}

	return fmt.Sprintf("<%d hotkeys bound to %d shortcuts>", len(b.m), shortcutCount)
}
