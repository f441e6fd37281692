package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/omriharel/soundboard/pkg/soundboard/catalog"
)

// soundModel is a row of the sounds table. Times are unix milliseconds.
type soundModel struct {
	ID           string
	Name         string
	Description  *string
	Tags         string
	SourceType   string
	SourceURL    *string
	LocalPath    *string
	Volume       *int64
	TrimStart    *float64
	TrimEnd      *float64
	OutputDevice *string
	PlayCount    int64
	IngestStatus *string
	CreatedAt    int64
	UpdatedAt    int64
}

func (m *soundModel) fields() []any {
	return []any{
		&m.ID, &m.Name, &m.Description, &m.Tags, &m.SourceType, &m.SourceURL, &m.LocalPath,
		&m.Volume, &m.TrimStart, &m.TrimEnd, &m.OutputDevice, &m.PlayCount, &m.IngestStatus,
		&m.CreatedAt, &m.UpdatedAt,
	}
}

const soundColumns = `id, name, description, tags, source_type, source_url, local_path,
	volume, trim_start_sec, trim_end_sec, output_device, play_count, ingest_status,
	created_at, updated_at`

func toSoundModel(s catalog.Sound) (soundModel, error) {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	encoded, err := json.Marshal(tags)
	if err != nil {
		return soundModel{}, fmt.Errorf("encode tags: %w", err)
	}

	m := soundModel{
		ID:           s.ID.String(),
		Name:         s.Name,
		Description:  optionalString(s.Description),
		Tags:         string(encoded),
		SourceType:   string(s.SourceType),
		SourceURL:    optionalString(s.SourceURL),
		LocalPath:    optionalString(s.LocalPath),
		TrimStart:    s.TrimStart,
		TrimEnd:      s.TrimEnd,
		OutputDevice: optionalString(s.OutputDevice),
		PlayCount:    int64(s.PlayCount),
		IngestStatus: optionalString(string(s.IngestStatus)),
		CreatedAt:    s.CreatedAt.UnixMilli(),
		UpdatedAt:    s.UpdatedAt.UnixMilli(),
	}

	if s.Volume != nil {
		v := int64(*s.Volume)
		m.Volume = &v
	}

	return m, nil
}

func (m soundModel) toCatalog() (catalog.Sound, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return catalog.Sound{}, fmt.Errorf("parse sound id %q: %w", m.ID, err)
	}

	var tags []string
	if err := json.Unmarshal([]byte(m.Tags), &tags); err != nil {
		return catalog.Sound{}, fmt.Errorf("decode tags of sound %s: %w", m.ID, err)
	}

	s := catalog.Sound{
		ID:           id,
		Name:         m.Name,
		Description:  deref(m.Description),
		Tags:         tags,
		SourceType:   catalog.SourceType(m.SourceType),
		SourceURL:    deref(m.SourceURL),
		LocalPath:    deref(m.LocalPath),
		TrimStart:    m.TrimStart,
		TrimEnd:      m.TrimEnd,
		OutputDevice: deref(m.OutputDevice),
		PlayCount:    int(m.PlayCount),
		IngestStatus: catalog.IngestStatus(deref(m.IngestStatus)),
		CreatedAt:    time.UnixMilli(m.CreatedAt),
		UpdatedAt:    time.UnixMilli(m.UpdatedAt),
	}

	if m.Volume != nil {
		s.Volume = catalog.IntPtr(int(*m.Volume))
	}

	return s, nil
}

// shortcutModel is a row of the shortcuts table.
type shortcutModel struct {
	ID        string
	SoundID   string
	Hotkey    string
	Action    string
	Enabled   bool
	CreatedAt int64
	UpdatedAt int64
}

func (m *shortcutModel) fields() []any {
	return []any{&m.ID, &m.SoundID, &m.Hotkey, &m.Action, &m.Enabled, &m.CreatedAt, &m.UpdatedAt}
}

const shortcutColumns = `id, sound_id, hotkey, action, enabled, created_at, updated_at`

func (m shortcutModel) toCatalog() (catalog.Shortcut, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return catalog.Shortcut{}, fmt.Errorf("parse shortcut id %q: %w", m.ID, err)
	}

	soundID, err := uuid.Parse(m.SoundID)
	if err != nil {
		return catalog.Shortcut{}, fmt.Errorf("parse sound id %q of shortcut %s: %w", m.SoundID, m.ID, err)
	}

	return catalog.Shortcut{
		ID:        id,
		SoundID:   soundID,
		Hotkey:    m.Hotkey,
		Action:    catalog.Action(m.Action),
		Enabled:   m.Enabled,
		CreatedAt: time.UnixMilli(m.CreatedAt),
		UpdatedAt: time.UnixMilli(m.UpdatedAt),
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
