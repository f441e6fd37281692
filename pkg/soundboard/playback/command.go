package playback

import (
	"strconv"
)

const (
	minVolume = 0
	maxVolume = 100
)

// CommandOptions are the per-invocation player parameters.
type CommandOptions struct {
	// Source is an absolute local path or a URL. Required.
	Source string

	// OutputDevice overrides the default device. Empty falls back to CommandDefaults.
	OutputDevice string

	// Volume overrides the default volume (0-100).
	Volume *int

	// TrimStart and TrimEnd are offsets in seconds. TrimEnd is an end point,
	// not a duration.
	TrimStart *float64
	TrimEnd   *float64
}

// CommandDefaults are the application-level fallbacks used when neither the
// sound nor the settings specify a value.
type CommandDefaults struct {
	OutputDevice string
	Volume       *int
}

// BuildArgs translates playback options into the player's argument list.
// The executable itself is not included. The source is always the last argument.
func BuildArgs(opts CommandOptions, defaults CommandDefaults) []string {
	args := []string{"--no-video"}

	device := opts.OutputDevice
	if device == "" {
		device = defaults.OutputDevice
	}
	if device != "" {
		args = append(args, "--audio-device="+device)
	}

	volume := opts.Volume
	if volume == nil {
		volume = defaults.Volume
	}
	if volume != nil {
		args = append(args, "--volume="+strconv.Itoa(clampVolume(*volume)))
	}

	if opts.TrimStart != nil {
		args = append(args, "--start="+formatSeconds(*opts.TrimStart))
	}

	if length, ok := trimLength(opts.TrimStart, opts.TrimEnd); ok {
		args = append(args, "--length="+formatSeconds(length))
	}

	return append(args, opts.Source)
}

// trimLength converts an end point into the duration the player expects.
// Non-positive durations are dropped.
func trimLength(start, end *float64) (float64, bool) {
	if end == nil {
		return 0, false
	}

	length := *end
	if start != nil {
		length = *end - *start
	}

	return length, length > 0
}

func clampVolume(v int) int {
	switch {
	case v < minVolume:
		return minVolume
	case v > maxVolume:
		return maxVolume
	}
	return v
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
