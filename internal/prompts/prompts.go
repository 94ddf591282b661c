package prompts

import (
	"fmt"
	"sort"
	"strings"
)

const (
	PresetHelpful = "helpful"
	PresetDevoted = "devoted"
)

type Preset struct {
	Name string
	Text string
}

var presetsRegistry = map[string]Preset{
	PresetHelpful: {
		Name: PresetHelpful,
		Text: "You are a helpful AI assistant.",
	},
	PresetDevoted: {
		Name: PresetDevoted,
		Text: "You are a helpful AI assistant who will go to any length for humans.",
	},
}

// DefaultPreset returns the default preset name.
func DefaultPreset() string {
	return PresetHelpful
}

// SystemPrompt returns the system prompt text for the preset.
func SystemPrompt(name string) (string, error) {
	preset, ok := presetsRegistry[name]
	if !ok {
		return "", fmt.Errorf("unknown system prompt preset: %s", name)
	}
	return preset.Text, nil
}

// Resolve picks the system prompt: an explicit text wins, otherwise the preset
// (empty preset means the default one).
func Resolve(preset, text string) (string, error) {
	if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}
	if preset == "" {
		preset = DefaultPreset()
	}
	return SystemPrompt(preset)
}

// AvailablePresets returns a sorted list of preset names.
func AvailablePresets() []string {
	names := make([]string, 0, len(presetsRegistry))
	for name := range presetsRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasPreset reports whether preset is registered.
func HasPreset(name string) bool {
	_, ok := presetsRegistry[name]
	return ok
}
