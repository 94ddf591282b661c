package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemPrompt(t *testing.T) {
	text, err := SystemPrompt(PresetHelpful)
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful AI assistant.", text)

	text, err = SystemPrompt(PresetDevoted)
	require.NoError(t, err)
	assert.Contains(t, text, "go to any length for humans")

	_, err = SystemPrompt("pirate")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	text, err := Resolve("", "")
	require.NoError(t, err)
	assert.Equal(t, "You are a helpful AI assistant.", text)

	text, err = Resolve("pirate", "  Answer briefly.  ")
	require.NoError(t, err)
	assert.Equal(t, "Answer briefly.", text, "explicit text overrides preset")

	_, err = Resolve("pirate", "")
	assert.Error(t, err)
}

func TestAvailablePresets(t *testing.T) {
	assert.Equal(t, []string{PresetDevoted, PresetHelpful}, AvailablePresets())
	assert.True(t, HasPreset(PresetDevoted))
	assert.False(t, HasPreset("nope"))
}
