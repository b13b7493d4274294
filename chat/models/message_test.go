package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToggledAddsAndRemoves(t *testing.T) {
	rm := ReactionMap{}

	once := rm.Toggled("👍", "alice")
	assert.True(t, once.Has("👍", "alice"))
	assert.False(t, rm.Has("👍", "alice"), "original map must not change")

	twice := once.Toggled("👍", "alice")
	assert.Equal(t, rm, twice, "double toggle restores the original state")
	_, exists := twice["👍"]
	assert.False(t, exists, "last user removal drops the emoji key")
}

func TestToggledIsolatesOtherEmojis(t *testing.T) {
	rm := ReactionMap{
		"👍": {"alice", "bob"},
		"❤️": {"carol"},
	}

	out := rm.Toggled("👍", "alice")
	assert.Equal(t, []string{"bob"}, out["👍"])
	assert.Equal(t, []string{"carol"}, out["❤️"])
	assert.Equal(t, []string{"alice", "bob"}, rm["👍"], "original untouched")
}

func TestToggledUserAppearsOncePerEmoji(t *testing.T) {
	rm := ReactionMap{}
	out := rm.Toggled("🎉", "alice").Toggled("🎉", "bob").Toggled("🎉", "alice").Toggled("🎉", "alice")
	assert.Equal(t, []string{"bob", "alice"}, out["🎉"])
}

func TestHasContent(t *testing.T) {
	assert.False(t, (&Message{}).HasContent())
	assert.True(t, (&Message{Text: "hi"}).HasContent())
	assert.True(t, (&Message{Attachments: AttachmentList{{Name: "a.png"}}}).HasContent())
}

func TestParticipantsOther(t *testing.T) {
	p := Participants{"Alice", "Bob"}

	assert.Equal(t, "Bob", p.Other("alice"), "lookup is case-insensitive")
	assert.Equal(t, "Alice", p.Other("BOB"))
	// Unknown user falls back to the first participant.
	assert.Equal(t, "Alice", p.Other("mallory"))
}

func TestParticipantsContains(t *testing.T) {
	p := Participants{"Alice", "Bob"}
	assert.True(t, p.Contains("alice"))
	assert.False(t, p.Contains("carol"))
}
