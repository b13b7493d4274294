package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"chat-messaging-demo/backend/chat/models"
	apperrors "chat-messaging-demo/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resolverFeed() []models.Message {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.Message{
		{ID: "aaa-111", CreatedAt: base, Sender: "alice", Text: "first"},
		{ID: "bbb-222", CreatedAt: base.Add(time.Second), Sender: "bob", Text: "second"},
		{ID: "ccc-333", CreatedAt: base.Add(time.Second), Sender: "alice", Text: "same second"},
	}
}

func TestResolveStableID(t *testing.T) {
	feed := resolverFeed()
	m := ResolveMessage(feed, "bbb-222", ResolveOptions{})
	require.NotNil(t, m)
	assert.Equal(t, "second", m.Text)
}

func TestResolveLegacyDisabledByDefault(t *testing.T) {
	feed := resolverFeed()
	ts := feed[0].CreatedAt.Unix()

	assert.Nil(t, ResolveMessage(feed, timestampRef(ts), ResolveOptions{}))
	assert.Nil(t, ResolveMessage(feed, "1", ResolveOptions{}))
}

func TestResolveLegacyTimestampFirstMatchWins(t *testing.T) {
	feed := resolverFeed()
	// Messages 1 and 2 share the same second; feed order breaks the tie.
	ts := feed[1].CreatedAt.Unix()

	m := ResolveMessage(feed, timestampRef(ts), ResolveOptions{AllowLegacy: true})
	require.NotNil(t, m)
	assert.Equal(t, "bbb-222", m.ID)
}

func TestResolveLegacyIndex(t *testing.T) {
	feed := resolverFeed()
	m := ResolveMessage(feed, "2", ResolveOptions{AllowLegacy: true})
	require.NotNil(t, m)
	assert.Equal(t, "ccc-333", m.ID)
}

func TestResolveStableIDBeatsLegacy(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	feed := []models.Message{
		{ID: "0", CreatedAt: base, Text: "id is a digit"},
		{ID: "xyz", CreatedAt: base.Add(time.Second), Text: "positional zero"},
	}

	// "0" is both a stable id and a valid index; the stable id wins.
	m := ResolveMessage(feed, "0", ResolveOptions{AllowLegacy: true})
	require.NotNil(t, m)
	assert.Equal(t, "id is a digit", m.Text)
}

func TestResolveEmptyAndUnknownRefs(t *testing.T) {
	feed := resolverFeed()
	assert.Nil(t, ResolveMessage(feed, "", ResolveOptions{AllowLegacy: true}))
	assert.Nil(t, ResolveMessage(feed, "no-such-id", ResolveOptions{AllowLegacy: true}))
	assert.Nil(t, ResolveMessage(nil, "anything", ResolveOptions{AllowLegacy: true}))
}

func TestResolverNotFoundError(t *testing.T) {
	repo := &fakeMessageRepo{}
	r := NewResolver(repo)

	_, err := r.Resolve(context.Background(), "conv-1", "missing", ResolveOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMessageNotFound))
}

func timestampRef(ts int64) string {
	return strconv.FormatInt(ts, 10)
}
