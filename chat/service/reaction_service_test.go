package service

import (
	"context"
	"testing"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/stream"
	apperrors "chat-messaging-demo/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reactionFixture(t *testing.T) (*ReactionService, *fakeMessageRepo, *stream.MemoryFeed) {
	t.Helper()
	repo := &fakeMessageRepo{}
	require.NoError(t, repo.Create(context.Background(), &models.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		Sender:         "bob",
		Text:           "hello",
		CreatedAt:      time.Now().UTC(),
		Reactions:      models.ReactionMap{},
	}))
	conversations := newFakeConversationRepo()
	require.NoError(t, conversations.Create(context.Background(), &models.Conversation{
		ID:           "conv-1",
		Participants: models.Participants{"alice", "bob"},
	}))
	require.NoError(t, conversations.Create(context.Background(), &models.Conversation{
		ID:           "conv-2",
		Participants: models.Participants{"alice", "dave"},
	}))
	feed := stream.NewMemoryFeed()
	return NewReactionService(repo, conversations, feed, testLog(), nil), repo, feed
}

func TestToggleAddRemove(t *testing.T) {
	svc, _, _ := reactionFixture(t)

	added, err := svc.Toggle(context.Background(), "conv-1", "msg-1", "👍", "alice")
	require.NoError(t, err)
	assert.True(t, added.Reactions.Has("👍", "alice"))

	removed, err := svc.Toggle(context.Background(), "conv-1", "msg-1", "👍", "alice")
	require.NoError(t, err)
	assert.False(t, removed.Reactions.Has("👍", "alice"))
	_, exists := removed.Reactions["👍"]
	assert.False(t, exists)
}

func TestTogglePublishesChange(t *testing.T) {
	svc, _, feed := reactionFixture(t)

	changes, cancel, err := feed.SubscribeChanges(context.Background(), "conv-1", nil)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Toggle(context.Background(), "conv-1", "msg-1", "👍", "alice")
	require.NoError(t, err)

	select {
	case id := <-changes:
		assert.Equal(t, "msg-1", id)
	default:
		t.Fatal("no change notification published")
	}
}

func TestToggleUnknownMessage(t *testing.T) {
	svc, _, _ := reactionFixture(t)

	_, err := svc.Toggle(context.Background(), "conv-1", "ghost", "👍", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMessageNotFound))
}

func TestToggleRequiresMessageInConversation(t *testing.T) {
	svc, repo, feed := reactionFixture(t)

	changes, cancel, err := feed.SubscribeChanges(context.Background(), "conv-2", nil)
	require.NoError(t, err)
	defer cancel()

	// msg-1 lives in conv-1; addressing it through conv-2 must not
	// toggle anything nor notify conv-2's feed.
	_, err = svc.Toggle(context.Background(), "conv-2", "msg-1", "👍", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMessageNotFound))

	stored, err := repo.GetByID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.False(t, stored.Reactions.Has("👍", "alice"))

	select {
	case id := <-changes:
		t.Fatalf("unexpected change notification %q on the wrong conversation", id)
	default:
	}
}

func TestToggleRequiresParticipant(t *testing.T) {
	svc, repo, _ := reactionFixture(t)

	_, err := svc.Toggle(context.Background(), "conv-1", "msg-1", "👍", "mallory")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	stored, err := repo.GetByID(context.Background(), "msg-1")
	require.NoError(t, err)
	assert.False(t, stored.Reactions.Has("👍", "mallory"))
}

func TestToggleUnknownConversation(t *testing.T) {
	svc, _, _ := reactionFixture(t)

	_, err := svc.Toggle(context.Background(), "ghost", "msg-1", "👍", "alice")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}

func TestToggleValidatesInput(t *testing.T) {
	svc, _, _ := reactionFixture(t)

	_, err := svc.Toggle(context.Background(), "conv-1", "msg-1", "", "alice")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))

	_, err = svc.Toggle(context.Background(), "conv-1", "msg-1", "👍", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationFailed))
}
