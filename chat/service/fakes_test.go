package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/pkg/logger"

	"gorm.io/gorm"
)

func testLog() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []models.Message
	failList bool
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeMessageRepo) GetByID(ctx context.Context, id string) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == id {
			m := r.messages[i]
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failList {
		return nil, gorm.ErrInvalidDB
	}
	var out []models.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeMessageRepo) UpdateReactions(ctx context.Context, conversationID, messageID string, mutate func(models.ReactionMap) models.ReactionMap) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.messages {
		if r.messages[i].ID == messageID && r.messages[i].ConversationID == conversationID {
			r.messages[i].Reactions = mutate(r.messages[i].Reactions)
			m := r.messages[i]
			return &m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[string]models.Conversation
	failSummary   bool
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[string]models.Conversation)}
}

func (r *fakeConversationRepo) Create(ctx context.Context, conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conversation.ID] = *conversation
	return nil
}

func (r *fakeConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (r *fakeConversationRepo) ListByParticipant(ctx context.Context, user string) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Conversation
	for _, c := range r.conversations {
		if c.Participants.Contains(user) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdatedAt.After(out[j].LastUpdatedAt) })
	return out, nil
}

func (r *fakeConversationRepo) UpdateSummary(ctx context.Context, id, lastMessageText string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSummary {
		return gorm.ErrInvalidDB
	}
	c, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if at.Before(c.LastUpdatedAt) {
		return nil
	}
	c.LastMessageText = lastMessageText
	c.LastUpdatedAt = at
	r.conversations[id] = c
	return nil
}
