package repository

import (
	"context"
	"encoding/json"
	"time"

	"chat-messaging-demo/backend/chat/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationRepository is the store port for conversation records.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByParticipant(ctx context.Context, user string) ([]models.Conversation, error)
	// UpdateSummary writes the last-message digest. LastUpdatedAt never
	// moves backwards: an older timestamp leaves the record untouched.
	UpdateSummary(ctx context.Context, id, lastMessageText string, at time.Time) error
}

// GormConversationRepository is the database adapter for ConversationRepository.
type GormConversationRepository struct {
	db *gorm.DB
}

// NewGormConversationRepository creates a conversation repository over the given database.
func NewGormConversationRepository(db *gorm.DB) *GormConversationRepository {
	return &GormConversationRepository{db: db}
}

// Create implements ConversationRepository.
func (r *GormConversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

// GetByID implements ConversationRepository.
func (r *GormConversationRepository) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// ListByParticipant implements ConversationRepository. Results come back
// most recently updated first, the sidebar order.
func (r *GormConversationRepository) ListByParticipant(ctx context.Context, user string) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("participants @> ?", participantLiteral(user)).
		Order("last_updated_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// participantLiteral renders the jsonb containment argument for one
// participant name. Marshalling keeps quotes and backslashes in the
// name from corrupting the document.
func participantLiteral(user string) string {
	literal, _ := json.Marshal([]string{user})
	return string(literal)
}

// UpdateSummary implements ConversationRepository.
func (r *GormConversationRepository) UpdateSummary(ctx context.Context, id, lastMessageText string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var conversation models.Conversation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&conversation, "id = ?", id).Error; err != nil {
			return err
		}
		if at.Before(conversation.LastUpdatedAt) {
			// A newer summary already landed.
			return nil
		}
		return tx.Model(&models.Conversation{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"last_message_text": lastMessageText,
				"last_updated_at":   at,
			}).Error
	})
}
