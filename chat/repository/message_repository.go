package repository

import (
	"context"

	"chat-messaging-demo/backend/chat/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageRepository is the store port for message records.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error)
	// UpdateReactions applies mutate to the message's reaction map under
	// a row lock, so concurrent toggles on the same message serialize
	// instead of overwriting each other. The message must belong to
	// conversationID; a mismatch reads as not found.
	UpdateReactions(ctx context.Context, conversationID, messageID string, mutate func(models.ReactionMap) models.ReactionMap) (*models.Message, error)
}

// GormMessageRepository is the database adapter for MessageRepository.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a message repository over the given database.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Create implements MessageRepository.
func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// GetByID implements MessageRepository.
func (r *GormMessageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var message models.Message
	if err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListByConversation implements MessageRepository. Messages come back
// ordered by creation time ascending; ties order by id, so consecutive
// derivations of the same feed always agree.
func (r *GormMessageRepository) ListByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// UpdateReactions implements MessageRepository.
func (r *GormMessageRepository) UpdateReactions(ctx context.Context, conversationID, messageID string, mutate func(models.ReactionMap) models.ReactionMap) (*models.Message, error) {
	var updated *models.Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var message models.Message
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&message, "id = ? AND conversation_id = ?", messageID, conversationID).Error; err != nil {
			return err
		}

		message.Reactions = mutate(message.Reactions)
		if err := tx.Model(&models.Message{}).
			Where("id = ?", messageID).
			Update("reactions", message.Reactions).Error; err != nil {
			return err
		}

		updated = &message
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
