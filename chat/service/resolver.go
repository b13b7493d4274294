package service

import (
	"context"
	"strconv"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	apperrors "chat-messaging-demo/backend/pkg/errors"
)

// ResolveOptions controls which identity strategies a lookup may use.
// Legacy strategies exist only for references written before stable
// ids; new references must never rely on them.
type ResolveOptions struct {
	// AllowLegacy enables the timestamp and feed-position fallbacks.
	AllowLegacy bool
}

// ResolveMessage finds the message a reference points at within an
// ordered feed snapshot. Strategies run in order and the first hit
// wins:
//
//  1. stable id match
//  2. creation time in integer seconds (legacy, lossy: seconds
//     resolution can collide, first match in feed order wins)
//  3. feed position rendered as a string (legacy, breaks as soon as
//     the feed grows)
//
// Returns nil when nothing matches.
func ResolveMessage(messages []models.Message, ref string, opts ResolveOptions) *models.Message {
	if ref == "" {
		return nil
	}

	for i := range messages {
		if messages[i].ID == ref {
			return &messages[i]
		}
	}

	if !opts.AllowLegacy {
		return nil
	}

	if secs, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for i := range messages {
			if messages[i].CreatedAt.Unix() == secs {
				return &messages[i]
			}
		}
	}

	for i := range messages {
		if strconv.Itoa(i) == ref {
			return &messages[i]
		}
	}
	return nil
}

// Resolver looks up messages by reference against the stored feed.
type Resolver struct {
	messages repository.MessageRepository
}

// NewResolver creates a resolver over the message store.
func NewResolver(messages repository.MessageRepository) *Resolver {
	return &Resolver{messages: messages}
}

// Feed returns the conversation's ordered message feed.
func (r *Resolver) Feed(ctx context.Context, conversationID string) ([]models.Message, error) {
	return r.messages.ListByConversation(ctx, conversationID)
}

// Resolve loads the conversation feed and resolves ref against it.
func (r *Resolver) Resolve(ctx context.Context, conversationID, ref string, opts ResolveOptions) (*models.Message, error) {
	feed, err := r.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	target := ResolveMessage(feed, ref, opts)
	if target == nil {
		return nil, apperrors.NewMessageNotFoundError("referenced message not found in conversation")
	}
	return target, nil
}
