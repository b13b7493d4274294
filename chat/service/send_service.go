package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	"chat-messaging-demo/backend/chat/stream"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/pkg/resilience"
	"chat-messaging-demo/backend/shared/observability"
	"chat-messaging-demo/backend/upload"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const snippetMaxRunes = 80

// SendRequest describes one outgoing message with optional attachments
// and an optional reply reference.
type SendRequest struct {
	ConversationID string
	Sender         string
	Text           string
	Files          []upload.File
	// ReplyToRef references an earlier message in the conversation.
	ReplyToRef string
	// AllowLegacyRef lets ReplyToRef use pre-stable-id strategies.
	AllowLegacyRef bool
	// OnProgress receives batch upload progress. May be nil.
	OnProgress upload.BatchProgressFunc
}

// SendResult reports what happened to each part of the request. A
// non-nil Message means the send succeeded; Rejected and UploadFailures
// list attachments that did not make it, and SummaryErr is set when the
// message landed but the conversation digest could not be updated.
type SendResult struct {
	Message        *models.Message
	Rejected       []upload.RejectedFile
	UploadFailures []upload.UploadFailure
	SummaryErr     error
}

// SendService runs the message compose pipeline: screen attachments,
// upload what passed, record metadata best-effort, persist the message
// under a stable id, then fan out the change notification and digest
// update. Partial attachment failure never blocks the message as long
// as some content survives.
type SendService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	validator     *upload.Validator
	chain         *upload.Chain
	registry      *upload.Registry
	resolver      *Resolver
	summaries     *SummaryService
	feed          stream.ChangeFeed
	limiter       *resilience.KeyedLimiter
	log           *logger.Logger
	metrics       *observability.Metrics
	maxFiles      int
	now           func() time.Time
}

// SendServiceDeps bundles the collaborators a SendService needs.
type SendServiceDeps struct {
	Messages      repository.MessageRepository
	Conversations repository.ConversationRepository
	Validator     *upload.Validator
	Chain         *upload.Chain
	Registry      *upload.Registry
	Summaries     *SummaryService
	Feed          stream.ChangeFeed
	Limiter       *resilience.KeyedLimiter
	Log           *logger.Logger
	Metrics       *observability.Metrics
	MaxFiles      int
}

// NewSendService creates a send service.
func NewSendService(deps SendServiceDeps) *SendService {
	return &SendService{
		messages:      deps.Messages,
		conversations: deps.Conversations,
		validator:     deps.Validator,
		chain:         deps.Chain,
		registry:      deps.Registry,
		resolver:      NewResolver(deps.Messages),
		summaries:     deps.Summaries,
		feed:          deps.Feed,
		limiter:       deps.Limiter,
		log:           deps.Log.WithComponent("send_service"),
		metrics:       deps.Metrics,
		maxFiles:      deps.MaxFiles,
		now:           time.Now,
	}
}

// Send runs the pipeline for one message. The returned error means the
// message was NOT stored; attachment-level problems are reported inside
// the result instead.
func (s *SendService) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	text := strings.TrimSpace(req.Text)
	if req.Sender == "" {
		return nil, apperrors.NewValidationError("sender must not be empty")
	}
	if text == "" && len(req.Files) == 0 {
		return nil, apperrors.NewValidationError("message has no text and no attachments")
	}

	conversation, err := s.conversations.GetByID(ctx, req.ConversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewValidationError("conversation does not exist")
		}
		return nil, err
	}
	if !conversation.Participants.Contains(req.Sender) {
		return nil, apperrors.NewValidationError("sender is not a participant of this conversation")
	}

	if s.limiter != nil && !s.limiter.Allow(req.Sender) {
		return nil, apperrors.NewRateLimitedError("sending too fast, slow down")
	}

	// Resolve the reply target before any uploads so a dangling
	// reference fails fast.
	var replyTo *models.ReplyRef
	if req.ReplyToRef != "" {
		target, err := s.resolver.Resolve(ctx, req.ConversationID, req.ReplyToRef, ResolveOptions{AllowLegacy: req.AllowLegacyRef})
		if err != nil {
			return nil, err
		}
		replyTo = &models.ReplyRef{
			TargetMessageID: target.ID,
			SnippetText:     snippet(target),
			SnippetSender:   target.Sender,
		}
	}

	result := &SendResult{}

	screened := s.validator.Screen(req.Files, s.maxFiles)
	result.Rejected = screened.Rejected
	for _, rejected := range screened.Rejected {
		s.log.Warn("attachment rejected",
			"conversation_id", req.ConversationID, "file", rejected.Name, "reason", rejected.Reason)
	}

	var attachments []models.Attachment
	if len(screened.Accepted) > 0 {
		opts := upload.Options{ConversationID: req.ConversationID, UploaderID: req.Sender}
		uploaded, failures := s.chain.UploadAll(ctx, screened.Accepted, opts, req.OnProgress)
		result.UploadFailures = failures

		for i := range uploaded {
			// Best effort: a registry outage leaves MetadataID empty
			// and the attachment still goes out.
			uploaded[i].MetadataID = s.registry.Record(ctx, uploaded[i], req.ConversationID, uploaded[i].URL)
		}
		attachments = uploaded
	}

	message := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		Text:           text,
		CreatedAt:      s.now().UTC(),
		Attachments:    attachments,
		ReplyTo:        replyTo,
		Reactions:      models.ReactionMap{},
	}

	if !message.HasContent() {
		if len(result.UploadFailures) > 0 {
			return nil, apperrors.NewUploadExhaustedError(
				"message not sent: every attachment upload failed", result.UploadFailures[0].Err)
		}
		return nil, apperrors.NewValidationError("message has no text and no valid attachments")
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}
	result.Message = message

	if s.metrics != nil {
		s.metrics.MessagesSent.Add(ctx, 1)
	}
	s.log.Info("message sent",
		"conversation_id", req.ConversationID,
		"message_id", message.ID,
		"attachments", len(attachments),
		"rejected", len(result.Rejected),
		"upload_failures", len(result.UploadFailures))

	if err := s.feed.PublishChange(ctx, req.ConversationID, message.ID); err != nil {
		// Streams re-derive on the next change; the message is durable.
		s.log.Warn("change publish failed",
			"conversation_id", req.ConversationID, "message_id", message.ID, "error", err)
	}

	result.SummaryErr = s.summaries.Apply(ctx, req.ConversationID, message)
	return result, nil
}

// snippet renders the quoted preview of a reply target.
func snippet(target *models.Message) string {
	text := strings.TrimSpace(target.Text)
	if text == "" {
		text = ComposeDigest(target)
	}
	runes := []rune(text)
	if len(runes) > snippetMaxRunes {
		return string(runes[:snippetMaxRunes-1]) + "…"
	}
	return text
}
