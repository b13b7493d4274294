package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"chat-messaging-demo/backend/chat/service"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
	"chat-messaging-demo/backend/upload"
	uploadmodels "chat-messaging-demo/backend/upload/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler exposes the messaging operations over HTTP.
type Handler struct {
	conversations *service.ConversationService
	sends         *service.SendService
	reactions     *service.ReactionService
	resolver      *service.Resolver
	blobs         upload.BlobStore
	registry      *upload.Registry
	log           *logger.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(conversations *service.ConversationService, sends *service.SendService, reactions *service.ReactionService, resolver *service.Resolver, blobs upload.BlobStore, registry *upload.Registry, log *logger.Logger) *Handler {
	return &Handler{
		conversations: conversations,
		sends:         sends,
		reactions:     reactions,
		resolver:      resolver,
		blobs:         blobs,
		registry:      registry,
		log:           log.WithComponent("http_api"),
	}
}

type createConversationRequest struct {
	Participants []string `json:"participants" binding:"required"`
}

// CreateConversation starts a conversation.
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	conversation, err := h.conversations.Create(c.Request.Context(), req.Participants)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, conversation)
}

// ListConversations returns the caller's conversations with the
// partner view resolved for the sidebar.
func (h *Handler) ListConversations(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.Error(apperrors.NewValidationError("user query parameter is required"))
		return
	}

	conversations, err := h.conversations.ListForUser(c.Request.Context(), user)
	if err != nil {
		c.Error(err)
		return
	}

	type entry struct {
		ID              string          `json:"id"`
		Partner         service.Partner `json:"partner"`
		LastMessageText string          `json:"last_message_text"`
		LastUpdatedAt   string          `json:"last_updated_at"`
	}
	out := make([]entry, 0, len(conversations))
	for i := range conversations {
		out = append(out, entry{
			ID:              conversations[i].ID,
			Partner:         h.conversations.PartnerView(c.Request.Context(), &conversations[i], user),
			LastMessageText: conversations[i].LastMessageText,
			LastUpdatedAt:   conversations[i].LastUpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	c.JSON(http.StatusOK, out)
}

// ListMessages returns a conversation's ordered feed.
func (h *Handler) ListMessages(c *gin.Context) {
	conversationID := c.Param("id")
	messages, err := h.resolver.Feed(c.Request.Context(), conversationID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage accepts a multipart form: text fields plus zero or more
// attachment parts under "files". Attachment-level failures come back
// inside a 201 response; only a fully failed send is an error status.
func (h *Handler) SendMessage(c *gin.Context) {
	conversationID := c.Param("id")
	sender := c.PostForm("sender")
	text := c.PostForm("text")
	replyToRef := c.PostForm("reply_to_ref")
	allowLegacy := c.PostForm("allow_legacy_ref") == "true"

	files, err := h.readFiles(c)
	if err != nil {
		c.Error(err)
		return
	}

	result, err := h.sends.Send(c.Request.Context(), service.SendRequest{
		ConversationID: conversationID,
		Sender:         sender,
		Text:           text,
		Files:          files,
		ReplyToRef:     replyToRef,
		AllowLegacyRef: allowLegacy,
	})
	if err != nil {
		c.Error(err)
		return
	}

	response := gin.H{
		"message":  result.Message,
		"rejected": result.Rejected,
	}
	if len(result.UploadFailures) > 0 {
		failed := make([]gin.H, 0, len(result.UploadFailures))
		for _, f := range result.UploadFailures {
			failed = append(failed, gin.H{"name": f.Name, "error": f.Err.Error()})
		}
		response["upload_failures"] = failed
	}
	if result.SummaryErr != nil {
		response["summary_stale"] = true
	}
	c.JSON(http.StatusCreated, response)
}

func (h *Handler) readFiles(c *gin.Context) ([]upload.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, apperrors.NewValidationError("malformed multipart form")
	}

	var files []upload.File
	for _, header := range form.File["files"] {
		part, err := header.Open()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable attachment part: " + header.Filename)
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			return nil, apperrors.NewValidationError("unreadable attachment part: " + header.Filename)
		}
		files = append(files, upload.File{
			Name:        header.Filename,
			Size:        int64(len(data)),
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

type reactionRequest struct {
	Emoji  string `json:"emoji" binding:"required"`
	UserID string `json:"user_id" binding:"required"`
}

// ToggleReaction flips a user's emoji reaction on a message.
func (h *Handler) ToggleReaction(c *gin.Context) {
	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}

	message, err := h.reactions.Toggle(c.Request.Context(), c.Param("id"), c.Param("message_id"), req.Emoji, req.UserID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// ResolveMessage resolves a message reference against the feed. The
// legacy query flag opts into pre-stable-id strategies.
func (h *Handler) ResolveMessage(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.Error(apperrors.NewValidationError("ref query parameter is required"))
		return
	}
	opts := service.ResolveOptions{AllowLegacy: c.Query("legacy") == "true"}

	message, err := h.resolver.Resolve(c.Request.Context(), c.Param("id"), ref, opts)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// GetFileMetadata returns an attachment's registry record.
func (h *Handler) GetFileMetadata(c *gin.Context) {
	meta := h.registry.Get(c.Request.Context(), c.Param("id"))
	if meta == nil {
		c.Error(apperrors.NewError(http.StatusNotFound, "METADATA_NOT_FOUND", "no metadata for this id"))
		return
	}
	c.JSON(http.StatusOK, meta)
}

type moderationRequest struct {
	Status string `json:"status" binding:"required"`
	Detail string `json:"detail"`
}

// UpdateModerationStatus records a scan outcome reported by the
// external scanner. The registry write stays best-effort: the response
// reports whether the outcome was recorded rather than failing the
// scanner's callback.
func (h *Handler) UpdateModerationStatus(c *gin.Context) {
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError(err.Error()))
		return
	}
	status := uploadmodels.ModerationStatus(req.Status)
	if !status.Valid() {
		c.Error(apperrors.NewValidationError("unknown moderation status: " + req.Status))
		return
	}

	recorded := h.registry.SetModerationStatus(c.Request.Context(), c.Param("id"), status, req.Detail)
	c.JSON(http.StatusOK, gin.H{"recorded": recorded})
}

// DownloadFile streams a stored blob and bumps its download bookkeeping.
func (h *Handler) DownloadFile(c *gin.Context) {
	blob, err := h.blobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Error(apperrors.NewError(http.StatusNotFound, "FILE_NOT_FOUND", "no such file"))
			return
		}
		c.Error(err)
		return
	}

	// Best effort: download proceeds even when the registry is down.
	if metadataID := c.Query("metadata_id"); metadataID != "" {
		h.registry.IncrementDownloadCount(c.Request.Context(), metadataID, c.Query("user"))
	}

	c.Header("Content-Disposition", `attachment; filename="`+blob.OriginalName+`"`)
	c.Header("Content-Length", strconv.FormatInt(blob.Size, 10))
	c.Data(http.StatusOK, blob.ContentType, blob.Data)
}
