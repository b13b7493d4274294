package stream

import (
	"context"
	"sort"
	"sync"

	"chat-messaging-demo/backend/chat/models"
	"chat-messaging-demo/backend/chat/repository"
	apperrors "chat-messaging-demo/backend/pkg/errors"
	"chat-messaging-demo/backend/pkg/logger"
)

// State tracks where a Stream is in its subscription lifecycle.
type State int32

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateLive
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateLive:
		return "live"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Stream keeps a live, ordered snapshot of one conversation's messages.
// Every change notification triggers a full re-derive from the store,
// so a dropped or duplicated notification can never corrupt the
// snapshot - the store is always the source of truth. Snapshots handed
// to onChange are sorted by creation time, deduplicated by id, and
// safe for the callback to retain.
//
// The state machine is strict: Subscribe is only legal from
// Unsubscribed or Errored, and once a transport error moves the stream
// to Errored it stays quiet until a fresh Subscribe.
type Stream struct {
	repo repository.MessageRepository
	feed ChangeFeed
	log  *logger.Logger

	mu             sync.Mutex
	state          State
	conversationID string
	messages       []models.Message
	onChange       func([]models.Message)
	onError        func(error)
	cancelFeed     func()
}

// NewStream creates a stream in the Unsubscribed state.
func NewStream(repo repository.MessageRepository, feed ChangeFeed, log *logger.Logger) *Stream {
	return &Stream{
		repo:  repo,
		feed:  feed,
		log:   log.WithComponent("message_stream"),
		state: StateUnsubscribed,
	}
}

// State returns the current lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the current snapshot.
func (s *Stream) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

// Subscribe attaches the stream to a conversation. It derives and
// emits the initial snapshot before returning, then keeps the snapshot
// current from change notifications until Unsubscribe or a transport
// failure. onError fires at most once per subscription.
func (s *Stream) Subscribe(ctx context.Context, conversationID string, onChange func([]models.Message), onError func(error)) error {
	s.mu.Lock()
	if s.state == StateSubscribing || s.state == StateLive {
		s.mu.Unlock()
		return apperrors.NewValidationError("stream is already subscribed")
	}
	s.state = StateSubscribing
	s.conversationID = conversationID
	s.messages = nil
	s.onChange = onChange
	s.onError = onError
	s.cancelFeed = nil
	s.mu.Unlock()

	ch, cancel, err := s.feed.SubscribeChanges(ctx, conversationID, s.fail)
	if err != nil {
		s.fail(err)
		return apperrors.NewStreamTransportError("change feed subscription failed", err)
	}

	s.mu.Lock()
	s.cancelFeed = cancel
	s.mu.Unlock()

	if err := s.refresh(ctx); err != nil {
		s.fail(err)
		return apperrors.NewStreamTransportError("initial snapshot derivation failed", err)
	}

	s.mu.Lock()
	if s.state == StateSubscribing {
		s.state = StateLive
	}
	s.mu.Unlock()

	go s.pump(ctx, ch)
	return nil
}

// Unsubscribe detaches the stream. No callbacks fire afterwards. The
// stream can be subscribed again.
func (s *Stream) Unsubscribe() {
	s.mu.Lock()
	cancel := s.cancelFeed
	s.cancelFeed = nil
	s.state = StateUnsubscribed
	s.onChange = nil
	s.onError = nil
	s.messages = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (s *Stream) pump(ctx context.Context, ch <-chan string) {
	for range ch {
		if err := s.refresh(ctx); err != nil {
			s.fail(err)
			return
		}
	}
}

// refresh re-derives the snapshot from the store and emits it. Safe to
// call for every notification: the normalized result is identical no
// matter how often or in what order notifications arrive.
func (s *Stream) refresh(ctx context.Context) error {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()

	listed, err := s.repo.ListByConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	ordered := normalize(listed)

	s.mu.Lock()
	if s.state != StateSubscribing && s.state != StateLive {
		s.mu.Unlock()
		return nil
	}
	s.messages = ordered
	onChange := s.onChange
	snapshot := append([]models.Message(nil), ordered...)
	s.mu.Unlock()

	if onChange != nil {
		onChange(snapshot)
	}
	return nil
}

// fail moves the stream to Errored and fires onError exactly once.
func (s *Stream) fail(cause error) {
	s.mu.Lock()
	if s.state == StateErrored || s.state == StateUnsubscribed {
		s.mu.Unlock()
		return
	}
	s.state = StateErrored
	cancel := s.cancelFeed
	s.cancelFeed = nil
	onError := s.onError
	s.onError = nil
	s.onChange = nil
	conversationID := s.conversationID
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	s.log.Error("message stream failed", "conversation_id", conversationID, "error", cause)
	if onError != nil {
		if apperrors.HasCode(cause, apperrors.CodeStreamTransport) {
			onError(cause)
		} else {
			onError(apperrors.NewStreamTransportError("message stream lost its change feed", cause))
		}
	}
}

// normalize sorts by creation time, breaking timestamp ties by id so
// repeated derivations agree no matter what order the store returned,
// and drops duplicate ids, keeping the first occurrence.
func normalize(messages []models.Message) []models.Message {
	ordered := append([]models.Message(nil), messages...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	seen := make(map[string]struct{}, len(ordered))
	out := ordered[:0]
	for _, m := range ordered {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}
