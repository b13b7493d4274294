package stream

import (
	"context"
	"sync"
)

// ChangeFeed is the transport behind live message streams. Publishers
// announce that a conversation's feed changed; subscribers receive the
// changed message ids on a channel until the returned cancel func runs.
// The redis client in shared/redis satisfies this interface.
type ChangeFeed interface {
	PublishChange(ctx context.Context, conversationID, messageID string) error
	SubscribeChanges(ctx context.Context, conversationID string, errFn func(error)) (<-chan string, func(), error)
}

// MemoryFeed is an in-process ChangeFeed for single-node setups and
// tests. Delivery is best effort: a subscriber that stops draining its
// channel misses notifications rather than blocking publishers.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan string
}

// NewMemoryFeed creates an empty in-process change feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]chan string)}
}

// PublishChange implements ChangeFeed.
func (f *MemoryFeed) PublishChange(ctx context.Context, conversationID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[conversationID] {
		select {
		case ch <- messageID:
		default:
		}
	}
	return nil
}

// SubscribeChanges implements ChangeFeed. The errFn is never called:
// an in-process feed has no transport to fail.
func (f *MemoryFeed) SubscribeChanges(ctx context.Context, conversationID string, errFn func(error)) (<-chan string, func(), error) {
	ch := make(chan string, 64)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	if f.subs[conversationID] == nil {
		f.subs[conversationID] = make(map[int]chan string)
	}
	f.subs[conversationID][id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[conversationID][id]; ok {
			delete(f.subs[conversationID], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}
