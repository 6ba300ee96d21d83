package bus

import (
	"context"
	"sync"
)

// LocalBus fans messages out in-process. It serves single-instance
// deployments without redis and lets tests share one bus between services.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[int]func(Invalidation)
	nextID int
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: map[int]func(Invalidation){}}
}

func (b *LocalBus) Publish(ctx context.Context, msg Invalidation) error {
	if _, err := encode(msg); err != nil {
		return err
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	b.mu.RLock()
	handlers := make([]func(Invalidation), 0, len(b.subs))
	for _, fn := range b.subs {
		handlers = append(handlers, fn)
	}
	b.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
	return nil
}

// StartForwarder registers onMsg until ctx is done. Delivery is synchronous.
func (b *LocalBus) StartForwarder(ctx context.Context, onMsg func(m Invalidation)) error {
	if onMsg == nil {
		return errNoCallback
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errClosed
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()
	}
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(Invalidation){}
	return nil
}
