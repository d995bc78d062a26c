package events

import (
	"sync"

	"go.uber.org/zap"
)

const subscriberBuffer = 32

// Bus fans events out to in-process subscribers. A subscriber that falls
// behind is dropped and its channel closed.
type Bus struct {
	mu   sync.RWMutex
	subs map[*subscription]struct{}
	log  *zap.Logger
}

type subscription struct {
	key string
	ch  chan Event
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{subs: make(map[*subscription]struct{}), log: log}
}

// Subscribe returns a channel receiving events for key ("" receives all) and
// a function that cancels the subscription.
func (b *Bus) Subscribe(key string) (<-chan Event, func()) {
	sub := &subscription{key: key, ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() { b.remove(sub) })
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	var slow []*subscription
	for sub := range b.subs {
		if sub.key != "" && sub.key != e.Key {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			slow = append(slow, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range slow {
		b.log.Warn("dropping slow subscriber", zap.String("key", sub.key), zap.String("event", string(e.Type)))
		b.remove(sub)
	}
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// Len reports the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
