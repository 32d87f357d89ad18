package broker

import (
	"context"
	"sync"
)

type memSub struct {
	topics []string
	ch     chan Message
}

// MemBroker 进程内 fanout，at-most-once，慢订阅者直接丢
type MemBroker struct {
	mu   sync.RWMutex
	subs map[*memSub]struct{}
}

func NewMemBroker() *MemBroker {
	return &MemBroker{subs: make(map[*memSub]struct{})}
}

func (b *MemBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	msg := Message{Topic: topic, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subs {
		for _, t := range s.topics {
			if !match(t, topic) {
				continue
			}
			select {
			case s.ch <- msg:
			default:
			}
			break
		}
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, topics []string) (<-chan Message, error) {
	s := &memSub{topics: append([]string(nil), topics...), ch: make(chan Message, 4096)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		close(s.ch)
	}()
	return s.ch, nil
}

func (b *MemBroker) Close() error { return nil }
