package store

import (
	"log"
	"sync"
)

// notifier fans events out to per-topic subscribers. Each subscriber gets
// its own buffered channel drained by a dedicated goroutine, so a slow
// consumer never blocks the publisher; when its buffer fills the event is
// dropped with a log line.
type notifier[T any] struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]*notifierSub[T]
}

type notifierSub[T any] struct {
	ch   chan T
	done chan struct{}
	once sync.Once
}

func newNotifier[T any]() *notifier[T] {
	return &notifier[T]{subs: make(map[string]map[int]*notifierSub[T])}
}

func (n *notifier[T]) subscribe(topic string, fn func(T)) Subscription {
	sub := &notifierSub[T]{
		ch:   make(chan T, 64),
		done: make(chan struct{}),
	}

	n.mu.Lock()
	id := n.next
	n.next++
	if n.subs[topic] == nil {
		n.subs[topic] = make(map[int]*notifierSub[T])
	}
	n.subs[topic][id] = sub
	n.mu.Unlock()

	go func() {
		for {
			select {
			case v := <-sub.ch:
				fn(v)
			case <-sub.done:
				return
			}
		}
	}()

	return &notifierHandle[T]{n: n, topic: topic, id: id, sub: sub}
}

func (n *notifier[T]) publish(topic string, v T) {
	n.mu.Lock()
	subs := make([]*notifierSub[T], 0, len(n.subs[topic]))
	for _, s := range n.subs[topic] {
		subs = append(subs, s)
	}
	n.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- v:
		default:
			log.Printf("store: subscriber for %q too slow, dropping event", topic)
		}
	}
}

type notifierHandle[T any] struct {
	n     *notifier[T]
	topic string
	id    int
	sub   *notifierSub[T]
}

func (h *notifierHandle[T]) Close() {
	h.sub.once.Do(func() {
		h.n.mu.Lock()
		delete(h.n.subs[h.topic], h.id)
		h.n.mu.Unlock()
		close(h.sub.done)
	})
}
