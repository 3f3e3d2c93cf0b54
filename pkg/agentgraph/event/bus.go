package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Bus provides pub/sub event distribution with fan-out support.
type Bus interface {
	// Publish sends an event to all subscribers.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for specific event types.
	// An empty type list subscribes to all events.
	Subscribe(types []string, handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// BufferSize is the channel buffer size per subscription.
	// Default: 256
	BufferSize int

	// NonBlocking makes Publish non-blocking (drops events if buffer full).
	// Default: false (blocking)
	NonBlocking bool

	// OnDrop is called when an event is dropped (non-blocking mode).
	OnDrop func(evt Event, subscriberID string)

	// OnError is called when a handler returns an error.
	OnError func(evt Event, subscriberID string, err error)
}

// DefaultBusConfig provides reasonable defaults.
var DefaultBusConfig = BusConfig{
	BufferSize: 256,
}

// LocalBus is an in-memory event bus implementation.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription

	nextID  atomic.Int64
	closed  atomic.Bool
	closeCh chan struct{}
}

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBusConfig.BufferSize
	}
	return &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		closeCh:       make(chan struct{}),
	}
}

type subscription struct {
	id      string
	types   map[string]struct{} // nil = all types
	handler Handler
	events  chan Event
	done    chan struct{}
	once    sync.Once
	bus     *LocalBus
}

// Publish sends an event to all matching subscribers.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &BusClosedError{EventType: evt.Type()}
	}

	b.mu.RLock()
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		if sub.matches(evt.Type()) {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		if b.config.NonBlocking {
			select {
			case sub.events <- evt:
			default:
				if b.config.OnDrop != nil {
					b.config.OnDrop(evt, sub.id)
				}
			}
		} else {
			select {
			case sub.events <- evt:
			case <-sub.done:
			case <-ctx.Done():
				return ctx.Err()
			case <-b.closeCh:
				return &BusClosedError{EventType: evt.Type()}
			}
		}
	}

	return nil
}

// Subscribe creates a subscription for specific event types.
func (b *LocalBus) Subscribe(types []string, handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var typeSet map[string]struct{}
	if len(types) > 0 {
		typeSet = make(map[string]struct{}, len(types))
		for _, t := range types {
			typeSet[t] = struct{}{}
		}
	}

	sub := &subscription{
		id:      fmt.Sprintf("sub-%d", b.nextID.Add(1)),
		types:   typeSet,
		handler: handler,
		events:  make(chan Event, b.config.BufferSize),
		done:    make(chan struct{}),
		bus:     b,
	}
	b.subscriptions[sub.id] = sub

	go sub.process()

	return sub
}

// Close shuts down the bus.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.closeCh)

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscriptions {
		sub.once.Do(func() { close(sub.done) })
	}
	b.subscriptions = make(map[string]*subscription)

	return nil
}

func (s *subscription) matches(eventType string) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[eventType]
	return ok
}

// process delivers buffered events to the handler in order.
func (s *subscription) process() {
	for {
		select {
		case evt := <-s.events:
			if err := s.handler.Handle(context.Background(), evt); err != nil {
				if s.bus.config.OnError != nil {
					s.bus.config.OnError(evt, s.id, err)
				}
			}
		case <-s.done:
			// Drain remaining buffered events before exiting.
			for {
				select {
				case evt := <-s.events:
					if err := s.handler.Handle(context.Background(), evt); err != nil {
						if s.bus.config.OnError != nil {
							s.bus.config.OnError(evt, s.id, err)
						}
					}
				default:
					return
				}
			}
		}
	}
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscriptions, s.id)
	s.bus.mu.Unlock()

	s.once.Do(func() { close(s.done) })
}

// BusClosedError is returned when publishing to a closed bus.
type BusClosedError struct {
	EventType string
}

func (e *BusClosedError) Error() string {
	return fmt.Sprintf("event bus closed (event type: %s)", e.EventType)
}
