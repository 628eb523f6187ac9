package server

import (
	"context"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/podium/internal/voting"
)

const (
	RealtimeEventTallyChanged = "tally-change"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeSourceBackend     = "podium-backend"
)

// RealtimeMessage notifies subscribers of one category that its tallies changed. Category
// holds the canonical category name once the message has been published.
type RealtimeMessage struct {
	Category  string
	EventType string
	Timestamp time.Time
}

// RealtimeDispatcher fans tally notifications out to the streams watching a category.
// Streams and messages are keyed by the canonical category name, the same trimmed name
// the voting store resolves, so "Music " and "Music" reach the same subscribers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for category until ctx ends or the cleanup func runs.
// Names the store would reject get a closed stream.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, rawCategory string) (<-chan RealtimeMessage, func()) {
	category, ok := categoryKey(rawCategory)
	if !ok {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(category, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(category, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers message to every subscriber of its category. Slow subscribers drop
// messages instead of blocking the publisher.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	category, ok := categoryKey(message.Category)
	if !ok || message.EventType == "" {
		return
	}
	message.Category = category
	d.mu.RLock()
	subscribers := d.subscribers[category]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// PublishTallyChange announces that the tallies of rawCategory changed.
func (d *RealtimeDispatcher) PublishTallyChange(rawCategory string) {
	d.Publish(RealtimeMessage{
		Category:  rawCategory,
		EventType: RealtimeEventTallyChanged,
		Timestamp: time.Now().UTC(),
	})
}

// SubscriberCount reports how many streams watch category.
func (d *RealtimeDispatcher) SubscriberCount(rawCategory string) int {
	category, ok := categoryKey(rawCategory)
	if !ok {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers[category])
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(category string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[category]; !ok {
		d.subscribers[category] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[category][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(category string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[category]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, category)
		}
	}
	d.mu.Unlock()
}

// categoryKey returns the canonical name used as the subscription key.
func categoryKey(rawCategory string) (string, bool) {
	name, err := voting.NewCategoryName(rawCategory)
	if err != nil {
		return "", false
	}
	return name.String(), true
}
