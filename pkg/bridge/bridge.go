package bridge

import (
	"strings"
	"sync"
)

type NotifyFunc func(topic string, payload string)

// Wildcard subscribers receive every topic.
const Wildcard = "*"

// NoticeTopic is the topic interim notices of a session are published on.
func NoticeTopic(sessionID string) string {
	return "notice/" + sessionID
}

// SessionFromTopic returns the session id of a notice topic.
func SessionFromTopic(topic string) string {
	return strings.TrimPrefix(topic, "notice/")
}

// Bridge fans out events from the service layer to whoever presents them:
// the terminal, a log, or a test.
type Bridge struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]NotifyFunc
}

func New() *Bridge {
	return &Bridge{subs: make(map[string]map[int]NotifyFunc)}
}

// Subscribe registers f for topic and returns a function that removes it.
func (b *Bridge) Subscribe(topic string, f NotifyFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]NotifyFunc)
	}
	b.subs[topic][id] = f
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
		if len(b.subs[topic]) == 0 {
			delete(b.subs, topic)
		}
	}
}

// Notify delivers payload synchronously to the subscribers of topic.
func (b *Bridge) Notify(topic string, payload string) {
	b.mu.RLock()
	var targets []NotifyFunc
	for _, f := range b.subs[topic] {
		targets = append(targets, f)
	}
	if topic != Wildcard {
		for _, f := range b.subs[Wildcard] {
			targets = append(targets, f)
		}
	}
	b.mu.RUnlock()

	for _, f := range targets {
		f(topic, payload)
	}
}
