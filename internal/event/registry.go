package event

import (
	"sort"
	"sync"

	"github.com/dshills/manivault/internal/event/topic"
)

// Registry stores subscriptions by topic pattern. It is safe for
// concurrent use; Match returns copies so handlers may subscribe or cancel
// while an event is being delivered.
type Registry struct {
	mu    sync.RWMutex
	subs  map[topic.Topic][]*subscription
	byID  map[string]*subscription
	order uint64
	seq   map[string]uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[topic.Topic][]*subscription),
		byID: make(map[string]*subscription),
		seq:  make(map[string]uint64),
	}
}

// Add registers sub.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order++
	r.seq[sub.id] = r.order
	r.subs[sub.topic] = append(r.subs[sub.topic], sub)
	r.byID[sub.id] = sub
}

// Remove drops the subscription with subID.
func (r *Registry) Remove(subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.byID[subID]
	if !ok {
		return false
	}
	list := r.subs[sub.topic]
	for i, s := range list {
		if s.id == subID {
			r.subs[sub.topic] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(r.subs[sub.topic]) == 0 {
		delete(r.subs, sub.topic)
	}
	delete(r.byID, subID)
	delete(r.seq, subID)
	return true
}

// Match returns the active subscriptions whose pattern matches eventTopic,
// ordered by priority and then by subscription order.
func (r *Registry) Match(eventTopic topic.Topic) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*subscription
	for pattern, list := range r.subs {
		if !eventTopic.Matches(pattern) {
			continue
		}
		for _, s := range list {
			if s.IsActive() {
				matched = append(matched, s)
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		pi, pj := matched[i].config.Priority, matched[j].config.Priority
		if pi != pj {
			return pi < pj
		}
		return r.seq[matched[i].id] < r.seq[matched[j].id]
	})
	return matched
}

// Count returns the number of registered subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// CountActive returns the number of active subscriptions.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.byID {
		if s.IsActive() {
			n++
		}
	}
	return n
}
