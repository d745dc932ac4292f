package notify

import (
	"sync"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

// entry is the registry's record of one tracked poll. Snapshots are replaced
// wholesale and never mutated in place, so views may share them.
type entry struct {
	messageID   string
	channelID   string
	guildID     string
	subscribers map[string]struct{}
	everHadSub  bool
	seedPending bool
	last        poll.Snapshot
}

// EntryView is a copy-safe view of a tracked poll handed to the poller.
type EntryView struct {
	MessageID   string
	ChannelID   string
	GuildID     string
	Subscribers []string
	Last        poll.Snapshot
}

// Registry holds per-poll subscriber sets and last-known snapshots for the
// process lifetime. All access goes through the mutex; entries are never
// evicted.
type Registry struct {
	mu    sync.Mutex
	polls map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{polls: make(map[string]*entry)}
}

// Register makes the registry aware of a poll. Idempotent; an existing entry
// keeps its subscribers and snapshot.
func (r *Registry) Register(messageID, channelID, guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.polls[messageID]; ok {
		return
	}
	r.polls[messageID] = &entry{
		messageID:   messageID,
		channelID:   channelID,
		guildID:     guildID,
		subscribers: make(map[string]struct{}),
		last:        make(poll.Snapshot),
	}
}

// Toggle flips a user's subscription on a registered poll. It reports the
// user's new state and whether this was the poll's first-ever subscriber. A
// first-ever subscribe withholds the poll from Entries until SeedSnapshot
// records the baseline; the caller must always follow up with SeedSnapshot.
func (r *Registry) Toggle(messageID, userID string) (subscribed, firstEver, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, found := r.polls[messageID]
	if !found {
		return false, false, false
	}
	if _, has := e.subscribers[userID]; has {
		delete(e.subscribers, userID)
		return false, false, true
	}
	e.subscribers[userID] = struct{}{}
	firstEver = !e.everHadSub
	e.everHadSub = true
	if firstEver {
		e.seedPending = true
	}
	return true, firstEver, true
}

// SeedSnapshot records the baseline snapshot captured at subscribe time so
// pre-existing votes never read as changes, and releases the poll to the
// poller.
func (r *Registry) SeedSnapshot(messageID string, snap poll.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.polls[messageID]; ok {
		e.last = snap
		e.seedPending = false
	}
}

// UpdateSnapshot overwrites the stored snapshot after a diff cycle.
// Last-write-wins against a racing on-demand handler is accepted.
func (r *Registry) UpdateSnapshot(messageID string, snap poll.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.polls[messageID]; ok {
		e.last = snap
	}
}

// Subscribers returns the current subscriber ids for a poll.
func (r *Registry) Subscribers(messageID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.polls[messageID]
	if !ok {
		return nil
	}
	return subscriberIDs(e)
}

// Entries snapshots the registry for one poller tick. A poll whose first
// subscriber is still waiting on its seeded baseline is withheld; diffing it
// against the empty snapshot would report every existing vote as new.
func (r *Registry) Entries() []EntryView {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]EntryView, 0, len(r.polls))
	for _, e := range r.polls {
		if e.seedPending {
			continue
		}
		views = append(views, EntryView{
			MessageID:   e.messageID,
			ChannelID:   e.channelID,
			GuildID:     e.guildID,
			Subscribers: subscriberIDs(e),
			Last:        e.last,
		})
	}
	return views
}

// Stats summarizes registry size for the ops endpoint.
type Stats struct {
	Polls       int `json:"polls"`
	Subscribers int `json:"subscribers"`
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := Stats{Polls: len(r.polls)}
	for _, e := range r.polls {
		st.Subscribers += len(e.subscribers)
	}
	return st
}

func subscriberIDs(e *entry) []string {
	ids := make([]string, 0, len(e.subscribers))
	for id := range e.subscribers {
		ids = append(ids, id)
	}
	return ids
}
