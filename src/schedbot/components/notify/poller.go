package notify

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

const (
	// DefaultInterval is the change-detection cadence.
	DefaultInterval = 30 * time.Second
	// defaultFetchTimeout bounds one poll's snapshot fetch so a slow poll
	// cannot delay the whole tick.
	defaultFetchTimeout = 20 * time.Second
)

// SnapshotFunc captures a fresh vote snapshot for a tracked poll.
type SnapshotFunc func(ctx context.Context, e EntryView) (poll.Snapshot, error)

// Notifier delivers one vote-change notification privately to one user.
type Notifier interface {
	NotifyVoteChange(e EntryView, userID string, changes []poll.Change) error
}

// Poller periodically fetches, diffs and notifies for every registered poll
// that has at least one subscriber. Best effort: failed polls and failed
// deliveries are logged and skipped, never fatal.
type Poller struct {
	registry     *Registry
	fetch        SnapshotFunc
	notifier     Notifier
	interval     time.Duration
	fetchTimeout time.Duration

	ticks         atomic.Uint64
	notifications atomic.Uint64
}

func NewPoller(registry *Registry, fetch SnapshotFunc, notifier Notifier) *Poller {
	return &Poller{
		registry:     registry,
		fetch:        fetch,
		notifier:     notifier,
		interval:     DefaultInterval,
		fetchTimeout: defaultFetchTimeout,
	}
}

// Start runs the periodic loop until the context ends.
func (p *Poller) Start(ctx context.Context) {
	log.Printf("notify: starting poll change poller (interval %s)", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("notify: stopping poll change poller")
			return
		case <-ticker.C:
			p.runTick(ctx)
		}
	}
}

func (p *Poller) runTick(ctx context.Context) {
	p.ticks.Add(1)
	for _, e := range p.registry.Entries() {
		if len(e.Subscribers) == 0 {
			continue
		}
		if err := p.checkPoll(ctx, e); err != nil {
			log.Printf("notify: poll %s: %v", e.MessageID, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Poller) checkPoll(ctx context.Context, e EntryView) error {
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	snap, err := p.fetch(fctx, e)
	cancel()
	if err != nil {
		return err
	}

	changes := poll.Diff(e.Last, snap)
	if len(changes) > 0 {
		for _, userID := range e.Subscribers {
			if err := p.notifier.NotifyVoteChange(e, userID, changes); err != nil {
				log.Printf("notify: dm %s for poll %s: %v", userID, e.MessageID, err)
				continue
			}
			p.notifications.Add(1)
		}
	}

	p.registry.UpdateSnapshot(e.MessageID, snap)
	return nil
}

// PollerStats summarizes poller activity for the ops endpoint.
type PollerStats struct {
	Ticks         uint64 `json:"ticks"`
	Notifications uint64 `json:"notifications"`
}

func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Ticks:         p.ticks.Load(),
		Notifications: p.notifications.Load(),
	}
}
