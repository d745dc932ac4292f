package notify

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

type fakeNotifier struct {
	delivered map[string]int
	failFor   map[string]bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{delivered: make(map[string]int), failFor: make(map[string]bool)}
}

func (f *fakeNotifier) NotifyVoteChange(e EntryView, userID string, changes []poll.Change) error {
	if f.failFor[userID] {
		return errors.New("dm closed")
	}
	f.delivered[userID] += len(changes)
	return nil
}

func TestTickProcessesEverySubscribedPollOnce(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", "c1", "g1")
	r.Register("m2", "c1", "g1")
	r.Register("m3", "c1", "g1")
	r.Toggle("m1", "u1")
	r.Toggle("m2", "u1")
	r.SeedSnapshot("m1", poll.Snapshot{})
	r.SeedSnapshot("m2", poll.Snapshot{})
	// m3 stays subscriber-free and must be skipped.

	fetched := make(map[string]int)
	fetch := func(ctx context.Context, e EntryView) (poll.Snapshot, error) {
		fetched[e.MessageID]++
		return snapWith(1), nil
	}

	p := NewPoller(r, fetch, newFakeNotifier())
	p.runTick(context.Background())

	var got []string
	for id := range fetched {
		got = append(got, id)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "m1" || got[1] != "m2" {
		t.Fatalf("expected fetches for m1,m2 only, got %v", got)
	}
	for id, n := range fetched {
		if n != 1 {
			t.Fatalf("poll %s fetched %d times in one tick", id, n)
		}
	}
}

func TestOnePollFailureDoesNotBlockOthers(t *testing.T) {
	r := NewRegistry()
	r.Register("bad", "c1", "g1")
	r.Register("good", "c1", "g1")
	r.Toggle("bad", "u1")
	r.Toggle("good", "u1")
	r.SeedSnapshot("bad", poll.Snapshot{})
	r.SeedSnapshot("good", poll.Snapshot{})

	fetched := make(map[string]int)
	fetch := func(ctx context.Context, e EntryView) (poll.Snapshot, error) {
		fetched[e.MessageID]++
		if e.MessageID == "bad" {
			return nil, errors.New("platform down")
		}
		return snapWith(1, "v1"), nil
	}

	n := newFakeNotifier()
	p := NewPoller(r, fetch, n)
	p.runTick(context.Background())

	if fetched["good"] != 1 {
		t.Fatal("healthy poll skipped after another poll failed")
	}
	if n.delivered["u1"] == 0 {
		t.Fatal("expected notification for the healthy poll")
	}
}

func TestSubscriberDeliveryFailureDoesNotAbortBatch(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", "c1", "g1")
	r.Toggle("m1", "u-bad")
	r.Toggle("m1", "u-ok")
	r.SeedSnapshot("m1", poll.Snapshot{})

	fetch := func(ctx context.Context, e EntryView) (poll.Snapshot, error) {
		return snapWith(1, "v1"), nil
	}
	n := newFakeNotifier()
	n.failFor["u-bad"] = true

	p := NewPoller(r, fetch, n)
	p.runTick(context.Background())

	if n.delivered["u-ok"] == 0 {
		t.Fatal("delivery to u-ok aborted by u-bad's failure")
	}
}

func TestTickBetweenToggleAndSeedStaysSilent(t *testing.T) {
	// A poll with pre-existing votes: a tick firing between the first toggle
	// and its seeded baseline must not report those votes as changes.
	r := NewRegistry()
	r.Register("m1", "c1", "g1")

	fetch := func(ctx context.Context, e EntryView) (poll.Snapshot, error) {
		return snapWith(1, "u1", "u2"), nil
	}
	n := newFakeNotifier()
	p := NewPoller(r, fetch, n)

	r.Toggle("m1", "subscriber")
	p.runTick(context.Background())
	if n.delivered["subscriber"] != 0 {
		t.Fatalf("subscriber notified about pre-existing votes: %d", n.delivered["subscriber"])
	}

	r.SeedSnapshot("m1", snapWith(1, "u1", "u2"))
	p.runTick(context.Background())
	if n.delivered["subscriber"] != 0 {
		t.Fatalf("seeded baseline produced false changes: %d", n.delivered["subscriber"])
	}
}

func TestSnapshotOverwrittenAfterNotify(t *testing.T) {
	r := NewRegistry()
	r.Register("m1", "c1", "g1")
	r.Toggle("m1", "u1")
	r.SeedSnapshot("m1", poll.Snapshot{})

	fetch := func(ctx context.Context, e EntryView) (poll.Snapshot, error) {
		return snapWith(1, "v1", "v2"), nil
	}
	n := newFakeNotifier()
	p := NewPoller(r, fetch, n)

	p.runTick(context.Background())
	if n.delivered["u1"] != 1 {
		t.Fatalf("expected 1 change notified, got %d", n.delivered["u1"])
	}

	// Second tick with identical votes: stored snapshot was overwritten,
	// so nothing new is reported.
	p.runTick(context.Background())
	if n.delivered["u1"] != 1 {
		t.Fatalf("stored snapshot not overwritten, delivered=%d", n.delivered["u1"])
	}
	if st := p.Stats(); st.Ticks != 2 || st.Notifications != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
