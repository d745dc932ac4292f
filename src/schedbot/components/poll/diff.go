package poll

import "sort"

// Change describes one answer's vote movement between two snapshots of the
// same poll. Added and Removed never share a voter id.
type Change struct {
	AnswerID int
	OldCount int
	NewCount int
	Added    []Voter
	Removed  []Voter
}

// Diff compares two snapshots of the same poll and returns one Change per
// answer whose count differs. An answer present in only one snapshot is
// treated as empty on the other side.
func Diff(prev, cur Snapshot) []Change {
	ids := make(map[int]struct{}, len(cur))
	for id := range prev {
		ids[id] = struct{}{}
	}
	for id := range cur {
		ids[id] = struct{}{}
	}
	ordered := make([]int, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Ints(ordered)

	var changes []Change
	for _, id := range ordered {
		before := prev[id]
		after := cur[id]
		oldCount, newCount := 0, 0
		if before != nil {
			oldCount = before.Count
		}
		if after != nil {
			newCount = after.Count
		}
		if oldCount == newCount {
			continue
		}
		changes = append(changes, Change{
			AnswerID: id,
			OldCount: oldCount,
			NewCount: newCount,
			Added:    subtract(after, before),
			Removed:  subtract(before, after),
		})
	}
	return changes
}

// subtract returns the voters of a that are absent from b, ordered by id.
func subtract(a, b *AnswerVotes) []Voter {
	if a == nil {
		return nil
	}
	var out []Voter
	for _, id := range orderedIDs(a) {
		if b != nil {
			if _, ok := b.Voters[id]; ok {
				continue
			}
		}
		out = append(out, a.Voters[id])
	}
	return out
}

func orderedIDs(av *AnswerVotes) []string {
	if len(av.Order) == len(av.Voters) {
		return av.Order
	}
	ids := make([]string, 0, len(av.Voters))
	for id := range av.Voters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
