package votesync

import (
	"encoding/json"
	"testing"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

func TestBuildRowsShapesOneRowPerAnswer(t *testing.T) {
	answers := []poll.Answer{{ID: 1, Label: "Monday"}, {ID: 2, Label: "Tuesday"}}
	snap := poll.Snapshot{
		1: {
			Count: 2,
			Order: []string{"u1", "u2"},
			Voters: map[string]poll.Voter{
				"u1": {ID: "u1", Username: "alice", DisplayName: "Alice"},
				"u2": {ID: "u2", Username: "bob"},
			},
		},
		2: {Count: 0, Voters: map[string]poll.Voter{}},
	}
	counts := map[int]map[string]int{1: {"Tanks": 1, "Healers": 1}}

	rows := BuildRows("m1", answers, snap, counts)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].AnswerID != 1 || rows[0].Label != "Monday" || rows[0].VoterCount != 2 {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}

	var voters []voterRecord
	if err := json.Unmarshal([]byte(rows[0].Voters), &voters); err != nil {
		t.Fatalf("voters json: %v", err)
	}
	if len(voters) != 2 || voters[0].ID != "u1" || voters[0].DisplayName != "Alice" {
		t.Fatalf("unexpected voters payload: %+v", voters)
	}

	var rc map[string]int
	if err := json.Unmarshal([]byte(rows[0].RoleCounts), &rc); err != nil {
		t.Fatalf("role counts json: %v", err)
	}
	if rc["Tanks"] != 1 || rc["Healers"] != 1 {
		t.Fatalf("unexpected role counts: %v", rc)
	}

	if rows[1].VoterCount != 0 || rows[1].Label != "Tuesday" {
		t.Fatalf("unexpected empty-answer row: %+v", rows[1])
	}
}

func TestBuildRowsMissingAnswerInSnapshot(t *testing.T) {
	rows := BuildRows("m1", []poll.Answer{{ID: 5, Label: "Friday"}}, poll.Snapshot{}, nil)
	if len(rows) != 1 || rows[0].VoterCount != 0 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}
