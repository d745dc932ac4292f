package poll

import (
	"context"
	"fmt"
)

// Voter is a platform member who selected at least one answer. Identity is
// cached from the fetch that produced it and never persisted standalone.
type Voter struct {
	ID          string
	Username    string
	DisplayName string
}

// Name returns the best display string for a voter.
func (v Voter) Name() string {
	if v.DisplayName != "" {
		return v.DisplayName
	}
	return v.Username
}

// Answer is one selectable option of a poll, with its platform-assigned id.
type Answer struct {
	ID    int
	Label string
}

// AnswerVotes holds one answer's voters at one instant. Count always equals
// len(Voters); Order preserves the fetch order of voter ids.
type AnswerVotes struct {
	Count  int
	Order  []string
	Voters map[string]Voter
}

// Snapshot maps answer id to that answer's votes, for one poll at one instant.
type Snapshot map[int]*AnswerVotes

// VoterSource provides one page of voters for a poll answer, ordered by
// ascending voter id, starting after the given voter id.
type VoterSource interface {
	VoterPage(ctx context.Context, answerID int, after string, limit int) ([]Voter, error)
}

const voterPageSize = 100

// FetchAllVoters exhausts the paginated voter listing for one answer. The
// cursor is the last seen voter id; a page shorter than the page size ends the
// walk. Votes moving mid-fetch are accepted inconsistency.
func FetchAllVoters(ctx context.Context, src VoterSource, answerID int) ([]Voter, error) {
	var all []Voter
	after := ""
	for {
		page, err := src.VoterPage(ctx, answerID, after, voterPageSize)
		if err != nil {
			return nil, fmt.Errorf("voter page after %q: %w", after, err)
		}
		all = append(all, page...)
		if len(page) < voterPageSize {
			return all, nil
		}
		after = page[len(page)-1].ID
	}
}

// Capture fetches every answer's voters and assembles a snapshot.
func Capture(ctx context.Context, src VoterSource, answers []Answer) (Snapshot, error) {
	snap := make(Snapshot, len(answers))
	for _, ans := range answers {
		voters, err := FetchAllVoters(ctx, src, ans.ID)
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", ans.ID, err)
		}
		av := &AnswerVotes{
			Count:  len(voters),
			Order:  make([]string, 0, len(voters)),
			Voters: make(map[string]Voter, len(voters)),
		}
		for _, v := range voters {
			if _, seen := av.Voters[v.ID]; seen {
				continue
			}
			av.Order = append(av.Order, v.ID)
			av.Voters[v.ID] = v
		}
		av.Count = len(av.Voters)
		snap[ans.ID] = av
	}
	return snap, nil
}

// VoterUnion returns every distinct voter across all answers of a snapshot.
func (s Snapshot) VoterUnion() map[string]Voter {
	union := make(map[string]Voter)
	for _, av := range s {
		for id, v := range av.Voters {
			union[id] = v
		}
	}
	return union
}
