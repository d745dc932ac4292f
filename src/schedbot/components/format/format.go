package format

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

// UnassignedLabel buckets voters matching no configured role group.
const UnassignedLabel = "Unassigned"

// LabelsFunc classifies one member id into role labels; empty means
// unassigned.
type LabelsFunc func(memberID string) []string

// Results renders the per-answer breakdown with voters bucketed by role
// label. One block per answer, sized for the paginator.
func Results(question string, answers []poll.Answer, snap poll.Snapshot, labels []string, labelsFor LabelsFunc) (string, []string) {
	header := fmt.Sprintf("📊 **%s**", question)
	blocks := make([]string, 0, len(answers))
	for _, ans := range answers {
		av := snap[ans.ID]
		if av == nil || av.Count == 0 {
			blocks = append(blocks, fmt.Sprintf("**%s**: no votes yet", ans.Label))
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "**%s**: %d voted", ans.Label, av.Count)
		if len(labels) == 0 {
			fmt.Fprintf(&b, "\n%s", joinNames(votersInOrder(av)))
			blocks = append(blocks, b.String())
			continue
		}
		buckets := bucketVoters(av, labelsFor)
		for _, label := range append(append([]string{}, labels...), UnassignedLabel) {
			members := buckets[label]
			if len(members) == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n• %s: %s", label, joinNames(members))
		}
		blocks = append(blocks, b.String())
	}
	return header, blocks
}

// Export renders a compact schedule: one line per answer with every voter.
func Export(question string, answers []poll.Answer, snap poll.Snapshot) (string, []string) {
	header := fmt.Sprintf("📅 Schedule · %s", question)
	blocks := make([]string, 0, len(answers))
	for _, ans := range answers {
		av := snap[ans.ID]
		if av == nil || av.Count == 0 {
			blocks = append(blocks, fmt.Sprintf("%s (0): none", ans.Label))
			continue
		}
		blocks = append(blocks, fmt.Sprintf("%s (%d): %s", ans.Label, av.Count, joinNames(votersInOrder(av))))
	}
	return header, blocks
}

// Summary renders counts only, fitting a single message.
func Summary(question string, answers []poll.Answer, snap poll.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 **%s**", question)
	best := -1
	for _, ans := range answers {
		if av := snap[ans.ID]; av != nil && av.Count > best {
			best = av.Count
		}
	}
	for _, ans := range answers {
		count := 0
		if av := snap[ans.ID]; av != nil {
			count = av.Count
		}
		mark := ""
		if count == best && best > 0 {
			mark = " ⭐"
		}
		fmt.Fprintf(&b, "\n%s: %d%s", ans.Label, count, mark)
	}
	return b.String()
}

// Missing renders the roster members who voted on no answer at all.
func Missing(question string, roster []poll.Voter, snap poll.Snapshot) string {
	voted := snap.VoterUnion()
	var missing []string
	for _, member := range roster {
		if _, ok := voted[member.ID]; !ok {
			missing = append(missing, member.Name())
		}
	}
	sort.Strings(missing)
	if len(missing) == 0 {
		return fmt.Sprintf("✅ Everyone has voted on **%s**.", question)
	}
	return fmt.Sprintf("⏳ Still missing for **%s** (%d): %s", question, len(missing), strings.Join(missing, ", "))
}

// Notification renders the private vote-change message for one diff cycle.
func Notification(question string, answerLabels map[int]string, changes []poll.Change) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Vote update · **%s**", question)
	for _, c := range changes {
		label := answerLabels[c.AnswerID]
		if label == "" {
			label = fmt.Sprintf("answer %d", c.AnswerID)
		}
		fmt.Fprintf(&b, "\n%s: %d → %d", label, c.OldCount, c.NewCount)
		if len(c.Added) > 0 {
			fmt.Fprintf(&b, " (+%s)", joinNames(c.Added))
		}
		if len(c.Removed) > 0 {
			fmt.Fprintf(&b, " (−%s)", joinNames(c.Removed))
		}
	}
	return b.String()
}

// RoleCounts tallies voters per role label for every answer, the shape the
// persistence sync stores.
func RoleCounts(snap poll.Snapshot, labelsFor LabelsFunc) map[int]map[string]int {
	out := make(map[int]map[string]int, len(snap))
	for answerID, av := range snap {
		counts := make(map[string]int)
		for id := range av.Voters {
			labels := labelsFor(id)
			if len(labels) == 0 {
				counts[UnassignedLabel]++
				continue
			}
			for _, label := range labels {
				counts[label]++
			}
		}
		out[answerID] = counts
	}
	return out
}

func bucketVoters(av *poll.AnswerVotes, labelsFor LabelsFunc) map[string][]poll.Voter {
	buckets := make(map[string][]poll.Voter)
	for _, v := range votersInOrder(av) {
		labels := labelsFor(v.ID)
		if len(labels) == 0 {
			buckets[UnassignedLabel] = append(buckets[UnassignedLabel], v)
			continue
		}
		for _, label := range labels {
			buckets[label] = append(buckets[label], v)
		}
	}
	return buckets
}

func votersInOrder(av *poll.AnswerVotes) []poll.Voter {
	out := make([]poll.Voter, 0, len(av.Voters))
	for _, id := range av.Order {
		if v, ok := av.Voters[id]; ok {
			out = append(out, v)
		}
	}
	if len(out) == len(av.Voters) {
		return out
	}
	out = out[:0]
	ids := make([]string, 0, len(av.Voters))
	for id := range av.Voters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, av.Voters[id])
	}
	return out
}

func joinNames(voters []poll.Voter) string {
	names := make([]string, len(voters))
	for i, v := range voters {
		names[i] = v.Name()
	}
	return strings.Join(names, ", ")
}
