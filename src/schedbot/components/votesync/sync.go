package votesync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
	"github.com/scrimtime/schedbot/src/schedbot/data"
	"gorm.io/gorm"
)

// Service replicates the latest vote snapshot of a tracked poll into MySQL.
// One-way and best effort: callers run it detached and only log failures.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

type voterRecord struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Sync upserts per-answer snapshot rows for the poll behind messageID. A
// message with no scheduling record was not created through the tracked flow
// and is deliberately skipped.
func (s *Service) Sync(ctx context.Context, messageID string, answers []poll.Answer, snap poll.Snapshot, roleCounts map[int]map[string]int) error {
	rec, err := data.FindPollByMessageID(s.db.WithContext(ctx), messageID)
	if err != nil {
		return fmt.Errorf("find poll %s: %w", messageID, err)
	}
	if rec == nil {
		return nil
	}

	rows := BuildRows(messageID, answers, snap, roleCounts)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", messageID).Delete(&data.AnswerSnapshot{}).Error; err != nil {
			return fmt.Errorf("clear snapshot rows: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("write snapshot rows: %w", err)
		}
		return nil
	})
}

// BuildRows shapes one durable row per answer, in answer order.
func BuildRows(messageID string, answers []poll.Answer, snap poll.Snapshot, roleCounts map[int]map[string]int) []data.AnswerSnapshot {
	now := time.Now()
	rows := make([]data.AnswerSnapshot, 0, len(answers))
	for _, ans := range answers {
		av := snap[ans.ID]
		var voters []voterRecord
		count := 0
		if av != nil {
			count = av.Count
			for _, id := range av.Order {
				v := av.Voters[id]
				voters = append(voters, voterRecord{ID: v.ID, Username: v.Username, DisplayName: v.DisplayName})
			}
		}
		votersJSON, _ := json.Marshal(voters)
		countsJSON, _ := json.Marshal(roleCounts[ans.ID])
		rows = append(rows, data.AnswerSnapshot{
			MessageID:  messageID,
			AnswerID:   ans.ID,
			Label:      ans.Label,
			VoterCount: count,
			Voters:     string(votersJSON),
			RoleCounts: string(countsJSON),
			UpdatedAt:  now,
		})
	}
	return rows
}
