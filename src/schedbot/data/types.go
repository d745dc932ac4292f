package data

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// Scheduling polls created through /schedule
type ScheduledPoll struct {
	MessageID        string `gorm:"primaryKey;size:64"`
	ControlMessageID string `gorm:"index;size:64"`
	ChannelID        string `gorm:"size:64;not null"`
	GuildID          string `gorm:"size:64;not null"`
	Question         string `gorm:"size:300;not null"`
	CreatedBy        string `gorm:"size:64"`
	CreatedAt        time.Time
	ClosesAt         time.Time
}

// Latest known votes for one answer of a scheduled poll
type AnswerSnapshot struct {
	MessageID  string `gorm:"primaryKey;size:64"`
	AnswerID   int    `gorm:"primaryKey"`
	Label      string `gorm:"size:100;not null"`
	VoterCount int    `gorm:"default:0"`
	Voters     string `gorm:"type:text"` // JSON array of voter identities
	RoleCounts string `gorm:"size:512"`  // JSON object label -> count
	UpdatedAt  time.Time
}

// FindPollByMessageID returns the tracked poll for a poll message id, or nil
// when the message was not created through the scheduling flow.
func FindPollByMessageID(db *gorm.DB, messageID string) (*ScheduledPoll, error) {
	var rec ScheduledPoll
	err := db.First(&rec, "message_id = ?", messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindPollByControlMessage resolves the poll a control-button message belongs to.
func FindPollByControlMessage(db *gorm.DB, controlMessageID string) (*ScheduledPoll, error) {
	var rec ScheduledPoll
	err := db.First(&rec, "control_message_id = ?", controlMessageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
