package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

// VoterSource returns a poll.VoterSource bound to one poll message.
func (c *Client) VoterSource(channelID, messageID string) poll.VoterSource {
	return &voterPager{s: c.s, channelID: channelID, messageID: messageID}
}

// voterPager pages the per-answer voter listing. discordgo's own
// PollAnswerVoters exposes no cursor parameters, so the request is issued
// against the raw endpoint with limit/after query values.
type voterPager struct {
	s         *discordgo.Session
	channelID string
	messageID string
}

func (v *voterPager) VoterPage(ctx context.Context, answerID int, after string, limit int) ([]poll.Voter, error) {
	endpoint := discordgo.EndpointPollAnswerVoters(v.channelID, v.messageID, answerID)
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if after != "" {
		q.Set("after", after)
	}

	body, err := v.s.RequestWithBucketID("GET", endpoint+"?"+q.Encode(), nil, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("answer %d voters: %w", answerID, err)
	}

	var resp struct {
		Users []*discordgo.User `json:"users"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode voters: %w", err)
	}

	voters := make([]poll.Voter, len(resp.Users))
	for i, u := range resp.Users {
		voters[i] = poll.Voter{ID: u.ID, Username: u.Username, DisplayName: u.GlobalName}
	}
	return voters, nil
}
