package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
)

// Client wraps the discordgo session with the platform operations the
// scheduling engine needs.
type Client struct {
	s *discordgo.Session
}

func NewClient(s *discordgo.Session) *Client {
	return &Client{s: s}
}

// CreatePoll posts a multi-select availability poll and returns its message.
// Duration is hours; Discord caps it at 32 days.
func (c *Client) CreatePoll(channelID, question string, dayLabels []string, durationHours int) (*discordgo.Message, error) {
	answers := make([]discordgo.PollAnswer, len(dayLabels))
	for i, label := range dayLabels {
		answers[i] = discordgo.PollAnswer{Media: &discordgo.PollMedia{Text: label}}
	}
	msg, err := c.s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Poll: &discordgo.Poll{
			Question:         discordgo.PollMedia{Text: question},
			Answers:          answers,
			AllowMultiselect: true,
			LayoutType:       discordgo.PollLayoutTypeDefault,
			Duration:         durationHours,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("send poll: %w", err)
	}
	return msg, nil
}

// FetchPoll retrieves the poll message fresh from the platform, never from
// local state, and extracts its answers.
func (c *Client) FetchPoll(channelID, messageID string) (*discordgo.Message, []poll.Answer, error) {
	msg, err := c.s.ChannelMessage(channelID, messageID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch message %s: %w", messageID, err)
	}
	if msg.Poll == nil {
		return nil, nil, fmt.Errorf("message %s carries no poll", messageID)
	}
	answers := make([]poll.Answer, len(msg.Poll.Answers))
	for i, a := range msg.Poll.Answers {
		label := ""
		if a.Media != nil {
			label = a.Media.Text
		}
		answers[i] = poll.Answer{ID: a.AnswerID, Label: label}
	}
	return msg, answers, nil
}

// ExpirePoll closes the poll immediately.
func (c *Client) ExpirePoll(channelID, messageID string) error {
	if _, err := c.s.PollExpire(channelID, messageID); err != nil {
		return fmt.Errorf("expire poll %s: %w", messageID, err)
	}
	return nil
}

// SendDM delivers a private message to a user.
func (c *Client) SendDM(userID, content string) error {
	ch, err := c.s.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open dm with %s: %w", userID, err)
	}
	if _, err := c.s.ChannelMessageSend(ch.ID, content); err != nil {
		return fmt.Errorf("send dm to %s: %w", userID, err)
	}
	return nil
}

// MemberRoles implements roles.Resolver.
func (c *Client) MemberRoles(guildID, userID string) ([]string, error) {
	member, err := c.s.GuildMember(guildID, userID)
	if err != nil {
		return nil, err
	}
	return member.Roles, nil
}

// GuildRoster pages through the full guild member list.
func (c *Client) GuildRoster(guildID string) ([]*discordgo.Member, error) {
	const pageSize = 1000
	var all []*discordgo.Member
	after := ""
	for {
		page, err := c.s.GuildMembers(guildID, after, pageSize)
		if err != nil {
			return nil, fmt.Errorf("guild members after %q: %w", after, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
		after = page[len(page)-1].User.ID
	}
}
