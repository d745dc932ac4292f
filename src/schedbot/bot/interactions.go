package bot

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/scrimtime/schedbot/src/schedbot/components/format"
	"github.com/scrimtime/schedbot/src/schedbot/components/pagination"
	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
	"github.com/scrimtime/schedbot/src/schedbot/data"
)

const (
	actionClose        = "poll_close"
	actionResults      = "poll_results"
	actionExport       = "poll_export"
	actionSummary      = "poll_summary"
	actionMissing      = "poll_missing"
	actionNotifyToggle = "poll_notify_toggle"

	showMoreResultsPrefix = "show_more_results_"
	showMoreExportPrefix  = "show_more_export_"

	kindResults = "results"
	kindExport  = "export"

	maxAnswers       = 10
	defaultPollHours = 72
	maxPollHours     = 768 // platform bound: 32 days
)

var scheduleCommand = &discordgo.ApplicationCommand{
	Name:        "schedule",
	Description: "Create a multi-day availability poll",
	Options: []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "question",
			Description: "What are you scheduling?",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "days",
			Description: "Comma-separated day labels, up to 10 (e.g. Monday,Tuesday,Thursday)",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "hours",
			Description: "How long the poll stays open in hours (default 72, max 768)",
		},
	},
}

func (b *Bot) registerScheduleCommand() error {
	_, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.config.GuildID, scheduleCommand)
	return err
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if i.ApplicationCommandData().Name == scheduleCommand.Name {
			b.handleSchedule(s, i)
		}
	case discordgo.InteractionMessageComponent:
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	switch {
	case customID == actionClose:
		b.handleClose(s, i)
	case customID == actionResults:
		b.handleResults(s, i)
	case customID == actionExport:
		b.handleExport(s, i)
	case customID == actionSummary:
		b.handleSummary(s, i)
	case customID == actionMissing:
		b.handleMissing(s, i)
	case customID == actionNotifyToggle:
		b.handleNotifyToggle(s, i)
	case strings.HasPrefix(customID, showMoreResultsPrefix):
		b.handleShowMore(s, i, kindResults, strings.TrimPrefix(customID, showMoreResultsPrefix))
	case strings.HasPrefix(customID, showMoreExportPrefix):
		b.handleShowMore(s, i, kindExport, strings.TrimPrefix(customID, showMoreExportPrefix))
	}
}

func (b *Bot) handleSchedule(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Member == nil {
		return
	}

	question := ""
	daysRaw := ""
	hours := defaultPollHours
	for _, opt := range i.ApplicationCommandData().Options {
		switch opt.Name {
		case "question":
			question = strings.TrimSpace(opt.StringValue())
		case "days":
			daysRaw = opt.StringValue()
		case "hours":
			hours = int(opt.IntValue())
		}
	}

	var days []string
	for _, d := range strings.Split(daysRaw, ",") {
		if d = strings.TrimSpace(d); d != "" {
			days = append(days, d)
		}
	}

	switch {
	case question == "":
		respondEphemeral(s, i, "A question is required.")
		return
	case len(days) < 2 || len(days) > maxAnswers:
		respondEphemeral(s, i, "Give between 2 and 10 day labels, comma separated.")
		return
	case hours < 1 || hours > maxPollHours:
		respondEphemeral(s, i, "Poll duration must be between 1 and 768 hours.")
		return
	}

	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge /schedule: %v", err)
		return
	}

	pollMsg, err := b.client.CreatePoll(i.ChannelID, question, days, hours)
	if err != nil {
		log.Printf("bot: create poll: %v", err)
		editResponse(s, i, "Could not create the poll. Please try again.", nil)
		return
	}

	ctrl, err := s.ChannelMessageSendComplex(i.ChannelID, &discordgo.MessageSend{
		Content:    "Controls for **" + question + "**",
		Components: controlRows(),
	})
	if err != nil {
		log.Printf("bot: send control message: %v", err)
		editResponse(s, i, "Poll created, but its control buttons failed. Delete the poll and retry.", nil)
		return
	}

	now := time.Now()
	rec := data.ScheduledPoll{
		MessageID:        pollMsg.ID,
		ControlMessageID: ctrl.ID,
		ChannelID:        i.ChannelID,
		GuildID:          b.config.GuildID,
		Question:         question,
		CreatedBy:        i.Member.User.ID,
		CreatedAt:        now,
		ClosesAt:         now.Add(time.Duration(hours) * time.Hour),
	}
	if err := b.db.Create(&rec).Error; err != nil {
		log.Printf("bot: persist poll %s: %v", pollMsg.ID, err)
		editResponse(s, i, "Poll created, but tracking failed; results and notifications won't work for it.", nil)
		return
	}

	b.registry.Register(rec.MessageID, rec.ChannelID, rec.GuildID)
	editResponse(s, i, "Availability poll created. Votes close in "+rec.ClosesAt.Sub(now).String()+".", nil)
}

func (b *Bot) handleResults(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge results: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, time.Minute)
	defer cancel()

	msg, answers, snap, err := b.fetchState(ctx, rec.ChannelID, rec.MessageID)
	if err != nil {
		log.Printf("bot: results fetch for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not fetch poll results. Please try again.", nil)
		return
	}

	run := b.classifier.Run()
	header, blocks := format.Results(msg.Poll.Question.Text, answers, snap, b.classifier.Labels(), run.Labels)
	page, err := b.paginator.FirstPage(ctx, kindResults, header, blocks)
	if err != nil {
		log.Printf("bot: paginate results for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not render poll results. Please try again.", nil)
		return
	}

	// Classification must finish before the run leaves this goroutine.
	roleCounts := format.RoleCounts(snap, run.Labels)
	b.syncVotes(rec.MessageID, answers, snap, roleCounts)

	editResponse(s, i, page.Content, showMoreRows(kindResults, page.CursorID))
}

func (b *Bot) handleExport(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge export: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, time.Minute)
	defer cancel()

	msg, answers, snap, err := b.fetchState(ctx, rec.ChannelID, rec.MessageID)
	if err != nil {
		log.Printf("bot: export fetch for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not fetch the schedule. Please try again.", nil)
		return
	}

	header, blocks := format.Export(msg.Poll.Question.Text, answers, snap)
	page, err := b.paginator.FirstPage(ctx, kindExport, header, blocks)
	if err != nil {
		log.Printf("bot: paginate export for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not render the schedule. Please try again.", nil)
		return
	}

	editResponse(s, i, page.Content, showMoreRows(kindExport, page.CursorID))
}

func (b *Bot) handleSummary(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge summary: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, time.Minute)
	defer cancel()

	msg, answers, snap, err := b.fetchState(ctx, rec.ChannelID, rec.MessageID)
	if err != nil {
		log.Printf("bot: summary fetch for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not fetch the summary. Please try again.", nil)
		return
	}

	editResponse(s, i, pagination.Clamp(format.Summary(msg.Poll.Question.Text, answers, snap)), nil)
}

func (b *Bot) handleMissing(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if !b.classifier.Configured() {
		respondEphemeral(s, i, "No role groups configured; set ROLE_GROUPS to use the missing-voters view.")
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge missing: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, time.Minute)
	defer cancel()

	msg, _, snap, err := b.fetchState(ctx, rec.ChannelID, rec.MessageID)
	if err != nil {
		log.Printf("bot: missing fetch for %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not fetch the poll. Please try again.", nil)
		return
	}

	members, err := b.client.GuildRoster(rec.GuildID)
	if err != nil {
		log.Printf("bot: roster fetch for %s: %v", rec.GuildID, err)
		editResponse(s, i, "Could not fetch the member list. Please try again.", nil)
		return
	}

	var roster []poll.Voter
	for _, m := range members {
		if m.User == nil || m.User.Bot {
			continue
		}
		if len(b.classifier.LabelsForRoles(m.Roles)) == 0 {
			continue
		}
		display := m.Nick
		if display == "" {
			display = m.User.GlobalName
		}
		roster = append(roster, poll.Voter{ID: m.User.ID, Username: m.User.Username, DisplayName: display})
	}

	editResponse(s, i, pagination.Clamp(format.Missing(msg.Poll.Question.Text, roster, snap)), nil)
}

func (b *Bot) handleNotifyToggle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if i.Member == nil {
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge notify toggle: %v", err)
		return
	}

	userID := i.Member.User.ID
	b.registry.Register(rec.MessageID, rec.ChannelID, rec.GuildID)
	subscribed, firstEver, ok := b.registry.Toggle(rec.MessageID, userID)
	if !ok {
		editResponse(s, i, "Could not update your subscription. Please try again.", nil)
		return
	}

	if subscribed && firstEver {
		// Seed the baseline so existing votes don't read as changes; the
		// registry withholds the poll from the poller until the seed lands.
		ctx, cancel := context.WithTimeout(b.ctx, time.Minute)
		defer cancel()
		_, _, snap, err := b.fetchState(ctx, rec.ChannelID, rec.MessageID)
		if err != nil {
			log.Printf("bot: seed snapshot for %s: %v", rec.MessageID, err)
			snap = make(poll.Snapshot)
		}
		b.registry.SeedSnapshot(rec.MessageID, snap)
	}

	if subscribed {
		editResponse(s, i, "🔔 You'll get a DM when votes on this poll change.", nil)
	} else {
		editResponse(s, i, "🔕 Vote-change notifications are off for this poll.", nil)
	}
}

func (b *Bot) handleClose(s *discordgo.Session, i *discordgo.InteractionCreate) {
	rec := b.lookupRecord(s, i)
	if rec == nil {
		return
	}
	if i.Member == nil || i.Member.User.ID != rec.CreatedBy {
		respondEphemeral(s, i, "Only the poll creator can close it.")
		return
	}
	if err := deferEphemeral(s, i); err != nil {
		log.Printf("bot: acknowledge close: %v", err)
		return
	}

	if err := b.client.ExpirePoll(rec.ChannelID, rec.MessageID); err != nil {
		log.Printf("bot: close poll %s: %v", rec.MessageID, err)
		editResponse(s, i, "Could not close the poll. Please try again.", nil)
		return
	}
	editResponse(s, i, "Poll closed.", nil)
}

func (b *Bot) handleShowMore(s *discordgo.Session, i *discordgo.InteractionCreate, kind, cursorID string) {
	ctx, cancel := context.WithTimeout(b.ctx, 10*time.Second)
	defer cancel()

	page, err := b.paginator.NextPage(ctx, cursorID)
	if errors.Is(err, pagination.ErrExpired) {
		respondEphemeral(s, i, "That view expired. Run the original action again.")
		return
	}
	if err != nil {
		log.Printf("bot: show more %s: %v", cursorID, err)
		respondEphemeral(s, i, "Could not load the next page. Please try again.")
		return
	}

	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    page.Content,
			Flags:      discordgo.MessageFlagsEphemeral,
			Components: showMoreRows(kind, page.CursorID),
		},
	})
	if err != nil {
		log.Printf("bot: respond show more: %v", err)
	}
}

// lookupRecord resolves the poll behind a control-button interaction,
// answering the user directly when it cannot.
func (b *Bot) lookupRecord(s *discordgo.Session, i *discordgo.InteractionCreate) *data.ScheduledPoll {
	rec, err := data.FindPollByControlMessage(b.db, i.Message.ID)
	if err != nil {
		log.Printf("bot: lookup control message %s: %v", i.Message.ID, err)
		respondEphemeral(s, i, "Something went wrong. Please try again.")
		return nil
	}
	if rec == nil {
		respondEphemeral(s, i, "This poll isn't tracked anymore.")
		return nil
	}
	return rec
}

func controlRows() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Results", Style: discordgo.PrimaryButton, CustomID: actionResults},
			discordgo.Button{Label: "Export", Style: discordgo.SecondaryButton, CustomID: actionExport},
			discordgo.Button{Label: "Summary", Style: discordgo.SecondaryButton, CustomID: actionSummary},
		}},
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Missing", Style: discordgo.SecondaryButton, CustomID: actionMissing},
			discordgo.Button{Label: "Notify me", Style: discordgo.SuccessButton, CustomID: actionNotifyToggle},
			discordgo.Button{Label: "Close", Style: discordgo.DangerButton, CustomID: actionClose},
		}},
	}
}

func showMoreRows(kind, cursorID string) []discordgo.MessageComponent {
	if cursorID == "" {
		return nil
	}
	prefix := showMoreResultsPrefix
	if kind == kindExport {
		prefix = showMoreExportPrefix
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Show more", Style: discordgo.SecondaryButton, CustomID: prefix + cursorID},
		}},
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("bot: respond: %v", err)
	}
}

func deferEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate) error {
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string, components []discordgo.MessageComponent) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if components != nil {
		edit.Components = &components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		log.Printf("bot: edit response: %v", err)
	}
}
