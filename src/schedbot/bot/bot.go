package bot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"github.com/scrimtime/schedbot/src/schedbot/components/discord"
	"github.com/scrimtime/schedbot/src/schedbot/components/format"
	"github.com/scrimtime/schedbot/src/schedbot/components/notify"
	"github.com/scrimtime/schedbot/src/schedbot/components/pagination"
	"github.com/scrimtime/schedbot/src/schedbot/components/poll"
	"github.com/scrimtime/schedbot/src/schedbot/components/roles"
	"github.com/scrimtime/schedbot/src/schedbot/components/votesync"
	"github.com/scrimtime/schedbot/src/schedbot/data"
	"gorm.io/gorm"
)

type Config struct {
	Token      string
	GuildID    string
	RoleGroups map[string][]string
	DB         *gorm.DB
	Redis      *redis.Client
}

type Bot struct {
	session    *discordgo.Session
	db         *gorm.DB
	config     Config
	client     *discord.Client
	classifier *roles.Classifier
	store      pagination.Store
	memStore   *pagination.MemoryStore
	paginator  *pagination.Paginator
	registry   *notify.Registry
	poller     *notify.Poller
	syncer     *votesync.Service

	metaMu sync.Mutex
	meta   map[string]pollMeta

	startOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// pollMeta caches question and answer labels from the latest fetch so
// notification formatting does not refetch the message per subscriber.
type pollMeta struct {
	question string
	labels   map[int]string
}

func New(config Config) (*Bot, error) {
	dg, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	bot := &Bot{
		session: dg,
		db:      config.DB,
		config:  config,
		meta:    make(map[string]pollMeta),
		ctx:     ctx,
		cancel:  cancel,
	}

	bot.initializeComponents()
	bot.registerHandlers()

	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildMessagePolls

	return bot, nil
}

func (b *Bot) initializeComponents() {
	b.client = discord.NewClient(b.session)
	b.classifier = roles.NewClassifier(b.config.GuildID, b.client, b.config.RoleGroups)

	if b.config.Redis != nil {
		b.store = pagination.NewRedisStore(b.config.Redis, pagination.CursorTTL)
	} else {
		b.memStore = pagination.NewMemoryStore(pagination.CursorTTL)
		b.store = b.memStore
	}
	b.paginator = pagination.New(b.store)

	b.registry = notify.NewRegistry()
	b.poller = notify.NewPoller(b.registry, b.pollerFetch, b)
	b.syncer = votesync.New(b.db)
}

func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleReady)
	b.session.AddHandler(b.handleInteraction)
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() {
	b.cancel()
	b.wg.Wait()
	b.session.Close()
}

// RegistryStats exposes registry size for the ops endpoint.
func (b *Bot) RegistryStats() notify.Stats {
	return b.registry.Stats()
}

// PollerStats exposes poller counters for the ops endpoint.
func (b *Bot) PollerStats() notify.PollerStats {
	return b.poller.Stats()
}

// CursorCount reports stored continuation cursors, or -1 when the store
// cannot count cheaply (Redis).
func (b *Bot) CursorCount() int {
	if b.memStore != nil {
		return b.memStore.Len()
	}
	return -1
}

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("schedbot logged in as %s", event.User.Username)

	if err := b.registerScheduleCommand(); err != nil {
		log.Printf("bot: register /schedule: %v", err)
	}
	b.restoreRegistry()

	b.startOnce.Do(func() {
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			b.poller.Start(b.ctx)
		}()
		if b.memStore != nil {
			b.memStore.StartCleanup(b.ctx, 10*time.Minute)
		}
	})
}

// restoreRegistry re-registers still-open tracked polls after a restart.
// Subscriptions do not survive the process; users re-toggle.
func (b *Bot) restoreRegistry() {
	var polls []data.ScheduledPoll
	if err := b.db.Where("closes_at > ?", time.Now()).Find(&polls).Error; err != nil {
		log.Printf("bot: restore registry: %v", err)
		return
	}
	for _, p := range polls {
		b.registry.Register(p.MessageID, p.ChannelID, p.GuildID)
	}
	if len(polls) > 0 {
		log.Printf("bot: restored %d open polls", len(polls))
	}
}

// fetchState pulls the poll message fresh and captures a full vote snapshot.
func (b *Bot) fetchState(ctx context.Context, channelID, messageID string) (*discordgo.Message, []poll.Answer, poll.Snapshot, error) {
	msg, answers, err := b.client.FetchPoll(channelID, messageID)
	if err != nil {
		return nil, nil, nil, err
	}
	snap, err := poll.Capture(ctx, b.client.VoterSource(channelID, messageID), answers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("capture snapshot: %w", err)
	}
	b.rememberMeta(messageID, msg, answers)
	return msg, answers, snap, nil
}

func (b *Bot) rememberMeta(messageID string, msg *discordgo.Message, answers []poll.Answer) {
	labels := make(map[int]string, len(answers))
	for _, a := range answers {
		labels[a.ID] = a.Label
	}
	b.metaMu.Lock()
	b.meta[messageID] = pollMeta{question: msg.Poll.Question.Text, labels: labels}
	b.metaMu.Unlock()
}

func (b *Bot) metaFor(messageID string) pollMeta {
	b.metaMu.Lock()
	defer b.metaMu.Unlock()
	return b.meta[messageID]
}

// pollerFetch is the poller's SnapshotFunc.
func (b *Bot) pollerFetch(ctx context.Context, e notify.EntryView) (poll.Snapshot, error) {
	_, _, snap, err := b.fetchState(ctx, e.ChannelID, e.MessageID)
	return snap, err
}

// NotifyVoteChange implements notify.Notifier: one private message per
// subscriber per change cycle.
func (b *Bot) NotifyVoteChange(e notify.EntryView, userID string, changes []poll.Change) error {
	meta := b.metaFor(e.MessageID)
	content := format.Notification(meta.question, meta.labels, changes)
	return b.client.SendDM(userID, pagination.Clamp(content))
}

// syncVotes replicates a snapshot into MySQL, detached from the caller.
func (b *Bot) syncVotes(messageID string, answers []poll.Answer, snap poll.Snapshot, roleCounts map[int]map[string]int) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := b.syncer.Sync(ctx, messageID, answers, snap, roleCounts); err != nil {
			log.Printf("bot: vote sync for %s: %v", messageID, err)
		}
	}()
}
