package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"birthdaybot/commands"
	"birthdaybot/discordutils"
)

const intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// MessageHandler answers chat messages.
type MessageHandler interface {
	Handle(ctx context.Context, msg commands.Message) (string, bool)
}

// Bot represents an instance of the birthday discord bot.
type Bot struct {
	session *discordgo.Session
	handler MessageHandler
	logger  *zap.Logger

	ready     atomic.Bool
	readyOnce sync.Once
	onReady   func()
}

// New creates a discord session for token. The session is not connected
// until Open is called.
func New(token string, logger *zap.Logger) (*Bot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = intents

	bot := &Bot{session: session, logger: logger}
	session.AddHandler(bot.onReadyEvent)
	session.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// SetHandler sets the handler for incoming messages.
func (bot *Bot) SetHandler(h MessageHandler) {
	bot.handler = h
}

// OnReady registers fn to run the first time the session becomes ready.
func (bot *Bot) OnReady(fn func()) {
	bot.onReady = fn
}

// Open connects to discord.
func (bot *Bot) Open() error {
	if err := bot.session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	return nil
}

// Close disconnects from discord.
func (bot *Bot) Close() error {
	bot.logger.Info("shutting down discord session")
	bot.ready.Store(false)
	return bot.session.Close()
}

// Ready reports whether the session has received its ready event.
func (bot *Bot) Ready() bool {
	return bot.ready.Load()
}

func (bot *Bot) onReadyEvent(_ *discordgo.Session, r *discordgo.Ready) {
	bot.ready.Store(true)
	bot.logger.Info("bot is up", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))

	// discord sends Ready again after every reconnect
	bot.readyOnce.Do(func() {
		if bot.onReady != nil {
			bot.onReady()
		}
	})
}

// SendMessage posts text to a channel, split across several messages when it
// is longer than Discord allows.
func (bot *Bot) SendMessage(ctx context.Context, channelID, text string) error {
	for _, chunk := range discordutils.SplitMessage(text, discordutils.MessageLimit) {
		if _, err := bot.session.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}

// IsAdministrator reports whether the member owns the guild or holds a role
// with admin permissions.
func (bot *Bot) IsAdministrator(ctx context.Context, guildID, userID string) (bool, error) {
	guild, err := bot.guild(ctx, guildID)
	if err != nil {
		return false, err
	}
	member, err := bot.member(ctx, guildID, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return discordutils.MemberHasAdminPermissions(guild, member), nil
}

// ResolveMember looks a member up in the guild, returning nil if the user is
// not a member.
func (bot *Bot) ResolveMember(ctx context.Context, guildID, userID string) (*commands.Member, error) {
	member, err := bot.member(ctx, guildID, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &commands.Member{ID: userID, Name: displayName(member)}, nil
}

func (bot *Bot) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := bot.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	guild, err := bot.session.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}
	return guild, nil
}

func (bot *Bot) member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := bot.session.State.Member(guildID, userID); err == nil {
		return member, nil
	}
	return bot.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
}

func isNotFound(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) &&
		restErr.Response != nil &&
		restErr.Response.StatusCode == http.StatusNotFound
}

func displayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return member.User.Username
	}
	return ""
}
