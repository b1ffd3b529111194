// Package commands turns "!bday" chat messages into store queries and
// mutations. Every error is converted to a reply here; nothing escapes to the
// caller except the reply text.
package commands

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"go.uber.org/zap"

	"birthdaybot/models"
)

var (
	//go:embed text/help.txt
	helpText string
	//go:embed text/help_admin.txt
	adminHelpText string
	//go:embed text/about.txt
	aboutText string
)

// Prefixes that start a command.
var Prefixes = []string{"!birthday", "!bday"}

// UpcomingWindow is how many days ahead `upcoming` looks.
const UpcomingWindow = 30

// Message is an inbound chat message.
type Message struct {
	AuthorID   string
	AuthorName string
	ChannelID  string
	// CommunityID is empty for direct messages.
	CommunityID   string
	CommunityName string
	Content       string
}

// Private reports whether the message was sent outside a community.
func (m Message) Private() bool {
	return m.CommunityID == ""
}

// Member is a community member resolved through the platform.
type Member struct {
	ID   string
	Name string
}

// Platform answers identity questions about the chat platform.
type Platform interface {
	IsAdministrator(ctx context.Context, communityID, memberID string) (bool, error)
	// ResolveMember returns nil without error when the member is not part of
	// the community.
	ResolveMember(ctx context.Context, communityID, memberID string) (*Member, error)
}

// Announcer runs an announcement pass for one community.
type Announcer interface {
	AnnounceNow(ctx context.Context, communityID string) (int, error)
}

// Store is the record store used by the router.
type Store interface {
	Touch(ctx context.Context, id, name string) error
	GetConfig(ctx context.Context, id string) models.Community
	SetChannel(ctx context.Context, id, channelID string) error
	SetTimezone(ctx context.Context, id string, offset int) error
	SetAnnounceHour(ctx context.Context, id string, hour int) error
	SetBirthday(ctx context.Context, id, memberID, name string, date models.Date) error
	GetBirthday(ctx context.Context, id, memberID string) (models.BirthdayRecord, error)
	DeleteBirthday(ctx context.Context, id, memberID string) error
	WipeCommunity(ctx context.Context, id string) error
	AllCommunities() []models.Community
}

// Observer is told about every handled command.
type Observer interface {
	ObserveCommand(command, outcome string)
}

// Command outcomes reported to the Observer.
const (
	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

// Router handles one message at a time and keeps no state between messages.
type Router struct {
	store     Store
	platform  Platform
	announcer Announcer
	clock     func() time.Time
	logger    *zap.Logger
	observer  Observer
}

// Option configures a Router.
type Option func(*Router)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Router) { r.clock = clock }
}

// WithObserver reports handled commands to o.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// NewRouter returns a router backed by the given collaborators.
func NewRouter(store Store, platform Platform, announcer Announcer, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		store:     store,
		platform:  platform,
		announcer: announcer,
		clock:     time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type handler func(ctx context.Context, msg Message, args []string) (string, string)

// Handle interprets msg. It returns false when the message is not a command
// for this bot or must be ignored.
func (r *Router) Handle(ctx context.Context, msg Message) (string, bool) {
	tokens := strings.Fields(msg.Content)
	if len(tokens) == 0 || !isPrefix(tokens[0]) {
		return "", false
	}
	args := tokens[1:]

	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}

	if !msg.Private() {
		if err := r.store.Touch(ctx, msg.CommunityID, msg.CommunityName); err != nil {
			r.logger.Warn("failed to record community",
				zap.String("community_id", msg.CommunityID),
				zap.Error(err))
		}
	}

	// channel is the only command accepted outside the announce channel
	if sub == "channel" {
		return r.run(ctx, "channel", r.setChannel, msg, args)
	}

	if !r.inValidChannel(ctx, msg) {
		return "", false
	}

	name, h := r.lookup(sub)
	if h == nil {
		r.logger.Debug("unrecognized command",
			zap.String("content", msg.Content),
			zap.String("community_id", msg.CommunityID))
		return "", false
	}
	return r.run(ctx, name, h, msg, args)
}

func (r *Router) run(ctx context.Context, name string, h handler, msg Message, args []string) (string, bool) {
	reply, outcome := h(ctx, msg, args)
	if r.observer != nil {
		r.observer.ObserveCommand(name, outcome)
	}
	r.logger.Debug("handled command",
		zap.String("command", name),
		zap.String("outcome", outcome),
		zap.String("community_id", msg.CommunityID),
		zap.String("author_id", msg.AuthorID))
	return reply, reply != ""
}

func (r *Router) lookup(sub string) (string, handler) {
	switch {
	case sub == "":
		return "query", r.queryOwn
	case sub == "help":
		return "help", r.help
	case sub == "about":
		return "about", r.about
	case looksLikeMention(sub):
		return "member", r.serverOnly(r.member)
	case looksLikeDate(sub):
		return "set", r.serverOnly(r.setOwn)
	case sub == "delete":
		return "delete", r.serverOnly(r.delete)
	case sub == "upcoming":
		return "upcoming", r.serverOnly(r.upcoming)
	case sub == "timezone":
		return "timezone", r.serverOnly(r.adminOnly(r.setTimezone))
	case sub == "hour":
		return "hour", r.serverOnly(r.adminOnly(r.setHour))
	case sub == "wipe_all":
		return "wipe_all", r.serverOnly(r.adminOnly(r.wipeAll))
	case sub == "announce":
		return "announce", r.serverOnly(r.adminOnly(r.announce))
	}
	return "", nil
}

func isPrefix(token string) bool {
	for _, p := range Prefixes {
		if token == p {
			return true
		}
	}
	return false
}

// inValidChannel accepts direct messages, communities without an announce
// channel, and messages sent in the announce channel.
func (r *Router) inValidChannel(ctx context.Context, msg Message) bool {
	if msg.Private() {
		return true
	}
	c := r.store.GetConfig(ctx, msg.CommunityID)
	return !c.AnnouncementsEnabled() || c.ChannelID == msg.ChannelID
}

func (r *Router) serverOnly(h handler) handler {
	return func(ctx context.Context, msg Message, args []string) (string, string) {
		if msg.Private() {
			return replyServerOnly, OutcomeInvalid
		}
		return h(ctx, msg, args)
	}
}

func (r *Router) adminOnly(h handler) handler {
	return func(ctx context.Context, msg Message, args []string) (string, string) {
		if reply, outcome, ok := r.requireAdmin(ctx, msg); !ok {
			return reply, outcome
		}
		return h(ctx, msg, args)
	}
}

func (r *Router) requireAdmin(ctx context.Context, msg Message) (string, string, bool) {
	admin, err := r.platform.IsAdministrator(ctx, msg.CommunityID, msg.AuthorID)
	if err != nil {
		r.logger.Error("failed to check admin permissions",
			zap.String("community_id", msg.CommunityID),
			zap.String("author_id", msg.AuthorID),
			zap.Error(err))
		return replyInternal, OutcomeFailed, false
	}
	if !admin {
		return replyAdminOnly, OutcomeDenied, false
	}
	return "", "", true
}
