// Package announce wakes a few minutes past every hour and announces the
// birthdays of communities whose local announce hour has come.
package announce

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"birthdaybot/dates"
	"birthdaybot/discordutils"
	"birthdaybot/errs"
	"birthdaybot/models"
)

// DefaultWakeOffset is how far past the top of the hour the scheduler wakes.
const DefaultWakeOffset = 5 * time.Minute

const localDateLayout = "2006-01-02"

// Emitter hands an announcement over for delivery.
type Emitter interface {
	Emit(ctx context.Context, a models.Announcement) error
}

// Source is the record store as seen by the scheduler.
type Source interface {
	AllCommunities() []models.Community
	GetConfig(ctx context.Context, id string) models.Community
}

// Scheduler announces birthdays once per community per local day.
type Scheduler struct {
	store      Source
	emitter    Emitter
	clock      func() time.Time
	wakeOffset time.Duration
	logger     *zap.Logger

	mu sync.Mutex
	// lastFired maps community id to the local date it was last announced.
	lastFired map[string]string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) { s.clock = clock }
}

// WithWakeOffset sets how far past the hour the scheduler wakes.
func WithWakeOffset(d time.Duration) Option {
	return func(s *Scheduler) { s.wakeOffset = d }
}

// New returns a scheduler reading from store and emitting to emitter.
func New(store Source, emitter Emitter, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		store:      store,
		emitter:    emitter,
		clock:      time.Now,
		wakeOffset: DefaultWakeOffset,
		logger:     logger,
		lastFired:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ticks a little after every hour until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("announce scheduler started", zap.Duration("wake_offset", s.wakeOffset))

	for {
		delay := dates.WakeDelay(s.clock(), s.wakeOffset)
		s.logger.Debug("waiting for next announce check", zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("stopped announce scheduler")
			return
		case <-timer.C:
			n := s.Tick(ctx, s.clock())
			s.logger.Info("announcements for this hour finished", zap.Int("announced", n))
		}
	}
}

// Tick announces for every community whose local hour matches its announce
// hour and which has not been announced yet on its current local date.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) int {
	total := 0
	for _, c := range s.store.AllCommunities() {
		if !c.AnnouncementsEnabled() {
			continue
		}

		local := dates.LocalNow(now, c.UTCOffset)
		if local.Hour() != dates.LocalHour(c.AnnounceHour) {
			continue
		}
		if !s.markFired(c.ID, local.Format(localDateLayout)) {
			s.logger.Debug("already announced today", zap.String("community_id", c.ID))
			continue
		}

		total += s.announce(ctx, c, local, false)
	}
	return total
}

// AnnounceNow announces today's birthdays for one community right away,
// ignoring the announce hour. It returns how many were queued.
func (s *Scheduler) AnnounceNow(ctx context.Context, communityID string) (int, error) {
	c := s.store.GetConfig(ctx, communityID)
	if !c.AnnouncementsEnabled() {
		return 0, errs.New(errs.Validation, "no announce channel set")
	}
	local := dates.LocalNow(s.clock(), c.UTCOffset)
	return s.announce(ctx, c, local, true), nil
}

func (s *Scheduler) markFired(communityID, localDate string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFired[communityID] == localDate {
		return false
	}
	s.lastFired[communityID] = localDate
	return true
}

func (s *Scheduler) announce(ctx context.Context, c models.Community, local time.Time, manual bool) int {
	celebrants := Celebrants(c, local, s.logger)
	s.logger.Info("computed announcements",
		zap.String("community_id", c.ID),
		zap.String("local_date", local.Format(localDateLayout)),
		zap.Int("celebrants", len(celebrants)),
		zap.Bool("manual", manual))

	n := 0
	for _, memberID := range celebrants {
		a := models.Announcement{
			ID:          uuid.New(),
			CommunityID: c.ID,
			ChannelID:   c.ChannelID,
			MemberID:    memberID,
			Text:        Message(memberID),
			Manual:      manual,
		}
		if err := s.emitter.Emit(ctx, a); err != nil {
			s.logger.Error("failed to queue announcement",
				zap.String("announcement_id", a.ID.String()),
				zap.String("community_id", c.ID),
				zap.String("member_id", memberID),
				zap.Error(err))
			continue
		}
		n++
	}
	return n
}

// Celebrants returns the ids of members whose birthday falls on local's
// date, sorted. Unreadable records are logged and skipped.
func Celebrants(c models.Community, local time.Time, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}

	var ids []string
	for id, record := range c.Members {
		if !record.Readable() {
			err := errs.New(errs.DataIntegrity, "stored birthday is not a valid date")
			logger.Warn("unreadable birthday skipped",
				zap.String("community_id", c.ID),
				zap.String("member_id", id),
				zap.String("raw", record.Raw),
				zap.Error(err))
			continue
		}
		if dates.OccursOn(record.Date, local) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Message is the announcement text for a member.
func Message(memberID string) string {
	return fmt.Sprintf("Happy birthday to %s!", discordutils.Mention(memberID))
}
