package dal

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"birthdaybot/errs"
	"birthdaybot/models"
)

// Backend persists full snapshots of the store.
type Backend interface {
	Load(ctx context.Context) (map[string]*models.Community, error)
	Save(ctx context.Context, communities map[string]*models.Community) error
}

// WriteObserver is told about every snapshot write.
type WriteObserver interface {
	ObserveStoreWrite(err error)
}

// Store keeps every community in memory behind one lock and writes the full
// snapshot through to its backend on every mutation.
type Store struct {
	mu          sync.RWMutex
	communities map[string]*models.Community
	backend     Backend
	logger      *zap.Logger
	observer    WriteObserver
}

// Option configures a Store.
type Option func(*Store)

// WithObserver reports snapshot writes to o.
func WithObserver(o WriteObserver) Option {
	return func(s *Store) { s.observer = o }
}

// Open loads the backend's snapshot into a new store.
func Open(ctx context.Context, backend Backend, logger *zap.Logger, opts ...Option) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	communities, err := backend.Load(ctx)
	if err != nil {
		return nil, errs.Wrap(err, errs.Persistence, "failed to load birthday data")
	}
	if communities == nil {
		communities = make(map[string]*models.Community)
	}

	s := &Store{communities: communities, backend: backend, logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	s.logger.Info("loaded birthday data", zap.Int("communities", len(communities)))
	for _, c := range communities {
		for memberID, record := range c.Members {
			if !record.Readable() {
				s.logger.Warn("unreadable birthday in stored data",
					zap.String("community_id", c.ID),
					zap.String("member_id", memberID),
					zap.String("raw", record.Raw))
			}
		}
	}

	return s, nil
}

// save writes the current map with next standing in for its community (or
// without the community when next is nil). Callers hold the write lock.
func (s *Store) save(ctx context.Context, id string, next *models.Community) error {
	snapshot := make(map[string]*models.Community, len(s.communities)+1)
	for k, v := range s.communities {
		snapshot[k] = v
	}
	if next == nil {
		delete(snapshot, id)
	} else {
		snapshot[id] = next
	}

	err := s.backend.Save(ctx, snapshot)
	if s.observer != nil {
		s.observer.ObserveStoreWrite(err)
	}
	if err != nil {
		return errs.Wrap(err, errs.Persistence, "failed to save birthday data")
	}
	s.communities = snapshot
	return nil
}

// mutate applies fn to a copy of the community and commits it only once the
// snapshot is saved.
func (s *Store) mutate(ctx context.Context, id string, fn func(c *models.Community)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *models.Community
	if current, ok := s.communities[id]; ok {
		next = current.Clone()
	} else {
		next = models.NewCommunity(id, "")
	}
	fn(next)

	return s.save(ctx, id, next)
}

// Touch makes sure the community exists and records its current name.
func (s *Store) Touch(ctx context.Context, id, name string) error {
	s.mu.RLock()
	current, ok := s.communities[id]
	same := ok && (name == "" || current.Name == name)
	s.mu.RUnlock()
	if same {
		return nil
	}

	if !ok {
		s.logger.Info("creating community data", zap.String("community_id", id), zap.String("name", name))
	}
	return s.mutate(ctx, id, func(c *models.Community) {
		if name != "" {
			c.Name = name
		}
	})
}

// GetConfig returns a copy of the community, creating the default one if
// needed. It never fails: if the creation cannot be saved the default is
// still returned and creation is retried on the next access.
func (s *Store) GetConfig(ctx context.Context, id string) models.Community {
	s.mu.RLock()
	current, ok := s.communities[id]
	if ok {
		c := *current.Clone()
		s.mu.RUnlock()
		return c
	}
	s.mu.RUnlock()

	if err := s.Touch(ctx, id, ""); err != nil {
		s.logger.Warn("failed to persist default community", zap.String("community_id", id), zap.Error(err))
		return *models.NewCommunity(id, "")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if current, ok := s.communities[id]; ok {
		return *current.Clone()
	}
	return *models.NewCommunity(id, "")
}

// SetChannel sets the announce channel. An empty id disables announcements.
func (s *Store) SetChannel(ctx context.Context, id, channelID string) error {
	return s.mutate(ctx, id, func(c *models.Community) { c.ChannelID = channelID })
}

// SetTimezone sets the community's UTC offset in hours.
func (s *Store) SetTimezone(ctx context.Context, id string, offset int) error {
	return s.mutate(ctx, id, func(c *models.Community) { c.UTCOffset = offset })
}

// SetAnnounceHour sets the local hour announcements are made at.
func (s *Store) SetAnnounceHour(ctx context.Context, id string, hour int) error {
	return s.mutate(ctx, id, func(c *models.Community) { c.AnnounceHour = hour })
}

// SetBirthday creates or overwrites a member's birthday.
func (s *Store) SetBirthday(ctx context.Context, id, memberID, name string, date models.Date) error {
	return s.mutate(ctx, id, func(c *models.Community) {
		c.Members[memberID] = models.BirthdayRecord{Name: name, Date: date}
	})
}

// GetBirthday returns a member's birthday or an errs.NotFound error.
func (s *Store) GetBirthday(ctx context.Context, id, memberID string) (models.BirthdayRecord, error) {
	c := s.GetConfig(ctx, id)
	record, ok := c.Members[memberID]
	if !ok {
		return models.BirthdayRecord{}, errs.New(errs.NotFound, fmt.Sprintf("no birthday for %s", memberID))
	}
	return record, nil
}

// DeleteBirthday removes a member's birthday. Deleting a missing birthday is
// not an error.
func (s *Store) DeleteBirthday(ctx context.Context, id, memberID string) error {
	s.mu.RLock()
	c, ok := s.communities[id]
	present := ok && hasMember(c, memberID)
	s.mu.RUnlock()

	if !present {
		s.logger.Debug("no birthday to delete", zap.String("community_id", id), zap.String("member_id", memberID))
		// still creates the community, matching every other access
		if !ok {
			return s.Touch(ctx, id, "")
		}
		return nil
	}

	return s.mutate(ctx, id, func(c *models.Community) { delete(c.Members, memberID) })
}

func hasMember(c *models.Community, memberID string) bool {
	_, ok := c.Members[memberID]
	return ok
}

// WipeCommunity removes the community and all its birthdays.
func (s *Store) WipeCommunity(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.communities[id]; !ok {
		return nil
	}
	return s.save(ctx, id, nil)
}

// AllCommunities returns a consistent copy of every community, sorted by id.
func (s *Store) AllCommunities() []models.Community {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Community, 0, len(s.communities))
	for _, c := range s.communities {
		out = append(out, *c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Import copies the snapshot held by from into to and returns the number of
// communities copied.
func Import(ctx context.Context, from, to Backend) (int, error) {
	communities, err := from.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load source: %w", err)
	}
	if err := to.Save(ctx, communities); err != nil {
		return 0, fmt.Errorf("save destination: %w", err)
	}
	return len(communities), nil
}
