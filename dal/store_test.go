package dal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"birthdaybot/errs"
	"birthdaybot/models"
)

type memBackend struct {
	mu      sync.Mutex
	initial map[string]*models.Community
	saved   map[string]*models.Community
	saves   int
	saveErr error
	loadErr error
}

func (b *memBackend) Load(ctx context.Context) (map[string]*models.Community, error) {
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	return b.initial, nil
}

func (b *memBackend) Save(ctx context.Context, communities map[string]*models.Community) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	b.saved = communities
	return nil
}

func (b *memBackend) failSaves(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.saveErr = err
}

func newTestStore(t *testing.T) (*Store, *memBackend) {
	t.Helper()
	backend := &memBackend{}
	store, err := Open(context.Background(), backend, nil)
	require.NoError(t, err)
	return store, backend
}

func TestStore_SetThenGetEveryDate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for month := time.January; month <= time.December; month++ {
		for day := 1; day <= 31; day++ {
			date := models.Date{Month: month, Day: day}
			if !date.Valid() {
				continue
			}
			name := fmt.Sprintf("member %s", date)
			require.NoError(t, store.SetBirthday(ctx, "g1", "u1", name, date))

			got, err := store.GetBirthday(ctx, "g1", "u1")
			require.NoError(t, err)
			assert.Equal(t, date, got.Date)
			assert.Equal(t, name, got.Name)
		}
	}
}

func TestStore_SetBirthdayOverwrites(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "annie", models.Date{Month: time.July, Day: 5}))

	c := store.GetConfig(ctx, "g1")
	assert.Len(t, c.Members, 1)
	assert.Equal(t, "annie", c.Members["u1"].Name)
	assert.Equal(t, 2, backend.saves)
	assert.Equal(t, "7-5", backend.saved["g1"].Members["u1"].StoredDate())
}

func TestStore_GetBirthdayNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetBirthday(context.Background(), "g1", "nobody")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestStore_DeleteBirthday(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DeleteBirthday(ctx, "g1", "never-set"))
	assert.Equal(t, 1, backend.saves, "deleting in an unknown community creates it")

	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.DeleteBirthday(ctx, "g1", "u1"))
	require.NoError(t, store.DeleteBirthday(ctx, "g1", "u1"))

	_, err := store.GetBirthday(ctx, "g1", "u1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.Equal(t, 3, backend.saves)
}

func TestStore_GetConfigCreatesDefaults(t *testing.T) {
	store, backend := newTestStore(t)

	c := store.GetConfig(context.Background(), "g1")
	assert.Equal(t, "g1", c.ID)
	assert.Equal(t, models.DefaultUTCOffset, c.UTCOffset)
	assert.Equal(t, models.DefaultAnnounceHour, c.AnnounceHour)
	assert.Empty(t, c.ChannelID)
	assert.Equal(t, 1, backend.saves)
	assert.Contains(t, backend.saved, "g1")

	store.GetConfig(context.Background(), "g1")
	assert.Equal(t, 1, backend.saves)
}

func TestStore_GetConfigNeverFails(t *testing.T) {
	store, backend := newTestStore(t)
	backend.failSaves(errors.New("disk full"))

	c := store.GetConfig(context.Background(), "g1")
	assert.Equal(t, models.DefaultAnnounceHour, c.AnnounceHour)
	assert.Empty(t, store.AllCommunities())
}

func TestStore_FailedSaveKeepsPriorState(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetTimezone(ctx, "g1", 3))
	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	backend.failSaves(errors.New("disk full"))

	err := store.SetTimezone(ctx, "g1", -5)
	require.Error(t, err)
	assert.Equal(t, errs.Persistence, errs.KindOf(err))

	require.Error(t, store.SetBirthday(ctx, "g1", "u2", "bob", models.Date{Month: time.May, Day: 1}))
	require.Error(t, store.DeleteBirthday(ctx, "g1", "u1"))
	require.Error(t, store.WipeCommunity(ctx, "g1"))

	c := store.GetConfig(ctx, "g1")
	assert.Equal(t, 3, c.UTCOffset)
	assert.Len(t, c.Members, 1)
	assert.Contains(t, c.Members, "u1")
}

func TestStore_Settings(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Touch(ctx, "g1", "The Guild"))
	require.NoError(t, store.SetChannel(ctx, "g1", "42"))
	require.NoError(t, store.SetTimezone(ctx, "g1", 9))
	require.NoError(t, store.SetAnnounceHour(ctx, "g1", 24))

	c := store.GetConfig(ctx, "g1")
	assert.Equal(t, "The Guild", c.Name)
	assert.Equal(t, "42", c.ChannelID)
	assert.Equal(t, 9, c.UTCOffset)
	assert.Equal(t, 24, c.AnnounceHour)
	assert.Equal(t, 4, backend.saves)

	require.NoError(t, store.Touch(ctx, "g1", "The Guild"))
	assert.Equal(t, 4, backend.saves, "touching with the same name does not write")
}

func TestStore_WipeCommunity(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.SetBirthday(ctx, "g2", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.WipeCommunity(ctx, "g1"))

	assert.NotContains(t, backend.saved, "g1")
	assert.Contains(t, backend.saved, "g2")

	c := store.GetConfig(ctx, "g1")
	assert.Empty(t, c.Members)
	assert.Equal(t, models.DefaultUTCOffset, c.UTCOffset)

	require.NoError(t, store.WipeCommunity(ctx, "unknown"))
}

func TestStore_AllCommunitiesIsACopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBirthday(ctx, "g2", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "bob", models.Date{Month: time.May, Day: 1}))

	all := store.AllCommunities()
	require.Len(t, all, 2)
	assert.Equal(t, "g1", all[0].ID)
	assert.Equal(t, "g2", all[1].ID)

	delete(all[0].Members, "u1")
	all[0].AnnounceHour = 3

	c := store.GetConfig(ctx, "g1")
	assert.Contains(t, c.Members, "u1")
	assert.Equal(t, models.DefaultAnnounceHour, c.AnnounceHour)
}

func TestStore_MembersScopedPerCommunity(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBirthday(ctx, "g1", "u1", "ann", models.Date{Month: time.July, Day: 4}))
	require.NoError(t, store.SetBirthday(ctx, "g2", "u1", "ann", models.Date{Month: time.March, Day: 1}))
	require.NoError(t, store.DeleteBirthday(ctx, "g1", "u1"))

	got, err := store.GetBirthday(ctx, "g2", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.Date{Month: time.March, Day: 1}, got.Date)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				member := fmt.Sprintf("u%d-%d", i, j)
				assert.NoError(t, store.SetBirthday(ctx, "g1", member, member, models.Date{Month: time.June, Day: 1}))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				for _, c := range store.AllCommunities() {
					for _, record := range c.Members {
						assert.True(t, record.Readable())
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Len(t, store.GetConfig(ctx, "g1").Members, 200)
}

func TestOpen_LoadError(t *testing.T) {
	_, err := Open(context.Background(), &memBackend{loadErr: errors.New("corrupt")}, nil)
	require.Error(t, err)
	assert.Equal(t, errs.Persistence, errs.KindOf(err))
}

func TestOpen_WarnsAboutUnreadableRecords(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := models.NewCommunity("g1", "guild")
	c.Members["u1"] = models.BirthdayRecord{Name: "ann", Raw: "abc"}

	_, err := Open(context.Background(), &memBackend{initial: map[string]*models.Community{"g1": c}}, zap.New(core))
	require.NoError(t, err)

	entries := logs.FilterMessage("unreadable birthday in stored data").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "abc", entries[0].ContextMap()["raw"])
}

func TestImport(t *testing.T) {
	c := models.NewCommunity("g1", "guild")
	c.Members["u1"] = models.BirthdayRecord{Name: "ann", Date: models.Date{Month: time.July, Day: 4}}
	from := &memBackend{initial: map[string]*models.Community{"g1": c}}
	to := &memBackend{}

	n, err := Import(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, to.saved, "g1")

	_, err = Import(context.Background(), &memBackend{loadErr: errors.New("nope")}, to)
	require.Error(t, err)
}
