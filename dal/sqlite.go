package dal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"birthdaybot/models"
)

// SQLiteBackend stores the snapshot in guilds and birthdays tables.
type SQLiteBackend struct {
	db *gorm.DB
}

// InitDB opens the sqlite database at dbPath and migrates its tables.
func InitDB(dbPath string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(
		sqlite.Open(dbPath),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	log.Info("connected to database", zap.String("path", dbPath))

	if err := db.AutoMigrate(&models.Guild{}, &models.Birthday{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("migrated database")

	return db, nil
}

// NewSQLiteBackend returns a backend using db.
func NewSQLiteBackend(db *gorm.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

// Load reads every guild and birthday row.
func (b *SQLiteBackend) Load(ctx context.Context) (map[string]*models.Community, error) {
	var guilds []models.Guild
	if err := b.db.WithContext(ctx).Find(&guilds).Error; err != nil {
		return nil, fmt.Errorf("failed to load guilds: %w", err)
	}

	var birthdays []models.Birthday
	if err := b.db.WithContext(ctx).Find(&birthdays).Error; err != nil {
		return nil, fmt.Errorf("failed to load birthdays: %w", err)
	}

	communities := make(map[string]*models.Community, len(guilds))
	for _, g := range guilds {
		c := models.NewCommunity(g.GuildID, g.Name)
		c.ChannelID = g.ChannelID
		c.UTCOffset = g.UTCOffset
		c.AnnounceHour = g.AnnounceHour
		communities[g.GuildID] = c
	}

	for _, row := range birthdays {
		c, ok := communities[row.GuildID]
		if !ok {
			c = models.NewCommunity(row.GuildID, "")
			communities[row.GuildID] = c
		}
		c.Members[row.UserID] = parseRecord(row.Name, row.Date)
	}

	return communities, nil
}

// Save replaces every row in a single transaction.
func (b *SQLiteBackend) Save(ctx context.Context, communities map[string]*models.Community) error {
	var guilds []models.Guild
	var birthdays []models.Birthday
	for id, c := range communities {
		guilds = append(guilds, models.Guild{
			GuildID:      id,
			Name:         c.Name,
			ChannelID:    c.ChannelID,
			UTCOffset:    c.UTCOffset,
			AnnounceHour: c.AnnounceHour,
		})
		for userID, record := range c.Members {
			birthdays = append(birthdays, models.Birthday{
				GuildID: id,
				UserID:  userID,
				Name:    record.Name,
				Date:    record.StoredDate(),
			})
		}
	}

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.Birthday{}).Error; err != nil {
			return fmt.Errorf("failed to clear birthdays: %w", err)
		}
		if err := tx.Unscoped().Where("1 = 1").Delete(&models.Guild{}).Error; err != nil {
			return fmt.Errorf("failed to clear guilds: %w", err)
		}
		if len(guilds) > 0 {
			if err := tx.CreateInBatches(guilds, 100).Error; err != nil {
				return fmt.Errorf("failed to write guilds: %w", err)
			}
		}
		if len(birthdays) > 0 {
			if err := tx.CreateInBatches(birthdays, 100).Error; err != nil {
				return fmt.Errorf("failed to write birthdays: %w", err)
			}
		}
		return nil
	})
}

// Close closes the underlying connection.
func (b *SQLiteBackend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
