package models

import "gorm.io/gorm"

const (
	// DefaultUTCOffset is used when a community never configured a timezone.
	DefaultUTCOffset = -7
	// DefaultAnnounceHour is used when a community never configured an hour.
	DefaultAnnounceHour = 12
)

// Community holds one guild's configuration and birthday records.
type Community struct {
	ID   string
	Name string
	// ChannelID is the announce channel. Empty means announcements are disabled.
	ChannelID    string
	UTCOffset    int
	AnnounceHour int
	Members      map[string]BirthdayRecord
}

// NewCommunity returns a community with default settings.
func NewCommunity(id, name string) *Community {
	return &Community{
		ID:           id,
		Name:         name,
		UTCOffset:    DefaultUTCOffset,
		AnnounceHour: DefaultAnnounceHour,
		Members:      make(map[string]BirthdayRecord),
	}
}

// Clone returns a deep copy.
func (c *Community) Clone() *Community {
	clone := *c
	clone.Members = make(map[string]BirthdayRecord, len(c.Members))
	for id, record := range c.Members {
		clone.Members[id] = record
	}
	return &clone
}

// AnnouncementsEnabled reports whether an announce channel is configured.
func (c *Community) AnnouncementsEnabled() bool {
	return c.ChannelID != ""
}

// Guild is the sqlite row for a community's settings.
type Guild struct {
	gorm.Model
	GuildID      string `gorm:"uniqueIndex"`
	Name         string
	ChannelID    string
	UTCOffset    int
	AnnounceHour int
}
