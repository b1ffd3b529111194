package models

import "github.com/google/uuid"

// Announcement is a single birthday message waiting to be delivered.
type Announcement struct {
	ID          uuid.UUID
	CommunityID string
	ChannelID   string
	MemberID    string
	Text        string
	// Manual is set when an admin forced the announcement.
	Manual bool
}
