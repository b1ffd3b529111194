package dal

import (
	"encoding/json"
	"fmt"
	"strconv"

	"birthdaybot/dates"
	"birthdaybot/models"
)

// unsetChannel marks a community without an announce channel on disk.
const unsetChannel int64 = -1

// guildDocument is one community in the data.json document. Absent
// timezone / announce_hour keys mean the defaults.
type guildDocument struct {
	Name         string                  `json:"name"`
	ChannelID    *int64                  `json:"channel_id,omitempty"`
	Timezone     *int                    `json:"timezone,omitempty"`
	AnnounceHour *int                    `json:"announce_hour,omitempty"`
	Users        map[string]userDocument `json:"users"`
}

type userDocument struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

// parseRecord turns stored date text into a record, keeping text that does
// not parse as Raw.
func parseRecord(name, raw string) models.BirthdayRecord {
	date, ok := dates.Parse(raw)
	if !ok || !date.Valid() {
		return models.BirthdayRecord{Name: name, Raw: raw}
	}
	return models.BirthdayRecord{Name: name, Date: date}
}

func decodeDocument(data []byte) (map[string]*models.Community, error) {
	var doc map[string]guildDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal birthday data: %w", err)
	}

	communities := make(map[string]*models.Community, len(doc))
	for id, g := range doc {
		c := models.NewCommunity(id, g.Name)
		if g.ChannelID != nil && *g.ChannelID != unsetChannel {
			c.ChannelID = strconv.FormatInt(*g.ChannelID, 10)
		}
		if g.Timezone != nil {
			c.UTCOffset = *g.Timezone
		}
		if g.AnnounceHour != nil {
			c.AnnounceHour = *g.AnnounceHour
		}
		for userID, u := range g.Users {
			c.Members[userID] = parseRecord(u.Name, u.Date)
		}
		communities[id] = c
	}
	return communities, nil
}

func encodeDocument(communities map[string]*models.Community) ([]byte, error) {
	doc := make(map[string]guildDocument, len(communities))
	for id, c := range communities {
		channelID := unsetChannel
		if c.ChannelID != "" {
			parsed, err := strconv.ParseInt(c.ChannelID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("channel id %q of community %s is not numeric: %w", c.ChannelID, id, err)
			}
			channelID = parsed
		}
		timezone, hour := c.UTCOffset, c.AnnounceHour

		users := make(map[string]userDocument, len(c.Members))
		for userID, record := range c.Members {
			users[userID] = userDocument{Name: record.Name, Date: record.StoredDate()}
		}

		doc[id] = guildDocument{
			Name:         c.Name,
			ChannelID:    &channelID,
			Timezone:     &timezone,
			AnnounceHour: &hour,
			Users:        users,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal birthday data: %w", err)
	}
	return data, nil
}
