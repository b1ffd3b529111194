package discordutils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

// MessageLimit is the longest message content Discord accepts.
const MessageLimit = 2000

var mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)

// MemberHasAdminPermissions returns true if the given member owns the guild or
// holds a role with admin permissions.
func MemberHasAdminPermissions(guild *discordgo.Guild, member *discordgo.Member) bool {
	if member == nil || guild == nil {
		return false
	}
	if member.User != nil && guild.OwnerID == member.User.ID {
		return true
	}

	guildRoles := make(map[string]*discordgo.Role)
	for _, role := range guild.Roles {
		guildRoles[role.ID] = role
	}

	for _, roleID := range member.Roles {
		if role, ok := guildRoles[roleID]; ok {
			if RoleAllowsAdminPermissions(role) {
				return true
			}
		}
	}

	return false
}

// RoleAllowsAdminPermissions returns true if the given role allows admin permissions.
func RoleAllowsAdminPermissions(role *discordgo.Role) bool {
	return role.Permissions&discordgo.PermissionAdministrator > 0
}

// ParseMention extracts the user id from a <@id> or <@!id> token.
func ParseMention(token string) (string, bool) {
	m := mentionPattern.FindStringSubmatch(token)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// LooksLikeMention reports whether the token was meant as a mention, even a
// malformed one.
func LooksLikeMention(token string) bool {
	return strings.HasPrefix(token, "<@")
}

// Mention formats a user id as a mention.
func Mention(userID string) string {
	return "<@" + userID + ">"
}

// SplitMessage breaks text into pieces of at most limit bytes, cutting at line
// breaks. A single line longer than limit is cut at a rune boundary.
func SplitMessage(text string, limit int) []string {
	if limit < utf8.UTFMax {
		limit = MessageLimit
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()

	return chunks
}
