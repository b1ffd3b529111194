package discordutils

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberHasAdminPermissions(t *testing.T) {
	guild := &discordgo.Guild{
		OwnerID: "1",
		Roles: []*discordgo.Role{
			{ID: "admin", Permissions: discordgo.PermissionAdministrator | discordgo.PermissionSendMessages},
			{ID: "mod", Permissions: discordgo.PermissionManageMessages},
		},
	}

	tests := []struct {
		name   string
		member *discordgo.Member
		want   bool
	}{
		{"owner without roles", &discordgo.Member{User: &discordgo.User{ID: "1"}}, true},
		{"admin role", &discordgo.Member{User: &discordgo.User{ID: "2"}, Roles: []string{"mod", "admin"}}, true},
		{"non admin role", &discordgo.Member{User: &discordgo.User{ID: "3"}, Roles: []string{"mod"}}, false},
		{"unknown role", &discordgo.Member{User: &discordgo.User{ID: "4"}, Roles: []string{"gone"}}, false},
		{"nil member", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MemberHasAdminPermissions(guild, tt.member))
		})
	}
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		token string
		id    string
		ok    bool
	}{
		{"<@123>", "123", true},
		{"<@!456>", "456", true},
		{"<@abc>", "", false},
		{"<@123", "", false},
		{"<@&789>", "", false},
		{"123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			id, ok := ParseMention(tt.token)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestLooksLikeMention(t *testing.T) {
	assert.True(t, LooksLikeMention("<@abc>"))
	assert.True(t, LooksLikeMention("<@!1>"))
	assert.False(t, LooksLikeMention("7-4"))
	assert.False(t, LooksLikeMention("@someone"))
}

func TestMention(t *testing.T) {
	id, ok := ParseMention(Mention("42"))
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
		want  []string
	}{
		{"fits", "hello\nworld", 20, []string{"hello\nworld"}},
		{"packs whole lines", "aaaa\nbbbb\ncccc", 10, []string{"aaaa\nbbbb", "cccc"}},
		{"cuts long line", strings.Repeat("x", 25), 10, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), "xxxxx"}},
		{"long line after short", "ab\n" + strings.Repeat("x", 12), 10, []string{"ab", strings.Repeat("x", 10), "xx"}},
		{"keeps runes whole", "ééééé", 4, []string{"éé", "éé", "é"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitMessage(tt.text, tt.limit))
		})
	}
}

func TestSplitMessage_DiscordLimit(t *testing.T) {
	lines := make([]string, 120)
	for i := range lines {
		lines[i] = "> somebody's birthday is March 15 (5 days from now)"
	}
	text := strings.Join(lines, "\n")
	require.Greater(t, len(text), MessageLimit)

	chunks := SplitMessage(text, MessageLimit)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MessageLimit)
	}
	assert.Equal(t, text, strings.Join(chunks, "\n"))
}
