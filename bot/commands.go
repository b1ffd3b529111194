package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"birthdaybot/commands"
)

const handlerTimeout = 30 * time.Second

func (bot *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if bot.handler == nil {
		return
	}

	guildName := ""
	if m.GuildID != "" {
		if guild, err := s.State.Guild(m.GuildID); err == nil {
			guildName = guild.Name
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	reply, ok := bot.handler.Handle(ctx, toMessage(m, guildName))
	if !ok {
		return
	}

	if err := bot.SendMessage(ctx, m.ChannelID, reply); err != nil {
		bot.logger.Error("failed to send reply",
			zap.String("channel_id", m.ChannelID),
			zap.String("guild_id", m.GuildID),
			zap.Error(err))
	}
}

func toMessage(m *discordgo.MessageCreate, guildName string) commands.Message {
	authorName := m.Author.Username
	if m.Member != nil && m.Member.Nick != "" {
		authorName = m.Member.Nick
	}

	return commands.Message{
		AuthorID:      m.Author.ID,
		AuthorName:    authorName,
		ChannelID:     m.ChannelID,
		CommunityID:   m.GuildID,
		CommunityName: guildName,
		Content:       m.Content,
	}
}
