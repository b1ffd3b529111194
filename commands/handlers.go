package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"birthdaybot/dates"
	"birthdaybot/discordutils"
	"birthdaybot/errs"
	"birthdaybot/models"
)

const (
	replyAdminOnly     = "> Sorry, this command is only available for admins!"
	replyServerOnly    = "> Please use this command in a server channel."
	replyInvalidDate   = "> Error: Invalid date format. Use MM-DD, for example `7-4` for July 4th."
	replyInvalidUser   = "> Error: Invalid user mention."
	replyUnknownUser   = "> Error: User does not exist in current server!"
	replyMissingArg    = "> Error: Command expects an argument"
	replyInvalidZone   = "> Error: Invalid timezone. Please specify an UTC offset between UTC-12 and UTC+14. IE `UTC-8`, `utc+10`"
	replyInvalidHour   = "> Error: Invalid hour. Please specify an integer from 1 to 24"
	replyNotSaved      = "> Error: Failed to save birthday data. Please try again later."
	replyInternal      = "> Error: Something went wrong. Please try again later."
	replyNoChannel     = "> No announcement channel is set. Use `!bday channel` in the channel to announce in."
	replyNoneUpcoming  = "> No birthdays in the next 30 days."
	replyNoneToday     = "> No birthdays to announce today."
	replyNoBirthdaysDM = "> You have no birthdays set on any server."
)

const (
	minUTCOffset = -12
	maxUTCOffset = 14
)

var timezonePattern = regexp.MustCompile(`^(?i:utc)([+-]\d{1,2})$`)

func looksLikeMention(token string) bool {
	return discordutils.LooksLikeMention(token)
}

func looksLikeDate(token string) bool {
	return token != "" && unicode.IsDigit(rune(token[0]))
}

// dateToken rejoins a "M D" date that whitespace splitting broke in two.
func dateToken(args []string) string {
	if len(args) > 1 && isDigits(args[0]) && isDigits(args[1]) {
		return args[0] + " " + args[1]
	}
	return args[0]
}

func isDigits(s string) bool {
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return s != ""
}

func parseDate(token string) (models.Date, bool) {
	date, ok := dates.Parse(token)
	if !ok || !date.Valid() {
		return models.Date{}, false
	}
	return date, true
}

// setChannel makes the current channel the announce channel.
func (r *Router) setChannel(ctx context.Context, msg Message, _ []string) (string, string) {
	if msg.Private() {
		return replyServerOnly, OutcomeInvalid
	}
	if reply, outcome, ok := r.requireAdmin(ctx, msg); !ok {
		return reply, outcome
	}

	if err := r.store.SetChannel(ctx, msg.CommunityID, msg.ChannelID); err != nil {
		return r.notSaved(msg, err)
	}
	return "> Set current channel for Birthday announcements!", OutcomeOK
}

func (r *Router) help(_ context.Context, _ Message, args []string) (string, string) {
	if len(args) > 1 && args[1] == "admin" {
		return strings.TrimRight(adminHelpText, "\n"), OutcomeOK
	}
	return strings.TrimRight(helpText, "\n"), OutcomeOK
}

func (r *Router) about(ctx context.Context, msg Message, _ []string) (string, string) {
	reply := strings.TrimRight(aboutText, "\n")
	if msg.Private() {
		return reply, OutcomeOK
	}

	c := r.store.GetConfig(ctx, msg.CommunityID)
	channel := "not set"
	if c.AnnouncementsEnabled() {
		channel = "<#" + c.ChannelID + ">"
	}
	reply += fmt.Sprintf(
		"\n> \n> Server Info:\n"+
			"> Timezone: UTC%+d\n"+
			"> Announce Hour: %d:00\n"+
			"> Announce Channel: %s\n"+
			"> Registered Birthdays: %d",
		c.UTCOffset,
		c.AnnounceHour,
		channel,
		len(c.Members),
	)
	return reply, OutcomeOK
}

// queryOwn shows the author's birthday. In a direct message it lists the
// author's birthday on every server.
func (r *Router) queryOwn(ctx context.Context, msg Message, _ []string) (string, string) {
	if msg.Private() {
		return r.queryEverywhere(msg), OutcomeOK
	}
	return r.showBirthday(ctx, msg.CommunityID, msg.AuthorID, msg.AuthorName)
}

func (r *Router) queryEverywhere(msg Message) string {
	var lines []string
	for _, c := range r.store.AllCommunities() {
		record, ok := c.Members[msg.AuthorID]
		if !ok {
			continue
		}
		name := c.Name
		if name == "" {
			name = c.ID
		}
		if !record.Readable() {
			r.warnUnreadable(c.ID, msg.AuthorID, record)
			continue
		}
		lines = append(lines, fmt.Sprintf("> %s: %s", name, record.Date.Format()))
	}
	if len(lines) == 0 {
		return replyNoBirthdaysDM
	}
	return "> Your birthdays:\n" + strings.Join(lines, "\n")
}

func (r *Router) showBirthday(ctx context.Context, communityID, memberID, name string) (string, string) {
	record, err := r.store.GetBirthday(ctx, communityID, memberID)
	if errors.Is(err, errs.ErrNotFound) {
		return fmt.Sprintf("> %s has no birthday set on this server!", name), OutcomeOK
	}
	if err != nil {
		r.logger.Error("failed to read birthday", zap.String("community_id", communityID), zap.Error(err))
		return replyInternal, OutcomeFailed
	}
	if !record.Readable() {
		r.warnUnreadable(communityID, memberID, record)
		return fmt.Sprintf("> %s's stored birthday could not be read. Please set it again.", name), OutcomeFailed
	}
	return fmt.Sprintf("> %s's birthday is %s!", name, record.Date.Format()), OutcomeOK
}

// member handles `<@user> [DATE]`. Mentioning yourself is the same as
// leaving the mention out.
func (r *Router) member(ctx context.Context, msg Message, args []string) (string, string) {
	memberID, ok := discordutils.ParseMention(args[0])
	if !ok {
		return replyInvalidUser, OutcomeInvalid
	}

	name := msg.AuthorName
	if memberID != msg.AuthorID {
		if reply, outcome, ok := r.requireAdmin(ctx, msg); !ok {
			return reply, outcome
		}

		m, err := r.platform.ResolveMember(ctx, msg.CommunityID, memberID)
		if err != nil {
			r.logger.Error("failed to resolve member",
				zap.String("community_id", msg.CommunityID),
				zap.String("member_id", memberID),
				zap.Error(err))
			return replyInternal, OutcomeFailed
		}
		if m == nil {
			return replyUnknownUser, OutcomeInvalid
		}
		name = m.Name
	}

	if len(args) < 2 {
		return r.showBirthday(ctx, msg.CommunityID, memberID, name)
	}
	return r.setBirthday(ctx, msg, memberID, name, dateToken(args[1:]))
}

func (r *Router) setOwn(ctx context.Context, msg Message, args []string) (string, string) {
	return r.setBirthday(ctx, msg, msg.AuthorID, msg.AuthorName, dateToken(args))
}

func (r *Router) setBirthday(ctx context.Context, msg Message, memberID, name, token string) (string, string) {
	date, ok := parseDate(token)
	if !ok {
		return replyInvalidDate, OutcomeInvalid
	}

	if err := r.store.SetBirthday(ctx, msg.CommunityID, memberID, name, date); err != nil {
		return r.notSaved(msg, err)
	}
	return fmt.Sprintf("> Set %s's birthday to %s!", name, date.Format()), OutcomeOK
}

func (r *Router) delete(ctx context.Context, msg Message, args []string) (string, string) {
	memberID, name := msg.AuthorID, msg.AuthorName

	if len(args) > 1 {
		id, ok := discordutils.ParseMention(args[1])
		if !ok {
			return replyInvalidUser, OutcomeInvalid
		}
		if id != msg.AuthorID {
			if reply, outcome, ok := r.requireAdmin(ctx, msg); !ok {
				return reply, outcome
			}
			memberID, name = id, r.memberName(ctx, msg.CommunityID, id)
		}
	}

	if err := r.store.DeleteBirthday(ctx, msg.CommunityID, memberID); err != nil {
		return r.notSaved(msg, err)
	}
	return fmt.Sprintf("> Deleted %s's birthday!", name), OutcomeOK
}

// memberName returns the member's display name, or the bare id when the
// member cannot be resolved. It never returns a mention so the reply does not
// ping anyone.
func (r *Router) memberName(ctx context.Context, communityID, memberID string) string {
	m, err := r.platform.ResolveMember(ctx, communityID, memberID)
	if err != nil {
		r.logger.Warn("failed to resolve member",
			zap.String("community_id", communityID),
			zap.String("member_id", memberID),
			zap.Error(err))
		return memberID
	}
	if m == nil || m.Name == "" {
		return memberID
	}
	return m.Name
}

func (r *Router) upcoming(ctx context.Context, msg Message, _ []string) (string, string) {
	c := r.store.GetConfig(ctx, msg.CommunityID)
	now := r.clock()

	entries, unreadable := dates.Upcoming(c.Members, now, c.UTCOffset, UpcomingWindow)
	for _, id := range unreadable {
		r.warnUnreadable(c.ID, id, c.Members[id])
	}
	if len(entries) == 0 {
		return replyNoneUpcoming, OutcomeOK
	}

	lines := []string{"> Upcoming birthdays:"}
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("> %s's birthday is %s (%s)",
			e.Record.Name, e.Next.Format(models.DateResponseExample), relativeDays(e)))
	}
	return strings.Join(lines, "\n"), OutcomeOK
}

func (r *Router) setTimezone(ctx context.Context, msg Message, args []string) (string, string) {
	if len(args) < 2 {
		return replyMissingArg, OutcomeInvalid
	}

	m := timezonePattern.FindStringSubmatch(args[1])
	if m == nil {
		return replyInvalidZone, OutcomeInvalid
	}
	offset, err := strconv.Atoi(m[1])
	if err != nil || offset < minUTCOffset || offset > maxUTCOffset {
		return replyInvalidZone, OutcomeInvalid
	}

	if err := r.store.SetTimezone(ctx, msg.CommunityID, offset); err != nil {
		return r.notSaved(msg, err)
	}
	return fmt.Sprintf("> Set server timezone to UTC%+d", offset), OutcomeOK
}

func (r *Router) setHour(ctx context.Context, msg Message, args []string) (string, string) {
	if len(args) < 2 {
		return replyMissingArg, OutcomeInvalid
	}

	hour, err := strconv.Atoi(args[1])
	if err != nil || hour < 1 || hour > 24 {
		return replyInvalidHour, OutcomeInvalid
	}

	if err := r.store.SetAnnounceHour(ctx, msg.CommunityID, hour); err != nil {
		return r.notSaved(msg, err)
	}
	return fmt.Sprintf("> Set birthday announce hour to %d:00", hour), OutcomeOK
}

func (r *Router) wipeAll(ctx context.Context, msg Message, _ []string) (string, string) {
	if err := r.store.WipeCommunity(ctx, msg.CommunityID); err != nil {
		return r.notSaved(msg, err)
	}
	r.logger.Info("wiped community data",
		zap.String("community_id", msg.CommunityID),
		zap.String("author_id", msg.AuthorID))
	return "> Deleted all birthday bot data for current server!", OutcomeOK
}

func (r *Router) announce(ctx context.Context, msg Message, _ []string) (string, string) {
	c := r.store.GetConfig(ctx, msg.CommunityID)
	if !c.AnnouncementsEnabled() {
		return replyNoChannel, OutcomeInvalid
	}

	n, err := r.announcer.AnnounceNow(ctx, msg.CommunityID)
	if err != nil {
		r.logger.Error("manual announce failed", zap.String("community_id", msg.CommunityID), zap.Error(err))
		return replyInternal, OutcomeFailed
	}
	if n == 0 {
		return replyNoneToday, OutcomeOK
	}
	return fmt.Sprintf("> Announcing %s!", pluralBirthdays(n)), OutcomeOK
}

func (r *Router) notSaved(msg Message, err error) (string, string) {
	r.logger.Error("failed to save birthday data",
		zap.String("community_id", msg.CommunityID),
		zap.String("kind", string(errs.KindOf(err))),
		zap.Error(err))
	return replyNotSaved, OutcomeFailed
}

func (r *Router) warnUnreadable(communityID, memberID string, record models.BirthdayRecord) {
	r.logger.Warn("unreadable birthday skipped",
		zap.String("community_id", communityID),
		zap.String("member_id", memberID),
		zap.String("raw", record.Raw))
}

func relativeDays(e dates.Entry) string {
	if e.DaysUntil == 0 {
		return "today"
	}
	today := e.Next.AddDate(0, 0, -e.DaysUntil)
	return humanize.RelTime(e.Next, today, "ago", "from now")
}

func pluralBirthdays(n int) string {
	if n == 1 {
		return "1 birthday"
	}
	return fmt.Sprintf("%d birthdays", n)
}
