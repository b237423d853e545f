package bot

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/gameapi"
	"github.com/tbourn/go-quota-bot/internal/services"
)

const rule = "<code>━━━━━━━━━━━━━━━━</code>"

const (
	maintenanceNotice = "<b>🔧 Maintenance Mode Active</b>\nThe bot is currently under maintenance. Please try again later."
	maintenanceDenied = "<b>🚫 Access Denied:</b> Only bot admins can use this command."
	adminOnlyDenied   = "<b>🚫 Only bot admins can use this command.</b>"
	internalErrorText = "<b>⚠️ Something went wrong.</b>\n<i>Please try again later.</i>"
	timeoutText       = "<b>❌ Request Timeout!</b>\nThe server took too long to respond."
	apiErrorText      = "<b>⚠️ API Error!</b>\n<i>The request failed or took too long to respond.</i>"
	playerNotFound    = "<b>❌ Player Not Found</b>\nThe provided UID doesn't exist or couldn't be fetched."
	notFound          = "Not Found"
	resetLayout       = "2006-01-02 15:04"
	dateLayout        = "2006-01-02"
)

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

func esc(s string) string { return html.EscapeString(s) }

// count renders n with thousands separators.
func count[T int | int64](n T) string { return printer.Sprintf("%d", n) }

// num renders a numeric Text with separators and anything else escaped.
func num(t gameapi.Text, def string) string {
	if n, ok := t.Int(); ok {
		return count(n)
	}
	return esc(t.Or(def))
}

// plural is the feature name as used in "You've used all 15 spams today".
func plural(f domain.Feature) string { return string(f) + "s" }

func quotaExceededText(e *services.QuotaExceededError, loc *time.Location) string {
	return fmt.Sprintf("<b>❌ Daily Limit Reached!</b>\n"+
		"You've used all %d %s today.\n"+
		"Resets at: <code>%s</code>\n\n"+
		"Use <code>/remain</code> to check your usage.",
		e.Cap, plural(e.Feature), e.NextReset.In(loc).Format(resetLayout))
}

func usageText(f domain.Feature) string {
	example := map[domain.Feature]string{
		domain.FeatureLike:  "11111111",
		domain.FeatureSpam:  "12345678",
		domain.FeatureVisit: "1441772892",
	}[f]
	return fmt.Sprintf("<b>❌ Incorrect Format!</b>\n\n"+
		"Usage: <code>/%s [REGION] [UID]</code>\n"+
		"<b>Example:</b> <code>/%s ind %s</code>", f, f, example)
}

func invalidRegionText(regions []string, entered string) string {
	return fmt.Sprintf("<b>❌ Invalid Region!</b>\n\n"+
		"🌎 <b>Supported:</b> <code>%s</code>\n"+
		"<b>Entered:</b> <code>%s</code>", esc(strings.Join(regions, ", ")), esc(entered))
}

func notWhitelistedText(groupID, contact string) string {
	return "<b>🔒 Access restricted!</b>\n\n" +
		"This group hasn't been approved to use the bot.\n\n" +
		"<b>📌 To get whitelisted:</b>\n" +
		"1. Contact " + esc(contact) + "\n" +
		"2. Provide your Group ID: <code>" + esc(groupID) + "</code>\n\n" +
		"<i>💡 Premium groups get priority access!</i>"
}

func grantExpiredText(f domain.Feature, contact string) string {
	return fmt.Sprintf("<b>⌛ Group Access Expired!</b>\n"+
		"This group's <code>%s</code> access has lapsed.\n"+
		"Contact %s to renew it.", f, esc(contact))
}

func groupLimitText(f domain.Feature, next time.Time, loc *time.Location) string {
	return fmt.Sprintf("<b>❌ Group Limit Reached!</b>\n"+
		"This group has used all of today's <code>%s</code> requests.\n"+
		"Resets at: <code>%s</code>", f, next.In(loc).Format(resetLayout))
}

func placeholderText(f domain.Feature, uid string) string {
	verb := map[domain.Feature]string{
		domain.FeatureLike:  "Sending like to player",
		domain.FeatureSpam:  "Sending friend request to player",
		domain.FeatureVisit: "Visiting player",
	}[f]
	return fmt.Sprintf("🔍 %s: <code>%s</code>...", verb, esc(uid))
}

func remainingLine(f domain.Feature, left, limit int) string {
	return fmt.Sprintf("📊 <b>Your remaining %s today:</b> <code>%d/%d</code>", plural(f), left, limit)
}

func likeSuccessText(res *gameapi.LikeResult, uid, region string, left, limit int) string {
	return fmt.Sprintf("<b>✅ Like Successful!</b>\n"+
		"👤 Player: <code>%s</code>\n"+
		"🆔 UID: <code>%s</code>\n"+
		"🌎 Region: <code>%s</code>\n"+
		"❤️ Likes Before: <code>%s</code>\n"+
		"👍 Likes Added: <code>%s</code>\n"+
		"❤️ Total Likes Now: <code>%s</code>\n\n%s",
		esc(orNA(res.PlayerNickname)), esc(res.UID.Or(uid)), esc(region),
		num(res.LikesBefore, "N/A"), count(res.LikesGiven), num(res.LikesAfter, "N/A"),
		remainingLine(domain.FeatureLike, left, limit))
}

func likeCappedText(res *gameapi.LikeResult, uid string) string {
	return fmt.Sprintf("❤️ <b>Daily Limit Reached!</b>\n\n"+
		"👤 Player: <code>%s</code>\n"+
		"🆔 UID: <code>%s</code>\n\n"+
		"This Free Fire ID has received all available likes for today.\n\n"+
		"✨ <b>What To Do Now?</b>\n"+
		"- Try again later today\n"+
		"- Use a different Free Fire ID\n\n"+
		"<i>Note: Each ID can get maximum 100 likes per day</i>",
		esc(orNA(res.PlayerNickname)), esc(res.UID.Or(uid)))
}

func likeFailedText(res *gameapi.LikeResult, threshold int) string {
	if res.Status == 1 {
		return fmt.Sprintf("<b>⚠️ Too Few Likes Delivered</b>\n"+
			"Only <code>%d</code> likes were added, fewer than %d.\n"+
			"<i>This attempt was not counted against your daily limit.</i>",
			res.LikesGiven, threshold)
	}
	msg := res.Message
	if msg == "" {
		msg = "Unknown error"
	}
	return "<b>❌ Like Failed!</b>\nError: <code>" + esc(msg) + "</code>"
}

func spamText(res *gameapi.SpamResult, uid, region string, counted bool, left, limit int) string {
	head := "<b>📨 Spam Sent Successfully!</b>"
	tail := remainingLine(domain.FeatureSpam, left, limit)
	if !counted {
		head = "<b>⛔ Friend List Full!</b>"
		tail = "<i>Player's friend list may be full. Try another UID.</i>"
	}
	return fmt.Sprintf("%s\n\n"+
		"🆔 UID: <code>%s</code>\n"+
		"🌍 Region: <code>%s</code>\n"+
		"✅ Successful: <code>%d</code>\n"+
		"❌ Failed: <code>%d</code>\n\n%s",
		head, esc(uid), esc(region), res.FriendRequests.Successful, res.FriendRequests.Failed, tail)
}

func visitSuccessText(res *gameapi.VisitResult, uid, region string, left, limit int) string {
	return fmt.Sprintf("<b>✅ Visit Successful!</b>\n"+
		"👤 Player: <code>%s</code>\n"+
		"🆔 UID: <code>%s</code>\n"+
		"🌎 Region: <code>%s</code>\n"+
		"✅ Successful Visits: <code>%d</code>\n"+
		"❌ Failed Visits: <code>%d</code>\n\n%s\n\n"+
		"<b>Note:</b> Restart the game to see the updated visitors.",
		esc(orNA(res.PlayerNickname)), esc(res.UID.Or(uid)), esc(region),
		res.SuccessVisits, res.FailureVisits, remainingLine(domain.FeatureVisit, left, limit))
}

const visitFailedText = "<b>❌ Visit Failed!</b>\n" +
	"Something went wrong while processing your request.\n" +
	"<i>Please try again after a while.</i>"

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("<b>🎮 Free Fire Bot</b>\n" + rule + "\n" +
		"<b>User Commands:</b>\n" +
		"/like <i>region uid</i> – Send likes\n" +
		"/spam <i>region uid</i> – Send friend requests\n" +
		"/visit <i>region uid</i> – Send visitors\n" +
		"/remain – Check your remaining usage\n" +
		"/id – Get group ID\n" +
		"/info – Group access and usage\n" +
		"<code>get &lt;uid&gt;</code> – View player profile with stats, banner &amp; outfit\n" +
		"<code>isbanned &lt;uid&gt;</code> – Check if a player is banned\n" +
		"<code>search &lt;nickname&gt;</code> – Search players by nickname\n" +
		"<code>region &lt;uid&gt;</code> – Find a player's region")
	if admin {
		b.WriteString("\n" + rule + "\n" +
			"<b>🔐 Admin Commands:</b>\n" +
			"/addgroup <i>id requests days like|spam|visit</i> – Allow group access\n" +
			"/removegroup <i>id [like|spam|visit]</i> – Remove group access\n" +
			"/listgroups – Show allowed groups\n" +
			"/stats – Bot analytics\n" +
			"/maintenance <i>on|off</i> – Enable/disable maintenance\n" +
			"/backup – Create database backup\n" +
			"/resetcooldown <i>[user_id] like|spam|visit</i> – Refill a user at the limit\n" +
			"/reset <i>[all|user_id] [like|spam|visit]</i> – Reset command limits\n" +
			"/setfooter &lt;text&gt; – Change the profile footer")
	}
	return b.String()
}

func remainText(usage []services.FeatureUsage, resetHour int, loc *time.Location) string {
	lines := []string{"<b>📊 Your Daily Usage</b>", rule}
	for _, u := range usage {
		lines = append(lines, fmt.Sprintf("🔹 /%s: <code>%d/%d</code> remaining", u.Feature, u.Remaining, u.Cap))
	}
	zone := time.Date(2000, 1, 1, resetHour, 0, 0, 0, loc).Format("MST")
	lines = append(lines, rule, fmt.Sprintf("⏳ <i>Resets daily at %s %s</i>", hourText(resetHour), zone))
	return strings.Join(lines, "\n")
}

// hourText renders a reset hour the way people say it: 4:00 AM, 12:00 PM.
func hourText(h int) string {
	return time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("3:04 PM")
}

func groupIDText(chatID int64) string {
	return "<b>🆔 Group ID:</b> <code>" + strconv.FormatInt(chatID, 10) + "</code>"
}

func groupInfoText(m Message, statuses []services.GrantStatus, loc *time.Location) string {
	title := m.ChatTitle
	if title == "" {
		title = "Unnamed Group"
	}
	display := "<code>" + esc(title) + "</code>"
	if m.ChatUsername != "" {
		display = fmt.Sprintf(`<a href="https://t.me/%s">%s</a>`, esc(m.ChatUsername), esc(title))
	}
	parts := []string{fmt.Sprintf("<b>📋 Group Info</b>\n%s\n🏷️ <b>Title:</b> %s\n🆔 <b>ID:</b> <code>%d</code>",
		rule, display, m.ChatID)}
	for _, s := range statuses {
		g := s.Grant
		parts = append(parts, fmt.Sprintf("%s\n"+
			"⚙️ <b>Feature:</b> <code>%s</code>\n"+
			"📅 <b>Added On:</b> <code>%s</code>\n"+
			"⏳ <b>Expires In:</b> <code>%d days</code>\n"+
			"📊 <b>Daily Limit:</b> <code>%s</code>\n"+
			"❤️ <b>Used Today:</b> <code>%d/%d</code> (%.1f%%)",
			rule, g.FeatureType, g.AddedAt.In(loc).Format(dateLayout), s.DaysLeft,
			count(g.Requests), s.UsedToday, g.Requests, s.UsagePercent))
	}
	return strings.Join(parts, "\n")
}

func grantAddedText(g *domain.GroupEntitlement, loc *time.Location) string {
	return fmt.Sprintf("<b>✅ Group Whitelisted for %s</b>\n%s\n"+
		"🆔 <b>Group ID:</b> <code>%s</code>\n"+
		"📊 <b>Daily Limit:</b> <code>%d</code>\n"+
		"⏳ <b>Duration:</b> <code>%d days</code>\n"+
		"📅 <b>Expires:</b> <code>%s</code>",
		strings.ToUpper(string(g.FeatureType)), rule, esc(g.GroupID), g.Requests, g.Days,
		g.ExpiresAt.In(loc).Format(dateLayout))
}

func errorUsageText(err string, usage ...string) string {
	return "<b>❌ Error:</b> <code>" + esc(err) + "</code>\n\n<b>Usage:</b>\n" + strings.Join(usage, "\n")
}

func listGroupsText(grants []domain.GroupEntitlement, loc *time.Location) string {
	if len(grants) == 0 {
		return "<b>ℹ️ No whitelisted groups</b>"
	}
	lines := []string{"<b>📋 Whitelisted Groups</b>"}
	for _, g := range grants {
		lines = append(lines, fmt.Sprintf("%s\n"+
			"🆔 <b>ID:</b> <code>%s</code>\n"+
			"⚙️ <b>Feature:</b> <code>%s</code>\n"+
			"📊 <b>Requests/Day:</b> <code>%d</code>\n"+
			"⏳ <b>Expires:</b> <code>%s</code>",
			rule, esc(g.GroupID), g.FeatureType, g.Requests, g.ExpiresAt.In(loc).Format(dateLayout)))
	}
	return strings.Join(lines, "\n")
}

func statsText(st *services.Stats, loc *time.Location) string {
	if st.TotalGrants == 0 {
		return "<b>ℹ️ No whitelisted groups</b>"
	}
	lines := []string{"<b>📈 Detailed Bot Statistics</b>"}
	for _, s := range st.Grants {
		g := s.Grant
		lines = append(lines, fmt.Sprintf("\n%s\n"+
			"🆔 <b>Group ID:</b> <code>%s</code>\n"+
			"⚙️ <b>Feature:</b> <code>%s</code>\n"+
			"📅 <b>Added:</b> <code>%s</code>\n"+
			"⏳ <b>Expires:</b> <code>%s</code>\n"+
			"❤️ <b>Used:</b> <code>%d/%d</code>\n"+
			"📊 <b>Usage:</b> <code>%.1f%%</code>",
			rule, esc(g.GroupID), g.FeatureType,
			g.AddedAt.In(loc).Format(dateLayout), g.ExpiresAt.In(loc).Format(dateLayout),
			s.UsedToday, g.Requests, s.UsagePercent))
	}
	mode := "🟢 OFF"
	if st.Maintenance {
		mode = "🔴 ON"
	}
	lines = append(lines, fmt.Sprintf("\n\n<b>📊 TOTAL ACROSS ALL GROUPS</b>\n%s\n"+
		"👥 <b>Whitelisted Groups:</b> <code>%s</code> (%s active)\n"+
		"👤 <b>Users Seen:</b> <code>%s</code>\n"+
		"❤️ <b>Total Used Today:</b> <code>%s/%s</code>\n"+
		"🛠️ <b>Maintenance Mode:</b> <code>%s</code>",
		rule, count(st.TotalGrants), count(st.ActiveGrants), count(st.DistinctUsers),
		count(st.TotalUsed), count(st.TotalCap), mode))
	return strings.Join(lines, "\n")
}

func maintenanceText(on bool, at time.Time) string {
	status, state, notice := "🟢 DEACTIVATED", "OFF", ""
	if on {
		status, state = "🔴 ACTIVATED", "ON"
		notice = "\n\n⚠️ <b>Notice:</b> All user commands will be blocked until maintenance is complete."
	}
	return fmt.Sprintf("<b>✅ Maintenance Mode %s</b>\n%s\n"+
		"🛠️ <b>Status:</b> <code>%s</code>\n"+
		"⏱️ <b>Changed at:</b> <code>%s</code>%s",
		status, rule, state, at.Format("2006-01-02 15:04:05"), notice)
}

func notFullyUsedText(f domain.Feature, used, limit int) string {
	return fmt.Sprintf("<b>ℹ️ %s not fully used:</b>\n"+
		"Currently used: <code>%d</code> / <code>%d</code>\n"+
		"Reset allowed only if usage is <code>%d</code>.",
		titler.String(string(f)), used, limit, limit)
}

func backupText(path string, size int64, sum string, took time.Duration) string {
	return fmt.Sprintf("<b>✅ Backup Created</b>\n%s\n"+
		"📁 <b>File:</b> <code>%s</code>\n"+
		"💾 <b>Size:</b> <code>%s</code>\n"+
		"🔐 <b>SHA-256:</b> <code>%s</code>\n"+
		"⏱️ <b>Took:</b> <code>%s</code>",
		rule, esc(path), humanize.Bytes(uint64(size)), sum, took.Round(time.Millisecond))
}
