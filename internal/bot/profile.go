package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/tbourn/go-quota-bot/internal/gameapi"
)

const stampLayout = "02 January 2006 at 15:04:05"

// stamp renders a unix-seconds Text in loc.
func stamp(t gameapi.Text, loc *time.Location) string {
	n, ok := t.Int()
	if !ok || n <= 0 {
		return notFound
	}
	return time.Unix(n, 0).In(loc).Format(stampLayout)
}

func nf(t gameapi.Text) string { return esc(t.Or(notFound)) }

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

func joinTexts(ts []gameapi.Text) string {
	if len(ts) == 0 {
		return notFound
	}
	s := make([]string, len(ts))
	for i, t := range ts {
		s[i] = string(t)
	}
	return esc(strings.Join(s, ", "))
}

// profileText renders a player profile as sectioned trees, followed by
// footer.
func profileText(p *gameapi.Profile, uid, footer string, loc *time.Location) string {
	pi := p.PlayerInfo
	info, leader := pi.Basic, pi.Captain

	var b strings.Builder
	fmt.Fprintf(&b, "\n<b>ACCOUNT INFO:</b>\n┌ 👤 ACCOUNT BASIC INFO\n"+
		"├─ Prime Level: %s\n"+
		"├─ Name: %s\n"+
		"├─ UID: %s\n"+
		"├─ Level: %s (Exp: %s)\n"+
		"├─ Region: %s\n"+
		"├─ Likes: %s\n"+
		"├─ Honor Score: %s\n"+
		"├─ Title: %s\n"+
		"└─ Signature: \"%s\"\n",
		nf(info.PrimeLevel.Level), nf(info.Nickname), esc(uid),
		nf(info.Level), nf(info.Exp), nf(info.Region), num(info.Liked, notFound),
		nf(pi.Credit.Score), nf(info.Title), nf(pi.Social.Signature))

	fmt.Fprintf(&b, "\n<b>ACCOUNT ACTIVITY:</b>\n┌ 🎮 ACCOUNT ACTIVITY\n"+
		"├─ Most Recent OB: %s\n"+
		"├─ Fire Pass: %s\n"+
		"├─ Current BP Badges: %s\n"+
		"├─ BR Rank: %s (%s)\n"+
		"├─ CS Rank: %s (%s)\n"+
		"├─ Created At: %s\n"+
		"└─ Last Login: %s\n",
		esc(strings.TrimPrefix(info.ReleaseVersion.Or(notFound), "VERSION_")),
		yesNo(info.HasElitePass, "Elite", "Basic"), nf(info.BadgeCnt),
		brRank(string(info.RankingPoints)), nf(info.RankingPoints),
		nf(info.CsRank), nf(info.CsRankingPoints),
		stamp(info.CreateAt, loc), stamp(info.LastLoginAt, loc))

	fmt.Fprintf(&b, "\n<b>ACCOUNT OVERVIEW:</b>\n┌ 👕 ACCOUNT OVERVIEW\n"+
		"├─ Avatar ID: %s\n"+
		"├─ Banner ID: %s\n"+
		"├─ Pin ID: %s\n"+
		"├─ Equipped Skills: %s\n"+
		"└─ Outfits: Graphically Presented Below! 😉\n",
		nf(pi.Profile.AvatarID), nf(info.BannerID), nf(info.PinID), joinTexts(pi.Profile.EquipedSkills))

	fmt.Fprintf(&b, "\n<b>PET DETAILS:</b>\n┌ 🐾 PET DETAILS\n"+
		"├─ Equipped?: %s\n"+
		"├─ Pet Name: %s\n"+
		"├─ Pet Type: %s\n"+
		"├─ Pet Exp: %s\n"+
		"└─ Pet Level: %s\n",
		yesNo(pi.Pet.Selected, "Yes", "No"), nf(pi.Pet.Name), nf(pi.Pet.Type), nf(pi.Pet.Exp), nf(pi.Pet.Level))

	fmt.Fprintf(&b, "\n<b>GUILD INFO:</b>\n┌ 🛡️ GUILD INFO\n"+
		"├─ Guild Name: %s\n"+
		"├─ Guild ID: %s\n"+
		"├─ Guild Level: %s\n"+
		"├─ Live Members: %s\n"+
		"└─ Leader Info:\n"+
		"    ├─ Leader Name: %s\n"+
		"    ├─ Leader UID: %s\n"+
		"    ├─ Leader Level: %s (Exp: %s)\n"+
		"    ├─ Leader Created At: %s\n"+
		"    ├─ Leader Last Login: %s\n"+
		"    ├─ Leader Title: %s\n"+
		"    ├─ Leader Current BP Badges: %s\n"+
		"    ├─ Leader BR: %s (%s)\n"+
		"    └─ Leader CS: %s (%s)\n",
		nf(pi.Clan.Name), nf(pi.Clan.ID), nf(pi.Clan.Level), nf(pi.Clan.MemberNum),
		nf(leader.Nickname), nf(leader.AccountID), nf(leader.Level), nf(leader.Exp),
		stamp(leader.CreateAt, loc), stamp(leader.LastLoginAt, loc), nf(leader.Title), nf(leader.BadgeCnt),
		brRank(string(leader.RankingPoints)), nf(leader.RankingPoints), nf(leader.CsRank), nf(leader.CsRankingPoints))

	b.WriteString("\n<b>PUBLIC CRAFTLAND MAPS:</b>\n┌ 🗺️ PUBLIC CRAFTLAND MAPS\n")
	if len(p.WorkshopMaps) == 0 {
		b.WriteString(notFound + "\n")
	}
	for _, m := range p.WorkshopMaps {
		b.WriteString("#FREEFIRE" + esc(string(m.Code)) + "\n")
	}
	if footer != "" {
		b.WriteString("\n" + esc(footer))
	}
	return b.String()
}

func banText(p *gameapi.PlayerInfo) string {
	status := "✅ <b>Status:</b> Not banned"
	switch {
	case !p.BanKnown:
		status = "❔ <b>Status:</b> Ban status unknown"
	case p.Banned && p.BanMonths > 0:
		status = fmt.Sprintf("❌ <b>Status:</b> ⚠️ Banned from the past %d months", p.BanMonths)
	case p.Banned:
		status = "❌ <b>Status:</b> ⛔ Banned indefinitely"
	}
	return fmt.Sprintf("<b>🎮 Player Information</b>\n\n"+
		"🆔 <b>UID:</b> %s\n"+
		"👤 <b>Nickname:</b> %s\n"+
		"🌍 <b>Region:</b> %s\n%s",
		esc(p.UID), esc(p.Nickname), esc(orNA(p.Region)), status)
}

func regionText(p *gameapi.PlayerInfo) string {
	return fmt.Sprintf("<b>🌍 Region Information</b>\n\n"+
		"🆔 <b>UID:</b> %s\n"+
		"👤 <b>Nickname:</b> %s\n"+
		"🌐 <b>Region:</b> %s",
		esc(p.UID), esc(p.Nickname), esc(orNA(p.Region)))
}

func searchText(res *gameapi.SearchResult, nickname string, loc *time.Location) string {
	total := res.Count
	if total == 0 {
		total = len(res.Players)
	}
	lines := []string{
		"<b>🔎 Search Results for:</b> <code>" + esc(nickname) + "</code>",
		"<b>📊 Total Found:</b> <code>" + count(total) + "</code>",
		rule,
	}
	for i, p := range res.Players {
		login := "Unknown"
		if n, ok := p.LastLogin.Int(); ok && n > 0 {
			login = time.Unix(n, 0).In(loc).Format(dateLayout)
		}
		lines = append(lines, fmt.Sprintf("<b>👤 Player %d</b>\n"+
			"🆔 <b>Account UID:</b> <code>%s</code>\n"+
			"🏷️ <b>Nickname:</b> <code>%s</code>\n"+
			"🌍 <b>Region:</b> <code>%s</code>\n"+
			"📅 <b>Last Login:</b> <code>%s</code>\n"+
			"🆙 <b>Level:</b> <code>%s</code>",
			i+1, esc(p.AccountID.Or("N/A")), esc(orNA(p.Nickname)), esc(p.Region.Or("N/A")), login, esc(p.Level.Or("N/A"))))
		if i < len(res.Players)-1 {
			lines = append(lines, rule)
		}
	}
	return strings.Join(lines, "\n")
}
