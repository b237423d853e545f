package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-quota-bot/internal/gameapi"
)

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// upstreamText maps a failed upstream call to a reply. notFoundText is used
// for ErrNotFound.
func upstreamText(ctx context.Context, err error, notFoundText string) string {
	switch {
	case errors.Is(err, gameapi.ErrNotFound):
		return notFoundText
	case errors.Is(err, gameapi.ErrTimeout):
		return timeoutText
	default:
		log.Ctx(ctx).Warn().Err(err).Msg("upstream lookup failed")
		return apiErrorText
	}
}

// edit replaces a placeholder and logs a failure instead of returning it:
// the user already has an answer in flight.
func (d *Dispatcher) edit(ctx context.Context, r *request, msgID int, text string) {
	if err := d.opts.Out.Edit(ctx, r.ChatID, msgID, text); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("edit placeholder")
	}
}

// handleGet renders a full profile followed by the banner and outfit images.
func (d *Dispatcher) handleGet(ctx context.Context, r *request) error {
	if len(r.Args) != 1 || !isDigits(r.Args[0]) {
		_, err := d.reply(ctx, r, "❌ Error: Please provide a UID.\nUsage: get [UID]\nExample: get 12345678")
		return err
	}
	uid := r.Args[0]

	player, err := d.opts.API.LookupPlayer(ctx, uid)
	if err != nil {
		_, err = d.reply(ctx, r, upstreamText(ctx, err, "<b>❌ Invalid UID or region not found.</b>"))
		return err
	}
	region := player.Region

	msgID, err := d.reply(ctx, r, fmt.Sprintf("<b>🔍 Retrieving player info...</b>\n🆔 UID: <code>%s</code>\n🌍 Region: <code>%s</code>",
		esc(uid), esc(region)))
	if err != nil {
		return err
	}

	profile, err := d.opts.API.Profile(ctx, uid, region)
	if err != nil {
		d.edit(ctx, r, msgID, upstreamText(ctx, err, "<b>❌ Invalid UID. API returned no data.</b>"))
		return nil
	}
	footer, err := d.opts.Settings.Footer(ctx)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("read footer")
	}
	d.edit(ctx, r, msgID, profileText(profile, uid, footer, d.opts.Clock.Location))

	for _, url := range []string{d.opts.API.BannerURL(uid, region), d.opts.API.OutfitURL(uid, region)} {
		if url == "" {
			continue
		}
		if err := d.opts.Out.SendPhoto(ctx, r.ChatID, r.MessageID, url); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("url", url).Msg("send profile image")
		}
	}
	return nil
}

func (d *Dispatcher) lookup(ctx context.Context, r *request, word, searching string, render func(*gameapi.PlayerInfo) string) error {
	if len(r.Args) < 1 {
		_, err := d.reply(ctx, r, "<b>Error:</b> Please provide a UID. Example: <code>"+word+" 123456789</code>")
		return err
	}
	msgID, err := d.reply(ctx, r, searching)
	if err != nil {
		return err
	}
	player, err := d.opts.API.LookupPlayer(ctx, r.Args[0])
	if err != nil {
		d.edit(ctx, r, msgID, upstreamText(ctx, err, playerNotFound))
		return nil
	}
	d.edit(ctx, r, msgID, render(player))
	return nil
}

func (d *Dispatcher) handleIsBanned(ctx context.Context, r *request) error {
	return d.lookup(ctx, r, "isbanned", "🔍 Searching player information...", banText)
}

func (d *Dispatcher) handleRegion(ctx context.Context, r *request) error {
	return d.lookup(ctx, r, "region", "🔍 Searching player region...", regionText)
}

func (d *Dispatcher) handleSearch(ctx context.Context, r *request) error {
	nickname := r.Rest
	if nickname == "" {
		_, err := d.reply(ctx, r, "<b>❌ Error:</b> Please provide a nickname to search.\n"+
			"<b>Usage:</b> <code>search nickname</code>\n"+
			"<b>Example:</b> <code>search ProPlayer123</code>")
		return err
	}
	msgID, err := d.reply(ctx, r, "🔍 Searching for player: <code>"+esc(nickname)+"</code>...")
	if err != nil {
		return err
	}

	res, err := d.opts.API.Search(ctx, nickname)
	switch {
	case errors.Is(err, gameapi.ErrTimeout):
		d.edit(ctx, r, msgID, "<b>❌ Request Timeout!</b>\nThe search took too long to complete.")
	case err != nil && !errors.Is(err, gameapi.ErrNotFound):
		d.edit(ctx, r, msgID, upstreamText(ctx, err, ""))
	case err != nil || len(res.Players) == 0:
		d.edit(ctx, r, msgID, "<b>❌ No players found</b>\nNo matches found for nickname: <code>"+esc(nickname)+"</code>")
	default:
		d.edit(ctx, r, msgID, searchText(res, nickname, d.opts.Clock.Location))
	}
	return nil
}
