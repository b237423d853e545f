package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/services"
)

const (
	addGroupUsage    = "<code>/addgroup -123456789 50 30 like</code>"
	removeGroupUsage = " <code>/removegroup -123456789</code>\n <code>/removegroup -123456789 like</code>"
	badFeature       = "Feature type must be 'like', 'spam' or 'visit'."
)

func (d *Dispatcher) handleAddGroup(ctx context.Context, r *request) error {
	if len(r.Args) != 4 {
		_, err := d.reply(ctx, r, errorUsageText("Usage: /addgroup <group_id> <requests> <days> <like|spam|visit>", addGroupUsage))
		return err
	}
	requests, err1 := strconv.Atoi(r.Args[1])
	days, err2 := strconv.Atoi(r.Args[2])
	if err1 != nil || err2 != nil {
		_, err := d.reply(ctx, r, errorUsageText("Requests and days must be positive integers.", addGroupUsage))
		return err
	}

	g, err := d.opts.Grants.AddGrant(ctx, services.GrantInput{
		GroupID:  r.Args[0],
		Feature:  strings.ToLower(r.Args[3]),
		Requests: requests,
		Days:     days,
	})
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		_, err = d.reply(ctx, r, errorUsageText(ve.Msg, addGroupUsage))
		return err
	case errors.Is(err, services.ErrGrantExists):
		_, err = d.reply(ctx, r, "<b>⚠️ Group already has access to:</b> <code>"+esc(strings.ToLower(r.Args[3]))+"</code>")
		return err
	case err != nil:
		return err
	}
	log.Ctx(ctx).Info().Str("group_id", g.GroupID).Str("feature", g.FeatureType.String()).
		Int("requests", g.Requests).Int("days", g.Days).Msg("grant added")
	_, err = d.reply(ctx, r, grantAddedText(g, d.opts.Clock.Location))
	return err
}

func (d *Dispatcher) handleRemoveGroup(ctx context.Context, r *request) error {
	if len(r.Args) < 1 || len(r.Args) > 2 {
		_, err := d.reply(ctx, r, errorUsageText("Usage: /removegroup <group_id> [like|spam|visit]", removeGroupUsage))
		return err
	}
	groupID := r.Args[0]
	var f *domain.Feature
	if len(r.Args) == 2 {
		pf, err := domain.ParseFeature(r.Args[1])
		if err != nil {
			_, err = d.reply(ctx, r, errorUsageText(badFeature, removeGroupUsage))
			return err
		}
		f = &pf
	}

	n, err := d.opts.Grants.RemoveGrant(ctx, groupID, f)
	if err != nil {
		return err
	}
	text := "<b>ℹ️ Group not found or feature not set:</b> <code>" + esc(groupID) + "</code>"
	if n > 0 {
		scope := ""
		if f != nil {
			scope = " <b>(" + f.String() + ")</b>"
		}
		text = "<b>✅ Group removed:</b> <code>" + esc(groupID) + "</code>" + scope
	}
	_, err = d.reply(ctx, r, text)
	return err
}

func (d *Dispatcher) handleListGroups(ctx context.Context, r *request) error {
	grants, err := d.opts.Grants.ListGrants(ctx)
	if err != nil {
		return err
	}
	_, err = d.reply(ctx, r, listGroupsText(grants, d.opts.Clock.Location))
	return err
}

func (d *Dispatcher) handleStats(ctx context.Context, r *request) error {
	st, err := d.opts.Grants.Stats(ctx)
	if err != nil {
		return err
	}
	_, err = d.reply(ctx, r, statsText(st, d.opts.Clock.Location))
	return err
}

func (d *Dispatcher) handleMaintenance(ctx context.Context, r *request) error {
	var (
		on     bool
		reason string
	)
	switch {
	case len(r.Args) != 1:
		reason = "Invalid command format"
	case strings.EqualFold(r.Args[0], "on"):
		on = true
	case strings.EqualFold(r.Args[0], "off"):
	default:
		reason = "Invalid maintenance mode"
	}
	if reason != "" {
		_, err := d.reply(ctx, r, "<b>❌ Error setting maintenance mode:</b>\n"+
			"<code>"+reason+"</code>\n\n"+
			"<b>Usage:</b> <code>/maintenance on|off</code>\n"+
			"<i>Example:</i> <code>/maintenance on</code>")
		return err
	}
	if err := d.opts.Settings.SetMaintenance(ctx, on); err != nil {
		return err
	}
	log.Ctx(ctx).Info().Bool("maintenance", on).Msg("maintenance mode changed")
	_, err := d.reply(ctx, r, maintenanceText(on, d.opts.Clock.Current().In(d.opts.Clock.Location)))
	return err
}

// target resolves the user an admin command acts on: the author of the
// replied-to message, else a numeric id in args.
func target(r *request, args []string) (int64, bool) {
	if r.ReplyToSenderID != 0 {
		return r.ReplyToSenderID, true
	}
	if len(args) != 1 {
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// trailingFeature splits a feature name off the end of args.
func trailingFeature(args []string) (*domain.Feature, []string) {
	if len(args) == 0 {
		return nil, args
	}
	f, err := domain.ParseFeature(args[len(args)-1])
	if err != nil {
		return nil, args
	}
	return &f, args[:len(args)-1]
}

func (d *Dispatcher) handleResetCooldown(ctx context.Context, r *request) error {
	usage := func(msg string) error {
		_, err := d.reply(ctx, r, errorUsageText(msg,
			"Reply: <code>/resetcooldown visit</code>",
			"User ID: <code>/resetcooldown 123456789 like</code>"))
		return err
	}
	f, rest := trailingFeature(r.Args)
	if f == nil {
		return usage("Specify a valid command type: like, spam, visit")
	}
	userID, ok := target(r, rest)
	if !ok {
		return usage("Reply to user or provide a valid user ID")
	}

	used, refilled, err := d.opts.Quota.RefillIfAtCap(ctx, userID, *f, r.SenderID)
	if err != nil {
		return err
	}
	text := notFullyUsedText(*f, used, d.opts.Quota.Cap(*f))
	if refilled {
		text = fmt.Sprintf("<b>✅ Cooldown reset:</b> <code>%s</code> for user <code>%d</code>", f, userID)
	}
	_, err = d.reply(ctx, r, text)
	return err
}

func (d *Dispatcher) handleReset(ctx context.Context, r *request) error {
	f, rest := trailingFeature(r.Args)
	action := "all"
	if f != nil {
		action = f.String()
	}

	if len(rest) >= 1 && strings.EqualFold(rest[0], "all") {
		n, err := d.opts.Quota.ResetAll(ctx, f, r.SenderID)
		if err != nil {
			return err
		}
		log.Ctx(ctx).Info().Str("scope", action).Int64("affected", n).Msg("usage reset for all users")
		_, err = d.reply(ctx, r, fmt.Sprintf("<b>✅ Reset %s usage for all users.</b>\nAffected records: <code>%d</code>", action, n))
		return err
	}

	userID, ok := target(r, rest)
	if !ok {
		_, err := d.reply(ctx, r, errorUsageText("Please reply to a user or provide a user ID.",
			"Reply: <code>/reset [like|spam|visit]</code>",
			"User ID: <code>/reset 123456789 [like|spam|visit]</code>",
			"Everyone: <code>/reset all [like|spam|visit]</code>"))
		return err
	}
	n, err := d.opts.Quota.ResetUser(ctx, userID, f, r.SenderID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("<b>ℹ️ Nothing to reset for:</b> <code>%d</code>", userID)
	if n > 0 {
		text = fmt.Sprintf("<b>✅ Reset %s usage for:</b> <code>%d</code>", action, userID)
	}
	_, err = d.reply(ctx, r, text)
	return err
}

func (d *Dispatcher) handleSetFooter(ctx context.Context, r *request) error {
	const usage = "<b>❌ Please provide footer text.</b>\nUsage: <code>/setfooter Your footer text here</code>"
	if r.Rest == "" {
		_, err := d.reply(ctx, r, usage)
		return err
	}
	err := d.opts.Settings.SetFooter(ctx, r.Rest)
	var ve *services.ValidationError
	if errors.As(err, &ve) {
		_, err = d.reply(ctx, r, usage)
		return err
	}
	if err != nil {
		return err
	}
	_, err = d.reply(ctx, r, "<b>✅ Footer updated successfully!</b>")
	return err
}

func (d *Dispatcher) handleBackup(ctx context.Context, r *request) error {
	res, err := d.opts.Backups.Run(ctx)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("on-demand backup failed")
		_, err = d.reply(ctx, r, "<b>❌ Backup failed:</b> <code>"+esc(err.Error())+"</code>")
		return err
	}
	_, err = d.reply(ctx, r, backupText(res.Path, res.Size, res.SHA256, res.Duration))
	return err
}
