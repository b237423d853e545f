package bot

import (
	"context"
	"strconv"
)

func (d *Dispatcher) handleHelp(ctx context.Context, r *request) error {
	_, err := d.reply(ctx, r, helpText(r.Admin))
	return err
}

func (d *Dispatcher) handleRemain(ctx context.Context, r *request) error {
	usage, err := d.opts.Quota.Remaining(ctx, r.SenderID)
	if err != nil {
		return err
	}
	_, err = d.reply(ctx, r, remainText(usage, d.opts.Clock.ResetHour, d.opts.Clock.Location))
	return err
}

func (d *Dispatcher) handleID(ctx context.Context, r *request) error {
	_, err := d.reply(ctx, r, groupIDText(r.ChatID))
	return err
}

// handleInfo shows the invoking group's grants. Any member may ask.
func (d *Dispatcher) handleInfo(ctx context.Context, r *request) error {
	groupID := strconv.FormatInt(r.ChatID, 10)
	statuses, err := d.opts.Grants.DescribeGroup(ctx, groupID)
	if err != nil {
		return err
	}
	text := notWhitelistedText(groupID, d.opts.Contact)
	if len(statuses) > 0 {
		text = groupInfoText(r.Message, statuses, d.opts.Clock.Location)
	}
	_, err = d.reply(ctx, r, text)
	return err
}
