package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/gameapi"
	"github.com/tbourn/go-quota-bot/internal/services"
)

func (d *Dispatcher) handleLike(ctx context.Context, r *request) error {
	return d.runFeature(ctx, r, domain.FeatureLike)
}

func (d *Dispatcher) handleSpam(ctx context.Context, r *request) error {
	return d.runFeature(ctx, r, domain.FeatureSpam)
}

func (d *Dispatcher) handleVisit(ctx context.Context, r *request) error {
	return d.runFeature(ctx, r, domain.FeatureVisit)
}

// runFeature performs one like, spam or visit.
//
// The group unit and the user unit are both taken before the upstream call
// and given back unless the call produced a counted result, so a timeout,
// an error or a below-threshold answer costs nothing.
func (d *Dispatcher) runFeature(ctx context.Context, r *request, f domain.Feature) error {
	if len(r.Args) != 2 {
		_, err := d.reply(ctx, r, usageText(f))
		return err
	}
	region, uid := strings.ToLower(r.Args[0]), r.Args[1]
	if _, ok := d.regions[region]; !ok {
		_, err := d.reply(ctx, r, invalidRegionText(d.opts.Regions, r.Args[0]))
		return err
	}

	loc := d.opts.Clock.Location
	var unit *services.GroupUnit
	if d.opts.GrantsEnforced {
		var err error
		unit, err = d.opts.Grants.Consume(ctx, strconv.FormatInt(r.ChatID, 10), f)
		switch {
		case errors.Is(err, services.ErrGroupNotAllowed):
			featureOutcomes.WithLabelValues(string(f), "not_whitelisted").Inc()
			_, err = d.reply(ctx, r, notWhitelistedText(strconv.FormatInt(r.ChatID, 10), d.opts.Contact))
			return err
		case errors.Is(err, services.ErrGrantExpired):
			featureOutcomes.WithLabelValues(string(f), "grant_expired").Inc()
			_, err = d.reply(ctx, r, grantExpiredText(f, d.opts.Contact))
			return err
		case errors.Is(err, services.ErrGroupQuotaExceeded):
			featureOutcomes.WithLabelValues(string(f), "group_limit").Inc()
			_, err = d.reply(ctx, r, groupLimitText(f, d.opts.Quota.NextReset(), loc))
			return err
		case err != nil:
			return err
		}
	}

	res, err := d.opts.Quota.Reserve(ctx, r.SenderID, f)
	if err != nil {
		d.releaseUnit(ctx, unit)
		var qe *services.QuotaExceededError
		if errors.As(err, &qe) {
			featureOutcomes.WithLabelValues(string(f), "user_limit").Inc()
			_, err = d.reply(ctx, r, quotaExceededText(qe, loc))
		}
		return err
	}

	counted := false
	defer func() {
		if counted {
			return
		}
		rctx := context.WithoutCancel(ctx)
		if err := d.opts.Quota.Release(rctx, res); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("release user quota")
		}
		d.releaseUnit(rctx, unit)
	}()

	msgID, err := d.reply(ctx, r, placeholderText(f, uid))
	if err != nil {
		return fmt.Errorf("send placeholder: %w", err)
	}

	text, ok := d.callFeature(ctx, r, f, region, uid)
	counted = ok
	if err := d.opts.Out.Edit(ctx, r.ChatID, msgID, text); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("edit placeholder")
	}
	return nil
}

// callFeature calls the upstream service for f and returns the reply text
// and whether the result counts against the quota.
func (d *Dispatcher) callFeature(ctx context.Context, r *request, f domain.Feature, region, uid string) (string, bool) {
	var (
		text    string
		counted bool
		err     error
	)
	switch f {
	case domain.FeatureLike:
		var res *gameapi.LikeResult
		if res, err = d.opts.API.Like(ctx, region, uid); err == nil {
			switch {
			case res.Status == 1 && res.LikesGiven >= d.opts.LikeThreshold:
				counted = true
				left, limit := d.remaining(ctx, r.SenderID, f)
				text = likeSuccessText(res, uid, region, left, limit)
			case res.Status == 2:
				text = likeCappedText(res, uid)
			default:
				text = likeFailedText(res, d.opts.LikeThreshold)
			}
		}
	case domain.FeatureSpam:
		var res *gameapi.SpamResult
		if res, err = d.opts.API.Spam(ctx, region, uid); err == nil {
			counted = res.Status != "fail" && res.FriendRequests.Successful > 0
			left, limit := 0, d.opts.Quota.Cap(f)
			if counted {
				left, limit = d.remaining(ctx, r.SenderID, f)
			}
			text = spamText(res, uid, region, counted, left, limit)
		}
	case domain.FeatureVisit:
		var res *gameapi.VisitResult
		if res, err = d.opts.API.Visit(ctx, region, uid); err == nil {
			if res.Status == "success" {
				counted = true
				left, limit := d.remaining(ctx, r.SenderID, f)
				text = visitSuccessText(res, uid, region, left, limit)
			} else {
				text = visitFailedText
			}
		}
	}

	switch {
	case errors.Is(err, gameapi.ErrTimeout):
		featureOutcomes.WithLabelValues(string(f), "timeout").Inc()
		return timeoutText, false
	case err != nil:
		log.Ctx(ctx).Warn().Err(err).Str("region", region).Str("uid", uid).Msg("upstream call failed")
		featureOutcomes.WithLabelValues(string(f), "api_error").Inc()
		return apiErrorText, false
	case counted:
		featureOutcomes.WithLabelValues(string(f), "counted").Inc()
	default:
		featureOutcomes.WithLabelValues(string(f), "not_counted").Inc()
	}
	return text, counted
}

// remaining returns what is left of userID's allowance for f and the cap.
func (d *Dispatcher) remaining(ctx context.Context, userID int64, f domain.Feature) (int, int) {
	limit := d.opts.Quota.Cap(f)
	usage, err := d.opts.Quota.Remaining(ctx, userID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("read remaining quota")
		return max(0, limit-1), limit
	}
	for _, u := range usage {
		if u.Feature == f {
			return u.Remaining, u.Cap
		}
	}
	return 0, limit
}

func (d *Dispatcher) releaseUnit(ctx context.Context, u *services.GroupUnit) {
	if u == nil {
		return
	}
	if err := d.opts.Grants.ReleaseUnit(ctx, u); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("release group unit")
	}
}
