// Package gameapi is the HTTP client for the third-party game-data services
// the bot relays commands to. Every call is a single attempt bounded by the
// configured timeout. Failures are reported as ErrTimeout, ErrNotFound or
// ErrUnavailable so callers can answer each one differently.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-quota-bot/internal/config"
)

// maxBody caps how much of an upstream answer is read.
const maxBody = 2 << 20

// loginAppID identifies the game on the account login endpoint.
const loginAppID = 100067

// Client calls the game-data services.
type Client struct {
	cfg  config.GameAPIConfig
	http *http.Client
}

// New returns a Client. A nil hc gets a client with a traced transport;
// cfg.Timeout bounds every call either way.
func New(cfg config.GameAPIConfig, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: hc}
}

// Like asks the like service to send likes to uid.
func (c *Client) Like(ctx context.Context, region, uid string) (*LikeResult, error) {
	var out LikeResult
	q := url.Values{"uid": {uid}, "server_name": {region}}
	if err := c.getJSON(ctx, "like", c.cfg.LikeURL, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Spam asks the friend-request service to target uid.
func (c *Client) Spam(ctx context.Context, region, uid string) (*SpamResult, error) {
	var out SpamResult
	q := url.Values{"uid": {uid}, "server_name": {region}}
	if err := c.getJSON(ctx, "spam", c.cfg.SpamURL, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Visit asks the visit service to send visitors to uid.
func (c *Client) Visit(ctx context.Context, region, uid string) (*VisitResult, error) {
	var out VisitResult
	q := url.Values{"uid": {uid}, "server_name": {region}}
	if err := c.getJSON(ctx, "visit", c.cfg.VisitURL, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search looks players up by nickname across regions.
func (c *Client) Search(ctx context.Context, nickname string) (*SearchResult, error) {
	var out SearchResult
	if err := c.getJSON(ctx, "search", c.cfg.SearchURL, url.Values{"nickname": {nickname}}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile fetches the full player profile of uid in region.
func (c *Client) Profile(ctx context.Context, uid, region string) (*Profile, error) {
	var out Profile
	q := url.Values{"uid": {uid}, "region": {region}}
	if err := c.getJSON(ctx, "profile", c.cfg.ProfileURL, q, &out); err != nil {
		return nil, err
	}
	if out.Error != "" || out.PlayerInfo == nil {
		return nil, ErrNotFound
	}
	return &out, nil
}

// BannerURL returns the banner image address of uid.
func (c *Client) BannerURL(uid, region string) string {
	return withQuery(c.cfg.BannerURL, url.Values{"uid": {uid}, "region": {region}})
}

// OutfitURL returns the outfit image address of uid.
func (c *Client) OutfitURL(uid, region string) string {
	return withQuery(c.cfg.OutfitURL, url.Values{"uid": {uid}, "region": {region}})
}

// LookupPlayer resolves uid to nickname and region through the account
// login endpoint, then asks the anti-cheat endpoint about bans. A failed ban
// check leaves BanKnown false instead of failing the lookup.
func (c *Client) LookupPlayer(ctx context.Context, uid string) (*PlayerInfo, error) {
	ctx, span := otel.Tracer("gameapi").Start(ctx, "LookupPlayer",
		trace.WithAttributes(attribute.String("player.uid", uid)),
	)
	defer span.End()

	var login struct {
		Nickname string `json:"nickname"`
		Region   string `json:"region"`
	}
	body, _ := json.Marshal(map[string]any{"app_id": loginAppID, "login_id": uid})
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Accept", "application/json, text/plain, */*")
	if o := origin(c.cfg.LoginURL); o != "" {
		hdr.Set("Origin", o)
		hdr.Set("Referer", o+"/")
	}
	if c.cfg.LoginCookie != "" {
		hdr.Set("Cookie", c.cfg.LoginCookie)
	}
	err := c.do(ctx, "login", http.MethodPost, c.cfg.LoginURL, bytes.NewReader(body), hdr, &login)
	var se *statusError
	if errors.As(err, &se) {
		// The login endpoint answers non-200 for unknown ids.
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if login.Nickname == "" {
		return nil, ErrNotFound
	}

	info := &PlayerInfo{UID: uid, Nickname: login.Nickname, Region: login.Region}

	var ban struct {
		Status string `json:"status"`
		Data   *struct {
			IsBanned int `json:"is_banned"`
			Period   int `json:"period"`
		} `json:"data"`
	}
	q := url.Values{"lang": {"en"}, "uid": {uid}}
	if err := c.getJSON(ctx, "bancheck", c.cfg.BanCheckURL, q, &ban); err != nil {
		span.AddEvent("ban check failed", trace.WithAttributes(attribute.String("error", err.Error())))
		return info, nil
	}
	if ban.Status == "success" && ban.Data != nil {
		info.BanKnown = true
		info.Banned = ban.Data.IsBanned != 0
		if info.Banned {
			info.BanMonths = ban.Data.Period
		}
	}
	return info, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, base string, q url.Values, out any) error {
	return c.do(ctx, endpoint, http.MethodGet, withQuery(base, q), nil, nil, out)
}

// do performs one request and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, endpoint, method, target string, body io.Reader, hdr http.Header, out any) (err error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx, span := otel.Tracer("gameapi").Start(ctx, "gameapi."+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("gameapi.endpoint", endpoint)),
	)
	start := time.Now()
	defer func() {
		apiLat.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		apiReqs.WithLabelValues(endpoint, outcome(err)).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		if isTimeout(ctx, err) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}

// statusError is a non-2xx answer. It matches ErrUnavailable.
type statusError struct{ code int }

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrUnavailable, e.code)
}

func (e *statusError) Is(target error) bool { return target == ErrUnavailable }

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "unavailable"
	}
}

func withQuery(base string, q url.Values) string {
	if strings.Contains(base, "?") {
		return base + "&" + q.Encode()
	}
	return base + "?" + q.Encode()
}

// origin returns scheme://host of raw, or "" when raw does not parse.
func origin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
