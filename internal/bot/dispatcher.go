package bot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-quota-bot/internal/period"
	"github.com/tbourn/go-quota-bot/internal/ratelimit"
	"github.com/tbourn/go-quota-bot/internal/services"
)

// DefaultContact is named in "not whitelisted" replies.
const DefaultContact = "@vampire_exee"

// Options configures a Dispatcher. Quota, Grants, Settings, Admins, API,
// Out and Clock are required.
type Options struct {
	Quota    QuotaEngine
	Grants   Entitlements
	Settings Settings
	Admins   services.AdminPolicy
	API      GameAPI
	Out      Sender
	Clock    *period.Clock

	// Backups serves the backup command; nil disables it.
	Backups Backuper
	// Flood drops updates from users sending too fast; nil disables it.
	Flood *ratelimit.Keyed

	BotName        string   // username without @, for /cmd@botname
	Regions        []string // supported region codes, lower case
	LikeThreshold  int      // likes a call must grant to count
	GrantsEnforced bool     // features require a group grant
	Contact        string   // who to ask for whitelisting
}

// Dispatcher routes messages to command handlers after applying the flood,
// maintenance and admin gates.
type Dispatcher struct {
	opts     Options
	regions  map[string]struct{}
	commands map[string]command
}

// New returns a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.LikeThreshold <= 0 {
		opts.LikeThreshold = 50
	}
	if opts.Contact == "" {
		opts.Contact = DefaultContact
	}
	opts.BotName = strings.TrimPrefix(strings.ToLower(opts.BotName), "@")
	d := &Dispatcher{
		opts:    opts,
		regions: make(map[string]struct{}, len(opts.Regions)),
	}
	for _, r := range opts.Regions {
		d.regions[strings.ToLower(r)] = struct{}{}
	}
	d.commands = d.routes()
	return d
}

// request is one parsed command invocation.
type request struct {
	Message
	Name  string   // command name, lower case, without / or @bot
	Args  []string // whitespace separated tokens after the name
	Rest  string   // raw text after the name
	Admin bool
}

// reply answers the invoking message.
func (d *Dispatcher) reply(ctx context.Context, r *request, html string) (int, error) {
	return d.opts.Out.Reply(ctx, r.ChatID, r.MessageID, html)
}

// Dispatch handles one message. It never returns an error or panics: every
// failure becomes a chat message or a log line.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) {
	if m.ChatType == ChatTypePrivate || m.SenderID == 0 {
		return
	}
	name, rest, ok := d.parse(m.Text)
	if !ok {
		return
	}
	cmd, ok := d.commands[name]
	if !ok {
		return
	}
	if d.opts.Flood != nil && !d.opts.Flood.Allow(fmt.Sprintf("user:%d", m.SenderID)) {
		updatesDropped.WithLabelValues("flood").Inc()
		return
	}

	ctx, span := otel.Tracer("bot").Start(ctx, "bot."+name,
		trace.WithAttributes(
			attribute.Int64("chat.id", m.ChatID),
			attribute.Int64("user.id", m.SenderID),
		),
	)
	defer span.End()

	logger := log.With().
		Int64("chat_id", m.ChatID).
		Int64("user_id", m.SenderID).
		Str("command", name).
		Logger()
	ctx = logger.WithContext(ctx)

	r := &request{
		Message: m,
		Name:    name,
		Args:    strings.Fields(rest),
		Rest:    strings.TrimSpace(rest),
		Admin:   d.opts.Admins.IsAdmin(m.SenderID),
	}

	start := time.Now()
	result := "ok"
	defer func() {
		if p := recover(); p != nil {
			result = "panic"
			logger.Error().
				Interface("panic", p).
				Bytes("stack", debug.Stack()).
				Msg("command panicked")
			span.SetStatus(codes.Error, "panic")
			d.internalError(ctx, r)
		}
		commandsTotal.WithLabelValues(name, result).Inc()
		commandLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	if cmd.gated && !r.Admin {
		on, err := d.opts.Settings.Maintenance(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("read maintenance flag")
			result = "error"
			d.internalError(ctx, r)
			return
		}
		if on {
			result = "maintenance"
			_, _ = d.reply(ctx, r, maintenanceNotice)
			return
		}
	}
	if cmd.admin && !r.Admin {
		result = "denied"
		if cmd.denial != "" {
			_, _ = d.reply(ctx, r, cmd.denial)
		}
		return
	}

	if err := cmd.run(ctx, r); err != nil {
		result = "error"
		logger.Error().Err(err).Msg("command failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.internalError(ctx, r)
	}
}

func (d *Dispatcher) internalError(ctx context.Context, r *request) {
	if _, err := d.reply(ctx, r, internalErrorText); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("send error reply")
	}
}

// parse extracts the command name and the text after it. Slash commands may
// carry @botname; the lookup words (get, isbanned, region, search) also work
// without the slash.
func (d *Dispatcher) parse(text string) (name, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(head, "\n\t"); i >= 0 {
		if rest != "" {
			rest = " " + rest
		}
		rest = head[i:] + rest
		head = head[:i]
	}
	head = strings.ToLower(head)

	if strings.HasPrefix(head, "/") {
		head = head[1:]
		if cmd, bot, found := strings.Cut(head, "@"); found {
			if d.opts.BotName != "" && bot != d.opts.BotName {
				return "", "", false
			}
			head = cmd
		}
		return head, rest, head != ""
	}
	if _, bare := bareCommands[head]; bare {
		return head, rest, true
	}
	return "", "", false
}
