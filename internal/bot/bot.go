// Package bot turns chat messages into quota-checked calls to the game-data
// services and renders the replies as Telegram HTML.
//
// The Dispatcher is transport-agnostic: it consumes Message values and talks
// back through a Sender. internal/telegram adapts both to the Bot API.
package bot

import (
	"context"
	"time"

	"github.com/tbourn/go-quota-bot/internal/backup"
	"github.com/tbourn/go-quota-bot/internal/domain"
	"github.com/tbourn/go-quota-bot/internal/gameapi"
	"github.com/tbourn/go-quota-bot/internal/services"
)

// ChatTypePrivate is the chat type of one-to-one conversations, which the
// bot ignores.
const ChatTypePrivate = "private"

// Message is one inbound text message.
type Message struct {
	UpdateID     int
	ChatID       int64
	ChatType     string
	ChatTitle    string
	ChatUsername string
	MessageID    int
	SenderID     int64
	Text         string
	// ReplyToSenderID is the author of the replied-to message, or 0.
	ReplyToSenderID int64
}

// Sender delivers HTML replies to a chat.
type Sender interface {
	// Reply posts html in reply to message replyTo and returns the new
	// message id.
	Reply(ctx context.Context, chatID int64, replyTo int, html string) (int, error)
	// Edit replaces the text of a message previously sent by the bot.
	Edit(ctx context.Context, chatID int64, messageID int, html string) error
	// SendPhoto posts the image at url in reply to message replyTo.
	SendPhoto(ctx context.Context, chatID int64, replyTo int, url string) error
}

//
// Service contracts (context-aware)
//

// QuotaEngine is the per-user daily allowance.
type QuotaEngine interface {
	Cap(f domain.Feature) int
	NextReset() time.Time
	Reserve(ctx context.Context, userID int64, f domain.Feature) (services.Reservation, error)
	Release(ctx context.Context, r services.Reservation) error
	Remaining(ctx context.Context, userID int64) ([]services.FeatureUsage, error)
	ResetUser(ctx context.Context, userID int64, f *domain.Feature, resetBy int64) (int64, error)
	ResetAll(ctx context.Context, f *domain.Feature, resetBy int64) (int64, error)
	RefillIfAtCap(ctx context.Context, userID int64, f domain.Feature, resetBy int64) (int, bool, error)
}

// Entitlements is the registry of group grants.
type Entitlements interface {
	AddGrant(ctx context.Context, in services.GrantInput) (*domain.GroupEntitlement, error)
	RemoveGrant(ctx context.Context, groupID string, f *domain.Feature) (int64, error)
	ListGrants(ctx context.Context) ([]domain.GroupEntitlement, error)
	DescribeGroup(ctx context.Context, groupID string) ([]services.GrantStatus, error)
	Stats(ctx context.Context) (*services.Stats, error)
	Consume(ctx context.Context, groupID string, f domain.Feature) (*services.GroupUnit, error)
	ReleaseUnit(ctx context.Context, u *services.GroupUnit) error
}

// Settings is the process-wide settings store.
type Settings interface {
	Maintenance(ctx context.Context) (bool, error)
	SetMaintenance(ctx context.Context, on bool) error
	Footer(ctx context.Context) (string, error)
	SetFooter(ctx context.Context, text string) error
}

// GameAPI is the set of upstream calls the handlers make.
type GameAPI interface {
	Like(ctx context.Context, region, uid string) (*gameapi.LikeResult, error)
	Spam(ctx context.Context, region, uid string) (*gameapi.SpamResult, error)
	Visit(ctx context.Context, region, uid string) (*gameapi.VisitResult, error)
	Search(ctx context.Context, nickname string) (*gameapi.SearchResult, error)
	Profile(ctx context.Context, uid, region string) (*gameapi.Profile, error)
	LookupPlayer(ctx context.Context, uid string) (*gameapi.PlayerInfo, error)
	BannerURL(uid, region string) string
	OutfitURL(uid, region string) string
}

// Backuper takes an on-demand store backup.
type Backuper interface {
	Run(ctx context.Context) (*backup.Result, error)
}
