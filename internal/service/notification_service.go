package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/mail"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	unreadCacheKeyPrefix = "helpdesk:notifications:unread:"
	// unreadGenKeyPrefix counts invalidations per recipient; a count read
	// from the database is only cached if no invalidation happened meanwhile.
	unreadGenKeyPrefix = "helpdesk:notifications:unread-gen:"
	unreadGenTTL       = 24 * time.Hour
)

// storeUnreadScript sets the cached count only while the generation is the
// one observed before the database read.
var storeUnreadScript = redis.NewScript(`
local gen = redis.call("GET", KEYS[2]) or "0"
if gen ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 1
`)

// NotificationService serves the recipient side of notifications and reacts
// to ticket events: it drops cached unread counters and mails companies.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	cache      *redis.Client
	cacheTTL   time.Duration
	mailer     mail.Sender
	logger     *zap.Logger
	now        func() time.Time
}

// NotificationDependencies bundles collaborators. Cache and Mailer are optional.
type NotificationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Cache      *redis.Client
	CacheTTL   time.Duration
	Mailer     mail.Sender
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Notifications []domain.Notification
	UnreadCount   int
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	ttl := deps.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &NotificationService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		cache:      deps.Cache,
		cacheTTL:   ttl,
		mailer:     deps.Mailer,
		logger:     logger,
		now:        clock,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketTransitioned, n.handleTicketEvent)
	n.dispatcher.Subscribe(events.EventTicketCommented, n.handleTicketEvent)
}

// List returns the actor's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, actor domain.Actor, unreadOnly bool, limit, offset int) (*NotificationPage, error) {
	recipient, err := recipientOf(actor)
	if err != nil {
		return nil, err
	}
	items, err := n.store.Repos().Notifications.ListByRecipient(ctx, recipient, repository.NotificationFilter{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, translate(n.logger, err, "notification", 0)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	unread, err := n.CountUnread(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &NotificationPage{Notifications: items, UnreadCount: unread}, nil
}

// CountUnread returns the unread counter, served from Redis when possible.
func (n *NotificationService) CountUnread(ctx context.Context, actor domain.Actor) (int, error) {
	recipient, err := recipientOf(actor)
	if err != nil {
		return 0, err
	}
	cached, gen, ok := n.cachedCount(ctx, recipient)
	if ok {
		return cached, nil
	}
	count, err := n.store.Repos().Notifications.CountUnread(ctx, recipient)
	if err != nil {
		return 0, translate(n.logger, err, "notification", 0)
	}
	n.storeCount(ctx, recipient, count, gen)
	return count, nil
}

// MarkAsRead flags one notification as read. Marking an already read one succeeds.
func (n *NotificationService) MarkAsRead(ctx context.Context, actor domain.Actor, id int64) error {
	recipient, err := recipientOf(actor)
	if err != nil {
		return err
	}
	if err := n.store.Repos().Notifications.MarkAsRead(ctx, id, recipient); err != nil {
		return translate(n.logger, err, "notification", id)
	}
	n.invalidate(ctx, recipient)
	return nil
}

// MarkAllAsRead flags every unread notification of the actor; it is idempotent.
func (n *NotificationService) MarkAllAsRead(ctx context.Context, actor domain.Actor) (int64, error) {
	recipient, err := recipientOf(actor)
	if err != nil {
		return 0, err
	}
	updated, err := n.store.Repos().Notifications.MarkAllAsRead(ctx, recipient)
	if err != nil {
		return 0, translate(n.logger, err, "notification", 0)
	}
	n.invalidate(ctx, recipient)
	return updated, nil
}

// Delete removes one of the actor's notifications.
func (n *NotificationService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	recipient, err := recipientOf(actor)
	if err != nil {
		return err
	}
	if err := n.store.Repos().Notifications.Delete(ctx, id, recipient); err != nil {
		return translate(n.logger, err, "notification", id)
	}
	n.invalidate(ctx, recipient)
	return nil
}

// Notify stores a notification that is not tied to a ticket transition, such
// as the maintenance warnings.
func (n *NotificationService) Notify(ctx context.Context, notification *domain.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = n.now()
	}
	if err := n.store.Repos().Notifications.Create(ctx, notification); err != nil {
		return translate(n.logger, err, "notification", notification.TicketID)
	}
	n.invalidate(ctx, notification.Recipient)
	return nil
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	notification := events.NotificationOf(event)
	if notification == nil {
		return nil
	}
	n.invalidate(ctx, notification.Recipient)
	return n.sendEmail(ctx, notification)
}

func (n *NotificationService) sendEmail(ctx context.Context, notification *domain.Notification) error {
	if n.mailer == nil {
		return nil
	}
	recipient := notification.Recipient
	var to string
	switch {
	case recipient.CompanyID != nil:
		company, err := n.store.Repos().Companies.GetByID(ctx, *recipient.CompanyID)
		if err != nil {
			return fmt.Errorf("load company %d: %w", *recipient.CompanyID, err)
		}
		to = company.Email
	case recipient.UserID != nil:
		user, err := n.store.Repos().Users.GetByID(ctx, *recipient.UserID)
		if err != nil {
			return fmt.Errorf("load user %d: %w", *recipient.UserID, err)
		}
		to = user.Email
	}
	if to == "" {
		return nil
	}

	subject := fmt.Sprintf("[Ticket #%d] %s", notification.TicketID, subjectOf(notification.Type))
	htmlBody := "<p>" + html.EscapeString(notification.Message) + "</p>"
	if err := n.mailer.Send(to, subject, notification.Message, htmlBody); err != nil {
		return err
	}
	n.logger.Debug("notification mailed",
		zap.Int64("ticket_id", notification.TicketID),
		zap.String("type", string(notification.Type)))
	return nil
}

func subjectOf(t domain.NotificationType) string {
	switch t {
	case domain.NotificationAssumed:
		return "Ticket assumed"
	case domain.NotificationDispatched:
		return "Technician dispatched"
	case domain.NotificationInProgress:
		return "Work in progress"
	case domain.NotificationResolved:
		return "Ticket resolved"
	case domain.NotificationClosed, domain.NotificationAutoClosed:
		return "Ticket closed"
	case domain.NotificationReopened:
		return "Ticket reopened"
	case domain.NotificationComment:
		return "New comment"
	default:
		return "Ticket update"
	}
}

func recipientOf(actor domain.Actor) (domain.Recipient, error) {
	recipient := actor.Recipient()
	if !recipient.IsValid() {
		return recipient, apperrors.NewUnauthorized("authentication required")
	}
	return recipient, nil
}

// cachedCount returns the cached counter, or on a miss the generation to
// hand back to storeCount. gen is empty when the cache is unusable.
func (n *NotificationService) cachedCount(ctx context.Context, recipient domain.Recipient) (count int, gen string, ok bool) {
	if n.cache == nil {
		return 0, "", false
	}
	vals, err := n.cache.MGet(ctx, unreadCacheKeyPrefix+recipient.Key(), unreadGenKeyPrefix+recipient.Key()).Result()
	if err != nil {
		n.logger.Warn("unread cache read failed", zap.Error(err))
		return 0, "", false
	}
	gen = "0"
	if g, isStr := vals[1].(string); isStr {
		gen = g
	}
	val, isStr := vals[0].(string)
	if !isStr {
		return 0, gen, false
	}
	count, err = strconv.Atoi(val)
	if err != nil {
		return 0, gen, false
	}
	return count, gen, true
}

func (n *NotificationService) storeCount(ctx context.Context, recipient domain.Recipient, count int, gen string) {
	if n.cache == nil || gen == "" {
		return
	}
	keys := []string{unreadCacheKeyPrefix + recipient.Key(), unreadGenKeyPrefix + recipient.Key()}
	if err := storeUnreadScript.Run(ctx, n.cache, keys, gen, count, n.cacheTTL.Milliseconds()).Err(); err != nil {
		n.logger.Warn("unread cache write failed", zap.Error(err))
	}
}

// invalidate bumps the generation before dropping the counter so a read
// already in flight cannot write its stale count back.
func (n *NotificationService) invalidate(ctx context.Context, recipient domain.Recipient) {
	if n.cache == nil || !recipient.IsValid() {
		return
	}
	genKey := unreadGenKeyPrefix + recipient.Key()
	_, err := n.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, unreadGenTTL)
		pipe.Del(ctx, unreadCacheKeyPrefix+recipient.Key())
		return nil
	})
	if err != nil {
		n.logger.Warn("unread cache invalidation failed", zap.Error(err))
	}
}
