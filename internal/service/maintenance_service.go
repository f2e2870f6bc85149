package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/lifecycle"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// warningWindow limits sweep warnings to one per ticket and type per day.
const warningWindow = 24 * time.Hour

var activeStatuses = []domain.TicketStatus{
	domain.TicketStatusAssumed,
	domain.TicketStatusDispatched,
	domain.TicketStatusInProgress,
}

// MaintenanceSettings are the sweep thresholds.
type MaintenanceSettings struct {
	StuckAfter            time.Duration
	OverdueAfter          time.Duration
	LogRetention          time.Duration
	NotificationRetention time.Duration
	BatchSize             int
}

// SettingsFromConfig converts env configuration to sweep thresholds.
func SettingsFromConfig(cfg config.MaintenanceConfig) MaintenanceSettings {
	return MaintenanceSettings{
		StuckAfter:            time.Duration(cfg.StuckAfterHours) * time.Hour,
		OverdueAfter:          time.Duration(cfg.OverdueAfterHours) * time.Hour,
		LogRetention:          time.Duration(cfg.LogRetentionDays) * 24 * time.Hour,
		NotificationRetention: time.Duration(cfg.NotificationRetDays) * 24 * time.Hour,
		BatchSize:             cfg.BatchSize,
	}
}

// MaintenanceService is the periodic sweep. It only ever goes through the
// same lifecycle rules as interactive callers.
type MaintenanceService struct {
	store         repository.Store
	tickets       *TicketService
	notifications *NotificationService
	settings      MaintenanceSettings
	metrics       *observability.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// MaintenanceDependencies bundles collaborators.
type MaintenanceDependencies struct {
	Store         repository.Store
	Tickets       *TicketService
	Notifications *NotificationService
	Settings      MaintenanceSettings
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Clock         func() time.Time
}

// SweepReport summarises one sweep.
type SweepReport struct {
	AutoClosed           int
	AutoCloseFailed      int
	StuckWarnings        int
	OverdueWarnings      int
	LogsRemoved          int64
	NotificationsRemoved int64
}

// NewMaintenanceService builds the service, filling unset thresholds with defaults.
func NewMaintenanceService(deps MaintenanceDependencies) *MaintenanceService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	settings := deps.Settings
	if settings.StuckAfter <= 0 {
		settings.StuckAfter = 72 * time.Hour
	}
	if settings.OverdueAfter <= 0 {
		settings.OverdueAfter = 24 * time.Hour
	}
	if settings.LogRetention <= 0 {
		settings.LogRetention = 90 * 24 * time.Hour
	}
	if settings.NotificationRetention <= 0 {
		settings.NotificationRetention = 30 * 24 * time.Hour
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = 200
	}
	return &MaintenanceService{
		store:         deps.Store,
		tickets:       deps.Tickets,
		notifications: deps.Notifications,
		settings:      settings,
		metrics:       deps.Metrics,
		logger:        logger,
		now:           clock,
	}
}

// Run executes every task. A failing task does not stop the others.
func (m *MaintenanceService) Run(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	var errs []error

	closed, failed, err := m.RunAutoClose(ctx)
	report.AutoClosed, report.AutoCloseFailed = closed, failed
	errs = append(errs, err)

	report.StuckWarnings, err = m.RunStuckScan(ctx)
	errs = append(errs, err)

	report.OverdueWarnings, err = m.RunOverdueScan(ctx)
	errs = append(errs, err)

	report.LogsRemoved, report.NotificationsRemoved, err = m.RunRetention(ctx)
	errs = append(errs, err)

	m.logger.Info("maintenance sweep finished",
		zap.Int("auto_closed", report.AutoClosed),
		zap.Int("auto_close_failed", report.AutoCloseFailed),
		zap.Int("stuck_warnings", report.StuckWarnings),
		zap.Int("overdue_warnings", report.OverdueWarnings),
		zap.Int64("logs_removed", report.LogsRemoved),
		zap.Int64("notifications_removed", report.NotificationsRemoved))
	return report, errors.Join(errs...)
}

// RunAutoClose closes tickets resolved more than seven days ago. A ticket that
// was reopened meanwhile fails its transition and is skipped.
func (m *MaintenanceService) RunAutoClose(ctx context.Context) (closed, failed int, err error) {
	cutoff := m.now().Add(-lifecycle.AutoCloseAfter)
	candidates, err := m.store.Repos().Tickets.ListResolvedBefore(ctx, cutoff, m.settings.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("list auto-close candidates: %w", err)
	}
	for _, ticket := range candidates {
		if _, err := m.tickets.AutoClose(ctx, ticket.ID); err != nil {
			failed++
			level := zap.WarnLevel
			if apperrors.ToDomainError(err).Code == apperrors.CodeInvalidStateTransition {
				level = zap.DebugLevel
			}
			m.logger.Log(level, "auto-close skipped", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		closed++
	}
	m.metrics.RecordSweep("auto_close", int64(closed))
	return closed, failed, nil
}

// RunStuckScan warns the assignee of tickets untouched for too long.
func (m *MaintenanceService) RunStuckScan(ctx context.Context) (int, error) {
	now := m.now()
	repos := m.store.Repos()
	stale, err := repos.Tickets.ListStale(ctx, activeStatuses, now.Add(-m.settings.StuckAfter), m.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stuck tickets: %w", err)
	}

	sent := 0
	for _, ticket := range stale {
		if ticket.AssignedUserID == nil {
			continue
		}
		recent, err := repos.Notifications.ExistsSince(ctx, ticket.ID, domain.NotificationStuckTicket, now.Add(-warningWindow))
		if err != nil {
			return sent, fmt.Errorf("check stuck warning for ticket %d: %w", ticket.ID, err)
		}
		if recent {
			continue
		}
		days := int(now.Sub(ticket.UpdatedAt).Hours() / 24)
		err = m.notifications.Notify(ctx, &domain.Notification{
			TicketID:  ticket.ID,
			Recipient: domain.UserRecipient(*ticket.AssignedUserID),
			Type:      domain.NotificationStuckTicket,
			Message:   fmt.Sprintf("Ticket #%d %q has had no progress for %d days.", ticket.ID, ticket.Title, days),
			CreatedAt: now,
		})
		if err != nil {
			return sent, err
		}
		sent++
	}
	m.metrics.RecordSweep("stuck_warning", int64(sent))
	return sent, nil
}

// RunOverdueScan warns every active admin about tickets nobody assumed in time.
func (m *MaintenanceService) RunOverdueScan(ctx context.Context) (int, error) {
	now := m.now()
	repos := m.store.Repos()
	waiting, err := repos.Tickets.ListStale(ctx, []domain.TicketStatus{domain.TicketStatusCreated}, now.Add(-m.settings.OverdueAfter), m.settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list overdue tickets: %w", err)
	}
	if len(waiting) == 0 {
		return 0, nil
	}
	admins, err := repos.Users.ListByRole(ctx, domain.StaffRoleAdmin, true)
	if err != nil {
		return 0, fmt.Errorf("list admins: %w", err)
	}
	if len(admins) == 0 {
		m.logger.Warn("overdue tickets found but no active admin to warn", zap.Int("tickets", len(waiting)))
		return 0, nil
	}

	sent := 0
	for _, ticket := range waiting {
		recent, err := repos.Notifications.ExistsSince(ctx, ticket.ID, domain.NotificationOverdueWarning, now.Add(-warningWindow))
		if err != nil {
			return sent, fmt.Errorf("check overdue warning for ticket %d: %w", ticket.ID, err)
		}
		if recent {
			continue
		}
		hours := int(now.Sub(ticket.UpdatedAt).Hours())
		message := fmt.Sprintf("Ticket #%d %q has been waiting %d hours without being assumed.", ticket.ID, ticket.Title, hours)
		for _, admin := range admins {
			err := m.notifications.Notify(ctx, &domain.Notification{
				TicketID:  ticket.ID,
				Recipient: domain.UserRecipient(admin.ID),
				Type:      domain.NotificationOverdueWarning,
				Message:   message,
				CreatedAt: now,
			})
			if err != nil {
				return sent, err
			}
			sent++
		}
	}
	m.metrics.RecordSweep("overdue_warning", int64(sent))
	return sent, nil
}

// RunRetention deletes old log entries and old read notifications.
func (m *MaintenanceService) RunRetention(ctx context.Context) (logs, notifications int64, err error) {
	now := m.now()
	repos := m.store.Repos()
	logs, err = repos.Logs.DeleteOlderThan(ctx, now.Add(-m.settings.LogRetention))
	if err != nil {
		return 0, 0, fmt.Errorf("purge ticket logs: %w", err)
	}
	notifications, err = repos.Notifications.DeleteReadOlderThan(ctx, now.Add(-m.settings.NotificationRetention))
	if err != nil {
		return logs, 0, fmt.Errorf("purge notifications: %w", err)
	}
	m.metrics.RecordSweep("log_retention", logs)
	m.metrics.RecordSweep("notification_retention", notifications)
	return logs, notifications, nil
}
