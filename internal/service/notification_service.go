package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/events"
)

// NotificationService handles emitting notifications for credential events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventStaffLocked, n.handleStaffLocked)
	n.dispatcher.Subscribe(events.EventPINRotated, n.handleAudit)
	n.dispatcher.Subscribe(events.EventPINReset, n.handleAudit)
	n.dispatcher.Subscribe(events.EventStaffUnlocked, n.handleAudit)
	n.dispatcher.Subscribe(events.EventStaffDeactivated, n.handleAudit)
	n.dispatcher.Subscribe(events.EventStaffCreated, n.handleAudit)
}

// Lockouts need a privileged human, so they go out on both channels.
func (n *NotificationService) handleStaffLocked(ctx context.Context, event events.Event) error {
	n.logger.Warn("StaffLocked",
		zap.String("tenant_id", event.TenantID),
		zap.String("account_id", event.AccountID),
		zap.Any("payload", event.Payload))
	n.sendEmailNotificationStub(ctx, event)
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAudit(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("tenant_id", event.TenantID),
		zap.String("account_id", event.AccountID),
		zap.String("actor_id", event.Actor.AccountID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("account_id", event.AccountID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("account_id", event.AccountID),
		zap.String("event_type", string(event.Type)))
}
