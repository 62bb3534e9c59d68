package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/internal/email"
	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

// ReloadFailed is appended to a success message when the change was applied
// but the refreshed data could not be loaded.
const ReloadFailed = "The list could not be refreshed. Reload the page to see the latest data."

// FromError maps a failed operation to the toast shown to the operator.
// Server messages are shown as sent; everything else gets fallback.
func FromError(err error, fallback string) model.Notification {
	msg := fallback
	if appErr, ok := apperrors.As(err); ok {
		switch appErr.Code {
		case apperrors.ErrServer, apperrors.ErrValidation, apperrors.ErrConflict:
			if appErr.Message != "" {
				msg = appErr.Message
			}
		case apperrors.ErrUnauthorized:
			msg = "Authentication failed. Please logout and login again."
		}
	}
	return model.Notification{Level: model.NotificationError, Message: msg}
}

func Success(format string, args ...interface{}) model.Notification {
	return model.Notification{Level: model.NotificationSuccess, Message: fmt.Sprintf(format, args...)}
}

func Info(msg string) model.Notification {
	return model.Notification{Level: model.NotificationInfo, Message: msg}
}

// Unauthenticated reports whether err came from an expired or missing session.
func Unauthenticated(err error) bool {
	return apperrors.Is(err, apperrors.ErrUnauthorized) || apperrors.BackendStatus(err) == http.StatusUnauthorized
}

// Alerter emails operational alerts.
type Alerter struct {
	mail      email.Service
	recipient string
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

func NewAlerter(mail email.Service, recipient string, m *metrics.Metrics, log zerolog.Logger) *Alerter {
	return &Alerter{mail: mail, recipient: recipient, metrics: m, log: log}
}

// Enabled reports whether alerts have somewhere to go.
func (a *Alerter) Enabled() bool {
	return a != nil && a.recipient != ""
}

// LowStock sends the low-stock report for items.
func (a *Alerter) LowStock(ctx context.Context, items []model.Medicine) (model.Alert, error) {
	alert := model.Alert{
		ID:        uuid.New(),
		Kind:      model.AlertKindLowStock,
		Recipient: a.recipient,
		Subject:   fmt.Sprintf("Low stock: %d medicine(s) at or below reorder level", len(items)),
		Content:   lowStockBody(items),
		Status:    model.NotificationStatusPending,
		CreatedAt: time.Now(),
	}
	if !a.Enabled() {
		return alert, fmt.Errorf("no alert recipient configured")
	}

	if err := a.mail.SendCustom(ctx, alert.Recipient, alert.Subject, alert.Content); err != nil {
		alert.Status = model.NotificationStatusFailed
		alert.LastError = err.Error()
		a.count("failed")
		a.log.Error().Err(err).Str("alert_id", alert.ID.String()).Msg("low stock alert failed")
		return alert, err
	}

	alert.Status = model.NotificationStatusSent
	sentAt := time.Now()
	alert.SentAt = &sentAt
	a.count("sent")
	a.log.Info().Str("alert_id", alert.ID.String()).Int("items", len(items)).Msg("low stock alert sent")
	return alert, nil
}

func (a *Alerter) count(status string) {
	if a.metrics != nil {
		a.metrics.AlertsSent.WithLabelValues(status).Inc()
	}
}

func lowStockBody(items []model.Medicine) string {
	var b strings.Builder
	b.WriteString("The following medicines are at or below their reorder level:\n\n")
	for _, m := range items {
		fmt.Fprintf(&b, "- %s", m.Name)
		if m.Strength != "" {
			fmt.Fprintf(&b, " %s", m.Strength)
		}
		fmt.Fprintf(&b, ": %d in stock (reorder at %d)\n", m.StockQuantity, m.ReorderLevel)
	}
	return b.String()
}
