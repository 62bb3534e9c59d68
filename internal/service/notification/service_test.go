package notification

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"server message", apperrors.Server(http.StatusBadRequest, "File too large"), "File too large"},
		{"server without message", apperrors.Server(http.StatusInternalServerError, ""), "Upload failed"},
		{"validation", apperrors.Validation("Please enter quantity"), "Please enter quantity"},
		{"transport", apperrors.Transport("x", errors.New("refused")), "Upload failed"},
		{"unauthorized", apperrors.Unauthorized(nil), "Authentication failed. Please logout and login again."},
		{"plain", errors.New("boom"), "Upload failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := FromError(tt.err, "Upload failed")
			assert.Equal(t, model.NotificationError, n.Level)
			assert.Equal(t, tt.want, n.Message)
		})
	}
}

func TestSuccess(t *testing.T) {
	n := Success("Prescription %s! Receipt sent to patient email.", "Dispensed")
	assert.Equal(t, model.NotificationSuccess, n.Level)
	assert.Equal(t, "Prescription Dispensed! Receipt sent to patient email.", n.Message)
}

func TestUnauthenticated(t *testing.T) {
	assert.True(t, Unauthenticated(apperrors.Server(http.StatusUnauthorized, "jwt expired")))
	assert.True(t, Unauthenticated(apperrors.Unauthorized(nil)))
	assert.False(t, Unauthenticated(apperrors.Server(http.StatusForbidden, "no")))
}

type fakeMail struct {
	to, subject, content string
	err                  error
}

func (f *fakeMail) SendCustom(_ context.Context, to, subject, content string) error {
	f.to, f.subject, f.content = to, subject, content
	return f.err
}

func TestAlerterLowStock(t *testing.T) {
	mail := &fakeMail{}
	m := metrics.New("test", "alerts", prometheus.NewRegistry())
	a := NewAlerter(mail, "ops@example.com", m, zerolog.Nop())

	alert, err := a.LowStock(context.Background(), []model.Medicine{
		{Name: "Panadol", Strength: "500mg", StockQuantity: 40, ReorderLevel: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, model.NotificationStatusSent, alert.Status)
	assert.Equal(t, "ops@example.com", mail.to)
	assert.Contains(t, mail.subject, "1 medicine")
	assert.Contains(t, mail.content, "- Panadol 500mg: 40 in stock (reorder at 50)")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.AlertsSent.WithLabelValues("sent")))

	mail.err = errors.New("smtp down")
	alert, err = a.LowStock(context.Background(), nil)
	assert.Error(t, err)
	assert.Equal(t, model.NotificationStatusFailed, alert.Status)
	assert.Equal(t, "smtp down", alert.LastError)
}

func TestAlerterDisabled(t *testing.T) {
	a := NewAlerter(&fakeMail{}, "", nil, zerolog.Nop())
	assert.False(t, a.Enabled())
	_, err := a.LowStock(context.Background(), nil)
	assert.Error(t, err)
}
