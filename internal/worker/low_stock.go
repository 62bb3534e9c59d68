package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/pharmacy"
	"github.com/jwalitptl/care-portal/pkg/backend"
	"github.com/jwalitptl/care-portal/pkg/messaging"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

// MedicineSource lists the inventory.
type MedicineSource interface {
	ListMedicines(ctx context.Context, s backend.Session) ([]model.Medicine, error)
}

// LowStockAlerter delivers the low-stock report.
type LowStockAlerter interface {
	Enabled() bool
	LowStock(ctx context.Context, items []model.Medicine) (model.Alert, error)
}

// AlertLog records every alert attempt. Optional.
type AlertLog interface {
	Create(ctx context.Context, alert *model.Alert) error
	ListRecent(ctx context.Context, kind string, limit int) ([]*model.Alert, error)
}

type LowStockWorkerConfig struct {
	Interval time.Duration
	Session  backend.Session
	// Channels trigger an early check when a stock event arrives. Optional.
	Channels []string
}

// LowStockWorker checks the inventory on a ticker and on stock events, and
// alerts once per distinct low-stock set.
type LowStockWorker struct {
	source  MedicineSource
	alerter LowStockAlerter
	broker  messaging.Broker
	history AlertLog
	config  LowStockWorkerConfig
	metrics *metrics.Metrics
	log     zerolog.Logger

	lastAlerted string
}

func NewLowStockWorker(
	source MedicineSource,
	alerter LowStockAlerter,
	broker messaging.Broker,
	config LowStockWorkerConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LowStockWorker {
	if config.Interval <= 0 {
		config.Interval = 15 * time.Minute
	}
	return &LowStockWorker{
		source:  source,
		alerter: alerter,
		broker:  broker,
		config:  config,
		metrics: m,
		log:     log.With().Str("worker", "low_stock").Logger(),
	}
}

// WithAlertLog records alerts in history and resumes from the last set
// alerted before a restart.
func (w *LowStockWorker) WithAlertLog(history AlertLog) *LowStockWorker {
	w.history = history
	return w
}

func (w *LowStockWorker) Start(ctx context.Context) {
	w.resume(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	events := w.subscribe(ctx)

	w.log.Info().Dur("interval", w.config.Interval).Msg("starting low stock worker")
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("shutting down low stock worker")
			return
		case <-ticker.C:
			w.run(ctx)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.run(ctx)
		}
	}
}

// subscribe merges the configured channels into one trigger channel. A nil
// channel blocks forever, which leaves only the ticker.
func (w *LowStockWorker) subscribe(ctx context.Context) <-chan []byte {
	if w.broker == nil || len(w.config.Channels) == 0 {
		return nil
	}
	out := make(chan []byte, 1)
	for _, channel := range w.config.Channels {
		ch, err := w.broker.Subscribe(ctx, channel)
		if err != nil {
			w.log.Error().Err(err).Str("channel", channel).Msg("failed to subscribe")
			continue
		}
		go func(ch <-chan []byte) {
			for msg := range ch {
				select {
				case out <- msg:
				default:
				}
			}
		}(ch)
	}
	return out
}

func (w *LowStockWorker) run(ctx context.Context) {
	if _, err := w.Check(ctx); err != nil {
		w.log.Error().Err(err).Msg("low stock check failed")
	}
}

// Check computes the low-stock set and alerts when it is non-empty and
// differs from the last set alerted. It returns the current set.
func (w *LowStockWorker) Check(ctx context.Context) ([]model.Medicine, error) {
	medicines, err := w.source.ListMedicines(ctx, w.config.Session)
	if err != nil {
		return nil, fmt.Errorf("failed to list medicines: %w", err)
	}

	low := pharmacy.LowStock(medicines)
	if w.metrics != nil {
		w.metrics.LowStockItems.Set(float64(len(low)))
	}

	key := fingerprint(low)
	if len(low) == 0 {
		if w.lastAlerted != "" {
			w.record(ctx, &model.Alert{
				ID:        uuid.New(),
				Kind:      model.AlertKindLowStock,
				Subject:   "Low stock cleared",
				Status:    model.NotificationStatusCleared,
				CreatedAt: time.Now(),
			})
		}
		w.lastAlerted = ""
		return low, nil
	}
	if key == w.lastAlerted || !w.alerter.Enabled() {
		return low, nil
	}

	alert, err := w.alerter.LowStock(ctx, low)
	alert.Fingerprint = key
	w.record(ctx, &alert)
	if err != nil {
		return low, fmt.Errorf("failed to send low stock alert: %w", err)
	}
	w.lastAlerted = key
	return low, nil
}

func (w *LowStockWorker) record(ctx context.Context, alert *model.Alert) {
	if w.history == nil {
		return
	}
	if err := w.history.Create(ctx, alert); err != nil {
		w.log.Warn().Err(err).Str("alert_id", alert.ID.String()).Msg("failed to record alert")
	}
}

// resume seeds the last alerted set from the newest sent alert or cleared
// marker. A cleared marker re-arms the worker.
func (w *LowStockWorker) resume(ctx context.Context) {
	if w.history == nil {
		return
	}
	recent, err := w.history.ListRecent(ctx, model.AlertKindLowStock, 10)
	if err != nil {
		w.log.Warn().Err(err).Msg("failed to load alert history")
		return
	}
	for _, a := range recent {
		switch a.Status {
		case model.NotificationStatusSent:
			w.lastAlerted = a.Fingerprint
			return
		case model.NotificationStatusCleared:
			w.lastAlerted = ""
			return
		}
	}
}

func fingerprint(items []model.Medicine) string {
	ids := make([]string, 0, len(items))
	for _, m := range items {
		ids = append(ids, m.ID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
