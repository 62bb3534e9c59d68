package pharmacy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

const DefaultScanIdleTTL = 5 * time.Minute

// LookupFunc resolves a scanned prescription id for a view.
type LookupFunc func(ctx context.Context, sess backend.Session, viewID, id string) (model.Prescription, []model.Prescription, error)

// DecodeFunc turns one camera frame into QR text.
type DecodeFunc func(frame []byte) (string, error)

type scanSession struct {
	viewID    string
	startedAt time.Time
}

// Scanner owns the QR capture sessions. Each view has at most one session;
// it ends when a code resolves, when its lookup fails, on Stop, on Close, or
// after sitting idle.
type Scanner struct {
	mu       sync.Mutex
	sessions *cache.Cache
	idleTTL  time.Duration
	closed   bool

	lookup  LookupFunc
	decode  DecodeFunc
	metrics *metrics.Metrics
	log     zerolog.Logger
}

type ScannerOption func(*Scanner)

func WithDecoder(d DecodeFunc) ScannerOption {
	return func(s *Scanner) { s.decode = d }
}

func WithScanMetrics(m *metrics.Metrics) ScannerOption {
	return func(s *Scanner) { s.metrics = m }
}

func NewScanner(lookup LookupFunc, idleTTL time.Duration, log zerolog.Logger, opts ...ScannerOption) *Scanner {
	if idleTTL <= 0 {
		idleTTL = DefaultScanIdleTTL
	}
	s := &Scanner{
		sessions: cache.New(idleTTL, idleTTL/2),
		idleTTL:  idleTTL,
		lookup:   lookup,
		decode:   qr.DecodeBytes,
		log:      log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sessions.OnEvicted(func(viewID string, _ interface{}) {
		s.log.Debug().Str("view_id", viewID).Msg("scan session ended")
		s.updateGauge()
	})
	return s
}

// Start opens the capture session for viewID.
func (s *Scanner) Start(viewID string) error {
	if viewID == "" {
		return apperrors.Validation("view id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.Conflict("scanner is shut down")
	}
	if err := s.sessions.Add(viewID, &scanSession{viewID: viewID, startedAt: time.Now()}, s.idleTTL); err != nil {
		return apperrors.Conflict(fmt.Sprintf("a scan is already running for view %s", viewID))
	}
	s.updateGauge()
	s.log.Debug().Str("view_id", viewID).Msg("scan session started")
	return nil
}

// Active reports whether viewID has an open session.
func (s *Scanner) Active(viewID string) bool {
	_, ok := s.sessions.Get(viewID)
	return ok
}

// Stop ends the session for viewID. It reports whether one was running.
func (s *Scanner) Stop(viewID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end(viewID)
}

// end must be called with mu held.
func (s *Scanner) end(viewID string) bool {
	if _, ok := s.sessions.Get(viewID); !ok {
		return false
	}
	s.sessions.Delete(viewID)
	return true
}

// Close force-stops every session; later Starts fail.
func (s *Scanner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.sessions.Flush()
	s.updateGauge()
}

// SubmitFrame feeds one camera frame to the view's session. Frames without a
// readable code are normal while the camera is moving: they are logged and
// reported as still scanning. The first frame with a code ends the session,
// whatever the lookup outcome.
func (s *Scanner) SubmitFrame(ctx context.Context, sess backend.Session, viewID string, frame []byte) (model.ScanResult, error) {
	s.mu.Lock()
	if !s.touch(viewID) {
		s.mu.Unlock()
		return model.ScanResult{}, apperrors.Conflict("no scan is running for this view")
	}
	s.mu.Unlock()

	text, err := s.decode(frame)
	if err != nil {
		s.countFrame("miss")
		s.log.Debug().Err(err).Str("view_id", viewID).Msg("qr decode miss")
		return model.ScanResult{State: model.ScanScanning}, nil
	}

	// Only one frame may claim the session.
	s.mu.Lock()
	claimed := s.end(viewID)
	s.mu.Unlock()
	if !claimed {
		return model.ScanResult{}, apperrors.Conflict("no scan is running for this view")
	}

	id := qr.ParsePayload(text)
	p, pending, err := s.lookup(ctx, sess, viewID, id)
	if err != nil {
		s.countFrame("lookup_failed")
		msg := "Prescription not found"
		if appErr, ok := apperrors.As(err); ok && appErr.Code == apperrors.ErrServer && appErr.Message != "" {
			msg = appErr.Message
		}
		return model.ScanResult{State: model.ScanFailed, PrescriptionID: id, Message: msg}, nil
	}

	s.countFrame("found")
	return model.ScanResult{
		State:          model.ScanFound,
		PrescriptionID: id,
		Prescription:   &p,
		Pending:        pending,
		Message:        fmt.Sprintf("Prescription found for %s!", p.PatientName),
	}, nil
}

// touch refreshes the idle timer. Must be called with mu held.
func (s *Scanner) touch(viewID string) bool {
	v, ok := s.sessions.Get(viewID)
	if !ok {
		return false
	}
	s.sessions.Set(viewID, v, s.idleTTL)
	return true
}

func (s *Scanner) countFrame(result string) {
	if s.metrics != nil {
		s.metrics.ScanFrames.WithLabelValues(result).Inc()
	}
}

func (s *Scanner) updateGauge() {
	if s.metrics != nil {
		s.metrics.ScanSessions.Set(float64(s.sessions.ItemCount()))
	}
}
