package pharmacy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/pkg/backend"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/qr"
)

// textDecoder treats the frame bytes as the decoded text; an empty frame has no code.
func textDecoder(frame []byte) (string, error) {
	if len(frame) == 0 {
		return "", qr.ErrNoCode
	}
	return string(frame), nil
}

type lookupCall struct {
	viewID, id string
}

func stubLookup(calls *[]lookupCall, mu *sync.Mutex, err error) LookupFunc {
	return func(_ context.Context, _ backend.Session, viewID, id string) (model.Prescription, []model.Prescription, error) {
		mu.Lock()
		*calls = append(*calls, lookupCall{viewID, id})
		mu.Unlock()
		if err != nil {
			return model.Prescription{}, nil, err
		}
		p := model.Prescription{ID: id, PatientName: "Asha"}
		return p, []model.Prescription{p, {ID: "older"}}, nil
	}
}

func TestScannerSingleSessionPerView(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))

	require.NoError(t, s.Start("v1"))
	err := s.Start("v1")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	require.NoError(t, s.Start("v2"))

	assert.True(t, s.Stop("v1"))
	assert.False(t, s.Stop("v1"))
	require.NoError(t, s.Start("v1"))

	assert.True(t, apperrors.Is(s.Start(""), apperrors.ErrValidation))
}

func TestScannerMissKeepsScanning(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	m := metrics.New("test", "scan", prometheus.NewRegistry())
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder), WithScanMetrics(m))
	require.NoError(t, s.Start("v1"))

	for i := 0; i < 3; i++ {
		res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", nil)
		require.NoError(t, err)
		assert.Equal(t, model.ScanScanning, res.State)
	}
	assert.True(t, s.Active("v1"))
	assert.Empty(t, calls)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ScanFrames.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ScanSessions))
}

func TestScannerFoundEndsSession(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))
	require.NoError(t, s.Start("v1"))

	res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", []byte(`{"prescriptionId":"rx-42"}`))
	require.NoError(t, err)
	assert.Equal(t, model.ScanFound, res.State)
	assert.Equal(t, "rx-42", res.PrescriptionID)
	require.NotNil(t, res.Prescription)
	assert.Equal(t, "Prescription found for Asha!", res.Message)
	assert.Len(t, res.Pending, 2)
	assert.Equal(t, []lookupCall{{"v1", "rx-42"}}, calls)

	assert.False(t, s.Active("v1"))
	_, err = s.SubmitFrame(context.Background(), pharmacist, "v1", []byte("rx-43"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestScannerRawTextPayload(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))
	require.NoError(t, s.Start("v1"))

	res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", []byte("64f1c2"))
	require.NoError(t, err)
	assert.Equal(t, "64f1c2", res.PrescriptionID)
}

func TestScannerLookupFailureEndsSession(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"server message", apperrors.Server(http.StatusNotFound, "No such prescription"), "No such prescription"},
		{"transport", apperrors.Transport("prescriptions.get", errors.New("refused")), "Prescription not found"},
		{"not found", apperrors.NotFound("prescription", nil), "Prescription not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []lookupCall
			var mu sync.Mutex
			s := NewScanner(stubLookup(&calls, &mu, tt.err), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))
			require.NoError(t, s.Start("v1"))

			res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", []byte("rx-1"))
			require.NoError(t, err)
			assert.Equal(t, model.ScanFailed, res.State)
			assert.Equal(t, tt.wantMsg, res.Message)
			assert.Nil(t, res.Prescription)
			assert.False(t, s.Active("v1"))
		})
	}
}

func TestScannerOnlyOneFrameClaimsSession(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))
	require.NoError(t, s.Start("v1"))

	const frames = 8
	var wg sync.WaitGroup
	results := make(chan model.ScanResult, frames)
	for i := 0; i < frames; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", []byte("rx-1"))
			if err == nil {
				results <- res
			}
		}()
	}
	wg.Wait()
	close(results)

	found := 0
	for res := range results {
		if res.State == model.ScanFound {
			found++
		}
	}
	assert.Equal(t, 1, found)
	assert.Len(t, calls, 1)
}

func TestScannerCloseStopsEverything(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop(), WithDecoder(textDecoder))
	require.NoError(t, s.Start("v1"))
	require.NoError(t, s.Start("v2"))

	s.Close()
	assert.False(t, s.Active("v1"))
	assert.False(t, s.Active("v2"))
	assert.True(t, apperrors.Is(s.Start("v3"), apperrors.ErrConflict))
}

func TestScannerIdleSessionExpires(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), 40*time.Millisecond, zerolog.Nop(), WithDecoder(textDecoder))
	require.NoError(t, s.Start("v1"))

	assert.Eventually(t, func() bool { return !s.Active("v1") }, time.Second, 10*time.Millisecond)
	require.NoError(t, s.Start("v1"))
}

func TestScannerDecodesRealFrames(t *testing.T) {
	var calls []lookupCall
	var mu sync.Mutex
	s := NewScanner(stubLookup(&calls, &mu, nil), time.Minute, zerolog.Nop())
	require.NoError(t, s.Start("v1"))

	frame, err := qr.Encode("rx-real", qr.DefaultSize)
	require.NoError(t, err)

	res, err := s.SubmitFrame(context.Background(), pharmacist, "v1", frame)
	require.NoError(t, err)
	assert.Equal(t, model.ScanFound, res.State)
	assert.Equal(t, "rx-real", res.PrescriptionID)
}
