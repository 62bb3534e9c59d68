package pharmacy

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/care-portal/internal/model"
)

const defaultViewTTL = 30 * time.Minute

// ViewStore holds the pending-prescription list each open pharmacy view is
// showing, so lookups can merge into it.
type ViewStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewViewStore(ttl time.Duration) *ViewStore {
	if ttl <= 0 {
		ttl = defaultViewTTL
	}
	return &ViewStore{cache: cache.New(ttl, ttl)}
}

func (v *ViewStore) Set(viewID string, pending []model.Prescription) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache.SetDefault(viewID, clonePending(pending))
}

func (v *ViewStore) Get(viewID string) ([]model.Prescription, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	list, ok := v.cache.Get(viewID)
	if !ok {
		return nil, false
	}
	return clonePending(list.([]model.Prescription)), true
}

// Merge puts p at the front of the view's list unless a prescription with
// the same id is already there, and returns the resulting list.
func (v *ViewStore) Merge(viewID string, p model.Prescription) []model.Prescription {
	v.mu.Lock()
	defer v.mu.Unlock()

	var list []model.Prescription
	if cur, ok := v.cache.Get(viewID); ok {
		list = cur.([]model.Prescription)
	}
	if !model.ContainsPrescription(list, p.ID) {
		next := make([]model.Prescription, 0, len(list)+1)
		next = append(next, p)
		list = append(next, list...)
	}
	v.cache.SetDefault(viewID, list)
	return clonePending(list)
}

func clonePending(list []model.Prescription) []model.Prescription {
	out := make([]model.Prescription, len(list))
	copy(out, list)
	return out
}
