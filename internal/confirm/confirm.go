// Package confirm issues single-use tokens that gate destructive operations.
// A delete is a two-step exchange: request a token, then confirm with it.
package confirm

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

const DefaultTTL = 2 * time.Minute

// Kinds of confirmable operations.
const (
	KindDeleteRecord   = "delete_record"
	KindDeleteMedicine = "delete_medicine"
)

// Pending is what a token stands for.
type Pending struct {
	Kind  string `json:"kind"`
	Actor string `json:"-"`
	// TargetID is the entity to delete; Scope is its parent, e.g. the appointment of a record.
	TargetID  string    `json:"targetId"`
	Scope     string    `json:"scope,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Store struct {
	mu      sync.Mutex
	cache   *cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewStore creates a token store. m may be nil.
func NewStore(ttl time.Duration, m *metrics.Metrics) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		cache:   cache.New(ttl, ttl),
		ttl:     ttl,
		metrics: m,
	}
}

// Issue records a pending operation and returns it with its token.
func (s *Store) Issue(kind, actor, targetID, scope string) Pending {
	p := Pending{
		Kind:      kind,
		Actor:     actor,
		TargetID:  targetID,
		Scope:     scope,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	s.cache.Set(p.Token, p, s.ttl)
	if s.metrics != nil {
		s.metrics.ConfirmationsIssued.WithLabelValues(kind).Inc()
	}
	return p
}

// Consume redeems token for kind and actor. A token works once; a token of
// another kind or actor is rejected and stays unused.
func (s *Store) Consume(kind, actor, token string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(token)
	if !ok {
		return Pending{}, apperrors.Validation("confirmation token is invalid or expired")
	}
	p := v.(Pending)
	if p.Kind != kind || p.Actor != actor {
		return Pending{}, apperrors.Validation("confirmation token is invalid or expired")
	}
	s.cache.Delete(token)
	return p, nil
}
