package billing

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. All operations hold a single mutex,
// which makes every upsert trivially atomic.
type MemoryStore struct {
	mu         sync.Mutex
	byUser     map[string]*Subscription
	bySub      map[string]string // subscription id -> user id
	byCustomer map[string]string // customer id -> user id
	now        func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser:     make(map[string]*Subscription),
		bySub:      make(map[string]string),
		byCustomer: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) GetByUser(_ context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub, ok := s.byUser[userID]; ok {
		return sub.Clone(), nil
	}
	return FreeSubscription(userID), nil
}

func (s *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.bySub[subscriptionID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return s.byUser[userID].Clone(), nil
}

func (s *MemoryStore) EnsureCustomer(_ context.Context, userID, customerID string) (string, error) {
	if userID == "" {
		return "", ErrMissingUserID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.byUser[userID]
	if !ok {
		now := s.now()
		sub = &Subscription{
			UserID:    userID,
			Plan:      PlanFree,
			Status:    StatusNone,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.byUser[userID] = sub
	}
	if sub.CustomerID == "" {
		sub.CustomerID = customerID
		sub.UpdatedAt = s.now()
		s.byCustomer[customerID] = userID
	}
	return sub.CustomerID, nil
}

func (s *MemoryStore) Upsert(_ context.Context, c Change) (*Subscription, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.find(c)
	if current == nil && c.UserID == "" {
		return nil, false, ErrSubscriptionNotAttributable
	}

	next, applied := Merge(current, c, s.now())
	if !applied {
		return next, false, nil
	}

	if current != nil && current.SubscriptionID != "" && current.SubscriptionID != next.SubscriptionID {
		delete(s.bySub, current.SubscriptionID)
	}
	s.byUser[next.UserID] = next
	if next.SubscriptionID != "" {
		s.bySub[next.SubscriptionID] = next.UserID
	}
	if next.CustomerID != "" {
		s.byCustomer[next.CustomerID] = next.UserID
	}
	return next.Clone(), true, nil
}

func (s *MemoryStore) find(c Change) *Subscription {
	for _, l := range c.Lookups() {
		var userID string
		switch l.Field {
		case LookupSubscriptionID:
			userID = s.bySub[l.Value]
		case LookupCustomerID:
			userID = s.byCustomer[l.Value]
		case LookupUserID:
			userID = l.Value
		}
		if sub, ok := s.byUser[userID]; ok {
			return sub
		}
	}
	return nil
}
