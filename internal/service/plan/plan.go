package plan

import (
	"context"
	"sync"
)

// Plan describes a user's messaging entitlement. Subscription checkout is an
// external concern; the engine only consumes the lookup.
type Plan struct {
	Unlimited  bool `json:"unlimited"`
	DailyLimit int  `json:"dailyLimit"`
}

// Service resolves the plan for a user.
type Service interface {
	GetPlan(ctx context.Context, userID string) (Plan, error)
}

// StaticService serves a default plan with per-user overrides. Stands in for
// the real subscription backend.
type StaticService struct {
	mu        sync.RWMutex
	def       Plan
	overrides map[string]Plan
}

// NewStaticService 创建静态套餐服务。
func NewStaticService(defaultPlan Plan) *StaticService {
	return &StaticService{
		def:       defaultPlan,
		overrides: make(map[string]Plan),
	}
}

// GetPlan returns the override for the user when present, the default plan
// otherwise.
func (s *StaticService) GetPlan(_ context.Context, userID string) (Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.overrides[userID]; ok {
		return p, nil
	}
	return s.def, nil
}

// SetPlan installs a per-user override.
func (s *StaticService) SetPlan(userID string, p Plan) {
	s.mu.Lock()
	s.overrides[userID] = p
	s.mu.Unlock()
}
