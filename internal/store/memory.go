package store

import (
	"context"
	"sync"
	"time"

	"pledgewatch/internal/domain"
	"pledgewatch/pkg/platform/sentinel"
	pstrings "pledgewatch/pkg/platform/strings"
)

// Memory is the in-memory store used by service tests and local runs. One
// mutex covers evidence and promises so a link op lands on both sides or
// neither, matching the postgres transaction semantics.
type Memory struct {
	mu         sync.RWMutex
	evidence   map[string]domain.Evidence
	promises   map[string]domain.Promise
	billStates map[string]domain.BillState
}

func NewMemory() *Memory {
	return &Memory{
		evidence:   make(map[string]domain.Evidence),
		promises:   make(map[string]domain.Promise),
		billStates: make(map[string]domain.BillState),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) GetEvidence(_ context.Context, id string) (domain.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if ev, ok := m.evidence[id]; ok {
		return ev, nil
	}
	return domain.Evidence{}, sentinel.ErrNotFound
}

func (m *Memory) PutEvidence(_ context.Context, ev domain.Evidence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.evidence[ev.ID]; ok {
		// Merge semantics: link state and creation time survive overwrites.
		ev.PromiseIDs = pstrings.Union(existing.PromiseIDs, ev.PromiseIDs)
		ev.CreatedAt = existing.CreatedAt
	} else {
		ev.CreatedAt = now
	}
	ev.UpdatedAt = now
	m.evidence[ev.ID] = ev
	return nil
}

func (m *Memory) EvidenceExists(_ context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.evidence[id]
	return ok, nil
}

func (m *Memory) StageIDs(_ context.Context, billKey string) (map[domain.StageID]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[domain.StageID]struct{})
	for _, ev := range m.evidence {
		if ev.BillKey == billKey && ev.StageID != "" {
			out[ev.StageID] = struct{}{}
		}
	}
	return out, nil
}

func (m *Memory) ListEvidenceBySource(_ context.Context, source domain.SourceType, limit int) ([]domain.Evidence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Evidence
	for _, ev := range m.evidence {
		if ev.Source == source {
			out = append(out, ev)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) GetPromise(_ context.Context, id string) (domain.Promise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.promises[id]; ok {
		return p, nil
	}
	return domain.Promise{}, sentinel.ErrNotFound
}

func (m *Memory) PutPromise(_ context.Context, p domain.Promise) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.promises[p.ID]; ok {
		p.EvidenceIDs = pstrings.Union(existing.EvidenceIDs, p.EvidenceIDs)
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.promises[p.ID] = p
	return nil
}

func (m *Memory) ListPromises(_ context.Context) ([]domain.Promise, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Promise, 0, len(m.promises))
	for _, p := range m.promises {
		out = append(out, p)
	}
	return out, nil
}

func (m *Memory) GetBillState(_ context.Context, key domain.BillKey) (domain.BillState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.billStates[key.String()]; ok {
		return s, nil
	}
	return domain.BillState{}, sentinel.ErrNotFound
}

func (m *Memory) PutBillState(_ context.Context, state domain.BillState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = time.Now()
	m.billStates[state.Key.String()] = state
	return nil
}

func (m *Memory) ApplyLinks(ctx context.Context, ops []LinkOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		if err := m.applyLocked(op); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ApplyLink(_ context.Context, op LinkOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(op)
}

// applyLocked updates both reference lists under the caller-held lock.
// Both documents must exist: a link to a missing side is a defect, not a
// partial success.
func (m *Memory) applyLocked(op LinkOp) error {
	ev, ok := m.evidence[op.EvidenceID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p, ok := m.promises[op.PromiseID]
	if !ok {
		return sentinel.ErrNotFound
	}

	now := time.Now()
	if op.Remove {
		ev.PromiseIDs = pstrings.Remove(ev.PromiseIDs, []string{op.PromiseID})
		p.EvidenceIDs = pstrings.Remove(p.EvidenceIDs, []string{op.EvidenceID})
	} else {
		ev.PromiseIDs = pstrings.Union(ev.PromiseIDs, []string{op.PromiseID})
		p.EvidenceIDs = pstrings.Union(p.EvidenceIDs, []string{op.EvidenceID})
	}
	ev.UpdatedAt = now
	p.UpdatedAt = now
	m.evidence[op.EvidenceID] = ev
	m.promises[op.PromiseID] = p
	return nil
}
