package genclient

import (
	"context"
	"sync/atomic"
)

// Completer wraps an external text-generation model. Implementations are
// stateless and safe to call concurrently for independent requests.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	ModelID() string
}

// CallBudget is the one piece of mutable shared state in the pipeline: an
// atomic counter charged once per call attempt (repair attempts included),
// enforcing a per-job or global limit against the external model. A zero
// limit means unlimited.
type CallBudget struct {
	limit int64
	used  atomic.Int64
}

func NewCallBudget(limit int64) *CallBudget {
	return &CallBudget{limit: limit}
}

// Acquire charges one call. Exhaustion surfaces as KindUnavailable so it
// consumes the caller's retry budget like any other quota failure.
func (b *CallBudget) Acquire() error {
	if b == nil || b.limit <= 0 {
		if b != nil {
			b.used.Add(1)
		}
		return nil
	}
	if b.used.Add(1) > b.limit {
		b.used.Add(-1)
		return Errorf(KindUnavailable, "call budget exhausted (limit %d)", b.limit)
	}
	return nil
}

// Used reports how many calls have been charged.
func (b *CallBudget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used.Load()
}
