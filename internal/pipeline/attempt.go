package pipeline

import (
	"context"
	"time"

	"github.com/GaneshTappiti/notes-to-material/internal/genclient"
	"github.com/GaneshTappiti/notes-to-material/internal/prompt"
)

// attemptState makes the retry/repair loop an explicit state machine with
// counted transitions, so attempt budgets are directly testable.
type attemptState int

const (
	statePending attemptState = iota
	stateParseFailed
	stateValid
	stateFailed
)

func (s attemptState) String() string {
	switch s {
	case statePending:
		return "PENDING"
	case stateParseFailed:
		return "PARSE_FAILED"
	case stateValid:
		return "VALID"
	case stateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

type attemptResult struct {
	state    attemptState
	payload  *Payload
	raw      string
	calls    int // total generation client calls made
	repairs  int // repair calls within calls
	template string
	lastErr  error
}

const baseBackoff = 500 * time.Millisecond

// runAttempts drives one item's generation through the retry and repair
// budgets:
//   - transient (Unavailable) failures retry the same prompt with
//     exponential backoff, capped at MaxAttempts total transport tries
//   - unparseable output enters the repair sub-loop, capped at
//     MaxRepairAttempts additional calls, each carrying the prior bad output
//
// Cancellation stops new calls; an in-flight call runs to completion or
// timeout and a timed-out call counts as Unavailable.
func (p *Pipeline) runAttempts(ctx context.Context, req prompt.GenerationRequest) attemptResult {
	res := attemptResult{state: statePending, template: req.TemplateID}
	currentPrompt := req.Prompt
	transportTries := 0

	for {
		if ctx.Err() != nil {
			res.lastErr = genclient.NewError(genclient.KindUnavailable, ctx.Err())
			res.state = stateFailed
			return res
		}

		if err := p.budget.Acquire(); err != nil {
			res.lastErr = err
			res.state = stateFailed
			return res
		}

		raw, err := p.client.Complete(ctx, currentPrompt)
		res.calls++

		if err != nil && genclient.IsUnavailable(err) {
			transportTries++
			res.lastErr = err
			if transportTries >= p.cfg.MaxAttempts {
				res.state = stateFailed
				return res
			}
			p.sleep(baseBackoff << (transportTries - 1))
			continue
		}
		if err != nil && genclient.IsInvalidArgument(err) {
			res.lastErr = err
			res.state = stateFailed
			return res
		}
		// KindMalformed client errors fall through with empty raw output and
		// take the same repair path as unparseable text.

		res.raw = raw
		payload, perr := ParsePayload(raw)
		if perr == nil {
			res.payload = payload
			res.state = stateValid
			return res
		}

		res.state = stateParseFailed
		res.lastErr = perr
		if res.repairs >= p.cfg.MaxRepairAttempts {
			res.state = stateFailed
			return res
		}
		res.repairs++
		res.template = prompt.RepairTemplateID
		currentPrompt = p.prompts.BuildRepairPrompt(req, raw, perr)
	}
}
