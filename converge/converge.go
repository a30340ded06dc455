// Package converge drives a root element to a fixed point: render, apply
// via a Provider, inject outputs back as signals, and re-render, until one
// full pass produces no new instance nodes and no output changed. It then
// destroys nodes absent from the final pass (spec §4.7).
package converge

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/provider"
	"github.com/creact-labs/creact/reconcile"
	"github.com/creact-labs/creact/render"
)

// defaultMaxIterations is the spec's "implementation-defined, e.g., 50"
// hard cap on render/apply rounds (spec §4.4).
const defaultMaxIterations = 50

// RetryPolicy governs how Loop responds to a failed Provider.Apply.
// MaxAttempts <= 1 means no retry: the first failure aborts the batch.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Options configures a Loop run.
type Options struct {
	// MaxIterations bounds the render/apply rounds before Loop gives up
	// with a ConvergenceError. Zero means defaultMaxIterations.
	MaxIterations int
	Retry         RetryPolicy
}

func (o Options) maxIterations() int {
	if o.MaxIterations <= 0 {
		return defaultMaxIterations
	}
	return o.MaxIterations
}

// Result is what one Loop call settles on: the live node set, the ChangeSet
// from the last reconcile against the original previous list, and how many
// render/apply rounds it took.
type Result struct {
	Nodes      []*instance.Node
	ChangeSet  *reconcile.ChangeSet
	Iterations int
}

// ConvergenceError marks a run that never reached a fixed point within the
// configured iteration cap (spec §4.4).
type ConvergenceError struct {
	Iterations int
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence did not settle within %d iterations", e.Iterations)
}

// Loop renders root, applies the resulting instance nodes via prv, injects
// outputs, and re-renders until the pass is structurally stable and no
// output changed, then destroys nodes absent from the final pass. previous
// seeds the first pass's hydration and is also the baseline every pass
// reconciles against, so a node's create/update/noop classification never
// changes mid-run even as new nodes materialize out of placeholder state.
// Noop nodes are never passed to prv.Apply — they are, by definition,
// unchanged from the persisted baseline, so a converge run over an
// already-settled tree makes no provider calls at all.
//
// On context cancellation, Loop stops issuing new applies at the next batch
// boundary and returns the partial result alongside ctx.Err(), so a caller
// with a persistence backend can checkpoint what was already applied.
func Loop(ctx context.Context, log logr.Logger, prv provider.Provider, root element.Element, previous []*instance.Node, opts Options) (*Result, error) {
	hydration := previous
	applied := make(map[string]bool)
	var lastPass []*instance.Node
	var cs *reconcile.ChangeSet
	iterations := 0

	for iteration := 1; ; iteration++ {
		if iteration > opts.maxIterations() {
			return &Result{Nodes: lastPass, ChangeSet: cs, Iterations: iteration - 1}, &ConvergenceError{Iterations: iteration - 1}
		}
		iterations = iteration

		renderer := render.NewRenderer(log)
		current := renderer.Render(root, hydration)

		diff, err := reconcile.Diff(previous, current)
		if err != nil {
			renderer.Dispose()
			return nil, errors.Wrap(err, "reconcile")
		}
		cs = diff

		noop := make(map[string]bool, len(diff.Noops))
		for _, n := range diff.Noops {
			noop[n.ID] = true
		}

		anyApplied := false
		for _, batch := range diff.ParallelBatches {
			select {
			case <-ctx.Done():
				renderer.Dispose()
				return &Result{Nodes: current, ChangeSet: cs, Iterations: iteration}, ctx.Err()
			default:
			}

			pending := make([]*instance.Node, 0, len(batch))
			for _, n := range batch {
				if !applied[n.ID] && !noop[n.ID] {
					pending = append(pending, n)
				}
			}
			if len(pending) == 0 {
				continue
			}

			if err := applyBatch(ctx, log, prv, pending, opts.Retry, applied); err != nil {
				renderer.Dispose()
				return &Result{Nodes: current, ChangeSet: cs, Iterations: iteration}, err
			}
			anyApplied = true
		}

		settled := !anyApplied && sameNodeSet(lastPass, current)
		lastPass = current
		renderer.Dispose()

		if settled {
			break
		}
		hydration = current
	}

	deletes, err := reconcile.DeleteOrder(cs.Deletes)
	if err != nil {
		return nil, errors.Wrap(err, "order deletes")
	}

	for _, n := range deletes {
		select {
		case <-ctx.Done():
			return &Result{Nodes: lastPass, ChangeSet: cs, Iterations: iterations}, ctx.Err()
		default:
		}
		if err := prv.Destroy(ctx, n); err != nil {
			return nil, errors.Wrap(&provider.DestroyError{NodeID: n.ID, Err: err}, "destroy")
		}
		log.V(1).Info("destroyed node", "id", n.ID)
	}

	return &Result{Nodes: lastPass, ChangeSet: cs, Iterations: iterations}, nil
}

// applyBatch runs prv.Apply for every node in pending concurrently,
// aggregating any failures with go-multierror rather than discarding all
// but the first (spec §7: provider failures are per-node and recoverable).
// A failed node gets no outputs and stays unapplied. Nodes that succeed mark
// themselves in applied and have their outputs written inside a single
// batch (spec §4.7 step 6), even when another node of the same batch
// failed; any failure makes applyBatch return an error once the whole batch
// has finished.
func applyBatch(ctx context.Context, log logr.Logger, prv provider.Provider, pending []*instance.Node, retry RetryPolicy, applied map[string]bool) error {
	var wg sync.WaitGroup
	errs := make([]error, len(pending))

	for i, n := range pending {
		wg.Add(1)
		go func(i int, n *instance.Node) {
			defer wg.Done()
			outputs, err := applyWithRetry(ctx, prv, n, retry)
			if err != nil {
				errs[i] = &provider.ApplyError{NodeID: n.ID, Err: err}
				return
			}
			n.SetOutputs(outputs)
		}(i, n)
	}
	wg.Wait()

	var result error
	for i, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		applied[pending[i].ID] = true
		log.V(1).Info("applied node", "id", pending[i].ID)
	}
	if result != nil {
		return errors.Wrap(result, "apply batch failed")
	}
	return nil
}

// applyWithRetry calls prv.Apply, retrying per retry's policy. With no
// Backoff configured, retries happen immediately; MaxAttempts <= 1 means a
// single attempt, matching spec §7's "may retry... or mark the node
// failed" — retrying is the caller's choice, not a mandate.
func applyWithRetry(ctx context.Context, prv provider.Provider, n *instance.Node, retry RetryPolicy) (map[string]any, error) {
	var lastErr error
	for attempt := 1; attempt <= retry.attempts(); attempt++ {
		outputs, err := prv.Apply(ctx, n)
		if err == nil {
			return outputs, nil
		}
		lastErr = err

		if attempt < retry.attempts() && retry.Backoff != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retry.Backoff(attempt)):
			}
		}
	}
	return nil, lastErr
}

// sameNodeSet reports whether a and b carry the same ids with the same
// construct type, path and props — the "structurally identical" half of
// the fixed-point check (spec §4.4, §4.7). reflect.DeepEqual tolerates the
// cyclic prop maps reconcile.Diff already has to handle.
func sameNodeSet(a, b []*instance.Node) bool {
	if len(a) != len(b) {
		return false
	}

	byID := make(map[string]*instance.Node, len(a))
	for _, n := range a {
		byID[n.ID] = n
	}

	for _, n := range b {
		prev, ok := byID[n.ID]
		if !ok {
			return false
		}
		if !nodeShapeEqual(prev, n) {
			return false
		}
	}
	return true
}

func nodeShapeEqual(a, b *instance.Node) bool {
	return a.ConstructType == b.ConstructType &&
		reflect.DeepEqual(a.Path, b.Path) &&
		reflect.DeepEqual(a.Props, b.Props)
}
