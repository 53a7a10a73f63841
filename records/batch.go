package records

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/observability"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Result is the outcome of writing one item of a batch
type Result struct {
	// Item is the public shaped input
	Item Record
	// Value is the public identity projection, set on success
	Value Record
	Err   error
	// Create reports that no stored row existed for the item
	Create bool
}

// BatchReport is handed to a BatchHook once every item has settled.
// Results are in input order.
type BatchReport struct {
	Table   string
	Items   []Record
	Results []Result
}

func (r *BatchReport) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

func (r *BatchReport) Passed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err == nil {
			out = append(out, res)
		}
	}
	return out
}

// BatchHook decides what a settled batch returns. The returned slice has
// one slot per item; a nil slot marks a tolerated failure.
type BatchHook func(ctx context.Context, report *BatchReport) ([]Record, error)

func values(report *BatchReport) []Record {
	out := make([]Record, len(report.Results))
	for i, res := range report.Results {
		out[i] = res.Value
	}
	return out
}

// RaiseFirst fails with the first error in input order, making a batch look
// atomic to the caller even though earlier items may have been stored.
func RaiseFirst(_ context.Context, report *BatchReport) ([]Record, error) {
	for _, res := range report.Results {
		if res.Err != nil {
			return nil, res.Err
		}
	}
	return values(report), nil
}

// CollectAll returns every value together with all item errors combined
func CollectAll(_ context.Context, report *BatchReport) ([]Record, error) {
	var err error
	for _, res := range report.Results {
		err = multierr.Append(err, res.Err)
	}
	return values(report), err
}

// TolerateMissingRefs turns creates rejected for a missing foreign key into
// nil slots and raises anything else.
func TolerateMissingRefs(_ context.Context, report *BatchReport) ([]Record, error) {
	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		if res.Create && fault.Is(res.Err, fault.KindNotFound) {
			continue
		}
		return nil, res.Err
	}
	return values(report), nil
}

type batchOptions struct {
	hook BatchHook
}

type BatchOption func(*batchOptions)

// WithHook overrides the table's BatchHook for one call
func WithHook(hook BatchHook) BatchOption {
	return func(o *batchOptions) {
		o.hook = hook
	}
}

// Set writes a single item and returns its identity projection
func (t *Table) Set(ctx context.Context, item Record, auth *Auth) (Record, error) {
	out, err := t.SetBatch(ctx, []Record{item}, auth, WithHook(RaiseFirst))
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// SetBatch upserts items, writing referenced items before the items that
// reference them. Each item is stored on its own; the batch hook decides
// how failures surface.
func (t *Table) SetBatch(ctx context.Context, items []Record, auth *Auth, opts ...BatchOption) ([]Record, error) {
	return t.writeBatch(ctx, "set", items, auth, false, opts)
}

// DeleteBatch soft deletes items by writing them with deletedAt set to now
func (t *Table) DeleteBatch(ctx context.Context, items []Record, auth *Auth, opts ...BatchOption) ([]Record, error) {
	return t.writeBatch(ctx, "delete", items, auth, true, opts)
}

func (t *Table) writeBatch(ctx context.Context, op string, items []Record, auth *Auth, del bool, opts []BatchOption) (out []Record, err error) {
	ctx, span := t.tracer.StartOperation(ctx, t.name, op)
	start := time.Now()
	defer func() {
		observability.End(span, err)
		t.metrics.ObserveOperation(t.name, op, err, time.Since(start))
	}()

	o := batchOptions{hook: t.onBatch}
	for _, opt := range opts {
		opt(&o)
	}

	stored := make([]Record, len(items))
	for i, item := range items {
		stored[i] = t.mapping.ToStorage(item)
		if del {
			stored[i] = stored[i].Clone()
			stored[i][FieldDeletedAt] = t.timestamp()
		}
	}

	results, err := t.run(ctx, stored, auth)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Table: t.name, Items: items, Results: make([]Result, len(items))}
	failed := 0
	for i, res := range results {
		res.Item = items[i]
		if res.Err != nil {
			res.Err = t.publicError(res.Err)
			failed++
			t.log.Debug("batch item failed", zap.String("operation", op), zap.Int("index", i), zap.Error(res.Err))
		}
		report.Results[i] = res
	}

	t.metrics.CountItems(t.name, op, observability.OutcomeOK, len(items)-failed)
	t.metrics.CountItems(t.name, op, observability.OutcomeError, failed)
	t.observe(ctx, EventBatchSettled, map[string]any{
		"operation": op,
		"items":     len(items),
		"failed":    failed,
	})

	return o.hook(ctx, report)
}

// run writes items in dependency order. Independent items run on the pool
// when one is configured.
func (t *Table) run(ctx context.Context, items []Record, auth *Auth) ([]Result, error) {
	results := make([]Result, len(items))
	write := func(i int) {
		defer func() {
			if v := recover(); v != nil {
				t.log.Error("batch item panicked", zap.Int("index", i), zap.Any("panic", v), zap.Stack("stack"))
				results[i] = Result{Err: fault.Generic(CodeItemPanic, fault.WithCause(fmt.Errorf("panic: %v", v)))}
			}
		}()
		value, created, err := t.set(ctx, items[i], auth)
		results[i] = Result{Value: value, Err: err, Create: created}
	}

	if t.pool == nil {
		order, err := Schedule(items, FieldID, t.selfRefs)
		if err != nil {
			return nil, cycleError(err)
		}
		for _, i := range order {
			write(i)
		}
		return results, nil
	}

	levels, err := Levels(items, FieldID, t.selfRefs)
	if err != nil {
		return nil, cycleError(err)
	}
	for _, level := range levels {
		g := t.pool.Group()
		for _, i := range level {
			if !g.Submit(t.name+":"+strconv.Itoa(i), func() { write(i) }) {
				results[i] = Result{Err: fault.ServiceUnavailable(CodePoolStopped, fault.WithMessage("worker pool stopped"))}
			}
		}
		g.Wait()
	}
	return results, nil
}

func cycleError(err error) error {
	if errors.Is(err, ErrCyclicDependency) {
		return fault.New(fault.KindUnprocessable, CodeCycle, fault.WithCause(err))
	}
	return err
}
