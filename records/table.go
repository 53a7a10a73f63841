package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dwidge/table-api/idgen"
	"github.com/dwidge/table-api/observability"
	"github.com/dwidge/table-api/sietch"
	"github.com/dwidge/table-api/wp"
	"go.uber.org/zap"
)

// ForeignKey declares that Field holds the id of a row in Table. Target
// answers existence checks when a write is rejected; it defaults to the
// table's own store for self references.
type ForeignKey struct {
	Field  string
	Table  string
	Target sietch.Existence
}

type Config struct {
	Name        string
	Store       sietch.Store
	Mapping     Mapping
	ForeignKeys []ForeignKey

	CanRead  ReadPolicy
	CanWrite WritePolicy

	// OnBatch settles batch writes, RaiseFirst when nil
	OnBatch BatchHook
	// Pool runs independent items of a batch concurrently. Batches run
	// serially when nil.
	Pool *wp.Pool

	Observer Observer
	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer

	NewID func() int64
	Now   func() time.Time
}

// Table applies tenant policy, merge semantics and dependency ordering on
// top of a sietch.Store.
type Table struct {
	name        string
	store       sietch.Store
	mapping     Mapping
	foreignKeys []ForeignKey
	selfRefs    []string

	canRead  ReadPolicy
	canWrite WritePolicy
	onBatch  BatchHook
	pool     *wp.Pool

	observer Observer
	log      *zap.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer

	newID func() int64
	now   func() time.Time
}

func NewTable(cfg Config) (*Table, error) {
	if cfg.Store == nil {
		return nil, errors.New("records: table store is required")
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Store.Name()
	}
	if cfg.Mapping == nil {
		cfg.Mapping = Identity
	}
	if err := CheckMapping(cfg.Mapping); err != nil {
		return nil, fmt.Errorf("table %s: %w", cfg.Name, err)
	}

	t := &Table{
		name:     cfg.Name,
		store:    cfg.Store,
		mapping:  cfg.Mapping,
		canRead:  cfg.CanRead,
		canWrite: cfg.CanWrite,
		onBatch:  cfg.OnBatch,
		pool:     cfg.Pool,
		observer: cfg.Observer,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		tracer:   cfg.Tracer,
		newID:    cfg.NewID,
		now:      cfg.Now,
	}
	if t.canRead == nil {
		t.canRead = CanRead
	}
	if t.canWrite == nil {
		t.canWrite = CanWrite
	}
	if t.onBatch == nil {
		t.onBatch = RaiseFirst
	}
	if t.observer == nil {
		t.observer = nopObserver{}
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	t.log = t.log.Named("records").With(zap.String("table", t.name))
	if t.newID == nil {
		t.newID = idgen.NewInt50
	}
	if t.now == nil {
		t.now = time.Now
	}

	for _, fk := range cfg.ForeignKeys {
		if fk.Field == "" {
			return nil, fmt.Errorf("table %s: foreign key without field", t.name)
		}
		if fk.Table == "" || fk.Table == t.name {
			fk.Table = t.name
			t.selfRefs = append(t.selfRefs, fk.Field)
			if fk.Target == nil {
				fk.Target = t.store
			}
		}
		if fk.Target == nil {
			return nil, fmt.Errorf("table %s: foreign key %s has no target", t.name, fk.Field)
		}
		t.foreignKeys = append(t.foreignKeys, fk)
	}

	return t, nil
}

func (t *Table) Name() string {
	return t.name
}

// Exists reports whether a row with id is stored, deleted or not. It lets
// one table serve as the ForeignKey target of another.
func (t *Table) Exists(ctx context.Context, id int64) (bool, error) {
	return t.store.Exists(ctx, id)
}

func (t *Table) timestamp() int64 {
	return t.now().Unix()
}

func (t *Table) observe(ctx context.Context, typ string, data map[string]any) {
	t.observer.Observe(ctx, newEvent(typ, t.name, t.now(), data))
}
