package records

import (
	"context"
	"time"

	"github.com/dwidge/table-api/eventbus"
	"github.com/dwidge/table-api/idgen"
	"go.uber.org/zap"
)

// Event types
const (
	EventConsistencyViolation = "consistency_violation"
	EventBatchSettled         = "batch_settled"
)

// Event reports something that happened inside a table operation
type Event struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Table string         `json:"table"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

func newEvent(typ, table string, now time.Time, data map[string]any) Event {
	return Event{ID: idgen.NewUUID(), Type: typ, Table: table, Time: now, Data: data}
}

// Observer receives table events. Implementations must not block for long;
// they run inline with the operation.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) Observe(ctx context.Context, e Event) {
	f(ctx, e)
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// LogObserver writes events to a zap logger. Consistency violations are
// logged as errors, everything else at debug.
type LogObserver struct {
	log *zap.Logger
}

func NewLogObserver(log *zap.Logger) *LogObserver {
	return &LogObserver{log: log.Named("events")}
}

func (o *LogObserver) Observe(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("event_id", e.ID),
		zap.String("table", e.Table),
		zap.Any("data", e.Data),
	}
	if e.Type == EventConsistencyViolation {
		o.log.Error(e.Type, fields...)
		return
	}
	o.log.Debug(e.Type, fields...)
}

// BusObserver publishes events on "<prefix>.<table>.<type>"
type BusObserver struct {
	bus    eventbus.Bus
	prefix string
	log    *zap.Logger
}

func NewBusObserver(bus eventbus.Bus, prefix string, log *zap.Logger) *BusObserver {
	if log == nil {
		log = zap.NewNop()
	}
	return &BusObserver{bus: bus, prefix: prefix, log: log}
}

func (o *BusObserver) Topic(e Event) string {
	return o.prefix + "." + e.Table + "." + e.Type
}

func (o *BusObserver) Observe(_ context.Context, e Event) {
	if err := o.bus.Publish(o.Topic(e), e); err != nil {
		o.log.Warn("publish event", zap.String("event_id", e.ID), zap.String("type", e.Type), zap.Error(err))
	}
}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, e Event) {
	for _, o := range m {
		o.Observe(ctx, e)
	}
}

// Observers fans events out to every non-nil observer
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return nopObserver{}
	}
	return out
}
