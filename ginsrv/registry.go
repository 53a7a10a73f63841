package ginsrv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dwidge/table-api/records"
	"github.com/dwidge/table-api/schema"
)

// PreHook transforms each validated item before it is written
type PreHook func(ctx context.Context, item records.Record, auth *records.Auth) (records.Record, error)

// PostHook transforms the rows of a response
type PostHook func(ctx context.Context, rows []records.Record, auth *records.Auth) ([]records.Record, error)

// TableEndpoint exposes one table over HTTP
type TableEndpoint struct {
	Table    *records.Table
	Schema   *schema.Schema
	PreHook  PreHook
	PostHook PostHook
	// Batch settles write batches, the table's own hook when nil
	Batch records.BatchHook
}

// Registry maps route names to table endpoints
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]*TableEndpoint
}

func NewRegistry() *Registry {
	return &Registry{endpoints: make(map[string]*TableEndpoint)}
}

// Register serves ep under its table's name
func (r *Registry) Register(ep TableEndpoint) error {
	if ep.Table == nil || ep.Schema == nil {
		return errors.New("ginsrv: endpoint needs a table and a schema")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := ep.Table.Name()
	if _, ok := r.endpoints[name]; ok {
		return fmt.Errorf("ginsrv: table %q already registered", name)
	}
	r.endpoints[name] = &ep
	return nil
}

func (r *Registry) MustRegister(eps ...TableEndpoint) *Registry {
	for _, ep := range eps {
		if err := r.Register(ep); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Lookup(name string) (*TableEndpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[name]
	return ep, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
