package main

import (
	"context"
	"strings"

	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/ginsrv"
	"github.com/dwidge/table-api/observability"
	"github.com/dwidge/table-api/records"
	"github.com/dwidge/table-api/schema"
	"github.com/dwidge/table-api/sietch"
	"github.com/dwidge/table-api/wp"
	"go.uber.org/zap"
)

// storeOpener returns the store for def. refs lists the foreign key
// columns pointing at other tables and the store that holds their targets.
type storeOpener func(def *sietch.TableDef, refs map[string]sietch.Existence) (sietch.Store, error)

type tableDeps struct {
	log      *zap.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	observer records.Observer
	pool     *wp.Pool
}

func projectsDef() *sietch.TableDef {
	def := sietch.NewTableDef("projects",
		sietch.ColumnDef{Name: "name", Type: sietch.ColumnTypeText, NotNull: true},
		sietch.ColumnDef{Name: "archived", Type: sietch.ColumnTypeBoolean},
	)
	def.Indexes = []sietch.IndexDef{
		{Name: "projects_company_name", Columns: []string{"companyId", "name"}, Unique: true},
	}
	return def
}

func tasksDef() *sietch.TableDef {
	def := sietch.NewTableDef("tasks",
		sietch.ColumnDef{Name: "projectId", Type: sietch.ColumnTypeBigInt, NotNull: true, References: "projects"},
		sietch.ColumnDef{Name: "parentId", Type: sietch.ColumnTypeBigInt, References: "tasks"},
		sietch.ColumnDef{Name: "title", Type: sietch.ColumnTypeText, NotNull: true},
		sietch.ColumnDef{Name: "done", Type: sietch.ColumnTypeBoolean},
		sietch.ColumnDef{Name: "estimate", Type: sietch.ColumnTypeFloat},
		sietch.ColumnDef{Name: "labels", Type: sietch.ColumnTypeJSON},
	)
	def.Indexes = []sietch.IndexDef{
		{Name: "tasks_project", Columns: []string{"projectId"}},
	}
	return def
}

// tableDefs lists the tables in creation order
func tableDefs() []*sietch.TableDef {
	return []*sietch.TableDef{projectsDef(), tasksDef()}
}

func projectsSchema() *schema.Schema {
	return schema.MustNew("projects",
		schema.Field{Name: "name", Kind: schema.String, Required: true},
		schema.Field{Name: "archived", Kind: schema.Bool, Nullable: true},
	)
}

// tasks expose the estimate column as estimateHours
func tasksSchema() *schema.Schema {
	return schema.MustNew("tasks",
		schema.Field{Name: "projectId", Kind: schema.Int, Required: true},
		schema.Field{Name: "parentId", Kind: schema.Int, Nullable: true},
		schema.Field{Name: "title", Kind: schema.String, Required: true},
		schema.Field{Name: "done", Kind: schema.Bool, Nullable: true},
		schema.Field{Name: "estimateHours", Kind: schema.Float, Nullable: true},
		schema.Field{Name: "labels", Kind: schema.JSON, Nullable: true},
	)
}

const codeEmptyTitle = "tasks.empty_title"

func trimTitle(_ context.Context, item records.Record, _ *records.Auth) (records.Record, error) {
	title, ok := item["title"].(string)
	if !ok {
		return item, nil
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fault.Unprocessable(codeEmptyTitle, []fault.Issue{{Path: []any{"title"}, Message: "must not be blank"}})
	}
	item["title"] = title
	return item, nil
}

func buildEndpoints(open storeOpener, deps tableDeps) ([]ginsrv.TableEndpoint, error) {
	base := func(store sietch.Store) records.Config {
		return records.Config{
			Store:    store,
			Observer: deps.observer,
			Logger:   deps.log,
			Metrics:  deps.metrics,
			Tracer:   deps.tracer,
			Pool:     deps.pool,
		}
	}

	projectStore, err := open(projectsDef(), nil)
	if err != nil {
		return nil, err
	}
	projects, err := records.NewTable(base(projectStore))
	if err != nil {
		return nil, err
	}

	taskStore, err := open(tasksDef(), map[string]sietch.Existence{"projectId": projectStore})
	if err != nil {
		return nil, err
	}
	taskCfg := base(taskStore)
	taskCfg.Mapping = records.FieldMapping{Rename: map[string]string{"estimateHours": "estimate"}}
	taskCfg.ForeignKeys = []records.ForeignKey{
		{Field: "parentId"},
		{Field: "projectId", Table: "projects", Target: projectStore},
	}
	taskCfg.OnBatch = records.TolerateMissingRefs
	tasks, err := records.NewTable(taskCfg)
	if err != nil {
		return nil, err
	}

	return []ginsrv.TableEndpoint{
		{Table: projects, Schema: projectsSchema()},
		{Table: tasks, Schema: tasksSchema(), PreHook: trimTitle},
	}, nil
}
