package ginsrv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dwidge/table-api/authn"
	"github.com/dwidge/table-api/fault"
	"github.com/dwidge/table-api/records"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExpandLimit caps the filters a list query may expand to
const ExpandLimit = 100

const _defaultMaxBody = 10 << 20

const (
	CodeUnknownTable = "ginsrv.table.unknown"
	CodeListOptions  = "ginsrv.list.options"
	CodeListExpand   = "ginsrv.list.expand"
	CodeListFilters  = "ginsrv.list.filters"
	CodeWriteBody    = "ginsrv.write.body"
	CodeWriteItems   = "ginsrv.write.items"
	CodePreHook      = "ginsrv.write.pre_hook"
	CodePostHook     = "ginsrv.post_hook"
)

// TableHandler serves the list, set and delete routes of every registered table
type TableHandler struct {
	registry *Registry
	auth     authn.Resolver
	maxBody  int64
	log      *zap.Logger
}

type HandlerOption func(*TableHandler)

// WithMaxBody limits write request bodies, 10 MiB by default
func WithMaxBody(n int64) HandlerOption {
	return func(h *TableHandler) { h.maxBody = n }
}

func WithLogger(log *zap.Logger) HandlerOption {
	return func(h *TableHandler) {
		if log != nil {
			h.log = log.Named("tables")
		}
	}
}

func NewTableHandler(registry *Registry, auth authn.Resolver, opts ...HandlerOption) *TableHandler {
	h := &TableHandler{
		registry: registry,
		auth:     auth,
		maxBody:  _defaultMaxBody,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes mounts the table routes under prefix
func (h *TableHandler) Routes(prefix string) []Route {
	return []Route{
		{Method: http.MethodGet, Path: prefix + "/:table", Handler: h.List},
		{Method: http.MethodPut, Path: prefix + "/:table", Handler: h.Set},
		{Method: http.MethodDelete, Path: prefix + "/:table", Handler: h.Delete},
		{Method: http.MethodPost, Path: prefix + "/:table/delete", Handler: h.Delete},
	}
}

func (h *TableHandler) prepare(c *gin.Context) (*TableEndpoint, *records.Auth, bool) {
	name := c.Param("table")
	ep, ok := h.registry.Lookup(name)
	if !ok {
		_ = c.Error(fault.NotFound(CodeUnknownTable, fault.WithData(map[string]any{"table": name})))
		return nil, nil, false
	}

	auth, err := h.auth.Resolve(c.Request.Context(), c.GetHeader("Authorization"))
	if err != nil {
		_ = c.Error(err)
		return nil, nil, false
	}
	return ep, auth, true
}

// List answers GET /:table. Repeated query keys are alternatives, different
// keys combine, and every combination is one filter.
func (h *TableHandler) List(c *gin.Context) {
	ep, auth, ok := h.prepare(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	query := c.Request.URL.Query()

	opts, err := listOptions(query, ep.Schema)
	if err != nil {
		_ = c.Error(err)
		return
	}

	raw, err := records.Expand(candidates(c.Request.URL.RawQuery, query), ExpandLimit)
	if err != nil {
		_ = c.Error(fault.PayloadTooLarge(CodeListExpand, fault.WithCause(err)))
		return
	}

	filters, err := ep.Schema.Filters(CodeListFilters, raw)
	if err != nil {
		_ = c.Error(err)
		return
	}

	page, err := ep.Table.List(ctx, filters, auth, opts)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rows, err := h.post(c, ep, page.Rows, auth)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Range", fmt.Sprintf("items %d-%d/%d", page.Offset, int64(page.Offset)+page.Count-1, page.Count))
	status := http.StatusOK
	if len(rows) > 0 {
		status = http.StatusPartialContent
	}
	c.JSON(status, rows)
}

// Set answers PUT /:table with one slot per input item
func (h *TableHandler) Set(c *gin.Context) {
	h.write(c, false)
}

// Delete answers DELETE /:table and POST /:table/delete
func (h *TableHandler) Delete(c *gin.Context) {
	h.write(c, true)
}

func (h *TableHandler) write(c *gin.Context, del bool) {
	ep, auth, ok := h.prepare(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	body, err := h.decode(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	items, err := ep.Schema.Items(CodeWriteItems, body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if ep.PreHook != nil {
		for i, item := range items {
			if items[i], err = ep.PreHook(ctx, item, auth); err != nil {
				_ = c.Error(fault.Wrap(CodePreHook, err))
				return
			}
		}
	}

	var opts []records.BatchOption
	if ep.Batch != nil {
		opts = append(opts, records.WithHook(ep.Batch))
	}

	var rows []records.Record
	if del {
		rows, err = ep.Table.DeleteBatch(ctx, items, auth, opts...)
	} else {
		rows, err = ep.Table.SetBatch(ctx, items, auth, opts...)
	}
	if err != nil {
		_ = c.Error(err)
		return
	}

	if rows, err = h.post(c, ep, rows, auth); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// decode reads a JSON array of objects keeping numbers exact
func (h *TableHandler) decode(c *gin.Context) ([]map[string]any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody))
	dec.UseNumber()

	var body []map[string]any
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fault.PayloadTooLarge(CodeWriteBody, fault.WithCause(err))
		}
		return nil, fault.Unprocessable(CodeWriteBody, []fault.Issue{{Message: "expected an array of objects: " + err.Error()}})
	}
	if body == nil {
		return nil, fault.Unprocessable(CodeWriteBody, []fault.Issue{{Message: "expected an array of objects"}})
	}
	return body, nil
}

func (h *TableHandler) post(c *gin.Context, ep *TableEndpoint, rows []records.Record, auth *records.Auth) ([]records.Record, error) {
	if ep.PostHook != nil {
		var err error
		if rows, err = ep.PostHook(c.Request.Context(), rows, auth); err != nil {
			h.log.Warn("post hook failed", zap.String("table", ep.Table.Name()), zap.Error(err))
			return nil, fault.Wrap(CodePostHook, err)
		}
	}
	if rows == nil {
		rows = []records.Record{}
	}
	return rows, nil
}
