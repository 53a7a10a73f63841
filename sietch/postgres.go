package sietch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queryable is the subset of pgx shared by pools, transactions and pgxmock
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore is the Postgres/CockroachDB implementation of Store
type PostgresStore struct {
	db      Queryable
	def     *TableDef
	columns []string
	known   map[string]bool
	logger  QueryLogger
}

type PostgresOption func(*PostgresStore)

func WithQueryLogger(logger QueryLogger) PostgresOption {
	return func(s *PostgresStore) {
		s.logger = logger
	}
}

func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}

func sanitizeIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	for _, r := range name {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_') {
			return fmt.Errorf("invalid character in identifier: %c", r)
		}
	}
	return nil
}

func quoteIdentifier(name string) string {
	return `"` + name + `"`
}

func joinQuotedColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	return strings.Join(quoted, ", ")
}

func buildPlaceholders(from, n int) string {
	placeholders := make([]string, n)
	for i := 0; i < n; i++ {
		placeholders[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(placeholders, ", ")
}

func NewPostgresStore(db Queryable, def *TableDef, opts ...PostgresOption) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if def == nil {
		return nil, fmt.Errorf("table definition cannot be nil")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	s := &PostgresStore{
		db:      db,
		def:     def,
		columns: def.ColumnNames(),
		known:   make(map[string]bool, len(def.Columns)),
		logger:  NewNoOpLogger(),
	}
	for _, col := range s.columns {
		s.known[col] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (r *PostgresStore) Name() string {
	return r.def.Name
}

// rowColumns returns the columns present in row, in declaration order
func (r *PostgresStore) rowColumns(row Row, skip string) ([]string, []any, error) {
	for key := range row {
		if !r.known[key] {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.def.Name, key)
		}
	}
	var (
		cols []string
		vals []any
	)
	for _, col := range r.columns {
		if col == skip {
			continue
		}
		if v, ok := row[col]; ok {
			cols = append(cols, col)
			vals = append(vals, v)
		}
	}
	return cols, vals, nil
}

func (r *PostgresStore) checkFilter(filter *Filter) error {
	if err := filter.validate(); err != nil {
		return err
	}
	for _, field := range filter.Fields() {
		if !r.known[field] {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.def.Name, field)
		}
	}
	return nil
}

func (r *PostgresStore) Find(ctx context.Context, q *Query) (rows []Row, err error) {
	if q == nil {
		q = &Query{}
	}
	if err := r.checkFilter(q.Filter); err != nil {
		return nil, err
	}

	b := &sqlBuilder{}
	query := fmt.Sprintf("SELECT %s FROM %s%s",
		joinQuotedColumns(r.columns),
		quoteIdentifier(r.def.Name),
		b.where(q.Filter),
	)

	if len(q.Order) > 0 {
		terms := make([]string, len(q.Order))
		for i, o := range q.Order {
			if !r.known[o.Field] {
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, r.def.Name, o.Field)
			}
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			terms[i] = quoteIdentifier(o.Field) + " " + dir
		}
		query += " ORDER BY " + strings.Join(terms, ", ")
	}
	if q.Limit > 0 {
		query += " LIMIT " + b.arg(q.Limit)
	}
	if q.Offset > 0 {
		query += " OFFSET " + b.arg(q.Offset)
	}

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "find", query, b.args, start, err) }()

	res, err := r.db.Query(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	return collectRows(res)
}

func (r *PostgresStore) Count(ctx context.Context, filter *Filter) (n int64, err error) {
	if err := r.checkFilter(filter); err != nil {
		return 0, err
	}

	b := &sqlBuilder{}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(r.def.Name), b.where(filter))

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "count", query, b.args, start, err) }()

	err = r.db.QueryRow(ctx, query, b.args...).Scan(&n)
	return n, err
}

func (r *PostgresStore) Get(ctx context.Context, id int64) (row Row, err error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		joinQuotedColumns(r.columns),
		quoteIdentifier(r.def.Name),
		quoteIdentifier("id"),
	)

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "get", query, []any{id}, start, err) }()

	res, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	rows, err := collectRows(res)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrItemNotFound
	}
	return rows[0], nil
}

func (r *PostgresStore) Exists(ctx context.Context, id int64) (exists bool, err error) {
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)",
		quoteIdentifier(r.def.Name),
		quoteIdentifier("id"),
	)

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "exists", query, []any{id}, start, err) }()

	err = r.db.QueryRow(ctx, query, id).Scan(&exists)
	return exists, err
}

func (r *PostgresStore) Create(ctx context.Context, row Row) (err error) {
	cols, values, err := r.rowColumns(row, "")
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return fmt.Errorf("create %s: row has no columns", r.def.Name)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(r.def.Name),
		joinQuotedColumns(cols),
		buildPlaceholders(1, len(cols)),
	)

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "create", query, values, start, err) }()

	if _, err = r.db.Exec(ctx, query, values...); err != nil {
		return r.classify(err)
	}
	return nil
}

func (r *PostgresStore) Update(ctx context.Context, id int64, changes Row) error {
	return r.UpdateWhere(ctx, id, nil, changes)
}

// UpdateWhere updates the row identified by id only while it also matches
// guard. ErrNoUpdateItem reports that no row qualified.
func (r *PostgresStore) UpdateWhere(ctx context.Context, id int64, guard *Filter, changes Row) (err error) {
	if err := r.checkFilter(guard); err != nil {
		return err
	}
	cols, values, err := r.rowColumns(changes, "id")
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	b := &sqlBuilder{}
	setClause := make([]string, len(cols))
	for i, col := range cols {
		setClause[i] = quoteIdentifier(col) + " = " + b.arg(values[i])
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		quoteIdentifier(r.def.Name),
		strings.Join(setClause, ", "),
		quoteIdentifier("id"),
		b.arg(id),
	)
	if !guard.IsEmpty() {
		query += " AND (" + b.clause(*guard) + ")"
	}

	start := time.Now()
	defer func() { logQuery(r.logger, ctx, "update", query, b.args, start, err) }()

	ct, err := r.db.Exec(ctx, query, b.args...)
	if err != nil {
		return r.classify(err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNoUpdateItem
	}
	return nil
}

// classify turns Postgres integrity violations into *ConstraintError
func (r *PostgresStore) classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	ce := &ConstraintError{Table: r.def.Name, Constraint: pgErr.ConstraintName, Err: err}
	if pgErr.ColumnName != "" {
		ce.Columns = []string{pgErr.ColumnName}
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		ce.Kind = ConstraintUnique
	case pgerrcode.ForeignKeyViolation:
		ce.Kind = ConstraintForeignKey
	case pgerrcode.NotNullViolation:
		ce.Kind = ConstraintNotNull
	default:
		return err
	}
	return ce
}

func collectRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()

	var results []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		row := make(Row, len(values))
		for i, v := range values {
			row[fields[i].Name] = v
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// sqlBuilder renders filters into a WHERE clause with positional arguments
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *sqlBuilder) where(filter *Filter) string {
	if filter.IsEmpty() {
		return ""
	}
	return " WHERE " + b.clause(*filter)
}

func (b *sqlBuilder) clause(f Filter) string {
	var parts []string
	for _, c := range f.Conditions {
		col := quoteIdentifier(c.Field)
		switch c.Operator {
		case OpIsNull, OpNotNull:
			parts = append(parts, col+" "+c.Operator)
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", col, c.Operator, b.arg(c.Value)))
		}
	}
	if len(f.Any) > 0 {
		alts := make([]string, len(f.Any))
		for i := range f.Any {
			alts[i] = "(" + b.clause(f.Any[i]) + ")"
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	for i := range f.All {
		if !f.All[i].IsEmpty() {
			parts = append(parts, "("+b.clause(f.All[i])+")")
		}
	}
	if len(parts) == 0 {
		return "TRUE"
	}
	return strings.Join(parts, " AND ")
}
