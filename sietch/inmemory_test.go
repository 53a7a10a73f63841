package sietch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryItems(t *testing.T, opts ...MemoryOption) *MemoryStore {
	t.Helper()
	store, err := NewMemoryStore(itemsDef(), opts...)
	require.NoError(t, err)
	return store
}

func TestMemoryStore_CreateGet(t *testing.T) {
	repo := newMemoryItems(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	tests := []struct {
		name    string
		row     Row
		wantErr error
	}{
		{"create a valid row", Row{"id": int64(1), "name": "a", "updatedAt": int64(1)}, nil},
		{"duplicated id", Row{"id": int64(1), "name": "b", "updatedAt": int64(1)}, ErrUniqueViolation},
		{"duplicated unique column", Row{"id": int64(2), "name": "a", "updatedAt": int64(1)}, ErrUniqueViolation},
		{"missing not null column", Row{"id": int64(3), "name": "c"}, ErrNotNullViolation},
		{"unknown column", Row{"id": int64(4), "bogus": 1, "updatedAt": int64(1)}, ErrUnknownColumn},
		{"dangling self reference", Row{"id": int64(5), "parentId": int64(99), "updatedAt": int64(1)}, ErrForeignKeyViolation},
		{"valid self reference", Row{"id": int64(6), "parentId": int64(1), "updatedAt": int64(1)}, nil},
		{"null unique values never collide", Row{"id": int64(7), "updatedAt": int64(1)}, nil},
		{"row referencing itself", Row{"id": int64(8), "parentId": int64(8), "updatedAt": int64(1)}, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.Create(ctx, tc.row)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}

	row, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", row["name"])

	_, err = repo.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestMemoryStore_RowsAreCopied(t *testing.T) {
	repo := newMemoryItems(t)
	ctx := context.Background()

	row := Row{"id": int64(1), "name": "a", "updatedAt": int64(1)}
	require.NoError(t, repo.Create(ctx, row))
	row["name"] = "mutated"

	got, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	got["name"] = "mutated again"

	again, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", again["name"])
}

func TestMemoryStore_Update(t *testing.T) {
	repo := newMemoryItems(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Row{"id": int64(1), "name": "a", "updatedAt": int64(1)}))
	require.NoError(t, repo.Create(ctx, Row{"id": int64(2), "name": "b", "updatedAt": int64(1)}))

	require.NoError(t, repo.Update(ctx, 1, Row{"id": int64(1), "name": "a2", "updatedAt": int64(2)}))
	row, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Row{"id": int64(1), "name": "a2", "updatedAt": int64(2)}, row)

	err = repo.Update(ctx, 2, Row{"name": "a2"})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	err = repo.Update(ctx, 2, Row{"parentId": int64(42)})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	err = repo.Update(ctx, 3, Row{"name": "c"})
	assert.ErrorIs(t, err, ErrNoUpdateItem)
}

func TestMemoryStore_UpdateWhere(t *testing.T) {
	repo := newMemoryItems(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, Row{"id": int64(1), "name": "a", "companyId": int64(7), "updatedAt": int64(1)}))
	require.NoError(t, repo.Create(ctx, Row{"id": int64(2), "name": "b", "updatedAt": int64(1)}))

	tests := []struct {
		name    string
		id      int64
		guard   *Filter
		wantErr error
	}{
		{"guard holds", 1, &Filter{Conditions: []Condition{Eq("companyId", int64(7))}}, nil},
		{"owner changed", 1, &Filter{Conditions: []Condition{Eq("companyId", int64(9))}}, ErrNoUpdateItem},
		{"null owner", 2, &Filter{Conditions: []Condition{Eq("companyId", nil)}}, nil},
		{"null guard on owned row", 1, &Filter{Conditions: []Condition{Eq("companyId", nil)}}, ErrNoUpdateItem},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.UpdateWhere(ctx, tc.id, tc.guard, Row{"updatedAt": int64(5)})
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}

	row, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), row["companyId"])
}

func TestMemoryStore_ForeignTableReference(t *testing.T) {
	companies := map[int64]bool{7: true}
	repo, err := NewMemoryStore(
		NewTableDef("users", ColumnDef{Name: "groupId", Type: ColumnTypeBigInt, References: "groups"}),
		WithReference("groupId", ExistenceFunc(func(_ context.Context, id int64) (bool, error) {
			return companies[id], nil
		})),
	)
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), Row{"id": int64(1), "groupId": int64(7), "updatedAt": int64(1)}))

	err = repo.Create(context.Background(), Row{"id": int64(2), "groupId": int64(8), "updatedAt": int64(1)})
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ConstraintForeignKey, ce.Kind)
	assert.Equal(t, []string{"groupId"}, ce.Columns)

	_, err = NewMemoryStore(itemsDef(), WithReference("nope", repo))
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestMemoryStore_FindAndCount(t *testing.T) {
	repo := newMemoryItems(t)
	ctx := context.Background()

	seed := []Row{
		{"id": int64(1), "name": "a", "companyId": int64(7), "updatedAt": int64(10)},
		{"id": int64(2), "name": "b", "companyId": nil, "updatedAt": int64(20)},
		{"id": int64(3), "name": "c", "companyId": int64(9), "updatedAt": int64(30)},
		{"id": int64(4), "name": "d", "companyId": int64(7), "updatedAt": int64(40), "deletedAt": int64(41)},
	}
	for _, row := range seed {
		require.NoError(t, repo.Create(ctx, row))
	}

	tenant := Filter{Any: []Filter{
		{Conditions: []Condition{Eq("companyId", int64(7))}},
		{Conditions: []Condition{Eq("companyId", nil)}},
	}}

	tests := []struct {
		name  string
		query *Query
		ids   []int64
	}{
		{"everything in insertion order", &Query{}, []int64{1, 2, 3, 4}},
		{"tenant scope", &Query{Filter: &Filter{All: []Filter{tenant}}}, []int64{1, 2, 4}},
		{"tenant scope without deleted", &Query{Filter: &Filter{Conditions: []Condition{IsNull("deletedAt")}, All: []Filter{tenant}}}, []int64{1, 2}},
		{"changed since", &Query{Filter: &Filter{Conditions: []Condition{Gte("updatedAt", 25)}}}, []int64{3, 4}},
		{"json numbers compare numerically", &Query{Filter: &Filter{Conditions: []Condition{Eq("id", 3.0)}}}, []int64{3}},
		{"order desc with paging", &Query{Order: []Order{{Field: "name", Desc: true}}, Offset: 1, Limit: 2}, []int64{3, 2}},
		{"offset past the end", &Query{Offset: 10}, nil},
		{"not equal skips nulls", &Query{Filter: &Filter{Conditions: []Condition{{Field: "companyId", Operator: OpNe, Value: int64(7)}}}}, []int64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.Find(ctx, tt.query)
			require.NoError(t, err)

			var ids []int64
			for _, row := range rows {
				id, _ := AsInt64(row["id"])
				ids = append(ids, id)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}

	n, err := repo.Count(ctx, &Filter{Conditions: []Condition{IsNull("deletedAt")}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = repo.Find(ctx, &Query{Filter: &Filter{Conditions: []Condition{{Field: "id", Operator: "~", Value: 1}}}})
	assert.Error(t, err)
}
