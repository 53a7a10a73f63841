package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func positions(order []int, items []Record) map[any]int {
	pos := make(map[any]int, len(order))
	for p, i := range order {
		pos[items[i][FieldID]] = p
	}
	return pos
}

func TestSchedule_ChainInAnyOrder(t *testing.T) {
	a := Record{FieldID: int64(1)}
	b := Record{FieldID: int64(2), "parentId": int64(1)}
	c := Record{FieldID: int64(3), "parentId": int64(2)}

	perms := [][]Record{
		{a, b, c}, {a, c, b}, {b, a, c},
		{b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, items := range perms {
		order, err := Schedule(items, FieldID, []string{"parentId"})
		require.NoError(t, err)
		require.Len(t, order, 3)

		pos := positions(order, items)
		assert.Less(t, pos[int64(1)], pos[int64(2)])
		assert.Less(t, pos[int64(2)], pos[int64(3)])
	}
}

func TestSchedule_StableWithoutDependencies(t *testing.T) {
	items := []Record{
		{FieldID: int64(5)},
		{FieldID: int64(3), "parentId": int64(99)},
		{FieldID: nil},
		{FieldID: int64(4), "parentId": int64(4)},
	}

	order, err := Schedule(items, FieldID, []string{"parentId"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, order)
}

func TestSchedule_DependencyPulledForward(t *testing.T) {
	items := []Record{
		{FieldID: int64(10)},
		{FieldID: int64(3), "parentId": 1.0},
		{FieldID: int64(1)},
	}

	order, err := Schedule(items, FieldID, []string{"parentId"})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 1}, order)
}

func TestSchedule_Cycle(t *testing.T) {
	items := []Record{
		{FieldID: int64(1), "parentId": int64(3)},
		{FieldID: int64(2), "parentId": int64(1)},
		{FieldID: int64(3), "parentId": int64(2)},
	}

	_, err := Schedule(items, FieldID, []string{"parentId"})
	assert.ErrorIs(t, err, ErrCyclicDependency)

	_, err = Levels(items, FieldID, []string{"parentId"})
	assert.ErrorIs(t, err, ErrCyclicDependency)
}

func TestSchedule_MultipleRefs(t *testing.T) {
	items := []Record{
		{FieldID: int64(3), "parentId": int64(1), "ownerId": int64(2)},
		{FieldID: int64(2)},
		{FieldID: int64(1)},
	}

	order, err := Schedule(items, FieldID, []string{"parentId", "ownerId"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, order)
}

func TestLevels(t *testing.T) {
	items := []Record{
		{FieldID: int64(3), "parentId": int64(2)},
		{FieldID: int64(1)},
		{FieldID: int64(2), "parentId": int64(1)},
		{FieldID: int64(4), "parentId": int64(1)},
		{FieldID: int64(5)},
	}

	levels, err := Levels(items, FieldID, []string{"parentId"})
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 4}, {2, 3}, {0}}, levels)

	levels, err = Levels(nil, FieldID, nil)
	require.NoError(t, err)
	assert.Empty(t, levels)
}
