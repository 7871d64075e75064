package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("listing_id,title\n42,Кружка\n"))
	b := ContentHash([]byte("listing_id,title\n42,Кружка\n"))
	c := ContentHash([]byte("listing_id,title\n42,Тарелка\n"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestPagePlan_Pages(t *testing.T) {
	assert.Equal(t, 3, NewPagePlan(250, 100).Pages())
	assert.Equal(t, 2, NewPagePlan(200, 100).Pages())
	assert.Equal(t, 1, NewPagePlan(1, 100).Pages())
	assert.Equal(t, 0, NewPagePlan(0, 100).Pages())
}

func TestPagePlan_Offset(t *testing.T) {
	plan := NewPagePlan(250, 100)
	assert.Equal(t, 0, plan.Offset(0))
	assert.Equal(t, 100, plan.Offset(1))
	assert.Equal(t, 200, plan.Offset(2))
}

func TestPagePlan_Batches(t *testing.T) {
	// 1200 элементов по 100: страницы 1..11 группами по 5
	plan := NewPagePlan(1200, 100)
	batches := plan.Batches(1, 5)

	assert.Equal(t, [][]int{
		{1, 2, 3, 4, 5},
		{6, 7, 8, 9, 10},
		{11},
	}, batches)
}

func TestPagePlan_BatchesEmpty(t *testing.T) {
	plan := NewPagePlan(50, 100)
	assert.Empty(t, plan.Batches(1, 5))
}
