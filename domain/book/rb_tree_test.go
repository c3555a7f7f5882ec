package book

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRBTreeOrderedTraversal(t *testing.T) {
	tree := NewRBTree()
	prices := []string{"105", "99.5", "101", "100", "103", "99.9", "102"}
	for _, p := range prices {
		tree.UpsertLevel(dec(p))
	}
	require.Equal(t, len(prices), tree.Size())

	sorted := append([]string(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool {
		return dec(sorted[i]).LessThan(dec(sorted[j]))
	})

	var got []string
	tree.ForEachAscending(func(lvl *PriceLevel) bool {
		got = append(got, lvl.Price.String())
		return true
	})
	assert.Equal(t, sorted, got)

	got = got[:0]
	tree.ForEachDescending(func(lvl *PriceLevel) bool {
		got = append(got, lvl.Price.String())
		return true
	})
	for i, j := 0, len(sorted)-1; i < len(sorted); i, j = i+1, j-1 {
		assert.Equal(t, sorted[j], got[i])
	}
}

func TestRBTreeMinMaxAndDelete(t *testing.T) {
	tree := NewRBTree()
	for _, p := range []string{"3", "1", "4", "1.5", "9", "2.6"} {
		tree.UpsertLevel(dec(p))
	}

	assert.Equal(t, "1", tree.MinLevel().Price.String())
	assert.Equal(t, "9", tree.MaxLevel().Price.String())

	tree.DeleteLevel(dec("1"))
	tree.DeleteLevel(dec("9"))
	assert.Equal(t, "1.5", tree.MinLevel().Price.String())
	assert.Equal(t, "4", tree.MaxLevel().Price.String())
	assert.Equal(t, 4, tree.Size())
}

func TestRBTreeUpsertIsIdempotent(t *testing.T) {
	tree := NewRBTree()
	a := tree.UpsertLevel(dec("100"))
	b := tree.UpsertLevel(dec("100"))
	assert.Same(t, a, b)
	assert.Equal(t, 1, tree.Size())
}

func TestRBTreeRandomInsertDelete(t *testing.T) {
	tree := NewRBTree()
	rng := rand.New(rand.NewSource(1))
	live := map[string]bool{}

	for i := 0; i < 5000; i++ {
		p := strconv.Itoa(rng.Intn(500))
		if live[p] && rng.Intn(3) == 0 {
			tree.DeleteLevel(dec(p))
			delete(live, p)
		} else {
			tree.UpsertLevel(dec(p))
			live[p] = true
		}
	}
	require.Equal(t, len(live), tree.Size())

	prev := decimal.Decimal{}
	first := true
	count := 0
	tree.ForEachAscending(func(lvl *PriceLevel) bool {
		if !first {
			assert.True(t, prev.LessThan(lvl.Price))
		}
		prev, first = lvl.Price, false
		count++
		return true
	})
	assert.Equal(t, len(live), count)
}

func TestRBTreeClear(t *testing.T) {
	tree := NewRBTree()
	tree.UpsertLevel(dec("1"))
	tree.UpsertLevel(dec("2"))
	tree.Clear()
	assert.Equal(t, 0, tree.Size())
	assert.Nil(t, tree.MinLevel())
	_ = tree.UpsertLevel(dec("3"))
	assert.Equal(t, 1, tree.Size())
}
