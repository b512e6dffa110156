package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSettersResetPage(t *testing.T) {
	f := FilterState{Category: "a", Status: "open", SearchText: "x", Page: 4}

	assert.Equal(t, 1, f.WithCategory("b").Page)
	assert.Equal(t, 1, f.WithStatus("closed").Page)
	assert.Equal(t, 1, f.WithSearchText("y").Page)
	assert.Equal(t, 4, f.Page, "receiver must be unchanged")

	assert.Equal(t, 9, f.WithPage(9).Page)
	assert.Equal(t, "a", f.WithPage(9).Category)
}

func TestWithPageClamps(t *testing.T) {
	assert.Equal(t, 1, DefaultFilter().WithPage(0).Page)
	assert.Equal(t, 1, DefaultFilter().WithPage(-3).Page)
}

func TestNormalize(t *testing.T) {
	got := FilterState{SearchText: "  solar ", Category: "\tgrant", Status: "open\n", Page: -1}.Normalize()
	assert.Equal(t, FilterState{SearchText: "solar", Category: "grant", Status: "open", Page: 1}, got)
}

func TestIsZeroAndSameFilter(t *testing.T) {
	assert.True(t, DefaultFilter().IsZero())
	assert.True(t, FilterState{}.IsZero())
	assert.False(t, DefaultFilter().WithPage(2).IsZero())
	assert.False(t, DefaultFilter().WithCategory("x").IsZero())

	a := FilterState{Category: "x", Page: 1}
	assert.True(t, a.SameFilter(a.WithPage(3)))
	assert.False(t, a.SameFilter(a.WithStatus("open")))
}
