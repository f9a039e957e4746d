package paging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const testPageSize = 9

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		n, size, want int
	}{
		{0, testPageSize, 1},
		{1, testPageSize, 1},
		{9, testPageSize, 1},
		{10, testPageSize, 2},
		{18, testPageSize, 2},
		{19, testPageSize, 3},
		{5, 0, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TotalPages(tt.n, tt.size), "n=%d size=%d", tt.n, tt.size)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 4))
	assert.Equal(t, 3, Clamp(10, 4))
	assert.Equal(t, 2, Clamp(2, 4))
	assert.Equal(t, 0, Clamp(5, 0))
}

func TestPaginate_ExactlyOnePage(t *testing.T) {
	p := Paginate(seq(testPageSize), testPageSize, 0)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasMultiplePages)
	assert.Len(t, p.Items, testPageSize)
	assert.True(t, p.IsFirst())
	assert.True(t, p.IsLast())
}

func TestPaginate_LastPartialPage(t *testing.T) {
	p := Paginate(seq(20), testPageSize, 2)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasMultiplePages)
	assert.Equal(t, []int{18, 19}, p.Items)
	assert.Equal(t, 19, p.Start)
	assert.Equal(t, 20, p.End)
}

func TestPaginate_ClampsIndex(t *testing.T) {
	p := Paginate(seq(20), testPageSize, 7)
	assert.Equal(t, 2, p.Index)

	p = Paginate(seq(20), testPageSize, -1)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 1, p.Start)
	assert.Equal(t, 9, p.End)
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate([]int(nil), testPageSize, 3)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, 1, p.TotalPages)
	assert.Empty(t, p.Items)
	assert.Zero(t, p.Start)
	assert.Zero(t, p.End)
}

func TestPaginate_ItemsDoNotAliasAppend(t *testing.T) {
	items := seq(12)
	p := Paginate(items, testPageSize, 0)
	_ = append(p.Items, 100)
	assert.Equal(t, 9, items[9])
}
