// Package paging slices ordered records into fixed-size pages.
package paging

// Page is one page of a paginated slice.
type Page[T any] struct {
	Items      []T
	Index      int
	TotalPages int
	TotalItems int
	// Start and End are the 1-based positions of the first and last item on
	// the page; both are zero for an empty page.
	Start            int
	End              int
	HasMultiplePages bool
}

// TotalPages returns max(1, ceil(n/size)).
func TotalPages(n, size int) int {
	if size < 1 {
		size = 1
	}
	if n <= 0 {
		return 1
	}
	return (n + size - 1) / size
}

// Clamp bounds index to [0, total-1].
func Clamp(index, total int) int {
	if total < 1 {
		total = 1
	}
	switch {
	case index < 0:
		return 0
	case index > total-1:
		return total - 1
	default:
		return index
	}
}

// Paginate returns the page at index, clamped into range.
func Paginate[T any](items []T, size, index int) Page[T] {
	if size < 1 {
		size = 1
	}
	n := len(items)
	total := TotalPages(n, size)
	index = Clamp(index, total)

	lo := index * size
	hi := min(lo+size, n)
	page := Page[T]{
		Items:            items[lo:hi:hi],
		Index:            index,
		TotalPages:       total,
		TotalItems:       n,
		HasMultiplePages: n > size,
	}
	if hi > lo {
		page.Start = lo + 1
		page.End = hi
	}
	return page
}

// IsFirst reports whether the page is the first one.
func (p Page[T]) IsFirst() bool { return p.Index == 0 }

// IsLast reports whether the page is the last one.
func (p Page[T]) IsLast() bool { return p.Index >= p.TotalPages-1 }
