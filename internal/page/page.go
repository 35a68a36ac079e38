// Package page slices result sequences into fixed-size windows.
package page

// Window slices items to 1-based page index with the given page size and
// reports the total page count. An out-of-range page yields an empty
// slice. Page size defaults to 20 when non-positive.
func Window[T any](items []T, pageIndex, pageSize int) ([]T, int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageIndex <= 0 {
		pageIndex = 1
	}
	totalPages := (len(items) + pageSize - 1) / pageSize
	start := (pageIndex - 1) * pageSize
	if start >= len(items) {
		return []T{}, totalPages
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], totalPages
}
