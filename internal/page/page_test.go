package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Test Plan for result windowing:
// - 1-based pages, total page count from item count and page size
// - Out-of-range pages yield an empty window
// - Non-positive page index and size fall back to defaults

func TestWindow(t *testing.T) {
	t.Parallel()

	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name       string
		page       int
		size       int
		want       []int
		totalPages int
	}{
		{"first page", 1, 3, []int{1, 2, 3}, 3},
		{"middle page", 2, 3, []int{4, 5, 6}, 3},
		{"short last page", 3, 3, []int{7}, 3},
		{"beyond last", 4, 3, []int{}, 3},
		{"page size covers all", 1, 10, []int{1, 2, 3, 4, 5, 6, 7}, 1},
		{"zero page defaults to first", 0, 3, []int{1, 2, 3}, 3},
		{"zero size defaults to twenty", 1, 0, []int{1, 2, 3, 4, 5, 6, 7}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, totalPages := Window(items, tt.page, tt.size)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.totalPages, totalPages)
		})
	}
}

func TestWindow_Empty(t *testing.T) {
	t.Parallel()

	got, totalPages := Window([]string{}, 1, 20)
	assert.Empty(t, got)
	assert.Equal(t, 0, totalPages)
}
