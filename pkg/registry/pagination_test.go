package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		in    PageRequest
		limit int
		want  PageRequest
	}{
		{"zero values", PageRequest{}, 0, PageRequest{Page: 1, Limit: DefaultPageLimit}},
		{"negative page", PageRequest{Page: -3, Limit: 20}, 10, PageRequest{Page: 1, Limit: 20}},
		{"custom default", PageRequest{Page: 2}, 25, PageRequest{Page: 2, Limit: 25}},
		{"capped", PageRequest{Page: 1, Limit: 500}, 10, PageRequest{Page: 1, Limit: MaxPageLimit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize(tt.limit))
		})
	}
}

func TestPageRequestOffset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 40, PageRequest{Page: 3, Limit: 20}.Offset())
	assert.Equal(t, 0, PageRequest{}.Offset())
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 25, PageRequest{Page: 2, Limit: 10})

	assert.Len(t, page.Data, 10)
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 25, TotalPages: 3, HasNext: true, HasPrev: true}, page.Pagination)
}

func TestNewPageLastAndEmpty(t *testing.T) {
	last := NewPage([]string{"a"}, 21, PageRequest{Page: 3, Limit: 10})
	assert.Equal(t, 3, last.Pagination.TotalPages)
	assert.False(t, last.Pagination.HasNext)
	assert.True(t, last.Pagination.HasPrev)

	empty := NewPage[string](nil, 0, PageRequest{})
	assert.NotNil(t, empty.Data)
	assert.Empty(t, empty.Data)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
	assert.False(t, empty.Pagination.HasNext)
	assert.False(t, empty.Pagination.HasPrev)
}

func TestWindow(t *testing.T) {
	start, end := Window(25, PageRequest{Page: 3, Limit: 10})
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = Window(5, PageRequest{Page: 4, Limit: 10})
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}
