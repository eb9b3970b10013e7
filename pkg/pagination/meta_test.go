package pagination

import (
	"math"
	"testing"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name                 string
		total, limit, offset int
		want                 Meta
	}{
		{
			name:  "first page",
			total: 1302, limit: 20, offset: 0,
			want: Meta{CurrentPage: 1, TotalPages: 66, HasNext: true, HasPrevious: false, Limit: 20, Offset: 0},
		},
		{
			name:  "middle page",
			total: 1302, limit: 20, offset: 40,
			want: Meta{CurrentPage: 3, TotalPages: 66, HasNext: true, HasPrevious: true, Limit: 20, Offset: 40},
		},
		{
			name:  "last page partial",
			total: 1302, limit: 20, offset: 1300,
			want: Meta{CurrentPage: 66, TotalPages: 66, HasNext: false, HasPrevious: true, Limit: 20, Offset: 1300},
		},
		{
			name:  "exact multiple",
			total: 40, limit: 20, offset: 20,
			want: Meta{CurrentPage: 2, TotalPages: 2, HasNext: false, HasPrevious: true, Limit: 20, Offset: 20},
		},
		{
			name:  "offset not aligned to limit",
			total: 100, limit: 20, offset: 30,
			want: Meta{CurrentPage: 2, TotalPages: 5, HasNext: true, HasPrevious: true, Limit: 20, Offset: 30},
		},
		{
			name:  "empty catalog",
			total: 0, limit: 20, offset: 0,
			want: Meta{CurrentPage: 1, TotalPages: 0, HasNext: false, HasPrevious: false, Limit: 20, Offset: 0},
		},
		{
			name:  "zero limit",
			total: 100, limit: 0, offset: 0,
			want: Meta{Limit: 0, Offset: 0},
		},
		{
			name:  "limit near max int",
			total: 1302, limit: math.MaxInt, offset: 0,
			want: Meta{CurrentPage: 1, TotalPages: 1, HasNext: false, Limit: math.MaxInt, Offset: 0},
		},
		{
			name:  "offset at max int",
			total: 1302, limit: 1, offset: math.MaxInt,
			want: Meta{CurrentPage: math.MaxInt, TotalPages: 1302, HasNext: false, HasPrevious: true, Limit: 1, Offset: math.MaxInt},
		},
		{
			name:  "negative offset clamped",
			total: 100, limit: 10, offset: -5,
			want: Meta{CurrentPage: 1, TotalPages: 10, HasNext: true, Limit: 10, Offset: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.total, tt.limit, tt.offset); got != tt.want {
				t.Errorf("Compute(%d, %d, %d) = %+v, want %+v", tt.total, tt.limit, tt.offset, got, tt.want)
			}
		})
	}
}

func TestOffsetForPage(t *testing.T) {
	tests := []struct {
		page, limit, want int
	}{
		{1, 20, 0},
		{2, 20, 20},
		{5, 10, 40},
		{0, 20, 0},
		{-3, 20, 0},
		{3, 0, 0},
		{math.MaxInt, 20, (math.MaxInt / 20) * 20},
		{math.MaxInt, 1, math.MaxInt - 1},
		{math.MaxInt/20 + 1, 20, (math.MaxInt / 20) * 20},
		{math.MaxInt/20 + 2, 20, (math.MaxInt / 20) * 20},
	}

	for _, tt := range tests {
		if got := OffsetForPage(tt.page, tt.limit); got != tt.want {
			t.Errorf("OffsetForPage(%d, %d) = %d, want %d", tt.page, tt.limit, got, tt.want)
		}
	}
}

func TestOffsetForPage_NeverNegative(t *testing.T) {
	for _, limit := range []int{1, 20, 1000, math.MaxInt / 2, math.MaxInt} {
		for _, page := range []int{math.MaxInt, math.MaxInt - 1, math.MaxInt / 2} {
			if got := OffsetForPage(page, limit); got < 0 {
				t.Errorf("OffsetForPage(%d, %d) = %d, want >= 0", page, limit, got)
			}
		}
	}
}
