package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNumeric(t *testing.T) {
	assert.True(t, IsNumeric("76561198000000000"))
	assert.False(t, IsNumeric(""))
	assert.False(t, IsNumeric("gabelogannewell"))
	assert.False(t, IsNumeric("123a"))
}

func TestHoursToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"1,234.5", 74070},
		{"12.3 hrs on record", 738},
		{"0.1", 6},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HoursToMinutes(tt.in), tt.in)
	}
}
