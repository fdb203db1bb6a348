package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "dot", input: "12.5", want: 12.5},
		{name: "comma", input: "12,50", want: 12.5},
		{name: "rounded", input: "9.999", want: 10},
		{name: "blank", input: " ", want: 0},
		{name: "garbage", input: "abc", want: 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseAmount(tc.input))
		})
	}
}

func TestDiscountPercent(t *testing.T) {
	assert.Equal(t, 20, DiscountPercent(10, 8))
	assert.Equal(t, 33, DiscountPercent(15, 10))
	assert.Equal(t, 0, DiscountPercent(10, 0))
	assert.Equal(t, 0, DiscountPercent(10, 12))
	assert.Equal(t, 0, DiscountPercent(0, 5))
}

func TestClampStock(t *testing.T) {
	assert.Equal(t, 0.0, ClampStock(-4))
	assert.Equal(t, 12.0, ClampStock(12))
	assert.Equal(t, 1.235, ClampStock(1.2345))
}
