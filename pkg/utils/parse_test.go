package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"3.14", 3.14},
		{"+2.5", 2.5},
		{"-9.9", -9.9},
		{"12.3%", 12.3},
		{"1,234.5", 1234.5},
		{"  42  ", 42},
		{"", 0},
		{"-", 0},
		{"n/a", 0},
		{"abc", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SafeFloat(tc.in), "input %q", tc.in)
	}
}

func TestSafeInt(t *testing.T) {
	assert.Equal(t, 3, SafeInt("3"))
	assert.Equal(t, 3, SafeInt("3.0"))
	assert.Equal(t, -120, SafeInt("-120"))
	assert.Equal(t, 0, SafeInt("garbage"))
}

func TestExtractPercent(t *testing.T) {
	v, ok := ExtractPercent("预计净利润同比增长55.5%左右")
	require.True(t, ok)
	assert.Equal(t, 55.5, v)

	v, ok = ExtractPercent("同比变动-30%至-20%")
	require.True(t, ok)
	assert.Equal(t, -30.0, v)

	_, ok = ExtractPercent("不含百分比的文本")
	assert.False(t, ok)
}

func TestExtractAllPercents(t *testing.T) {
	got := ExtractAllPercents("同比变动-30%至-20%")
	assert.Equal(t, []float64{-30, -20}, got)

	assert.Nil(t, ExtractAllPercents("无"))
}
