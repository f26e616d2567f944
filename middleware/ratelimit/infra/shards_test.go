package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetryAfterSeconds_CeilAndClamp(t *testing.T) {
	cases := []struct {
		ms, windowMs int64
		want         int
	}{
		{ms: 1, windowMs: 60_000, want: 1},
		{ms: 1000, windowMs: 60_000, want: 1},
		{ms: 1001, windowMs: 60_000, want: 2},
		{ms: 0, windowMs: 60_000, want: 1},
		{ms: -5000, windowMs: 60_000, want: 1},
		{ms: 120_000, windowMs: 60_000, want: 60},
		{ms: 900_000, windowMs: 900_000, want: 900},
		{ms: 10, windowMs: 500, want: 1},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, retryAfterSeconds(c.ms, c.windowMs), "ms=%d window=%d", c.ms, c.windowMs)
	}
}
