package infra

import (
	"github.com/cespare/xxhash/v2"

	"admission-gateway/middleware/ratelimit/domain"
)

// shardCount precisa ser potência de 2.
const shardCount = 64

func shardIndex(key domain.Key) uint64 {
	return xxhash.Sum64String(string(key)) & (shardCount - 1)
}

// retryAfterSeconds faz ceil(ms/1000) limitado a (0, ceil(window/1000)].
func retryAfterSeconds(ms, windowMs int64) int {
	capSecs := max((windowMs+999)/1000, 1)
	secs := min(max((ms+999)/1000, 1), capSecs)
	return int(secs)
}
