package ratelimit

import (
	"strconv"
	"time"
)

// Valores numéricos de header: sempre inteiros, float sem notação científica.

func formatInt(v int) string { return strconv.Itoa(v) }

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// ceilSeconds arredonda para cima. Negativo vira 0.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// epochSecondsCeil é o instante em segundos Unix, arredondado para cima.
func epochSecondsCeil(t time.Time) int64 {
	return (t.UnixMilli() + 999) / 1000
}
