package review

import "math"

// ShuffleWithSeed returns a deterministic permutation of items. The
// same seed always yields the same order; a seed of -1 returns the
// input order unchanged, which tests use to pin card order.
func ShuffleWithSeed[T any](items []T, seed float64) []T {
	out := make([]T, len(items))
	copy(out, items)
	if seed == -1 {
		return out
	}

	r := seed
	next := func() float64 {
		x := math.Sin(r) * 10000
		r++
		return x - math.Floor(x)
	}

	for i := len(out) - 1; i >= 1; i-- {
		j := int(next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// pickIndex maps a seed in [0, 1) onto an index in [0, n). Seeds at or
// beyond 1 clamp to the last slot.
func pickIndex(seed float64, n int) int {
	if n <= 0 {
		return 0
	}
	i := int(seed * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
