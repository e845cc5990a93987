package queue

import "math/rand/v2"

// Shuffle returns a uniformly random permutation of items using Fisher-Yates. items is not modified.
// A nil rng draws from the global source.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := append([]T(nil), items...)

	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// shuffleAfter keeps items[first] at the front and shuffles the rest behind it.
func shuffleAfter[T any](items []T, first int, rng *rand.Rand) []T {
	if first < 0 || first >= len(items) {
		return Shuffle(items, rng)
	}

	rest := make([]T, 0, len(items)-1)
	rest = append(rest, items[:first]...)
	rest = append(rest, items[first+1:]...)

	out := make([]T, 0, len(items))
	out = append(out, items[first])
	return append(out, Shuffle(rest, rng)...)
}
