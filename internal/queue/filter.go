package queue

import (
	"slices"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/desertthunder/crate/internal/models"
)

type songSource []models.Song

func (s songSource) String(i int) string {
	if s[i].Artist == "" {
		return s[i].Name
	}
	return s[i].Name + " " + s[i].Artist
}

func (s songSource) Len() int { return len(s) }

// Filter returns the songs whose name or artist fuzzily matches pattern, keeping their original order.
// A blank pattern matches everything.
func Filter(songs []models.Song, pattern string) []models.Song {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return append([]models.Song(nil), songs...)
	}

	matches := fuzzy.FindFrom(pattern, songSource(songs))
	indexes := make([]int, len(matches))
	for i, m := range matches {
		indexes[i] = m.Index
	}
	slices.Sort(indexes)

	out := make([]models.Song, len(indexes))
	for i, idx := range indexes {
		out[i] = songs[idx]
	}
	return out
}
