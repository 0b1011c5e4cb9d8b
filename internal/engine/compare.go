package engine

import "github.com/verte-zerg/typekaro/internal/model"

// Compare checks typed against reference position by position. Positions past
// len(typed) are not attempted yet and count neither way. Typed runes beyond the
// reference length are ignored; callers truncate before comparing.
func Compare(reference, typed []rune) model.Breakdown {
	n := len(typed)
	if n > len(reference) {
		n = len(reference)
	}
	b := model.Breakdown{MistypedIndexes: []int{}}
	for i := 0; i < n; i++ {
		if typed[i] == reference[i] {
			b.Correct++
			continue
		}
		b.Errors++
		b.MistypedIndexes = append(b.MistypedIndexes, i)
	}
	return b
}
