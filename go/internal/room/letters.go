package room

import "math/rand/v2"

// Alphabet is the fixed set of letters a round can be played on. Letters
// omitted from the classic game (hamza forms and rare finals) are excluded.
var Alphabet = []string{
	"أ", "ب", "ت", "ج", "ح", "خ", "د", "ر", "ز", "س", "ش", "ص",
	"ط", "ع", "غ", "ف", "ق", "ك", "ل", "م", "ن", "ه", "و", "ي",
}

// pickLetter returns a uniformly random letter not present in used, or
// ErrLettersExhausted when none remain. It never mutates used.
func pickLetter(used map[string]struct{}, intn func(int) int) (string, error) {
	remaining := make([]string, 0, len(Alphabet))
	for _, l := range Alphabet {
		if _, ok := used[l]; !ok {
			remaining = append(remaining, l)
		}
	}
	if len(remaining) == 0 {
		return "", ErrLettersExhausted
	}
	return remaining[intn(len(remaining))], nil
}

func defaultIntn(n int) int {
	return rand.IntN(n)
}
