package models

// Verdict is the judge's ruling on a single submitted answer.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"
	VerdictIncorrect Verdict = "incorrect"
)

// Categories players must fill each round, in display order.
var Categories = []string{"animal", "object", "plant", "country", "name"}

// AllCorrect reports whether a non-empty verdict set ruled every category
// correct.
func AllCorrect(verdicts map[string]Verdict) bool {
	if len(verdicts) == 0 {
		return false
	}
	for _, v := range verdicts {
		if v != VerdictCorrect {
			return false
		}
	}
	return true
}

// AnyCorrect reports whether at least one category was ruled correct. This is
// the lenient acceptance rule, kept behind configuration.
func AnyCorrect(verdicts map[string]Verdict) bool {
	for _, v := range verdicts {
		if v == VerdictCorrect {
			return true
		}
	}
	return false
}
