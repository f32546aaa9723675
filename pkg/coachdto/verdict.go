package coachdto

// Verdict grades a played move against the engine's assessment of the position.
type Verdict string

const (
	VerdictExcellent  Verdict = "Excellent"
	VerdictGood       Verdict = "Good"
	VerdictInaccuracy Verdict = "Inaccuracy"
	VerdictMistake    Verdict = "Mistake"
	VerdictBlunder    Verdict = "Blunder"
	VerdictUnknown    Verdict = "Unknown"
)
