package coach

import (
	"fmt"

	"github.com/park285/leela-coach/pkg/coachdto"
)

// Classify grades a played move from the evaluation before it, the
// evaluation after it, and the engine's ranked alternatives for the position
// it was played from. Centipawn loss against the best alternative is the
// authoritative signal; the raw delta is a coarse fallback used only when no
// usable alternative exists.
//
// Callers own the sign convention: nothing here validates or re-signs
// scores, so both scores and the alternative scores must arrive in one
// consistently defined perspective or the thresholds misclassify. The coach
// supplies centipawns side-to-move relative, exactly as the engine reports
// them.
func Classify(scoreBefore, scoreAfter *int, alternatives []coachdto.Alternative) (coachdto.Verdict, string) {
	if scoreBefore == nil || scoreAfter == nil {
		return coachdto.VerdictUnknown, ""
	}

	if best := rankOneWithCP(alternatives); best != nil {
		cpLoss := abs(*scoreAfter - *best.ScoreCP)
		switch {
		case cpLoss <= 10:
			return coachdto.VerdictExcellent, "Best move!"
		case cpLoss <= 20:
			return coachdto.VerdictGood, "Good move."
		case cpLoss <= 50:
			return coachdto.VerdictInaccuracy, lossComment(cpLoss, best.Move, ".")
		case cpLoss <= 100:
			return coachdto.VerdictMistake, lossComment(cpLoss, best.Move, "!")
		default:
			return coachdto.VerdictBlunder, lossComment(cpLoss, best.Move, "!!")
		}
	}

	change := *scoreAfter - *scoreBefore
	switch {
	case abs(change) < 20:
		return coachdto.VerdictGood, "Maintains the position."
	case change < -50:
		return coachdto.VerdictMistake, "Worsened the position."
	default:
		return coachdto.VerdictUnknown, ""
	}
}

// rankOneWithCP finds the rank-1 alternative if it carries a centipawn
// score. A mate-only score cannot express centipawn loss, so it does not
// qualify and the caller falls back to the raw delta.
func rankOneWithCP(alts []coachdto.Alternative) *coachdto.Alternative {
	for i := range alts {
		if alts[i].Rank == 1 && alts[i].ScoreCP != nil {
			return &alts[i]
		}
	}
	return nil
}

func lossComment(cpLoss int, bestMove, mark string) string {
	return fmt.Sprintf("Lost %.2f pawns. Better was %s%s", float64(cpLoss)/100, bestMove, mark)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
