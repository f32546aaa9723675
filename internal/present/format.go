// Package present renders coach DTOs into terminal-friendly text blocks for
// the CLI. Everything here is pure formatting; no state, no I/O.
package present

import (
	"fmt"
	"strings"

	"github.com/park285/leela-coach/internal/coach"
	"github.com/park285/leela-coach/pkg/coachdto"
)

const recentMovesLimit = 4

// Formatter renders coach DTOs as text. The zero value is ready to use.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

// Critique renders one journal entry as a single line, e.g.
// "3. black Nf6 [+0.20 -> +0.35] Good: Good move."
func (f *Formatter) Critique(c coachdto.Critique) string {
	move := strings.TrimSpace(c.MoveSAN)
	if move == "" {
		move = c.MoveUCI
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d. %s %s", c.Seq, c.Side, move))
	if c.ScoreBefore != nil || c.ScoreAfter != nil {
		sb.WriteString(fmt.Sprintf(" [%s -> %s]", formatCP(c.ScoreBefore), formatCP(c.ScoreAfter)))
	}
	sb.WriteString(" ")
	sb.WriteString(string(c.Verdict))
	if comment := strings.TrimSpace(c.Comment); comment != "" {
		sb.WriteString(": ")
		sb.WriteString(comment)
	}
	return sb.String()
}

// Live renders the current evaluation slot.
func (f *Formatter) Live(snap coachdto.LiveSnapshot) string {
	var sb strings.Builder
	sb.WriteString("♞ Current position\n")
	if snap.FEN != "" {
		sb.WriteString(fmt.Sprintf("• FEN: %s\n", snap.FEN))
	}
	sb.WriteString(fmt.Sprintf("• Eval: %s", FormatScore(snap.ScoreCP, snap.ScoreMate)))
	if snap.BestMove != "" {
		sb.WriteString(fmt.Sprintf(" | Best: %s", snap.BestMove))
	}
	sb.WriteString("\n")
	if ch := snap.Characteristics; ch != nil {
		if line := formatCharacteristics(ch); line != "" {
			sb.WriteString("• ")
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	if feedback := strings.TrimSpace(snap.Feedback); feedback != "" {
		sb.WriteString(fmt.Sprintf("• Feedback: %s\n", feedback))
	}
	if snap.Busy {
		sb.WriteString("• Engine is thinking...\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// PlayedMove renders an engine reply.
func (f *Formatter) PlayedMove(mv coach.PlayedMove) string {
	move := strings.TrimSpace(mv.SAN)
	if move == "" {
		move = mv.UCI
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("♝ Engine plays %s (%s)", move, FormatScore(mv.ScoreCP, mv.ScoreMate)))
	if len(mv.PV) > 0 {
		sb.WriteString(fmt.Sprintf("\n• Line: %s", formatRecentMoves(mv.PV)))
	}
	return sb.String()
}

// GameSummary renders an archived game roll-up: result, verdict tally, and
// the worst graded move.
func (f *Formatter) GameSummary(rec coachdto.GameRecord) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("♜ Game %s archived\n", rec.ID))
	result := rec.Result
	if strings.TrimSpace(result) == "" {
		result = "unfinished"
	}
	sb.WriteString(fmt.Sprintf("• Result: %s (%d moves)\n", result, len(rec.Critiques)))

	if tally := formatVerdictTally(rec.Critiques); tally != "" {
		sb.WriteString(fmt.Sprintf("• Verdicts: %s\n", tally))
	}
	if worst, ok := worstCritique(rec.Critiques); ok {
		sb.WriteString(fmt.Sprintf("• Worst: %s\n", f.Critique(worst)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatScore renders an evaluation in pawns, preferring a forced-mate
// distance when present. Unknown evaluations render as "-".
func FormatScore(cp, mate *int) string {
	if mate != nil {
		return fmt.Sprintf("#%d", *mate)
	}
	return formatCP(cp)
}

func formatCP(cp *int) string {
	if cp == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f", float64(*cp)/100)
}

func formatCharacteristics(ch *coachdto.Characteristics) string {
	parts := make([]string, 0, 4)
	if ch.Sharpness != "" {
		parts = append(parts, "sharpness "+ch.Sharpness)
	}
	if ch.Difficulty != "" {
		parts = append(parts, "difficulty "+ch.Difficulty)
	}
	if ch.MarginForError != "" {
		parts = append(parts, "margin "+ch.MarginForError)
	}
	if ch.LineType != "" {
		parts = append(parts, "line "+ch.LineType)
	}
	return strings.Join(parts, " | ")
}

func formatRecentMoves(moves []string) string {
	if len(moves) == 0 {
		return "-"
	}
	if len(moves) <= recentMovesLimit {
		return strings.Join(moves, " ")
	}
	return strings.Join(moves[:recentMovesLimit], " ") + " ..."
}

var verdictOrder = []coachdto.Verdict{
	coachdto.VerdictExcellent,
	coachdto.VerdictGood,
	coachdto.VerdictInaccuracy,
	coachdto.VerdictMistake,
	coachdto.VerdictBlunder,
	coachdto.VerdictUnknown,
}

func formatVerdictTally(critiques []coachdto.Critique) string {
	counts := map[coachdto.Verdict]int{}
	for _, c := range critiques {
		counts[c.Verdict]++
	}

	parts := make([]string, 0, len(verdictOrder))
	for _, v := range verdictOrder {
		if n := counts[v]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, v))
		}
	}
	return strings.Join(parts, ", ")
}

// worstCritique picks the lowest-graded move, later moves winning ties.
func worstCritique(critiques []coachdto.Critique) (coachdto.Critique, bool) {
	severity := map[coachdto.Verdict]int{
		coachdto.VerdictExcellent:  0,
		coachdto.VerdictGood:       1,
		coachdto.VerdictInaccuracy: 2,
		coachdto.VerdictMistake:    3,
		coachdto.VerdictBlunder:    4,
	}

	var worst coachdto.Critique
	found := false
	rank := -1
	for _, c := range critiques {
		s, graded := severity[c.Verdict]
		if !graded {
			continue
		}
		if s >= rank {
			worst, rank, found = c, s, true
		}
	}
	return worst, found
}
