package coachdto

import "time"

// Critique is one immutable entry in a game's move-by-move history. Scores
// are centipawns exactly as the engine reported them for the pre- and
// post-move positions, relative to the side to move in each; the
// alternatives and characteristics snapshot the position the mover faced
// before the move.
type Critique struct {
	Seq             int              `json:"seq"`
	Side            string           `json:"side"`
	MoveUCI         string           `json:"move_uci"`
	MoveSAN         string           `json:"move_san,omitempty"`
	ScoreBefore     *int             `json:"score_before,omitempty"`
	ScoreAfter      *int             `json:"score_after,omitempty"`
	Verdict         Verdict          `json:"verdict"`
	Comment         string           `json:"comment,omitempty"`
	Alternatives    []Alternative    `json:"alternatives,omitempty"`
	Characteristics *Characteristics `json:"characteristics,omitempty"`
	RecordedAt      time.Time        `json:"recorded_at"`
}

// LiveSnapshot is the single mutable "current evaluation" slot published to
// observers. It is overwritten wholesale by every completed analysis.
type LiveSnapshot struct {
	FEN             string           `json:"fen,omitempty"`
	Feedback        string           `json:"feedback,omitempty"`
	BestMove        string           `json:"best_move,omitempty"`
	ScoreCP         *int             `json:"score_cp,omitempty"`
	ScoreMate       *int             `json:"score_mate,omitempty"`
	Characteristics *Characteristics `json:"characteristics,omitempty"`
	Busy            bool             `json:"busy"`
}
