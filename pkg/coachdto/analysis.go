package coachdto

// Alternative is one of the engine's ranked candidate moves. Rank 1 is the
// engine's top choice.
type Alternative struct {
	Rank      int    `json:"rank"`
	Move      string `json:"move,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	ScoreCP   *int   `json:"score_cp,omitempty"`
	ScoreMate *int   `json:"score_mate,omitempty"`
}

// Characteristics describes the nature of a position. The fields are passed
// through from the engine bridge unchanged.
type Characteristics struct {
	Sharpness      string `json:"sharpness,omitempty"`
	Difficulty     string `json:"difficulty,omitempty"`
	MarginForError string `json:"margin_for_error,omitempty"`
	LineType       string `json:"line_type,omitempty"`
	Explanation    string `json:"explanation,omitempty"`
}

// Analysis is one completed engine evaluation. Centipawn and mate scores are
// relative to the side to move in the analysed position, exactly as the
// engine reports them.
type Analysis struct {
	FEN             string           `json:"fen,omitempty"`
	BestMove        string           `json:"best_move,omitempty"`
	From            string           `json:"from,omitempty"`
	To              string           `json:"to,omitempty"`
	Promotion       string           `json:"promotion,omitempty"`
	ScoreCP         *int             `json:"score_cp,omitempty"`
	ScoreMate       *int             `json:"score_mate,omitempty"`
	PV              []string         `json:"pv,omitempty"`
	Depth           int              `json:"depth,omitempty"`
	Nodes           int64            `json:"nodes,omitempty"`
	Feedback        string           `json:"feedback,omitempty"`
	Alternatives    []Alternative    `json:"alternatives,omitempty"`
	Characteristics *Characteristics `json:"characteristics,omitempty"`
}
