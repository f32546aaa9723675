package bridge

import (
	"encoding/json"
	"fmt"
)

// Outbound command names understood by the lc0 bridge.
const (
	cmdAnalyse    = "analyse"
	cmdEngineMove = "engine_move"
	cmdPing       = "ping"
	cmdNewGame    = "new_game"
)

// Command is the outbound request shape. The bridge ignores fields a command
// does not use, so one envelope covers every command.
type Command struct {
	Cmd      string `json:"cmd"`
	FEN      string `json:"fen,omitempty"`
	Movetime int    `json:"movetime,omitempty"`
}

// Kind is the discriminator carried in the "type" field of every inbound
// message.
type Kind string

const (
	KindAnalysis   Kind = "analysis"
	KindEngineMove Kind = "engine_move"
	KindPong       Kind = "pong"
	KindNewGameOK  Kind = "new_game_ok"
	KindError      Kind = "error"
	KindInfo       Kind = "info"
)

// Message is any decoded inbound bridge message.
type Message interface {
	Kind() Kind
}

// Alternative is one entry of an analysis reply's ranked candidate list.
// Rank 1 is the engine's top choice. Exactly one of ScoreCP and ScoreMate is
// set when the engine reported a score for the line.
type Alternative struct {
	Rank      int    `json:"rank"`
	Move      string `json:"move"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion"`
	ScoreCP   *int   `json:"score_cp"`
	ScoreMate *int   `json:"score_mate"`
}

// Characteristics is the bridge's description of the analysed position,
// passed through opaquely.
type Characteristics struct {
	Sharpness      string `json:"sharpness"`
	Difficulty     string `json:"difficulty"`
	MarginForError string `json:"margin_for_error"`
	LineType       string `json:"line_type"`
	Explanation    string `json:"explanation"`
}

// Analysis is the reply to an analyse command. Every field is optional on the
// wire; absent fields decode to zero values. Scores are relative to the side
// to move in the analysed position.
type Analysis struct {
	FEN             string           `json:"fen"`
	BestMove        string           `json:"bestmove"`
	From            string           `json:"from"`
	To              string           `json:"to"`
	Promotion       string           `json:"promotion"`
	ScoreCP         *int             `json:"score_cp"`
	ScoreMate       *int             `json:"score_mate"`
	PV              []string         `json:"pv"`
	Depth           int              `json:"depth"`
	Nodes           int64            `json:"nodes"`
	Feedback        string           `json:"feedback"`
	Message         string           `json:"message"`
	Alternatives    []Alternative    `json:"alternatives"`
	Characteristics *Characteristics `json:"characteristics"`
}

func (*Analysis) Kind() Kind { return KindAnalysis }

// EngineMove is the reply to an engine_move command.
type EngineMove struct {
	Move      string   `json:"move"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Promotion string   `json:"promotion"`
	ScoreCP   *int     `json:"score_cp"`
	ScoreMate *int     `json:"score_mate"`
	PV        []string `json:"pv"`
	Message   string   `json:"message"`
}

func (*EngineMove) Kind() Kind { return KindEngineMove }

// Pong acknowledges a keep-alive ping. It never resolves a pending request.
type Pong struct{}

func (*Pong) Kind() Kind { return KindPong }

// NewGameOK acknowledges a new_game command.
type NewGameOK struct{}

func (*NewGameOK) Kind() Kind { return KindNewGameOK }

// ErrorReply is an error-typed message. The router converts it to a
// *ServerError for whichever request it resolves.
type ErrorReply struct {
	Message string `json:"message"`
}

func (*ErrorReply) Kind() Kind { return KindError }

// Info is a progress notification. Decoded only far enough to be discarded.
type Info struct{}

func (*Info) Kind() Kind { return KindInfo }

// probeKind reads just the discriminator out of a raw frame. ok is false when
// the frame is not a JSON object with a string "type" field.
func probeKind(raw []byte) (Kind, bool) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Type == "" {
		return "", false
	}
	return Kind(probe.Type), true
}

// decodeKind decodes the full payload for a known discriminator. A payload
// that cannot be parsed into the declared shape yields ErrDecodeFailed; an
// unknown discriminator is undeliverable and yields a plain error.
func decodeKind(kind Kind, raw []byte) (Message, error) {
	var (
		msg Message
		err error
	)
	switch kind {
	case KindAnalysis:
		m := &Analysis{}
		err = json.Unmarshal(raw, m)
		msg = m
	case KindEngineMove:
		m := &EngineMove{}
		err = json.Unmarshal(raw, m)
		msg = m
	case KindError:
		m := &ErrorReply{}
		err = json.Unmarshal(raw, m)
		msg = m
	case KindPong:
		return &Pong{}, nil
	case KindNewGameOK:
		return &NewGameOK{}, nil
	case KindInfo:
		return &Info{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrDecodeFailed, kind, err)
	}
	return msg, nil
}
