package bridge

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeAnalysisFullPayload(t *testing.T) {
	raw := []byte(`{
		"type": "analysis",
		"fen": "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"bestmove": "e2e4",
		"from": "e2",
		"to": "e4",
		"promotion": null,
		"score_cp": 35,
		"score_mate": null,
		"pv": ["e2e4", "e7e5", "g1f3"],
		"depth": 14,
		"nodes": 128433,
		"feedback": "The position is roughly equal.",
		"alternatives": [
			{"rank": 1, "move": "e2e4", "from": "e2", "to": "e4", "promotion": null, "score_cp": 35, "score_mate": null},
			{"rank": 2, "move": "d2d4", "from": "d2", "to": "d4", "promotion": null, "score_cp": 28, "score_mate": null}
		],
		"characteristics": {
			"sharpness": "Quiet",
			"difficulty": "Beginner",
			"margin_for_error": "Forgiving",
			"line_type": "Quiet",
			"explanation": "Many moves are roughly equal."
		}
	}`)

	kind, ok := probeKind(raw)
	if !ok || kind != KindAnalysis {
		t.Fatalf("probeKind: got (%q, %v)", kind, ok)
	}
	msg, err := decodeKind(kind, raw)
	if err != nil {
		t.Fatalf("decodeKind: %v", err)
	}
	a, ok := msg.(*Analysis)
	if !ok {
		t.Fatalf("expected *Analysis, got %T", msg)
	}
	if a.BestMove != "e2e4" || a.From != "e2" || a.To != "e4" {
		t.Fatalf("unexpected move fields: %+v", a)
	}
	if a.ScoreCP == nil || *a.ScoreCP != 35 {
		t.Fatalf("score_cp: %v", a.ScoreCP)
	}
	if a.ScoreMate != nil {
		t.Fatalf("score_mate should be nil, got %v", *a.ScoreMate)
	}
	if len(a.PV) != 3 || a.PV[0] != "e2e4" {
		t.Fatalf("pv: %v", a.PV)
	}
	if a.Depth != 14 || a.Nodes != 128433 {
		t.Fatalf("depth/nodes: %d/%d", a.Depth, a.Nodes)
	}
	if len(a.Alternatives) != 2 || a.Alternatives[1].Rank != 2 || *a.Alternatives[1].ScoreCP != 28 {
		t.Fatalf("alternatives: %+v", a.Alternatives)
	}
	if a.Characteristics == nil || a.Characteristics.MarginForError != "Forgiving" {
		t.Fatalf("characteristics: %+v", a.Characteristics)
	}
}

func TestDecodeAnalysisAbsentFieldsAreZero(t *testing.T) {
	raw := []byte(`{"type": "analysis"}`)
	kind, ok := probeKind(raw)
	if !ok {
		t.Fatalf("probeKind failed")
	}
	msg, err := decodeKind(kind, raw)
	if err != nil {
		t.Fatalf("absent optional fields must not fail decoding: %v", err)
	}
	a := msg.(*Analysis)
	if a.ScoreCP != nil || a.ScoreMate != nil || a.BestMove != "" || a.Alternatives != nil || a.Characteristics != nil {
		t.Fatalf("expected zero values, got %+v", a)
	}
}

func TestDecodeEngineMove(t *testing.T) {
	raw := []byte(`{"type": "engine_move", "move": "e7e8q", "from": "e7", "to": "e8", "promotion": "q", "score_cp": 612, "pv": ["e7e8q"]}`)
	kind, _ := probeKind(raw)
	msg, err := decodeKind(kind, raw)
	if err != nil {
		t.Fatalf("decodeKind: %v", err)
	}
	m := msg.(*EngineMove)
	if m.Move != "e7e8q" || m.Promotion != "q" {
		t.Fatalf("engine move: %+v", m)
	}
	if m.ScoreCP == nil || *m.ScoreCP != 612 {
		t.Fatalf("score_cp: %v", m.ScoreCP)
	}
}

func TestDecodeControlMessages(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		kind Kind
	}{
		{`{"type": "pong"}`, KindPong},
		{`{"type": "new_game_ok"}`, KindNewGameOK},
		{`{"type": "info", "whatever": [1, 2, 3]}`, KindInfo},
	} {
		kind, ok := probeKind([]byte(tc.raw))
		if !ok || kind != tc.kind {
			t.Fatalf("probeKind(%s): got (%q, %v)", tc.raw, kind, ok)
		}
		msg, err := decodeKind(kind, []byte(tc.raw))
		if err != nil {
			t.Fatalf("decodeKind(%s): %v", tc.raw, err)
		}
		if msg.Kind() != tc.kind {
			t.Fatalf("kind mismatch: %q vs %q", msg.Kind(), tc.kind)
		}
	}
}

func TestDecodeErrorReply(t *testing.T) {
	raw := []byte(`{"type": "error", "message": "Missing 'fen'"}`)
	kind, _ := probeKind(raw)
	msg, err := decodeKind(kind, raw)
	if err != nil {
		t.Fatalf("decodeKind: %v", err)
	}
	rep := msg.(*ErrorReply)
	if rep.Message != "Missing 'fen'" {
		t.Fatalf("message: %q", rep.Message)
	}
}

func TestProbeKindRejectsUntypedFrames(t *testing.T) {
	for _, raw := range []string{
		`not json at all`,
		`{"cmd": "analyse"}`,
		`{"type": 42}`,
		`[]`,
	} {
		if kind, ok := probeKind([]byte(raw)); ok {
			t.Fatalf("probeKind(%s) unexpectedly ok with kind %q", raw, kind)
		}
	}
}

func TestDecodeKindUnknownTypeIsUndeliverable(t *testing.T) {
	raw := []byte(`{"type": "telemetry", "x": 1}`)
	kind, ok := probeKind(raw)
	if !ok {
		t.Fatalf("probeKind failed")
	}
	if _, err := decodeKind(kind, raw); err == nil {
		t.Fatalf("expected error for unknown type")
	} else if errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("unknown type must not count as a decode failure: %v", err)
	}
}

func TestDecodeKindBadPayloadIsDecodeFailed(t *testing.T) {
	raw := []byte(`{"type": "analysis", "score_cp": "mate soon"}`)
	kind, ok := probeKind(raw)
	if !ok || kind != KindAnalysis {
		t.Fatalf("probeKind: (%q, %v)", kind, ok)
	}
	if _, err := decodeKind(kind, raw); !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestCommandSerialization(t *testing.T) {
	for _, tc := range []struct {
		cmd  Command
		want string
	}{
		{Command{Cmd: cmdPing}, `{"cmd":"ping"}`},
		{Command{Cmd: cmdNewGame}, `{"cmd":"new_game"}`},
		{Command{Cmd: cmdAnalyse, FEN: "8/8/8/8/8/8/8/K6k w - - 0 1", Movetime: 2000},
			`{"cmd":"analyse","fen":"8/8/8/8/8/8/8/K6k w - - 0 1","movetime":2000}`},
		{Command{Cmd: cmdEngineMove, FEN: "startpos", Movetime: 3000},
			`{"cmd":"engine_move","fen":"startpos","movetime":3000}`},
	} {
		got, err := json.Marshal(tc.cmd)
		if err != nil {
			t.Fatalf("marshal %+v: %v", tc.cmd, err)
		}
		if string(got) != tc.want {
			t.Fatalf("serialized command mismatch:\n got %s\nwant %s", got, tc.want)
		}
	}
}
