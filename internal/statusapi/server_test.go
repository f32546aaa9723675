package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
	"go.uber.org/zap"

	"github.com/park285/leela-coach/internal/archive"
	"github.com/park285/leela-coach/internal/bridge"
	"github.com/park285/leela-coach/internal/coach"
	"github.com/park285/leela-coach/pkg/coachdto"
)

type stubState struct {
	state bridge.State
	err   error
}

func (s stubState) State() bridge.State { return s.state }
func (s stubState) LastError() error    { return s.err }

type testHarness struct {
	live    *coach.LiveState
	journal *coach.Journal
	client  *fasthttp.HostClient
}

func newTestServer(t *testing.T, state StateSource, games GameSource) testHarness {
	t.Helper()

	live := coach.NewLiveState()
	journal := coach.NewJournal()
	srv, err := NewServer(live, journal, state, games, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	ln := fasthttputil.NewInmemoryListener()
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		_ = ln.Close()
		select {
		case <-served:
		case <-time.After(3 * time.Second):
			t.Error("server did not stop")
		}
	})

	client := &fasthttp.HostClient{
		Addr: "status",
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	return testHarness{live: live, journal: journal, client: client}
}

func (h testHarness) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	code, body, err := h.client.Get(nil, "http://status"+path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return code, body
}

func intp(v int) *int { return &v }

func TestServerServesLiveSnapshot(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateConnected}, nil)
	h.live.ApplyAnalysis(&coachdto.Analysis{
		FEN:      "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		BestMove: "g8f6",
		ScoreCP:  intp(35),
		Feedback: "Solid central play.",
	})

	code, body := h.get(t, "/live")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var snap coachdto.LiveSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("unmarshal live snapshot: %v", err)
	}
	if snap.BestMove != "g8f6" {
		t.Fatalf("best move = %q, want g8f6", snap.BestMove)
	}
	if snap.ScoreCP == nil || *snap.ScoreCP != 35 {
		t.Fatalf("score = %v, want 35", snap.ScoreCP)
	}
	if snap.Feedback != "Solid central play." {
		t.Fatalf("feedback = %q", snap.Feedback)
	}
}

func TestServerServesCritiques(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateConnected}, nil)
	h.journal.Append(coachdto.Critique{Side: "white", MoveUCI: "e2e4", Verdict: coachdto.VerdictGood})
	h.journal.Append(coachdto.Critique{Side: "black", MoveUCI: "e7e5", Verdict: coachdto.VerdictExcellent})

	code, body := h.get(t, "/critiques")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var resp struct {
		Count     int                 `json:"count"`
		Critiques []coachdto.Critique `json:"critiques"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal critiques: %v", err)
	}
	if resp.Count != 2 || len(resp.Critiques) != 2 {
		t.Fatalf("count = %d (%d entries), want 2", resp.Count, len(resp.Critiques))
	}
	if resp.Critiques[0].MoveUCI != "e2e4" || resp.Critiques[1].MoveUCI != "e7e5" {
		t.Fatalf("critique order wrong: %+v", resp.Critiques)
	}
}

func TestServerReportsState(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateDisconnected, err: errors.New("socket hiccup")}, nil)
	h.journal.Append(coachdto.Critique{MoveUCI: "e2e4"})

	code, body := h.get(t, "/state")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var resp struct {
		Connection string `json:"connection"`
		LastError  string `json:"last_error"`
		Moves      int    `json:"moves"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if resp.Connection != "disconnected" {
		t.Fatalf("connection = %q, want disconnected", resp.Connection)
	}
	if resp.LastError != "socket hiccup" {
		t.Fatalf("last error = %q", resp.LastError)
	}
	if resp.Moves != 1 {
		t.Fatalf("moves = %d, want 1", resp.Moves)
	}
}

func TestServerRendersBoardPNG(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateConnected}, nil)

	code, body := h.get(t, "/board.png")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if _, err := png.Decode(bytes.NewReader(body)); err != nil {
		t.Fatalf("decode board png: %v", err)
	}

	code, body = h.get(t, "/board.png?size=24")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	img, err := png.Decode(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decode sized board png: %v", err)
	}
	if want := 24*8 + 24; img.Bounds().Dx() != want {
		t.Fatalf("width = %d, want %d", img.Bounds().Dx(), want)
	}
}

func TestServerListsRecentGames(t *testing.T) {
	store := archive.NewMemoryStore()
	rec := coachdto.GameRecord{
		ID:        "game-1",
		Result:    "draw",
		StartedAt: time.Now().Add(-time.Hour),
		EndedAt:   time.Now(),
		Critiques: []coachdto.Critique{{Seq: 1, MoveUCI: "e2e4", Verdict: coachdto.VerdictGood}},
	}
	if err := store.SaveGame(context.Background(), rec); err != nil {
		t.Fatalf("seed archive: %v", err)
	}

	h := newTestServer(t, stubState{state: bridge.StateConnected}, store)
	code, body := h.get(t, "/games")
	if code != fasthttp.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}

	var resp struct {
		Count int                   `json:"count"`
		Games []coachdto.GameRecord `json:"games"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal games: %v", err)
	}
	if resp.Count != 1 || len(resp.Games) != 1 {
		t.Fatalf("count = %d (%d entries), want 1", resp.Count, len(resp.Games))
	}
	if resp.Games[0].ID != "game-1" {
		t.Fatalf("game id = %q, want game-1", resp.Games[0].ID)
	}
}

func TestServerWithoutArchiveDisablesGames(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateConnected}, nil)
	if code, _ := h.get(t, "/games"); code != fasthttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestServerGuards(t *testing.T) {
	h := newTestServer(t, stubState{state: bridge.StateConnected}, nil)

	if code, _ := h.get(t, "/nope"); code != fasthttp.StatusNotFound {
		t.Fatalf("unknown path status = %d, want 404", code)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.SetRequestURI("http://status/live")
	req.Header.SetMethod(fasthttp.MethodPost)
	if err := h.client.Do(req, resp); err != nil {
		t.Fatalf("POST /live: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusMethodNotAllowed {
		t.Fatalf("POST status = %d, want 405", resp.StatusCode())
	}
}

func TestNewServerValidatesDependencies(t *testing.T) {
	live := coach.NewLiveState()
	journal := coach.NewJournal()
	state := stubState{state: bridge.StateConnected}

	if _, err := NewServer(nil, journal, state, nil, nil, nil); err == nil {
		t.Fatal("nil live state accepted")
	}
	if _, err := NewServer(live, nil, state, nil, nil, nil); err == nil {
		t.Fatal("nil journal accepted")
	}
	if _, err := NewServer(live, journal, nil, nil, nil, nil); err == nil {
		t.Fatal("nil state source accepted")
	}
	if _, err := NewServer(live, journal, state, nil, nil, nil); err != nil {
		t.Fatalf("minimal server rejected: %v", err)
	}
}
