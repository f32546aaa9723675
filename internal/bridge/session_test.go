package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testBridge is an in-process stand-in for the lc0 bridge endpoint. Every
// received command is pushed to gotCmd and then handed to the handler.
type testBridge struct {
	srv     *httptest.Server
	gotCmd  chan Command
	accepts atomic.Int32
}

func newTestBridge(t *testing.T, handler func(ctx context.Context, c *websocket.Conn, cmd Command)) *testBridge {
	t.Helper()
	tb := &testBridge{gotCmd: make(chan Command, 64)}
	tb.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		tb.accepts.Add(1)
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		for {
			var cmd Command
			if err := wsjson.Read(ctx, c, &cmd); err != nil {
				return
			}
			tb.gotCmd <- cmd
			if handler != nil {
				handler(ctx, c, cmd)
			}
		}
	}))
	t.Cleanup(tb.srv.Close)
	return tb
}

func (tb *testBridge) url() string {
	return "ws" + strings.TrimPrefix(tb.srv.URL, "http")
}

func (tb *testBridge) waitCmd(t *testing.T, name string) Command {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case cmd := <-tb.gotCmd:
			if cmd.Cmd == name {
				return cmd
			}
		case <-deadline:
			t.Fatalf("no %s command within deadline", name)
		}
	}
}

// echoHandler answers every command the way the real bridge would, with
// minimal payloads.
func echoHandler(ctx context.Context, c *websocket.Conn, cmd Command) {
	switch cmd.Cmd {
	case cmdAnalyse:
		_ = wsjson.Write(ctx, c, map[string]any{
			"type": "analysis", "fen": cmd.FEN, "bestmove": "e2e4", "score_cp": 35,
		})
	case cmdEngineMove:
		_ = wsjson.Write(ctx, c, map[string]any{
			"type": "engine_move", "move": "e7e5", "from": "e7", "to": "e5",
		})
	case cmdPing:
		_ = wsjson.Write(ctx, c, map[string]any{"type": "pong"})
	case cmdNewGame:
		_ = wsjson.Write(ctx, c, map[string]any{"type": "new_game_ok"})
	}
}

func newTestSession(t *testing.T, tb *testBridge, opts ...Option) *Session {
	t.Helper()
	s := NewSession(tb.url(), nil, opts...)
	t.Cleanup(func() {
		_ = s.Close(context.Background())
	})
	return s
}

func pendingCount(s *Session) int {
	s.router.mu.Lock()
	defer s.router.mu.Unlock()
	return len(s.router.queue)
}

func TestConnectAnalyseAndClose(t *testing.T) {
	tb := newTestBridge(t, echoHandler)
	s := newTestSession(t, tb)

	var mu sync.Mutex
	var states []State
	s.OnStateChange(func(st State) {
		mu.Lock()
		states = append(states, st)
		mu.Unlock()
	})

	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != StateConnected {
		t.Fatalf("state = %v", s.State())
	}
	if s.LastError() != nil {
		t.Fatalf("LastError should be cleared: %v", s.LastError())
	}

	fen := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	a, err := s.Analyse(ctx, fen, 100)
	if err != nil {
		t.Fatalf("Analyse: %v", err)
	}
	if a.FEN != fen || a.BestMove != "e2e4" {
		t.Fatalf("analysis: %+v", a)
	}
	if a.ScoreCP == nil || *a.ScoreCP != 35 {
		t.Fatalf("score: %v", a.ScoreCP)
	}

	mv, err := s.EngineMove(ctx, fen, 100)
	if err != nil {
		t.Fatalf("EngineMove: %v", err)
	}
	if mv.Move != "e7e5" {
		t.Fatalf("engine move: %+v", mv)
	}

	if err := s.NewGame(ctx); err != nil {
		t.Fatalf("NewGame: %v", err)
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state after close = %v", s.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnected || states[len(states)-1] != StateDisconnected {
		t.Fatalf("state transitions: %v", states)
	}
}

func TestConnectIsNoOpWhenConnected(t *testing.T) {
	tb := newTestBridge(t, echoHandler)
	s := newTestSession(t, tb)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect#1: %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect#2: %v", err)
	}
	if got := tb.accepts.Load(); got != 1 {
		t.Fatalf("dialed %d times, want 1", got)
	}
}

func TestConnectFailureIsRecorded(t *testing.T) {
	s := NewSession("ws://127.0.0.1:1", nil, WithDialTimeout(300*time.Millisecond))
	err := s.Connect(context.Background())
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if s.LastError() == nil {
		t.Fatalf("dial failure must be recorded")
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v", s.State())
	}
}

func TestConnectMalformedEndpoint(t *testing.T) {
	s := NewSession("not a url", nil)
	if err := s.Connect(context.Background()); err == nil {
		t.Fatalf("expected error for malformed endpoint")
	}
	if s.LastError() == nil {
		t.Fatalf("malformed endpoint must be recorded")
	}
}

func TestCallWhenDisconnected(t *testing.T) {
	tb := newTestBridge(t, echoHandler)
	s := newTestSession(t, tb)
	if _, err := s.Analyse(context.Background(), "startpos", 100); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestTimeoutDeregistersPendingAndChainContinues(t *testing.T) {
	var (
		stallMu   sync.Mutex
		stallConn *websocket.Conn
	)
	tb := newTestBridge(t, func(ctx context.Context, c *websocket.Conn, cmd Command) {
		switch cmd.Cmd {
		case cmdAnalyse:
			// Withhold the reply; the test sends it late by hand.
			stallMu.Lock()
			stallConn = c
			stallMu.Unlock()
		case cmdEngineMove:
			_ = wsjson.Write(ctx, c, map[string]any{"type": "engine_move", "move": "g8f6"})
		}
	})
	s := newTestSession(t, tb)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := s.Call(ctx, Command{Cmd: cmdAnalyse, FEN: "stall", Movetime: 50},
		[]Kind{KindAnalysis}, 80*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if n := pendingCount(s); n != 0 {
		t.Fatalf("timed-out request still registered, pending=%d", n)
	}

	// The engine finally answers the abandoned analyse. It must not satisfy
	// the next request.
	stallMu.Lock()
	c := stallConn
	stallMu.Unlock()
	if c == nil {
		t.Fatalf("server never saw the analyse command")
	}
	if err := wsjson.Write(context.Background(), c, map[string]any{
		"type": "analysis", "fen": "stall", "bestmove": "a2a3",
	}); err != nil {
		t.Fatalf("stale write: %v", err)
	}

	msg, err := s.Call(ctx, Command{Cmd: cmdEngineMove, FEN: "startpos", Movetime: 50},
		[]Kind{KindEngineMove}, 2*time.Second)
	if err != nil {
		t.Fatalf("follow-up call: %v", err)
	}
	if mv, ok := msg.(*EngineMove); !ok || mv.Move != "g8f6" {
		t.Fatalf("follow-up reply: %#v", msg)
	}
	if n := pendingCount(s); n != 0 {
		t.Fatalf("pending table not clean: %d", n)
	}
}

func TestErrorReplyResolvesCall(t *testing.T) {
	tb := newTestBridge(t, func(ctx context.Context, c *websocket.Conn, cmd Command) {
		if cmd.Cmd == cmdAnalyse {
			_ = wsjson.Write(ctx, c, map[string]any{"type": "error", "message": "Missing 'fen'"})
		}
	})
	s := newTestSession(t, tb)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := s.Call(ctx, Command{Cmd: cmdAnalyse, Movetime: 50}, []Kind{KindAnalysis}, 2*time.Second)
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *ServerError, got %v", err)
	}
	if serr.Message != "Missing 'fen'" {
		t.Fatalf("server error message: %q", serr.Message)
	}
}

func TestDecodeFailureResolvesPendingCall(t *testing.T) {
	tb := newTestBridge(t, func(ctx context.Context, c *websocket.Conn, cmd Command) {
		if cmd.Cmd == cmdAnalyse {
			_ = wsjson.Write(ctx, c, map[string]any{"type": "analysis", "score_cp": "plenty"})
		}
	})
	s := newTestSession(t, tb)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := s.Call(ctx, Command{Cmd: cmdAnalyse, FEN: "startpos", Movetime: 50},
		[]Kind{KindAnalysis}, 2*time.Second)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("expected ErrDecodeFailed, got %v", err)
	}
}

func TestCloseFailsPendingWithNotConnected(t *testing.T) {
	tb := newTestBridge(t, nil) // never replies
	s := newTestSession(t, tb)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Call(ctx, Command{Cmd: cmdAnalyse, FEN: "startpos", Movetime: 50},
			[]Kind{KindAnalysis}, 10*time.Second)
		errCh <- err
	}()
	tb.waitCmd(t, cmdAnalyse)

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNotConnected) {
			t.Fatalf("pending call got %v, want ErrNotConnected", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("pending call never resolved")
	}
}

func TestServerDropFailsPendingAndFlipsState(t *testing.T) {
	tb := newTestBridge(t, func(ctx context.Context, c *websocket.Conn, cmd Command) {
		if cmd.Cmd == cmdAnalyse {
			_ = c.Close(websocket.StatusInternalError, "engine died")
		}
	})
	s := newTestSession(t, tb)
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	_, err := s.Call(ctx, Command{Cmd: cmdAnalyse, FEN: "startpos", Movetime: 50},
		[]Kind{KindAnalysis}, 5*time.Second)
	if err == nil || errors.Is(err, ErrTimeout) {
		t.Fatalf("expected transport failure, got %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateDisconnected {
		if time.Now().After(deadline) {
			t.Fatalf("state never flipped to disconnected")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if s.LastError() == nil {
		t.Fatalf("transport failure must be recorded")
	}
}

func TestKeepAliveDoesNotDisturbPendingCalls(t *testing.T) {
	var pings atomic.Int32
	tb := newTestBridge(t, func(ctx context.Context, c *websocket.Conn, cmd Command) {
		switch cmd.Cmd {
		case cmdPing:
			pings.Add(1)
			_ = wsjson.Write(ctx, c, map[string]any{"type": "pong"})
		case cmdEngineMove:
			go func() {
				for pings.Load() < 2 {
					time.Sleep(5 * time.Millisecond)
				}
				_ = wsjson.Write(context.Background(), c, map[string]any{"type": "engine_move", "move": "b8c6"})
			}()
		}
	})
	s := newTestSession(t, tb, WithPingInterval(25*time.Millisecond))
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// The reply arrives only after at least two keep-alive pings and their
	// pongs have crossed the wire; neither may resolve the pending call.
	mv, err := s.EngineMove(ctx, "startpos", 50)
	if err != nil {
		t.Fatalf("EngineMove: %v", err)
	}
	if mv.Move != "b8c6" {
		t.Fatalf("reply: %+v", mv)
	}
	if pings.Load() < 2 {
		t.Fatalf("expected at least 2 pings, saw %d", pings.Load())
	}
}

func TestReconnectCycle(t *testing.T) {
	tb := newTestBridge(t, echoHandler)
	s := newTestSession(t, tb)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect#1: %v", err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect#2: %v", err)
	}
	if _, err := s.Analyse(ctx, "startpos", 50); err != nil {
		t.Fatalf("Analyse after reconnect: %v", err)
	}
	if got := tb.accepts.Load(); got != 2 {
		t.Fatalf("accepted %d connections, want 2", got)
	}
}
