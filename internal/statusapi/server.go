// Package statusapi exposes the coach's published state over a small
// read-only HTTP surface: live evaluation, critique history, connection
// state, recent archived games, and a rendered board snapshot. Handlers only
// read; nothing here feeds back into the session or the journal.
package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/leela-coach/internal/boardimg"
	"github.com/park285/leela-coach/internal/bridge"
	"github.com/park285/leela-coach/internal/coach"
	"github.com/park285/leela-coach/pkg/coachdto"
)

const (
	defaultRecentGames = 10
	maxBoardSquare     = 128

	readTimeout  = 5 * time.Second
	writeTimeout = 15 * time.Second
)

// StateSource reports the bridge connection state. *bridge.Session satisfies it.
type StateSource interface {
	State() bridge.State
	LastError() error
}

// GameSource lists recently archived games. archive.Store satisfies it.
type GameSource interface {
	RecentGames(ctx context.Context, limit int) ([]coachdto.GameRecord, error)
}

// Server is the status endpoint. All handlers are GET-only observers.
type Server struct {
	live     *coach.LiveState
	journal  *coach.Journal
	state    StateSource
	games    GameSource
	renderer boardimg.Renderer
	logger   *zap.Logger

	srv       *fasthttp.Server
	startedAt time.Time
}

// NewServer wires the observer surface. games may be nil, which disables
// /games; a nil renderer selects the stock board renderer.
func NewServer(live *coach.LiveState, journal *coach.Journal, state StateSource, games GameSource, renderer boardimg.Renderer, logger *zap.Logger) (*Server, error) {
	if live == nil {
		return nil, fmt.Errorf("live state is required")
	}
	if journal == nil {
		return nil, fmt.Errorf("journal is required")
	}
	if state == nil {
		return nil, fmt.Errorf("session state source is required")
	}
	if renderer == nil {
		renderer = boardimg.NewRenderer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		live:      live,
		journal:   journal,
		state:     state,
		games:     games,
		renderer:  renderer,
		logger:    logger,
		startedAt: time.Now(),
	}
	s.srv = &fasthttp.Server{
		Handler:      s.handle,
		Name:         "leela-coach-status",
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
	return s, nil
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// ListenAndServe binds addr and serves until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	return s.srv.ListenAndServe(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

type stateResponse struct {
	Connection string `json:"connection"`
	LastError  string `json:"last_error,omitempty"`
	Busy       bool   `json:"busy"`
	Moves      int    `json:"moves"`
	UptimeMS   int64  `json:"uptime_ms"`
}

type critiquesResponse struct {
	Count     int                 `json:"count"`
	Critiques []coachdto.Critique `json:"critiques"`
}

type gamesResponse struct {
	Count int                   `json:"count"`
	Games []coachdto.GameRecord `json:"games"`
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}

	path := string(ctx.Path())
	s.logger.Debug("status request", zap.String("path", path))

	switch path {
	case "/healthz":
		writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
	case "/live":
		writeJSON(ctx, fasthttp.StatusOK, s.live.Snapshot())
	case "/critiques":
		s.handleCritiques(ctx)
	case "/state":
		s.handleState(ctx)
	case "/games":
		s.handleGames(ctx)
	case "/board.png":
		s.handleBoard(ctx)
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) handleCritiques(ctx *fasthttp.RequestCtx) {
	list := s.journal.Critiques()
	if list == nil {
		list = []coachdto.Critique{}
	}
	writeJSON(ctx, fasthttp.StatusOK, critiquesResponse{Count: len(list), Critiques: list})
}

func (s *Server) handleState(ctx *fasthttp.RequestCtx) {
	resp := stateResponse{
		Connection: s.state.State().String(),
		Busy:       s.live.Snapshot().Busy,
		Moves:      s.journal.Len(),
		UptimeMS:   time.Since(s.startedAt).Milliseconds(),
	}
	if err := s.state.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}

func (s *Server) handleGames(ctx *fasthttp.RequestCtx) {
	if s.games == nil {
		ctx.Error("archive disabled", fasthttp.StatusNotFound)
		return
	}

	limit := ctx.QueryArgs().GetUintOrZero("limit")
	if limit <= 0 {
		limit = defaultRecentGames
	}

	games, err := s.games.RecentGames(ctx, limit)
	if err != nil {
		s.logger.Warn("list recent games", zap.Error(err))
		ctx.Error("list games", fasthttp.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []coachdto.GameRecord{}
	}
	writeJSON(ctx, fasthttp.StatusOK, gamesResponse{Count: len(games), Games: games})
}

// handleBoard renders the live position. The last recorded move is tinted
// and the engine's current suggestion is drawn as an arrow.
func (s *Server) handleBoard(ctx *fasthttp.RequestCtx) {
	snap := s.live.Snapshot()
	opts := boardimg.Options{BestMove: snap.BestMove}
	if list := s.journal.Critiques(); len(list) > 0 {
		opts.LastMove = list[len(list)-1].MoveUCI
	}
	if size := ctx.QueryArgs().GetUintOrZero("size"); size > 0 {
		opts.SquareSize = min(size, maxBoardSquare)
	}

	data, err := s.renderer.RenderPNG(ctx, snap.FEN, opts)
	if err != nil {
		s.logger.Warn("render board", zap.Error(err))
		ctx.Error("render board", fasthttp.StatusInternalServerError)
		return
	}

	ctx.SetContentType("image/png")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(data)
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		ctx.Error("encode response", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(payload)
}
