package coach

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/leela-coach/internal/bridge"
	"github.com/park285/leela-coach/internal/game"
	"github.com/park285/leela-coach/pkg/coachdto"
)

// Engine is the slice of the bridge session the coach drives. *bridge.Session
// satisfies it; tests substitute a scripted fake.
type Engine interface {
	Analyse(ctx context.Context, fen string, movetime int) (*bridge.Analysis, error)
	EngineMove(ctx context.Context, fen string, movetime int) (*bridge.EngineMove, error)
	NewGame(ctx context.Context) error
}

// Archiver receives the finished critique log when a new game starts. The
// archive is an observer: a store failure is logged, never propagated into
// game state.
type Archiver interface {
	SaveGame(ctx context.Context, rec coachdto.GameRecord) error
}

// Config carries the engine search budgets in milliseconds.
type Config struct {
	AnalyseMovetimeMS    int
	EngineMoveMovetimeMS int
}

// PlayedMove is the outcome of an engine move after it has been applied to
// the coach's board.
type PlayedMove struct {
	UCI       string
	SAN       string
	FENAfter  string
	ScoreCP   *int
	ScoreMate *int
	PV        []string
}

// Coach binds the engine session, the single-flight scheduler, the board
// handle and the critique history into the four coaching operations. Every
// operation is submitted as one scheduler unit, so at most one engine
// exchange is in flight and history updates happen in submission order.
//
// Scores flow through side-to-move relative, exactly as the bridge reports
// them; nothing here re-signs them.
type Coach struct {
	engine  Engine
	sched   *bridge.Scheduler
	board   *game.Board
	archive Archiver
	logger  *zap.Logger

	journal *Journal
	live    *LiveState

	thinkMu      sync.RWMutex
	analyseMS    int
	engineMoveMS int
}

func NewCoach(engine Engine, sched *bridge.Scheduler, board *game.Board, archive Archiver, cfg Config, logger *zap.Logger) (*Coach, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine session is required")
	}
	if sched == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if board == nil {
		return nil, fmt.Errorf("board handle is required")
	}
	if archive == nil {
		return nil, fmt.Errorf("archive store is required")
	}
	if cfg.AnalyseMovetimeMS <= 0 || cfg.EngineMoveMovetimeMS <= 0 {
		return nil, fmt.Errorf("think times must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coach{
		engine:       engine,
		sched:        sched,
		board:        board,
		archive:      archive,
		logger:       logger,
		journal:      NewJournal(),
		live:         NewLiveState(),
		analyseMS:    cfg.AnalyseMovetimeMS,
		engineMoveMS: cfg.EngineMoveMovetimeMS,
	}, nil
}

// Journal exposes the critique history for observers.
func (c *Coach) Journal() *Journal { return c.journal }

// Live exposes the published evaluation slot for observers.
func (c *Coach) Live() *LiveState { return c.live }

// SetThinkTimes applies reloaded search budgets to subsequent requests.
// Non-positive values are ignored.
func (c *Coach) SetThinkTimes(analyseMS, engineMoveMS int) {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if analyseMS > 0 {
		c.analyseMS = analyseMS
	}
	if engineMoveMS > 0 {
		c.engineMoveMS = engineMoveMS
	}
}

func (c *Coach) analyseBudget() int {
	c.thinkMu.RLock()
	defer c.thinkMu.RUnlock()
	return c.analyseMS
}

func (c *Coach) engineMoveBudget() int {
	c.thinkMu.RLock()
	defer c.thinkMu.RUnlock()
	return c.engineMoveMS
}

// Analyse schedules an evaluation of fen. The completed analysis lands in
// live state and becomes the carried baseline for the next recorded move.
func (c *Coach) Analyse(fen string) *bridge.Unit {
	return c.submit("analyse", func() error {
		_, err := c.analyse(fen)
		return err
	})
}

// AnalyseSync runs Analyse and blocks until the unit finishes or ctx ends.
func (c *Coach) AnalyseSync(ctx context.Context, fen string) (*coachdto.Analysis, error) {
	var out *coachdto.Analysis
	u := c.submit("analyse", func() error {
		a, err := c.analyse(fen)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err := u.Wait(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// PlayEngineMove schedules an engine move for the side to move in fen and
// applies the reply to the coach's board. Only the best-move hint changes in
// live state; the analysis evaluation is left alone because no
// analysis-typed exchange ran.
func (c *Coach) PlayEngineMove(fen string) *bridge.Unit {
	return c.submit("engine-move", func() error {
		_, err := c.playEngineMove(fen)
		return err
	})
}

// PlayEngineMoveSync runs PlayEngineMove and blocks for the applied move.
func (c *Coach) PlayEngineMoveSync(ctx context.Context, fen string) (*PlayedMove, error) {
	var out *PlayedMove
	u := c.submit("engine-move", func() error {
		mv, err := c.playEngineMove(fen)
		if err != nil {
			return err
		}
		out = mv
		return nil
	})
	if err := u.Wait(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordMove schedules the critique of a move that was just played: analyse
// the position after it, grade it against the carried pre-move analysis,
// append the critique, and carry the fresh analysis for the next move.
func (c *Coach) RecordMove(side, uci, san, fenAfter string) *bridge.Unit {
	return c.submit("record-move", func() error {
		_, err := c.recordMove(side, uci, san, fenAfter)
		return err
	})
}

// RecordMoveSync runs RecordMove and blocks for the appended critique.
func (c *Coach) RecordMoveSync(ctx context.Context, side, uci, san, fenAfter string) (coachdto.Critique, error) {
	var out coachdto.Critique
	u := c.submit("record-move", func() error {
		crit, err := c.recordMove(side, uci, san, fenAfter)
		if err != nil {
			return err
		}
		out = crit
		return nil
	})
	if err := u.Wait(ctx); err != nil {
		return coachdto.Critique{}, err
	}
	return out, nil
}

// NewGame schedules the game rollover: tell the engine to reset, archive the
// finished critique log, then clear history, live state and the board.
func (c *Coach) NewGame() *bridge.Unit {
	return c.submit("new-game", c.newGame)
}

// NewGameSync runs NewGame and blocks until the rollover finishes.
func (c *Coach) NewGameSync(ctx context.Context) error {
	return c.submit("new-game", c.newGame).Wait(ctx)
}

// submit wraps every operation with the busy flag and the failure surface:
// the flag covers exactly the unit function's execution, and a failed unit
// reports itself through live feedback without touching recorded critiques.
func (c *Coach) submit(name string, fn func() error) *bridge.Unit {
	return c.sched.Submit(name, func() error {
		c.live.SetBusy(true)
		defer c.live.SetBusy(false)
		if err := fn(); err != nil {
			c.live.SetFeedback(fmt.Sprintf("%s failed: %v", name, err))
			return err
		}
		return nil
	})
}

func (c *Coach) analyse(fen string) (*coachdto.Analysis, error) {
	res, err := c.engine.Analyse(context.Background(), fen, c.analyseBudget())
	if err != nil {
		return nil, err
	}
	a := convertAnalysis(res)
	c.live.ApplyAnalysis(a)
	c.journal.SetCarried(a)
	c.logger.Debug("analysis applied",
		zap.String("best_move", a.BestMove),
		zap.Int("depth", a.Depth))
	return a, nil
}

func (c *Coach) playEngineMove(fen string) (*PlayedMove, error) {
	res, err := c.engine.EngineMove(context.Background(), fen, c.engineMoveBudget())
	if err != nil {
		return nil, err
	}
	if res.Move == "" {
		return nil, fmt.Errorf("engine returned no move")
	}
	san, fenAfter, err := c.board.PushUCI(res.Move)
	if err != nil {
		return nil, fmt.Errorf("apply engine move %s: %w", res.Move, err)
	}
	c.live.SetBestMove(res.Move)
	c.logger.Info("engine move played",
		zap.String("move", res.Move),
		zap.String("san", san))
	return &PlayedMove{
		UCI:       res.Move,
		SAN:       san,
		FENAfter:  fenAfter,
		ScoreCP:   res.ScoreCP,
		ScoreMate: res.ScoreMate,
		PV:        append([]string(nil), res.PV...),
	}, nil
}

func (c *Coach) recordMove(side, uci, san, fenAfter string) (coachdto.Critique, error) {
	if uci == "" || fenAfter == "" {
		return coachdto.Critique{}, fmt.Errorf("recording a move requires its UCI form and the position after it")
	}

	// The carried analysis evaluates the position the mover faced; it is the
	// baseline the move is graded against.
	prev := c.journal.Carried()

	res, err := c.engine.Analyse(context.Background(), fenAfter, c.analyseBudget())
	if err != nil {
		return coachdto.Critique{}, err
	}
	after := convertAnalysis(res)
	c.live.ApplyAnalysis(after)

	crit := coachdto.Critique{
		Side:       side,
		MoveUCI:    uci,
		MoveSAN:    san,
		ScoreAfter: after.ScoreCP,
	}
	var before *int
	var alts []coachdto.Alternative
	if prev != nil {
		before = prev.ScoreCP
		alts = prev.Alternatives
		crit.ScoreBefore = prev.ScoreCP
		crit.Alternatives = prev.Alternatives
		crit.Characteristics = prev.Characteristics
	}
	crit.Verdict, crit.Comment = Classify(before, after.ScoreCP, alts)

	crit = c.journal.Append(crit)
	c.journal.SetCarried(after)

	c.logger.Info("move recorded",
		zap.Int("seq", crit.Seq),
		zap.String("side", side),
		zap.String("move", uci),
		zap.String("verdict", string(crit.Verdict)))
	return crit, nil
}

func (c *Coach) newGame() error {
	if err := c.engine.NewGame(context.Background()); err != nil {
		return err
	}

	result, _ := c.board.Result()
	rec := c.journal.Record(result)
	// An untouched game produces no record worth keeping.
	if len(rec.Critiques) > 0 {
		if err := c.archive.SaveGame(context.Background(), rec); err != nil {
			c.logger.Warn("archiving finished game failed",
				zap.String("game_id", rec.ID),
				zap.Error(err))
		} else {
			c.logger.Info("game archived",
				zap.String("game_id", rec.ID),
				zap.String("result", rec.Result),
				zap.Int("critiques", len(rec.Critiques)))
		}
	}

	c.journal.Clear()
	c.live.Reset()
	c.board.Reset()
	return nil
}

func convertAnalysis(res *bridge.Analysis) *coachdto.Analysis {
	a := &coachdto.Analysis{
		FEN:       res.FEN,
		BestMove:  res.BestMove,
		From:      res.From,
		To:        res.To,
		Promotion: res.Promotion,
		ScoreCP:   res.ScoreCP,
		ScoreMate: res.ScoreMate,
		PV:        append([]string(nil), res.PV...),
		Depth:     res.Depth,
		Nodes:     res.Nodes,
		Feedback:  res.Feedback,
	}
	for _, alt := range res.Alternatives {
		a.Alternatives = append(a.Alternatives, coachdto.Alternative{
			Rank:      alt.Rank,
			Move:      alt.Move,
			From:      alt.From,
			To:        alt.To,
			Promotion: alt.Promotion,
			ScoreCP:   alt.ScoreCP,
			ScoreMate: alt.ScoreMate,
		})
	}
	if res.Characteristics != nil {
		a.Characteristics = &coachdto.Characteristics{
			Sharpness:      res.Characteristics.Sharpness,
			Difficulty:     res.Characteristics.Difficulty,
			MarginForError: res.Characteristics.MarginForError,
			LineType:       res.Characteristics.LineType,
			Explanation:    res.Characteristics.Explanation,
		}
	}
	return a
}
