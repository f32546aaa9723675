package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/park285/leela-coach/internal/bridge"
	"github.com/park285/leela-coach/internal/config"
	"github.com/park285/leela-coach/internal/present"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func main() {
	prefs, err := config.Load("")
	if err != nil {
		log.Fatalf("load preferences: %v", err)
	}
	url := prefs.BridgeURL()
	log.Printf("bridge: %s", url)

	session := bridge.NewSession(url, zap.NewNop())
	session.OnStateChange(func(state bridge.State) {
		log.Printf("bridge state: %s", state)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := session.Connect(ctx); err != nil {
		log.Fatalf("connect error: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = session.Close(closeCtx)
	}()

	ngCtx, ngCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ngCancel()
	if err := session.NewGame(ngCtx); err != nil {
		log.Printf("new_game error: %v", err)
	} else {
		log.Println("new_game ok")
	}

	aCtx, aCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer aCancel()
	analysis, err := session.Analyse(aCtx, startFEN, prefs.Think.AnalyseMS)
	if err != nil {
		log.Printf("analyse error: %v", err)
	} else {
		log.Printf("analyse ok: best=%s score=%s depth=%d nodes=%d pv=%v",
			analysis.BestMove,
			present.FormatScore(analysis.ScoreCP, analysis.ScoreMate),
			analysis.Depth, analysis.Nodes, analysis.PV)
	}

	mCtx, mCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer mCancel()
	mv, err := session.EngineMove(mCtx, startFEN, prefs.Think.EngineMoveMS)
	if err != nil {
		log.Printf("engine_move error: %v", err)
	} else {
		log.Printf("engine_move ok: move=%s score=%s pv=%v",
			mv.Move,
			present.FormatScore(mv.ScoreCP, mv.ScoreMate),
			mv.PV)
	}
}
