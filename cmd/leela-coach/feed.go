package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// errQuit ends the stdin feed without reporting a failure.
var errQuit = errors.New("quit")

const feedBanner = `leela-coach ready.
Enter moves in UCI form (e2e4). Commands: go, live, log, fen, new, quit.`

// runFeed reads moves and commands from stdin until EOF, 'quit', or a
// shutdown signal. Scanning happens on its own goroutine so a signal can
// interrupt a session that is blocked waiting for input.
func runFeed(ctx context.Context, a *app) error {
	fmt.Println(feedBanner)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := a.handleLine(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				return err
			}
		}
	}
}

func (a *app) handleLine(ctx context.Context, line string) error {
	switch strings.ToLower(line) {
	case "quit", "exit":
		return errQuit
	case "new":
		if err := a.coach.NewGameSync(ctx); err != nil {
			fmt.Println("New game failed:", err)
			return nil
		}
		fmt.Println("Game archived; fresh board.")
	case "go":
		if err := a.engineTurn(ctx); err != nil {
			fmt.Println("Engine turn failed:", err)
		}
	case "live", "status":
		fmt.Println(a.out.Live(a.coach.Live().Snapshot()))
	case "log", "history":
		critiques := a.coach.Journal().Critiques()
		if len(critiques) == 0 {
			fmt.Println("No moves recorded yet.")
			return nil
		}
		for _, c := range critiques {
			fmt.Println(a.out.Critique(c))
		}
	case "fen":
		fmt.Println(a.board.FEN())
	default:
		a.playerMove(ctx, line)
	}
	return nil
}

// playerMove pushes the move locally first so an illegal move never reaches
// the engine, then records it for critique.
func (a *app) playerMove(ctx context.Context, uci string) {
	side := a.board.SideToMove()
	san, fenAfter, err := a.board.PushUCI(uci)
	if err != nil {
		fmt.Println("Illegal move:", uci)
		return
	}
	critique, err := a.coach.RecordMoveSync(ctx, side, uci, san, fenAfter)
	if err != nil {
		fmt.Println("Analysis failed:", err)
		return
	}
	fmt.Println(a.out.Critique(critique))
	if a.board.GameOver() {
		fmt.Println("Game over. 'new' archives it and starts the next one.")
	}
}

// engineTurn asks the bridge to pick a move for the side to move, then
// records that move through the same critique path a player move takes.
func (a *app) engineTurn(ctx context.Context) error {
	side := a.board.SideToMove()
	mv, err := a.coach.PlayEngineMoveSync(ctx, a.board.FEN())
	if err != nil {
		return fmt.Errorf("engine move: %w", err)
	}
	fmt.Println(a.out.PlayedMove(*mv))
	critique, err := a.coach.RecordMoveSync(ctx, side, mv.UCI, mv.SAN, mv.FENAfter)
	if err != nil {
		return fmt.Errorf("record engine move: %w", err)
	}
	fmt.Println(a.out.Critique(critique))
	if a.board.GameOver() {
		fmt.Println("Game over. 'new' archives it and starts the next one.")
	}
	return nil
}
