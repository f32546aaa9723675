package main

import (
	"context"
	"fmt"
)

// runSelfplay lets the engine play both sides for at most halfMoves plies,
// critiquing each move as it lands, then archives the game and prints its
// summary. A baseline analysis runs first so the opening move is graded
// against a real alternative instead of an empty carry.
func runSelfplay(ctx context.Context, a *app, halfMoves int) error {
	fmt.Printf("Self-play: up to %d half-moves against %s\n", halfMoves, a.prefs.BridgeURL())

	if _, err := a.coach.AnalyseSync(ctx, a.board.FEN()); err != nil {
		return fmt.Errorf("analyse initial position: %w", err)
	}

	for played := 0; played < halfMoves; played++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.board.GameOver() {
			break
		}
		if err := a.engineTurn(ctx); err != nil {
			return err
		}
	}

	if err := a.coach.NewGameSync(ctx); err != nil {
		return fmt.Errorf("archive game: %w", err)
	}
	records, err := a.store.RecentGames(ctx, 1)
	if err != nil {
		return fmt.Errorf("load archived game: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No game archived.")
		return nil
	}
	fmt.Println(a.out.GameSummary(records[0]))
	return nil
}
