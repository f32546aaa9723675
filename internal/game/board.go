package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
)

var ErrIllegalMove = errors.New("illegal move")

// Board tracks one game and supplies the coach with positions and notation.
// It is the stock implementation of the position source / move sink the
// coach works against; anything producing a FEN and accepting UCI moves can
// stand in for it.
type Board struct {
	mu sync.Mutex
	g  *nchess.Game
}

func NewBoard() *Board {
	return &Board{g: nchess.NewGame()}
}

// FEN reports the current position.
func (b *Board) FEN() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.g.FEN()
}

// SideToMove reports "white" or "black".
func (b *Board) SideToMove() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.g.Position().Turn() == nchess.White {
		return "white"
	}
	return "black"
}

// PushUCI applies a move in UCI notation ("e2e4", "e7e8q") and returns its
// SAN form plus the position after it.
func (b *Board) PushUCI(uci string) (san, fenAfter string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	trimmed := strings.ToLower(strings.TrimSpace(uci))
	if trimmed == "" {
		return "", "", fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	pos := b.g.Position()
	mv, derr := nchess.UCINotation{}.Decode(pos, trimmed)
	if derr != nil {
		return "", "", fmt.Errorf("%w: %s", ErrIllegalMove, trimmed)
	}
	if merr := b.g.Move(mv, nil); merr != nil {
		return "", "", fmt.Errorf("%w: %s", ErrIllegalMove, trimmed)
	}
	san = nchess.AlgebraicNotation{}.Encode(pos, mv)
	return san, b.g.FEN(), nil
}

// MovesUCI lists the moves played so far.
func (b *Board) MovesUCI() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	moves := b.g.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

// Result reports the game result ("win"/"loss"/"draw" from White's side, or
// "in_progress") and the method that ended it.
func (b *Board) Result() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.g.Outcome() {
	case nchess.WhiteWon:
		return "win", strings.ToLower(b.g.Method().String())
	case nchess.BlackWon:
		return "loss", strings.ToLower(b.g.Method().String())
	case nchess.Draw:
		return "draw", strings.ToLower(b.g.Method().String())
	default:
		return "in_progress", ""
	}
}

// GameOver reports whether play has ended.
func (b *Board) GameOver() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.g.Outcome() != nchess.NoOutcome
}

// Reset starts a fresh game from the standard initial position.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.g = nchess.NewGame()
}
