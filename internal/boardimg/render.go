// Package boardimg rasterizes chess positions into PNG snapshots for the
// status API. Positions arrive as FEN strings; piece glyphs are built-in SVG
// outlines, so rendering works without any asset files on disk.
package boardimg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultSquareSize is the square edge in pixels when Options leaves it unset.
const DefaultSquareSize = 72

const boardSquares = 8

// Options selects the decorations drawn on top of the position.
type Options struct {
	// LastMove tints the from and to squares of the move that produced this
	// position. UCI notation; malformed values are ignored.
	LastMove string
	// BestMove draws an arrow for the engine's suggested move. UCI notation;
	// malformed values are ignored.
	BestMove string
	// SquareSize overrides the square edge in pixels when positive.
	SquareSize int
}

// Renderer rasterizes positions into PNG images.
type Renderer interface {
	RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error)
}

// NewRenderer returns the stock SVG-glyph renderer.
func NewRenderer() Renderer { return &svgRenderer{} }

type svgRenderer struct{}

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	backgroundFill = color.RGBA{30, 32, 43, 255}
	lastMoveTint   = color.NRGBA{R: 255, G: 228, B: 120, A: 110}
	bestMoveArrow  = color.NRGBA{R: 82, G: 146, B: 218, A: 175}
	coordinateInk  = color.NRGBA{R: 205, G: 210, B: 224, A: 255}
)

var (
	boardRanks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	boardFiles = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

func (r *svgRenderer) RenderPNG(ctx context.Context, fen string, opts Options) ([]byte, error) {
	board, err := parseBoard(fen)
	if err != nil {
		return nil, err
	}

	squareSize := opts.SquareSize
	if squareSize <= 0 {
		squareSize = DefaultSquareSize
	}
	margin := squareSize / 2
	boardSize := squareSize * boardSquares
	origin := image.Point{X: margin, Y: margin}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, boardSize+margin*2, boardSize+margin*2))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundFill), image.Point{}, imagedraw.Src)

	drawSquares(img, squareSize, origin)
	if from, to, ok := uciSquares(opts.LastMove); ok {
		drawSquareTint(img, from, squareSize, origin, lastMoveTint)
		drawSquareTint(img, to, squareSize, origin, lastMoveTint)
	}
	if err := drawPieces(img, board, squareSize, origin); err != nil {
		return nil, err
	}
	if from, to, ok := uciSquares(opts.BestMove); ok {
		drawArrow(img, from, to, squareSize, origin, bestMoveArrow)
	}
	drawCoordinates(img, squareSize, origin, margin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// parseBoard builds the board for a FEN string. Empty input and "startpos"
// select the standard initial position.
func parseBoard(fen string) (*nchess.Board, error) {
	trimmed := strings.TrimSpace(fen)
	var game *nchess.Game
	if trimmed == "" || trimmed == "startpos" {
		game = nchess.NewGame()
	} else {
		option, err := nchess.FEN(trimmed)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", trimmed, err)
		}
		game = nchess.NewGame(option)
	}
	return game.Position().Board(), nil
}

// uciSquares decodes the from and to squares of a UCI move string. Legality
// is not checked; callers only need coordinates for decoration.
func uciSquares(uci string) (from, to nchess.Square, ok bool) {
	s := strings.ToLower(strings.TrimSpace(uci))
	if len(s) < 4 {
		return 0, 0, false
	}
	from, ok = squareAt(s[0], s[1])
	if !ok {
		return 0, 0, false
	}
	to, ok = squareAt(s[2], s[3])
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}

func squareAt(fileCh, rankCh byte) (nchess.Square, bool) {
	if fileCh < 'a' || fileCh > 'h' || rankCh < '1' || rankCh > '8' {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(fileCh-'a'), nchess.Rank(rankCh-'1')), true
}

func drawSquares(dst imagedraw.Image, squareSize int, origin image.Point) {
	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			sq := nchess.NewSquare(file, rank)
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst imagedraw.Image, board *nchess.Board, squareSize int, origin image.Point) error {
	boardMap := board.SquareMap()
	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			piece := boardMap[sq]
			if piece == nchess.NoPiece {
				continue
			}
			glyph, err := pieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			x := origin.X + col*squareSize
			y := origin.Y + row*squareSize
			imagedraw.Draw(dst, image.Rect(x, y, x+squareSize, y+squareSize), glyph, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawSquareTint(img *image.RGBA, sq nchess.Square, squareSize int, origin image.Point, clr color.Color) {
	rect := squareRect(sq, squareSize, origin)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawCoordinates(dst *image.RGBA, squareSize int, origin image.Point, margin int) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Face: face,
		Src:  image.NewUniform(coordinateInk),
	}

	ascent := face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + boardSquares*squareSize

	for row, rank := range boardRanks {
		baseline := origin.Y + row*squareSize + (squareSize+ascent)/2
		drawCenteredText(drawer, rank.String(), origin.X-margin/2, baseline)
	}
	for col, file := range boardFiles {
		centerX := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), centerX, boardEndY+(margin+ascent)/2)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func squareRect(sq nchess.Square, squareSize int, origin image.Point) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareCenter(sq nchess.Square, squareSize int, origin image.Point) image.Point {
	rect := squareRect(sq, squareSize, origin)
	return image.Point{X: rect.Min.X + squareSize/2, Y: rect.Min.Y + squareSize/2}
}
