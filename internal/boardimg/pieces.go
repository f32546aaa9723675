package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs are self-contained SVG outlines drawn for a 45x45 view box,
// kept as source constants so the renderer ships without asset files. Both
// colors share the outlines; fill and stroke are injected when the document
// is assembled.
const pieceViewBox = 45

var pieceOutlines = map[nchess.PieceType][]string{
	nchess.King: {
		"M21.3 6 L23.7 6 L23.7 9.3 L27 9.3 L27 11.7 L23.7 11.7 L23.7 15 L21.3 15 L21.3 11.7 L18 11.7 L18 9.3 L21.3 9.3 Z",
		"M22.5 15.5 C25.9 15.5 28.4 17.4 29.4 20.3 C32.9 18.8 36.4 20.9 36.4 24.6 C36.4 28 33.9 30.4 30.4 31.2 L14.6 31.2 C11.1 30.4 8.6 28 8.6 24.6 C8.6 20.9 12.1 18.8 15.6 20.3 C16.6 17.4 19.1 15.5 22.5 15.5 Z",
		"M14.6 31.2 L30.4 31.2 C30.9 34 31.9 36.2 33.2 38 L11.8 38 C13.1 36.2 14.1 34 14.6 31.2 Z",
	},
	nchess.Queen: {
		"M10.5 13.5 L13.7 26 L16.5 11.5 L19.6 25.5 L22.5 10 L25.4 25.5 L28.5 11.5 L31.3 26 L34.5 13.5 L32 31 L13 31 Z",
		"M13 31 L32 31 C32.7 33.8 33.7 36 35 37.8 L10 37.8 C11.3 36 12.3 33.8 13 31 Z",
		"M8.6 12 A1.9 1.9 0 1 0 12.4 12 A1.9 1.9 0 1 0 8.6 12 Z",
		"M14.6 10 A1.9 1.9 0 1 0 18.4 10 A1.9 1.9 0 1 0 14.6 10 Z",
		"M20.6 8.5 A1.9 1.9 0 1 0 24.4 8.5 A1.9 1.9 0 1 0 20.6 8.5 Z",
		"M26.6 10 A1.9 1.9 0 1 0 30.4 10 A1.9 1.9 0 1 0 26.6 10 Z",
		"M32.6 12 A1.9 1.9 0 1 0 36.4 12 A1.9 1.9 0 1 0 32.6 12 Z",
	},
	nchess.Rook: {
		"M12 9.5 L16 9.5 L16 12.5 L19.5 12.5 L19.5 9.5 L25.5 9.5 L25.5 12.5 L29 12.5 L29 9.5 L33 9.5 L33 16.5 L30 19.5 L30 32.5 L33 35.5 L33 39.5 L12 39.5 L12 35.5 L15 32.5 L15 19.5 L12 16.5 Z",
	},
	nchess.Bishop: {
		"M19.9 8.5 A2.6 2.6 0 1 0 25.1 8.5 A2.6 2.6 0 1 0 19.9 8.5 Z",
		"M22.5 12 C27 15.2 29.4 19.2 29.4 23.7 C29.4 27.1 27.6 30 24.8 31.5 L20.2 31.5 C17.4 30 15.6 27.1 15.6 23.7 C15.6 19.2 18 15.2 22.5 12 Z",
		"M18 32.5 L27 32.5 C30.5 33.8 32.5 35.8 32.5 38.5 L12.5 38.5 C12.5 35.8 14.5 33.8 18 32.5 Z",
	},
	nchess.Knight: {
		"M13.5 38.5 C13.5 29.5 15.5 24 20.5 20 L18 17 C17 18 15.4 18.6 13.9 18.1 C13.4 16.6 14.2 15.1 15.4 14.1 L19.9 10.3 C20.4 8.8 21.6 7.8 23.2 7.6 L24 10 C30 11.2 33.8 15.8 34.7 22.3 C35.4 27.5 35.6 32.7 35.6 38.5 Z",
	},
	nchess.Pawn: {
		"M17.5 12.5 A5 5 0 1 0 27.5 12.5 A5 5 0 1 0 17.5 12.5 Z",
		"M22.5 17 C25.5 19.5 27 22.5 27 25.5 C27 27.4 26.3 29.1 25.1 30.5 L19.9 30.5 C18.7 29.1 18 27.4 18 25.5 C18 22.5 19.5 19.5 22.5 17 Z",
		"M19 31.5 L26 31.5 C29.5 33 31.5 35.5 31.5 38.5 L13.5 38.5 C13.5 35.5 15.5 33 19 31.5 Z",
	},
}

const (
	whitePieceFill   = "#f6f3ea"
	whitePieceStroke = "#3b3733"
	blackPieceFill   = "#3b3733"
	blackPieceStroke = "#e8e4da"
)

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceImage rasterizes one piece glyph at the given square size. Results are
// cached per piece and size; callers must not mutate the returned image.
func pieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	doc, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

// pieceSVG assembles the standalone SVG document for one piece.
func pieceSVG(piece nchess.Piece) ([]byte, error) {
	outlines, ok := pieceOutlines[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}

	fill, stroke := whitePieceFill, whitePieceStroke
	if piece.Color() == nchess.Black {
		fill, stroke = blackPieceFill, blackPieceStroke
	}

	var doc bytes.Buffer
	fmt.Fprintf(&doc, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`, pieceViewBox, pieceViewBox)
	for _, d := range outlines {
		fmt.Fprintf(&doc, `<path d=%q fill=%q stroke=%q stroke-width="1.4" stroke-linejoin="round"/>`, d, fill, stroke)
	}
	doc.WriteString("</svg>")
	return doc.Bytes(), nil
}
