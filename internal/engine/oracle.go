// internal/engine/oracle.go
package engine

import (
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/gambitchess/gambit/internal/models"
)

// ErrIllegalMove is returned by ApplyMove when the move text is not a legal
// move in the current position.
var ErrIllegalMove = errors.New("illegal move")

// Status is the terminal-state report for the current position. At most one
// of the reason flags is set; Terminal is false for an ongoing game.
type Status struct {
	Terminal             bool
	Winner               models.Color // empty on draw or ongoing
	Checkmate            bool
	Stalemate            bool
	InsufficientMaterial bool
	FiftyMove            bool
	ThreefoldRepetition  bool
}

// Game wraps the chess rule library behind the narrow oracle surface the
// match session consumes: apply a move, render FEN, report whose move it is,
// and report terminal status. Everything else about the rules lives in the
// library.
type Game struct {
	g *nchess.Game
}

// New returns a game at the standard starting position.
func New() *Game {
	return &Game{g: nchess.NewGame()}
}

// NewFromFEN returns a game resumed from the given FEN string.
func NewFromFEN(fen string) (*Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, err
	}
	return &Game{g: nchess.NewGame(opt)}, nil
}

// ApplyMove applies a move given in SAN (preferred) or UCI notation and
// returns the SAN form actually played. The position is unchanged on error.
func (e *Game) ApplyMove(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrIllegalMove
	}

	pos := e.g.Position()

	if err := e.g.PushNotationMove(text, nchess.AlgebraicNotation{}, nil); err == nil {
		return e.lastSAN(pos), nil
	}

	// UCI fallback for clients that send coordinate notation.
	uci := strings.ToLower(text)
	if mv, err := (nchess.UCINotation{}).Decode(pos, uci); err == nil {
		if err := e.g.Move(mv, nil); err == nil {
			return e.lastSAN(pos), nil
		}
	}

	return "", ErrIllegalMove
}

// lastSAN encodes the most recently played move against its pre-move position.
func (e *Game) lastSAN(pre *nchess.Position) string {
	moves := e.g.Moves()
	if len(moves) == 0 {
		return ""
	}
	return nchess.AlgebraicNotation{}.Encode(pre, moves[len(moves)-1])
}

// FEN renders the current position.
func (e *Game) FEN() string {
	return e.g.FEN()
}

// Turn reports which color moves next.
func (e *Game) Turn() models.Color {
	if e.g.Position().Turn() == nchess.White {
		return models.ColorWhite
	}
	return models.ColorBlack
}

// Status reports whether the game has ended and why. Fifty-move and threefold
// draws are claimed automatically rather than left to the players, matching
// the behavior clients expect from the wire protocol.
func (e *Game) Status() Status {
	if e.g.Outcome() == nchess.NoOutcome {
		for _, m := range e.g.EligibleDraws() {
			if m == nchess.FiftyMoveRule || m == nchess.ThreefoldRepetition {
				_ = e.g.Draw(m)
				break
			}
		}
	}

	var st Status
	switch e.g.Outcome() {
	case nchess.WhiteWon:
		st.Terminal = true
		st.Winner = models.ColorWhite
	case nchess.BlackWon:
		st.Terminal = true
		st.Winner = models.ColorBlack
	case nchess.Draw:
		st.Terminal = true
	default:
		return st
	}

	switch e.g.Method() {
	case nchess.Checkmate:
		st.Checkmate = true
	case nchess.Stalemate:
		st.Stalemate = true
	case nchess.InsufficientMaterial:
		st.InsufficientMaterial = true
	case nchess.FiftyMoveRule:
		st.FiftyMove = true
	case nchess.ThreefoldRepetition:
		st.ThreefoldRepetition = true
	}
	return st
}
