package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gambitchess/gambit/internal/models"
)

func TestNewGameStartsWhiteToMove(t *testing.T) {
	g := New()
	assert.Equal(t, models.ColorWhite, g.Turn())
	assert.False(t, g.Status().Terminal)
}

func TestApplyMoveSANAndTurnFlip(t *testing.T) {
	g := New()

	san, err := g.ApplyMove("e4")
	require.NoError(t, err)
	assert.Equal(t, "e4", san)
	assert.Equal(t, models.ColorBlack, g.Turn())

	san, err = g.ApplyMove("e5")
	require.NoError(t, err)
	assert.Equal(t, "e5", san)
	assert.Equal(t, models.ColorWhite, g.Turn())
}

func TestApplyMoveUCIFallback(t *testing.T) {
	g := New()

	san, err := g.ApplyMove("e2e4")
	require.NoError(t, err)
	assert.Equal(t, "e4", san)
	assert.Equal(t, models.ColorBlack, g.Turn())
}

func TestApplyMoveIllegalLeavesPositionUnchanged(t *testing.T) {
	g := New()
	fen := g.FEN()

	_, err := g.ApplyMove("Ke2")
	assert.ErrorIs(t, err, ErrIllegalMove)
	assert.Equal(t, fen, g.FEN())
	assert.Equal(t, models.ColorWhite, g.Turn())

	_, err = g.ApplyMove("")
	assert.ErrorIs(t, err, ErrIllegalMove)
}

func TestScholarsMateIsCheckmate(t *testing.T) {
	g := New()
	for _, mv := range []string{"e4", "e5", "Qh5", "Nc6", "Bc4", "Nf6", "Qxf7#"} {
		_, err := g.ApplyMove(mv)
		require.NoError(t, err, "move %s", mv)
	}

	st := g.Status()
	assert.True(t, st.Terminal)
	assert.True(t, st.Checkmate)
	assert.Equal(t, models.ColorWhite, st.Winner)
}

func TestStalemateDetected(t *testing.T) {
	// Classic quickest stalemate (Sam Loyd): black has no legal moves, no check.
	g := New()
	for _, mv := range []string{
		"e3", "a5", "Qh5", "Ra6", "Qxa5", "h5", "Qxc7", "Rah6",
		"h4", "f6", "Qxd7+", "Kf7", "Qxb7", "Qd3", "Qxb8", "Qh7",
		"Qxc8", "Kg6", "Qe6",
	} {
		_, err := g.ApplyMove(mv)
		require.NoError(t, err, "move %s", mv)
	}

	st := g.Status()
	assert.True(t, st.Terminal)
	assert.True(t, st.Stalemate)
	assert.Empty(t, st.Winner)
}

func TestNewFromFEN(t *testing.T) {
	g := New()
	_, err := g.ApplyMove("e4")
	require.NoError(t, err)

	resumed, err := NewFromFEN(g.FEN())
	require.NoError(t, err)
	assert.Equal(t, models.ColorBlack, resumed.Turn())

	_, err = NewFromFEN("not a fen")
	assert.Error(t, err)
}
