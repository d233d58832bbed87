package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeltaEqualRatings(t *testing.T) {
	assert.Equal(t, 16, Delta(1500, 1500, Win))
	assert.Equal(t, -16, Delta(1500, 1500, Loss))
	assert.Equal(t, 0, Delta(1500, 1500, Draw))
}

func TestDeltaFavoriteWinsSmall(t *testing.T) {
	// A much stronger player gains little for a win and loses a lot for a loss.
	gain := Delta(2000, 1600, Win)
	loss := Delta(2000, 1600, Loss)
	assert.Greater(t, gain, 0)
	assert.Less(t, gain, 10)
	assert.Less(t, loss, -20)
}

func TestDeltaUnderdogDrawGains(t *testing.T) {
	// Drawing a stronger opponent is worth points.
	assert.Greater(t, Delta(1400, 1800, Draw), 0)
	assert.Less(t, Delta(1800, 1400, Draw), 0)
}

func TestDeltaZeroSumForDecisiveResult(t *testing.T) {
	// Winner's gain mirrors loser's loss at any rating gap.
	for _, gap := range []int{0, 50, 100, 300, 700} {
		a, b := 1500+gap, 1500
		assert.Equal(t, Delta(a, b, Win), -Delta(b, a, Loss), "gap %d", gap)
	}
}

func TestDeltaBoundedByK(t *testing.T) {
	assert.LessOrEqual(t, Delta(0, 4000, Win), KFactor)
	assert.GreaterOrEqual(t, Delta(4000, 0, Loss), -KFactor)
}
