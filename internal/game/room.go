// internal/game/room.go
package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/engine"
	"github.com/gambitchess/gambit/internal/models"
	"github.com/gambitchess/gambit/internal/rating"
)

// DisconnectGrace is how long a vacated seat is held before the game is
// forfeited as abandoned.
const DisconnectGrace = 30 * time.Second

// RoomState is the lifecycle of a match session.
type RoomState string

const (
	StatePlaying  RoomState = "playing"
	StateFinished RoomState = "finished"
)

// End reasons reported in MatchResult and on the wire.
const (
	ReasonCheckmate            = "checkmate"
	ReasonStalemate            = "stalemate"
	ReasonInsufficientMaterial = "insufficient_material"
	ReasonFiftyMove            = "fifty_move"
	ReasonThreefold            = "threefold_repetition"
	ReasonResignation          = "resignation"
	ReasonAgreedDraw           = "agreed_draw"
	ReasonAbandonment          = "abandonment"
)

// MatchResult is the immutable outcome of a finished room. Winner is empty
// for a draw. The deltas are computed exactly once, when the room finishes.
type MatchResult struct {
	GameID     uuid.UUID
	Winner     models.Color
	Reason     string
	WhiteDelta int
	BlackDelta int
}

// MoveOutcome is everything a successful MakeMove produces: the SAN actually
// played, the new position, and the clocks after deduction and increment.
// Result is non-nil when the move ended the game.
type MoveOutcome struct {
	Move    string
	FEN     string
	Turn    models.Color
	WhiteMs int64
	BlackMs int64
	Result  *MatchResult
}

// Room is one match session: two seats, a rules oracle, clocks and the draw
// negotiation state. Every mutation takes the room mutex; mutators called
// after the room finished return nil and change nothing.
type Room struct {
	mu sync.Mutex

	ID          uuid.UUID
	white       *models.Player
	black       *models.Player
	eng         *engine.Game
	state       RoomState
	result      *MatchResult
	moveHistory []string // SAN
	timeControl models.TimeControl

	whiteClockMs int64
	blackClockMs int64
	turnStarted  time.Time

	// drawOfferedBy is the color with an outstanding offer, empty otherwise.
	drawOfferedBy models.Color

	deltaFn rating.DeltaFunc
	log     *logrus.Logger

	// now is injectable for deterministic clock and grace-period tests.
	now func() time.Time
}

// NewRoom seats two players and starts the game, white to move with full
// clocks.
func NewRoom(white, black *models.Player, tc models.TimeControl, deltaFn rating.DeltaFunc, log *logrus.Logger) *Room {
	r := &Room{
		ID:           uuid.New(),
		white:        white,
		black:        black,
		eng:          engine.New(),
		state:        StatePlaying,
		timeControl:  tc,
		whiteClockMs: int64(tc.InitialSeconds) * 1000,
		blackClockMs: int64(tc.InitialSeconds) * 1000,
		deltaFn:      deltaFn,
		log:          log,
		now:          time.Now,
	}
	r.turnStarted = r.now()
	return r
}

// seat returns the player occupying the given color.
func (r *Room) seat(c models.Color) *models.Player {
	if c == models.ColorWhite {
		return r.white
	}
	return r.black
}

// colorOf maps a connection id to its seat color, or "" if the connection
// holds no seat here.
func (r *Room) colorOf(connID string) models.Color {
	if r.white != nil && r.white.ConnectionID == connID {
		return models.ColorWhite
	}
	if r.black != nil && r.black.ConnectionID == connID {
		return models.ColorBlack
	}
	return ""
}

// MakeMove validates and applies a move for the given connection. Rejections
// come back as a stable code via RoomError; nil error means the outcome is
// valid. Precondition order: liveness, seat, turn, legality.
func (r *Room) MakeMove(connID, moveText string) (*MoveOutcome, *RoomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFinished {
		return nil, errGameOver()
	}
	color := r.colorOf(connID)
	if color == "" {
		return nil, errNotAPlayer()
	}
	if r.eng.Turn() != color {
		return nil, errNotYourTurn()
	}

	san, err := r.eng.ApplyMove(moveText)
	if err != nil {
		return nil, errIllegalMove(moveText)
	}

	r.deductAndIncrement(color)
	r.moveHistory = append(r.moveHistory, san)
	r.drawOfferedBy = ""
	r.turnStarted = r.now()

	out := &MoveOutcome{
		Move:    san,
		FEN:     r.eng.FEN(),
		Turn:    r.eng.Turn(),
		WhiteMs: r.whiteClockMs,
		BlackMs: r.blackClockMs,
	}

	if st := r.eng.Status(); st.Terminal {
		out.Result = r.finishLocked(st.Winner, statusReason(st))
	}
	return out, nil
}

// deductAndIncrement charges the mover for elapsed think time and credits
// their increment. The clock never goes below zero; time forfeit is not
// adjudicated here.
func (r *Room) deductAndIncrement(mover models.Color) {
	elapsed := r.now().Sub(r.turnStarted).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}
	inc := int64(r.timeControl.IncrementSeconds) * 1000

	clock := &r.whiteClockMs
	if mover == models.ColorBlack {
		clock = &r.blackClockMs
	}
	*clock -= elapsed
	if *clock < 0 {
		*clock = 0
	}
	*clock += inc
}

func statusReason(st engine.Status) string {
	switch {
	case st.Checkmate:
		return ReasonCheckmate
	case st.Stalemate:
		return ReasonStalemate
	case st.InsufficientMaterial:
		return ReasonInsufficientMaterial
	case st.FiftyMove:
		return ReasonFiftyMove
	default:
		return ReasonThreefold
	}
}

// Resign concedes the game for the given connection. Returns nil if the
// connection holds no seat or the game already finished.
func (r *Room) Resign(connID string) *MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.colorOf(connID)
	if color == "" || r.state == StateFinished {
		return nil
	}
	return r.finishLocked(color.Other(), ReasonResignation)
}

// OfferDraw records a draw offer. It reports whether the offer is newly
// outstanding; it no-ops when the game is over, the caller holds no seat,
// the caller already offered, or the opponent's offer is pending (which
// should be accepted instead).
func (r *Room) OfferDraw(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.colorOf(connID)
	if color == "" || r.state == StateFinished || r.drawOfferedBy != "" {
		return false
	}
	r.drawOfferedBy = color
	return true
}

// AcceptDraw ends the game by agreement. It returns nil unless the opponent
// has an outstanding offer.
func (r *Room) AcceptDraw(connID string) *MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.colorOf(connID)
	if color == "" || r.state == StateFinished {
		return nil
	}
	if r.drawOfferedBy == "" || r.drawOfferedBy == color {
		return nil
	}
	r.drawOfferedBy = ""
	return r.finishLocked("", ReasonAgreedDraw)
}

// DeclineDraw clears the opponent's outstanding offer. It reports whether an
// offer was actually cleared.
func (r *Room) DeclineDraw(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.colorOf(connID)
	if color == "" || r.state == StateFinished {
		return false
	}
	if r.drawOfferedBy == "" || r.drawOfferedBy == color {
		return false
	}
	r.drawOfferedBy = ""
	return true
}

// HandleDisconnect marks a seat vacated and starts its grace period. It
// reports the color that disconnected, or "" if the connection holds no
// seat. Finished rooms still track connection state so the registry can
// sweep fully abandoned rooms.
func (r *Room) HandleDisconnect(connID string) models.Color {
	r.mu.Lock()
	defer r.mu.Unlock()

	color := r.colorOf(connID)
	if color == "" {
		return ""
	}
	p := r.seat(color)
	if !p.Connected {
		return ""
	}
	now := r.now()
	p.Connected = false
	p.DisconnectedAt = &now
	return color
}

// HandleReconnect reseats a player by reconnect token, rebinding the seat to
// the new connection. Returns the reseated player, or nil if the token
// matches neither seat or the game already finished.
func (r *Room) HandleReconnect(token uuid.UUID, newConnID string) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFinished {
		return nil
	}
	for _, p := range []*models.Player{r.white, r.black} {
		if p != nil && p.ReconnectToken == token {
			p.ConnectionID = newConnID
			p.Connected = true
			p.DisconnectedAt = nil
			return p
		}
	}
	return nil
}

// CheckDisconnectTimeout forfeits the game if a vacated seat has outrun its
// grace period. With both seats vacated past the grace, the seat that left
// first loses. Returns nil while the game should continue.
func (r *Room) CheckDisconnectTimeout() *MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateFinished {
		return nil
	}

	now := r.now()
	expired := func(p *models.Player) bool {
		return p != nil && !p.Connected && p.DisconnectedAt != nil &&
			now.Sub(*p.DisconnectedAt) >= DisconnectGrace
	}

	w, b := expired(r.white), expired(r.black)
	switch {
	case w && b:
		loser := models.ColorWhite
		if r.black.DisconnectedAt.Before(*r.white.DisconnectedAt) {
			loser = models.ColorBlack
		}
		return r.finishLocked(loser.Other(), ReasonAbandonment)
	case w:
		return r.finishLocked(models.ColorBlack, ReasonAbandonment)
	case b:
		return r.finishLocked(models.ColorWhite, ReasonAbandonment)
	}
	return nil
}

// finishLocked transitions to finished and computes both rating deltas
// exactly once. Caller holds the mutex.
func (r *Room) finishLocked(winner models.Color, reason string) *MatchResult {
	r.state = StateFinished
	r.drawOfferedBy = ""

	whiteOutcome := rating.Draw
	switch winner {
	case models.ColorWhite:
		whiteOutcome = rating.Win
	case models.ColorBlack:
		whiteOutcome = rating.Loss
	}

	res := &MatchResult{
		GameID: r.ID,
		Winner: winner,
		Reason: reason,
	}
	if r.deltaFn != nil {
		res.WhiteDelta = r.deltaFn(r.white.Rating, r.black.Rating, whiteOutcome)
		res.BlackDelta = r.deltaFn(r.black.Rating, r.white.Rating, 2-whiteOutcome)
	}
	r.result = res

	r.log.WithFields(logrus.Fields{
		"game_id": r.ID,
		"winner":  winner,
		"reason":  reason,
	}).Info("game finished")
	return res
}

// --- read-side queries ---

// State reports the lifecycle state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the final result, or nil while the game is in progress.
func (r *Room) Result() *MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Turn reports which color moves next.
func (r *Room) Turn() models.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eng.Turn()
}

// Player returns the seat for the given color.
func (r *Room) Player(c models.Color) *models.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seat(c)
}

// PlayerByConn returns the seat color and player for a connection.
func (r *Room) PlayerByConn(connID string) (models.Color, *models.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.colorOf(connID)
	if c == "" {
		return "", nil
	}
	return c, r.seat(c)
}

// DrawOfferedBy reports the color with an outstanding offer, "" if none.
func (r *Room) DrawOfferedBy() models.Color {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drawOfferedBy
}

// BothSeatsVacated reports whether neither seat has a live connection.
func (r *Room) BothSeatsVacated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.white.Connected && !r.black.Connected
}

// SeatSummary is the public view of one seat in a snapshot.
type SeatSummary struct {
	Name      string
	Rating    int
	Connected bool
}

// Snapshot is the full state a reconnecting client needs to resume play,
// including both seats' public summaries.
type Snapshot struct {
	GameID        uuid.UUID
	FEN           string
	Turn          models.Color
	State         RoomState
	White         SeatSummary
	Black         SeatSummary
	MoveHistory   []string
	WhiteMs       int64
	BlackMs       int64
	TimeControl   models.TimeControl
	DrawOfferedBy models.Color
}

func summarize(p *models.Player) SeatSummary {
	if p == nil {
		return SeatSummary{}
	}
	return SeatSummary{Name: p.Name, Rating: p.Rating, Connected: p.Connected}
}

// Snapshot captures the current state for sync on reconnect.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	history := make([]string, len(r.moveHistory))
	copy(history, r.moveHistory)
	return Snapshot{
		GameID:        r.ID,
		FEN:           r.eng.FEN(),
		Turn:          r.eng.Turn(),
		State:         r.state,
		White:         summarize(r.white),
		Black:         summarize(r.black),
		MoveHistory:   history,
		WhiteMs:       r.whiteClockMs,
		BlackMs:       r.blackClockMs,
		TimeControl:   r.timeControl,
		DrawOfferedBy: r.drawOfferedBy,
	}
}
