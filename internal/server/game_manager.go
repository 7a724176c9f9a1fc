package server

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrTooManyGames        = errors.New("server is at match capacity")
	ErrMatchNotFound       = errors.New("game not found")
	ErrMatchOver           = errors.New("game is already over")
	ErrMatchStarted        = errors.New("game already started")
	ErrMatchNotWaiting     = errors.New("game is not waiting for players")
	ErrMatchNotOngoing     = errors.New("game is not in progress")
	ErrMatchNotOver        = errors.New("game is not over yet")
	ErrOwnMatch            = errors.New("cannot join your own game")
	ErrNotCreator          = errors.New("only the game creator can accept a join request")
	ErrNotInMatch          = errors.New("you are not part of this game")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrOpponentBusy        = errors.New("opponent is already playing another game")
	ErrOpponentUnavailable = errors.New("opponent is no longer connected")
	ErrOnlyWinnerRematch   = errors.New("only the winner can request a rematch")
)

// Notifier delivers an event to one named player. The MatchRegistry calls it
// while holding its own lock, so implementations may take the client
// registry's lock but never the match registry's.
type Notifier interface {
	SendEvent(username string, ev Event) error
}

// RematchOutcome describes what a rematch vote led to.
type RematchOutcome int

const (
	// RematchReplayStarted means both players of a drawn game agreed and the
	// match is ONGOING again.
	RematchReplayStarted RematchOutcome = iota
	// RematchWaiting means the vote was recorded and the match now waits:
	// for the opponent's vote after a draw, or for a new opponent after a
	// decisive win returned the match to WAITING.
	RematchWaiting
	// RematchOpponentDeclined means the opponent had already voted no.
	RematchOpponentDeclined
	// RematchDeclined means the caller voted no and the match was closed.
	RematchDeclined
)

// MatchRecord is the archive summary of a finished game.
type MatchRecord struct {
	GameID     int
	Player1    string
	Player2    string
	Winner     string // empty on a draw or a vacated match
	Outcome    string // "win", "draw", "forfeit"
	Board      [3][3]string
	FinishedAt time.Time
}

// MatchRegistry owns every match. A single mutex serializes all match
// mutation; operations that need the client registry acquire it through the
// notifier while this lock is held, never the other way around.
type MatchRegistry struct {
	mu          sync.Mutex
	matches     map[int]*Match
	nextID      int
	capacity    int
	rematchWait time.Duration
	notifier    Notifier
	timers      map[int]*time.Timer
	onFinished  func(MatchRecord) // optional archive hook, called under the lock
}

func NewMatchRegistry(capacity int, rematchWait time.Duration, notifier Notifier) *MatchRegistry {
	return &MatchRegistry{
		matches:     make(map[int]*Match),
		capacity:    capacity,
		rematchWait: rematchWait,
		notifier:    notifier,
		timers:      make(map[int]*time.Timer),
	}
}

// SetFinishedHook installs a callback invoked with a summary every time a
// match reaches GAME_OVER. The callback runs under the registry lock and
// must not block.
func (r *MatchRegistry) SetFinishedHook(hook func(MatchRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onFinished = hook
}

// Create opens a new WAITING match owned by the creator.
func (r *MatchRegistry) Create(creator string) (*GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.liveCountLocked() >= r.capacity {
		return nil, ErrTooManyGames
	}

	m := newMatch(r.nextID, creator, time.Now())
	r.nextID++
	r.matches[m.ID] = m
	return m.payload(), nil
}

// RequestJoin forwards a join request to the match creator. Match state is
// not mutated; joining only happens once the creator accepts.
func (r *MatchRegistry) RequestJoin(id int, requester string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return ErrMatchNotFound
	}
	if m.State == StateOver {
		return ErrMatchOver
	}
	if m.State == StateOngoing {
		return ErrMatchStarted
	}
	if m.Player1 == requester {
		return ErrOwnMatch
	}

	ev := newEvent(EventJoinRequest, JoinRequestNotification{GameID: id, Player2: requester})
	if err := r.notifier.SendEvent(m.Player1, ev); err != nil {
		return ErrOpponentUnavailable
	}
	return nil
}

// AcceptJoin lets the creator admit an opponent: WAITING → ONGOING, creator
// keeps the first turn. The cross-match invariant is enforced here: an
// opponent already in another ONGOING match is rejected as busy. The
// opponent is told the game started; if that delivery fails the transition
// is rolled back so a game is never running behind its second player's back.
func (r *MatchRegistry) AcceptJoin(id int, caller, opponent string) (*GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if m.State != StateWaiting {
		return nil, ErrMatchNotWaiting
	}
	if m.Player1 != caller {
		return nil, ErrNotCreator
	}
	if opponent == caller {
		return nil, ErrOwnMatch
	}
	if r.playerBusyLocked(opponent, id) {
		return nil, ErrOpponentBusy
	}

	m.Player2 = opponent
	m.State = StateOngoing
	m.Turn = m.Player1
	m.updatedAt = time.Now()

	if err := r.notifier.SendEvent(opponent, newEvent(EventGameUpdate, m.payload())); err != nil {
		m.Player2 = ""
		m.State = StateWaiting
		return nil, ErrOpponentUnavailable
	}
	return m.payload(), nil
}

// Move applies one move. Placement, win/draw evaluation and turn handover
// happen under the same critical section, so the board and the turn can
// never disagree.
func (r *MatchRegistry) Move(id int, username string, x, y int) (*GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if m.State != StateOngoing {
		return nil, ErrMatchNotOngoing
	}
	if !m.hasPlayer(username) {
		return nil, ErrNotInMatch
	}
	if m.Turn != username {
		return nil, ErrNotYourTurn
	}

	if err := m.Board.Place(x, y, m.markOf(username)); err != nil {
		return nil, err
	}

	switch {
	case m.Board.Winner() != "":
		m.State = StateOver
		m.Winner = username
		r.finishLocked(m, "win")
	case m.Board.Full():
		m.State = StateOver
		m.Winner = ""
		r.finishLocked(m, "draw")
	default:
		m.Turn = m.opponentOf(username)
	}
	m.updatedAt = time.Now()

	return m.payload(), nil
}

// Quit forfeits an ongoing match: the opponent is declared winner and
// notified. If the notification cannot be delivered the state change is
// rolled back and the quit reports failure, so a match is never left OVER
// without the winner knowing.
func (r *MatchRegistry) Quit(id int, username string) (*GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	if m.State != StateOngoing {
		return nil, ErrMatchNotOngoing
	}
	if !m.hasPlayer(username) {
		return nil, ErrNotInMatch
	}

	winner := m.opponentOf(username)
	m.State = StateOver
	m.Winner = winner

	if err := r.notifier.SendEvent(winner, newEvent(EventGameOver, m.payload())); err != nil {
		m.State = StateOngoing
		m.Winner = ""
		return nil, ErrOpponentUnavailable
	}

	m.updatedAt = time.Now()
	r.finishLocked(m, "forfeit")
	return m.payload(), nil
}

// Rematch records one player's vote on an OVER match.
//
// Draw: both players must opt in; a single yes restarts the bounded wait for
// the other vote, after which the match is closed and the waiting voter told
// the opponent declined. Mutual consent replays the same two players.
//
// Decisive outcome: only the winner may ask; accepting discards the loser
// and returns the match to WAITING so a new opponent can join.
//
// An OVER match only stays addressable for the rematch window; once it
// lapses the match is reclaimed and Rematch reports it as not found.
func (r *MatchRegistry) Rematch(id int, username string, choice bool) (RematchOutcome, *GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return 0, nil, ErrMatchNotFound
	}
	if m.State != StateOver {
		return 0, nil, ErrMatchNotOver
	}
	if !m.hasPlayer(username) {
		return 0, nil, ErrNotInMatch
	}

	if m.Winner != "" {
		return r.rematchDecisiveLocked(m, username, choice)
	}
	return r.rematchDrawLocked(m, username, choice)
}

func (r *MatchRegistry) rematchDecisiveLocked(m *Match, username string, choice bool) (RematchOutcome, *GamePayload, error) {
	if username != m.Winner {
		return 0, nil, ErrOnlyWinnerRematch
	}
	if !choice {
		r.removeLocked(m.ID)
		return RematchDeclined, nil, nil
	}
	r.stopTimerLocked(m.ID)
	m.resetForNewOpponent(username, time.Now())
	return RematchWaiting, m.payload(), nil
}

func (r *MatchRegistry) rematchDrawLocked(m *Match, username string, choice bool) (RematchOutcome, *GamePayload, error) {
	self := m.voteIndex(username)
	other := 1 - self

	if !choice {
		m.votes[self] = voteNo
		if m.votes[other] == voteYes {
			waiting := m.Player1
			if other == 1 {
				waiting = m.Player2
			}
			r.notifyDeclinedLocked(waiting, m.ID)
		}
		r.removeLocked(m.ID)
		return RematchDeclined, nil, nil
	}

	m.votes[self] = voteYes
	switch m.votes[other] {
	case voteYes:
		r.stopTimerLocked(m.ID)
		m.resetForReplay(time.Now())
		return RematchReplayStarted, m.payload(), nil
	case voteNo:
		r.removeLocked(m.ID)
		return RematchOpponentDeclined, nil, nil
	default:
		// The vote restarts the window: the opponent gets a full wait to
		// answer, however late the vote came.
		r.stopTimerLocked(m.ID)
		r.startRematchTimerLocked(m.ID)
		return RematchWaiting, m.payload(), nil
	}
}

// startRematchTimerLocked bounds how long an OVER match stays around. The
// timer fires on its own goroutine and re-acquires the lock there; the wait
// itself holds nothing.
func (r *MatchRegistry) startRematchTimerLocked(id int) {
	if _, running := r.timers[id]; running {
		return
	}
	r.timers[id] = time.AfterFunc(r.rematchWait, func() {
		r.expireRematch(id)
	})
}

func (r *MatchRegistry) expireRematch(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok || m.State != StateOver {
		delete(r.timers, id)
		return
	}

	for i, name := range []string{m.Player1, m.Player2} {
		if m.votes[i] == voteYes {
			r.notifyDeclinedLocked(name, id)
		}
	}
	r.removeLocked(id)
}

func (r *MatchRegistry) notifyDeclinedLocked(username string, id int) {
	ev := newEvent(EventRematchDeclined, GameRef{GameID: id})
	_ = r.notifier.SendEvent(username, ev)
}

func (r *MatchRegistry) stopTimerLocked(id int) {
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
}

func (r *MatchRegistry) removeLocked(id int) {
	r.stopTimerLocked(id)
	delete(r.matches, id)
}

// ListAvailable returns every WAITING match not created by the user.
func (r *MatchRegistry) ListAvailable(username string) []*GamePayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*GamePayload, 0)
	for _, m := range r.matches {
		if m.State == StateWaiting && m.Player1 != username {
			out = append(out, m.payload())
		}
	}
	return out
}

// FindByID returns a snapshot of one match.
func (r *MatchRegistry) FindByID(id int) (*GamePayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	return m.payload(), nil
}

// Count returns the number of live matches.
func (r *MatchRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

// RemoveByCreator deletes every WAITING match the user created and returns
// the removed ids so callers can broadcast their disappearance. Ongoing
// matches are left alone; ForfeitByDisconnect settles those.
func (r *MatchRegistry) RemoveByCreator(username string) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]int, 0)
	for id, m := range r.matches {
		if m.State == StateWaiting && m.Player1 == username {
			r.removeLocked(id)
			removed = append(removed, id)
		}
	}
	return removed
}

// ForfeitByDisconnect ends every ONGOING match the user is part of, awarding
// the win to the opponent and notifying them. The disconnecting side is
// already gone, so delivery failures here are not rolled back.
func (r *MatchRegistry) ForfeitByDisconnect(username string) []*GamePayload {
	r.mu.Lock()
	defer r.mu.Unlock()

	settled := make([]*GamePayload, 0)
	for _, m := range r.matches {
		if m.State != StateOngoing || !m.hasPlayer(username) {
			continue
		}

		m.State = StateOver
		m.Winner = m.opponentOf(username)
		m.updatedAt = time.Now()
		r.finishLocked(m, "forfeit")

		_ = r.notifier.SendEvent(m.Winner, newEvent(EventGameOver, m.payload()))
		settled = append(settled, m.payload())
	}
	return settled
}

// liveCountLocked counts the matches occupying capacity. Finished matches
// are kept only through the rematch window and never block a new game.
func (r *MatchRegistry) liveCountLocked() int {
	n := 0
	for _, m := range r.matches {
		if m.State != StateOver {
			n++
		}
	}
	return n
}

func (r *MatchRegistry) playerBusyLocked(username string, excludeID int) bool {
	for id, m := range r.matches {
		if id == excludeID {
			continue
		}
		if m.State == StateOngoing && m.hasPlayer(username) {
			return true
		}
	}
	return false
}

func (r *MatchRegistry) finishLocked(m *Match, outcome string) {
	// The finished match keeps its slot only while a rematch is still
	// possible; expiry reclaims it.
	r.startRematchTimerLocked(m.ID)

	if r.onFinished == nil {
		return
	}
	r.onFinished(MatchRecord{
		GameID:     m.ID,
		Player1:    m.Player1,
		Player2:    m.Player2,
		Winner:     m.Winner,
		Outcome:    outcome,
		Board:      m.Board.Cells(),
		FinishedAt: time.Now(),
	})
}
