package server

import (
	"time"

	"tris-server/internal/tris"
)

type MatchState string

const (
	StateWaiting MatchState = "GAME_WAITING"
	StateOngoing MatchState = "GAME_ONGOING"
	StateOver    MatchState = "GAME_OVER"
)

// Rematch vote per player: unset until the player answers.
type rematchVote int8

const (
	voteUnset rematchVote = iota
	voteYes
	voteNo
)

// Match is one game session. It is owned by the MatchRegistry and only ever
// mutated while the registry's lock is held.
type Match struct {
	ID      int
	Player1 string // creator, plays X
	Player2 string // empty until joined, plays O
	Board   tris.Board
	Turn    string
	State   MatchState
	Winner  string // empty means draw or undetermined

	votes     [2]rematchVote
	createdAt time.Time
	updatedAt time.Time
}

func newMatch(id int, creator string, now time.Time) *Match {
	return &Match{
		ID:        id,
		Player1:   creator,
		Turn:      creator,
		State:     StateWaiting,
		createdAt: now,
		updatedAt: now,
	}
}

// opponentOf returns the other player's username, or "" if the user is not
// in the match or no opponent has joined.
func (m *Match) opponentOf(username string) string {
	switch username {
	case m.Player1:
		return m.Player2
	case m.Player2:
		return m.Player1
	}
	return ""
}

func (m *Match) hasPlayer(username string) bool {
	return username == m.Player1 || (m.Player2 != "" && username == m.Player2)
}

func (m *Match) markOf(username string) tris.Mark {
	if username == m.Player1 {
		return tris.MarkX
	}
	return tris.MarkO
}

func (m *Match) voteIndex(username string) int {
	if username == m.Player1 {
		return 0
	}
	return 1
}

// payload snapshots the match into its wire form. Callers must hold the
// registry lock.
func (m *Match) payload() *GamePayload {
	p := &GamePayload{
		GameID:  m.ID,
		Player1: m.Player1,
		Board:   m.Board.Cells(),
		Turn:    m.Turn,
		State:   string(m.State),
	}
	if m.Player2 != "" {
		p2 := m.Player2
		p.Player2 = &p2
	}
	if m.Winner != "" {
		w := m.Winner
		p.Winner = &w
	}
	return p
}

// resetForNewOpponent reopens the match as WAITING under a single owner,
// used when a decisive rematch discards the loser.
func (m *Match) resetForNewOpponent(owner string, now time.Time) {
	m.Player1 = owner
	m.Player2 = ""
	m.Board = tris.Board{}
	m.Turn = owner
	m.State = StateWaiting
	m.Winner = ""
	m.votes = [2]rematchVote{}
	m.updatedAt = now
}

// resetForReplay restarts the match with the same two players after a drawn
// game's mutual rematch consent.
func (m *Match) resetForReplay(now time.Time) {
	m.Board = tris.Board{}
	m.Turn = m.Player1
	m.State = StateOngoing
	m.Winner = ""
	m.votes = [2]rematchVote{}
	m.updatedAt = now
}
