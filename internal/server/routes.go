package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// GameRef identifies a match in events that carry no full payload.
type GameRef struct {
	GameID int `json:"game_id"`
}

func (s *Server) RegisterRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/websocket", s.websocketHandler)
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"clients": s.clients.Count(),
		"games":   s.matches.Count(),
	}
	if s.archive != nil {
		if err := s.archive.Health(r.Context()); err != nil {
			resp["archive"] = "unreachable"
		} else {
			resp["archive"] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error().Err(err).Msg("failed to write health response")
	}
}

// websocketHandler adapts a websocket client onto the same router the TCP
// listener feeds. Websocket frames already delimit messages, so the length
// prefix is not used on this transport.
func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		http.Error(w, "failed to open websocket", http.StatusInternalServerError)
		return
	}
	defer socket.Close(websocket.StatusGoingAway, "server closing")

	s.handleEndpoint(newWSEndpoint(r.Context(), socket, r.RemoteAddr))
}

// handleEndpoint runs one connection's receive loop: decode a message,
// route it, repeat until the stream closes or violates the protocol. The
// disconnect cascade runs exactly once on the way out.
func (s *Server) handleEndpoint(ep endpoint) {
	conn := &Conn{ID: uuid.New().String(), ep: ep}
	username := ""
	log := s.log.With().Str("conn", conn.ID).Str("remote", ep.RemoteAddr()).Logger()
	log.Info().Msg("connection opened")

	defer func() {
		conn.close()
		if username != "" {
			s.runDisconnectCascade(conn, username)
		}
		log.Info().Str("username", username).Msg("connection closed")
	}()

	for {
		data, err := ep.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Msg("read failed")
			}
			return
		}

		var req ClientRequest
		if err := json.Unmarshal(data, &req); err != nil {
			// Malformed JSON is a protocol violation: close without replying.
			log.Warn().Err(err).Msg("malformed request")
			return
		}

		if username == "" {
			if req.Request != "login" {
				s.respond(conn, log, errorResponse(req.Request, "login required"))
				continue
			}
			username = s.handleLogin(conn, log, req)
			continue
		}

		s.route(conn, log, username, req)
	}
}

func (s *Server) route(conn *Conn, log logger, username string, req ClientRequest) {
	switch req.Request {
	case "login":
		s.respond(conn, log, errorResponse("login", "already logged in"))
	case "create_game":
		s.handleCreateGame(conn, log, username)
	case "join_request":
		s.handleJoinRequest(conn, log, username, req.Data)
	case "accept_join":
		s.handleAcceptJoin(conn, log, username, req.Data)
	case "list_games":
		s.handleListGames(conn, log, username)
	case "game_move":
		s.handleGameMove(conn, log, username, req.Data)
	case "game_quit":
		s.handleGameQuit(conn, log, username, req.Data)
	case "rematch":
		s.handleRematch(conn, log, username, req.Data)
	default:
		log.Debug().Str("request", req.Request).Msg("unknown request")
		s.respond(conn, log, errorResponse(req.Request, "unknown request"))
	}
}

func (s *Server) handleLogin(conn *Conn, log logger, req ClientRequest) string {
	var payload LoginRequest
	if err := json.Unmarshal(req.Data, &payload); err != nil {
		s.respond(conn, log, errorResponse("login", "invalid login payload"))
		return ""
	}

	username := payload.Username
	if strings.TrimSpace(username) == "" || len(username) > 63 {
		s.respond(conn, log, errorResponse("login", "username must be 1-63 characters"))
		return ""
	}

	if err := s.clients.Add(conn, username); err != nil {
		s.respond(conn, log, errorResponse("login", err.Error()))
		return ""
	}

	log.Info().Str("username", username).Msg("client logged in")
	s.respond(conn, log, okResponse("login", "Welcome to the game", LoginResponse{Username: username}))
	return username
}

func (s *Server) handleCreateGame(conn *Conn, log logger, username string) {
	game, err := s.matches.Create(username)
	if err != nil {
		s.respond(conn, log, errorResponse("create_game", err.Error()))
		return
	}

	log.Info().Int("game_id", game.GameID).Msg("game created")
	s.respond(conn, log, okResponse("create_game", "game created", game))
	s.broadcastEvent(EventGameCreated, game, username)
}

func (s *Server) handleJoinRequest(conn *Conn, log logger, username string, data json.RawMessage) {
	var payload JoinRequestRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		s.respond(conn, log, errorResponse("join_request", "invalid join_request payload"))
		return
	}

	if err := s.matches.RequestJoin(payload.GameID, username); err != nil {
		s.respond(conn, log, errorResponse("join_request", err.Error()))
		return
	}

	s.respond(conn, log, okResponse("join_request", "join request sent to the game creator", nil))
}

func (s *Server) handleAcceptJoin(conn *Conn, log logger, username string, data json.RawMessage) {
	var payload AcceptJoinRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		s.respond(conn, log, errorResponse("accept_join", "invalid accept_join payload"))
		return
	}

	game, err := s.matches.AcceptJoin(payload.GameID, username, payload.Player2)
	if err != nil {
		s.respond(conn, log, errorResponse("accept_join", err.Error()))
		return
	}

	log.Info().Int("game_id", game.GameID).Str("player2", payload.Player2).Msg("game started")
	s.respond(conn, log, okResponse("accept_join", "game started", game))

	// The match just left WAITING: everyone else loses it from their lists.
	s.broadcastEvent(EventGameNotAvailable, game, username, payload.Player2)
}

func (s *Server) handleListGames(conn *Conn, log logger, username string) {
	games := s.matches.ListAvailable(username)
	s.respond(conn, log, okResponse("list_games", "available games", games))
}

func (s *Server) handleGameMove(conn *Conn, log logger, username string, data json.RawMessage) {
	var payload MoveRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		s.respond(conn, log, errorResponse("game_move", "invalid game_move payload"))
		return
	}
	if payload.X < 0 || payload.X > 2 || payload.Y < 0 || payload.Y > 2 {
		s.respond(conn, log, errorResponse("game_move", "coordinates out of range"))
		return
	}

	game, err := s.matches.Move(payload.GameID, username, payload.X, payload.Y)
	if err != nil {
		s.respond(conn, log, errorResponse("game_move", err.Error()))
		return
	}

	s.respond(conn, log, okResponse("game_move", moveDescription(game), game))

	opponent := otherPlayer(game, username)
	if opponent != "" {
		if err := s.SendEvent(opponent, newEvent(EventGameUpdate, game)); err != nil {
			log.Warn().Err(err).Str("opponent", opponent).Msg("failed to deliver game update")
		}
	}
}

func (s *Server) handleGameQuit(conn *Conn, log logger, username string, data json.RawMessage) {
	var payload QuitRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		s.respond(conn, log, errorResponse("game_quit", "invalid game_quit payload"))
		return
	}

	game, err := s.matches.Quit(payload.GameID, username)
	if err != nil {
		s.respond(conn, log, errorResponse("game_quit", err.Error()))
		return
	}

	log.Info().Int("game_id", game.GameID).Msg("player forfeited")
	s.respond(conn, log, okResponse("game_quit", "you forfeited the game", game))
	s.broadcastEvent(EventGameUpdate, game, game.Player1, playerOrEmpty(game.Player2))
}

func (s *Server) handleRematch(conn *Conn, log logger, username string, data json.RawMessage) {
	var payload RematchRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		s.respond(conn, log, errorResponse("rematch", "invalid rematch payload"))
		return
	}

	outcome, game, err := s.matches.Rematch(payload.GameID, username, payload.Choice)
	if err != nil {
		s.respond(conn, log, errorResponse("rematch", err.Error()))
		return
	}

	switch outcome {
	case RematchReplayStarted:
		s.respond(conn, log, okResponse("rematch", "rematch accepted, game restarted", game))
		opponent := otherPlayer(game, username)
		if err := s.SendEvent(opponent, newEvent(EventGameUpdate, game)); err != nil {
			log.Warn().Err(err).Str("opponent", opponent).Msg("failed to deliver rematch start")
		}
	case RematchWaiting:
		if game.State == string(StateWaiting) {
			// Decisive outcome: the loser is discarded and the match is open
			// to new opponents again.
			s.respond(conn, log, okResponse("rematch", "waiting for a new opponent", game))
			s.broadcastEvent(EventGameCreated, game, username)
		} else {
			s.respond(conn, log, okResponse("rematch", "waiting for opponent", game))
		}
	case RematchOpponentDeclined:
		s.respond(conn, log, okResponse("rematch", "opponent declined the rematch", nil))
	case RematchDeclined:
		s.respond(conn, log, okResponse("rematch", "rematch declined", nil))
	}
}

// runDisconnectCascade tears down everything a vanished client owned:
// its registry entry, its joinable matches, and any game it was playing,
// which its opponent wins by forfeit.
func (s *Server) runDisconnectCascade(conn *Conn, username string) {
	if err := s.clients.Remove(conn.ID); err != nil {
		s.log.Debug().Err(err).Str("username", username).Msg("client already removed")
	}

	for _, id := range s.matches.RemoveByCreator(username) {
		s.broadcastEvent(EventGameNotAvailable, GameRef{GameID: id})
	}

	settled := s.matches.ForfeitByDisconnect(username)
	if len(settled) > 0 {
		s.log.Info().Str("username", username).Int("forfeits", len(settled)).Msg("settled games on disconnect")
	}
}

func (s *Server) respond(conn *Conn, log logger, resp Response) {
	if err := conn.send(resp); err != nil {
		log.Warn().Err(err).Str("response", resp.Response).Msg("failed to send response")
	}
}

func moveDescription(game *GamePayload) string {
	switch {
	case game.State != string(StateOver):
		return "move accepted"
	case game.Winner == nil:
		return "game over, draw"
	default:
		return "game over, " + *game.Winner + " wins"
	}
}

func otherPlayer(game *GamePayload, username string) string {
	if game.Player1 != username && game.Player1 != "" {
		return game.Player1
	}
	if game.Player2 != nil && *game.Player2 != username {
		return *game.Player2
	}
	return ""
}

func playerOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
