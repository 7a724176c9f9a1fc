package server

// Request payloads (client → server).

type LoginRequest struct {
	Username string `json:"username"`
}

type JoinRequestRequest struct {
	GameID int `json:"game_id"`
}

type AcceptJoinRequest struct {
	GameID  int    `json:"game_id"`
	Player2 string `json:"player2"`
}

type MoveRequest struct {
	GameID int `json:"game_id"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

type QuitRequest struct {
	GameID int `json:"game_id"`
}

type RematchRequest struct {
	GameID int  `json:"game_id"`
	Choice bool `json:"choice"`
}

// Payloads carried inside responses and events (server → client).

type LoginResponse struct {
	Username string `json:"username"`
}

// GamePayload is the serialized form of a match.
type GamePayload struct {
	GameID  int          `json:"game_id"`
	Player1 string       `json:"player1"`
	Player2 *string      `json:"player2"`
	Board   [3][3]string `json:"board"`
	Turn    string       `json:"turn"`
	State   string       `json:"state"`
	Winner  *string      `json:"winner"`
}

type JoinRequestNotification struct {
	GameID  int    `json:"game_id"`
	Player2 string `json:"player2"`
}
