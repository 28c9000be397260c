package types

// Server -> Client
//
// roomCreated:  roomCode                                   (sender only)
// roomJoined:   players[]                                  (room)
// roundStart:   round, type, sets[][], scores[]            (room)
// battleResult: round, winner, abilities[2], scores[], narrative (room)
// gameOver:     scores[]                                   (room)
// playerLeft:   id                                         (room)
// errorMessage: message                                    (sender only)

const (
	EventRoomCreated  = "roomCreated"
	EventRoomJoined   = "roomJoined"
	EventRoundStart   = "roundStart"
	EventBattleResult = "battleResult"
	EventGameOver     = "gameOver"
	EventPlayerLeft   = "playerLeft"
	EventErrorMessage = "errorMessage"
)

type Score struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type Ability struct {
	OwnerID     string   `json:"ownerId"`
	Name        string   `json:"name"`
	Elements    []string `json:"elements"`
	Description string   `json:"description"`
	ImageRef    string   `json:"imageRef"`
	Power       int      `json:"power"`
}

type RoomCreated struct {
	RoomCode string `json:"roomCode"`
}

type RoomJoined struct {
	Players []PlayerView `json:"players"`
}

type RoundStart struct {
	Round  int        `json:"round"`
	Type   string     `json:"type"`
	Sets   [][]string `json:"sets"`
	Scores []Score    `json:"scores"`
}

type BattleResult struct {
	Round     int       `json:"round"`
	Winner    string    `json:"winner"`
	Abilities []Ability `json:"abilities"`
	Scores    []Score   `json:"scores"`
	Narrative string    `json:"narrative"`
}

type GameOver struct {
	Scores []Score `json:"scores"`
}

type PlayerLeft struct {
	ID string `json:"id"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// RoomView is the read-only HTTP view of a live room.
type RoomView struct {
	RoomCode  string       `json:"roomCode"`
	Phase     string       `json:"phase"`
	Round     int          `json:"round"`
	RoundType string       `json:"roundType,omitempty"`
	Players   []PlayerView `json:"players"`
	Pending   int          `json:"pending"`
}
