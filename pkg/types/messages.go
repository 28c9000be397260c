package types

// Client -> Server
//
// Every frame is {"type": <event>, "payload": {...}}.
//
// createRoom:       displayName
// joinRoom:         displayName, roomCode
// startGame:        roomCode
// playerChoice:     roomCode, elements[], description, imageRef
// requestNextRound: roomCode

const (
	EventCreateRoom       = "createRoom"
	EventJoinRoom         = "joinRoom"
	EventStartGame        = "startGame"
	EventPlayerChoice     = "playerChoice"
	EventRequestNextRound = "requestNextRound"
)

// Inbound is the closed set of client events.
type Inbound interface{ isInbound() }

type CreateRoom struct {
	DisplayName string `json:"displayName"`
}

type JoinRoom struct {
	DisplayName string `json:"displayName"`
	RoomCode    string `json:"roomCode"`
}

type StartGame struct {
	RoomCode string `json:"roomCode"`
}

type PlayerChoice struct {
	RoomCode    string   `json:"roomCode"`
	Elements    []string `json:"elements"`
	Description string   `json:"description"`
	ImageRef    string   `json:"imageRef,omitempty"`
}

type RequestNextRound struct {
	RoomCode string `json:"roomCode"`
}

func (CreateRoom) isInbound()       {}
func (JoinRoom) isInbound()         {}
func (StartGame) isInbound()        {}
func (PlayerChoice) isInbound()     {}
func (RequestNextRound) isInbound() {}
