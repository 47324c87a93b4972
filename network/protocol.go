package network

// Client to server.
const (
	MsgTypeHeartbeat  = 1
	MsgTypeHello      = 101
	MsgTypeSetName    = 102
	MsgTypeReportName = 103
	MsgTypeSetReady   = 104
	MsgTypePlayAgain  = 105
	MsgTypeInput      = 201
)

// Server to client.
const (
	MsgTypeWelcome       = 301
	MsgTypeFieldChange   = 302
	MsgTypeToast         = 303
	MsgTypeSignal        = 304
	MsgTypeWorldSnapshot = 305
	MsgTypeError         = 399
)

type HelloRequest struct {
	Name string `json:"name"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type ReadyRequest struct {
	Ready bool `json:"ready"`
}

type InputRequest struct {
	MoveX float64 `json:"move_x"`
	MoveZ float64 `json:"move_z"`
	Run   bool    `json:"run"`
	Jump  bool    `json:"jump"`
}

type WelcomeMessage struct {
	ClientID  uint64 `json:"client_id"`
	SessionID string `json:"session_id"`
	Phase     string `json:"phase"`
}

type FieldChangeMessage struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

type ToastMessage struct {
	Message string `json:"message"`
}

type SignalMessage struct {
	Name string `json:"name"`
}

type ErrorMessage struct {
	Error string `json:"error"`
}

// EntityState is one entry of a world snapshot.
type EntityState struct {
	ID       uint64     `json:"id"`
	Owner    uint64     `json:"owner,omitempty"`
	Kind     string     `json:"kind"`
	Position [3]float64 `json:"position"`
	Mode     string     `json:"mode,omitempty"`
	Status   string     `json:"status,omitempty"`
}

type WorldSnapshot struct {
	Tick      uint64        `json:"tick"`
	Phase     string        `json:"phase"`
	Seconds   int           `json:"seconds_remaining"`
	TeamScore int           `json:"team_score"`
	Players   []EntityState `json:"players"`
	Animals   []EntityState `json:"animals"`
}
