package domain

import "encoding/json"

// Event types exchanged over the websocket.
const (
	EventConnected   = "connected"
	EventJoinRoom    = "join-room"
	EventRoomState   = "room-state"
	EventSetVideo    = "set-video"
	EventLoadVideo   = "load-video"
	EventControl     = "control"
	EventSync        = "sync"
	EventHostChanged = "host-changed"
	EventRequestHost = "request-host"
	EventPeerJoin    = "peer-join"
	EventTimePing    = "time:ping"
	EventTimePong    = "time:pong"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// InboundMessage is a message whose payload has not been decoded yet.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ConnectedPayload struct {
	ConnectionId string `json:"connection_id"`
}

type RoomStatePayload struct {
	VideoRef *string          `json:"video_ref"`
	HostId   *string          `json:"host_id"`
	Snapshot PlaybackSnapshot `json:"snapshot"`
}

type HostChangedPayload struct {
	HostId *string `json:"host_id"`
}

type PeerJoinPayload struct {
	ConnectionId string `json:"connection_id"`
	DisplayName  string `json:"display_name"`
}

type TimePongPayload struct {
	ServerNowMs int64       `json:"server_now_ms"`
	LocalSendMs json.Number `json:"local_send_ms"`
}

func NewRoomStateMessage(payload RoomStatePayload) *Message {
	return &Message{Type: EventRoomState, Payload: payload}
}

func NewSyncMessage(snapshot PlaybackSnapshot) *Message {
	return &Message{Type: EventSync, Payload: snapshot}
}

func NewHostChangedMessage(hostId *string) *Message {
	return &Message{Type: EventHostChanged, Payload: HostChangedPayload{HostId: hostId}}
}
