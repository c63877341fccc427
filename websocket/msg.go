package websocket

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/simulation"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const (
	ErrTypeMsgDecode = "msg_decode_failed"
	ErrTypeMsgEncode = "msg_encode_failed"
)

type MsgType string

const (
	MsgTypeUnknown MsgType = "unknown"

	MsgTypePing    MsgType = "ping"
	MsgTypeInput   MsgType = "input"
	MsgTypeView    MsgType = "view"
	MsgTypeExplode MsgType = "explode"
	MsgTypePause   MsgType = "pause"

	MsgTypeWelcome  MsgType = "welcome"
	MsgTypePong     MsgType = "pong"
	MsgTypeError    MsgType = "error"
	MsgTypeSnapshot MsgType = "snapshot"
)

type ErrorCode string

const (
	ErrorCodeBadRequest ErrorCode = "bad_request"
	ErrorCodeForbidden  ErrorCode = "forbidden"
)

// Msg is a message exchanged with a viewer.
type Msg struct {
	Type   MsgType
	Binary bool
	Data   []byte
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return string(MsgTypeUnknown)
	}
	return string(m.Type)
}

// DataTo decodes the JSON body of the message into v.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message failed").
			WithType(ErrTypeMsgDecode).
			WithTag("msg_type", m.TypeString()).
			Wrap(err)
	}
	return nil
}

// Payload is a JSON message body that carries its own type.
type Payload interface {
	GetType() MsgType
}

// MsgFromPayload encodes p into a text message.
func MsgFromPayload(p Payload) (Msg, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return Msg{}, errors.New("encoding message failed").
			WithType(ErrTypeMsgEncode).
			WithTag("msg_type", p.GetType()).
			Wrap(err)
	}

	return Msg{
		Type: p.GetType(),
		Data: data,
	}, nil
}

// A function that receives a message.
type Receiver func() (Msg, int, error)

// A function that sends a message.
type Sender func(Msg) (int, error)

// Receive reads a message from conn. Messages that are not JSON objects are
// returned with the unknown type so that they can be answered with an error.
func Receive(conn *websocket.Conn) (Msg, int, error) {
	var data []byte
	if err := websocket.Message.Receive(conn, &data); err != nil {
		return Msg{}, 0, err
	}

	var header struct {
		Type MsgType `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil || header.Type == "" {
		return Msg{Type: MsgTypeUnknown, Data: data}, len(data), nil
	}

	return Msg{Type: header.Type, Data: data}, len(data), nil
}

// Send writes msg to conn, as a binary frame when msg is binary and as a text
// frame otherwise.
func Send(conn *websocket.Conn, msg Msg) (int, error) {
	var err error
	if msg.Binary {
		err = websocket.Message.Send(conn, msg.Data)
	} else {
		err = websocket.Message.Send(conn, string(msg.Data))
	}
	if err != nil {
		return 0, err
	}
	return len(msg.Data), nil
}

// ResponseSender sends messages to a viewer.
type ResponseSender interface {
	// Queues a JSON message.
	Send(p Payload)

	// Queues an encoded message.
	SendMsg(msg Msg)

	// Queues an encoded message unless the send queue is full. It reports
	// whether the message was queued.
	TrySendMsg(msg Msg) bool
}

type PingRequest struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id"`
}

type InputRequest struct {
	Type MsgType  `json:"type"`
	Keys []string `json:"keys"`
}

type ViewRequest struct {
	Type MsgType   `json:"type"`
	View geom.Rect `json:"view"`
}

type ExplodeRequest struct {
	Type     MsgType   `json:"type"`
	Position geom.Vec2 `json:"position"`
}

type PauseRequest struct {
	Type MsgType `json:"type"`
}

type WelcomeMsg struct {
	Type        MsgType   `json:"type"`
	ViewerID    uint32    `json:"viewer_id"`
	SessionUUID string    `json:"session_uuid"`
	World       geom.Rect `json:"world"`
	Capacity    int       `json:"capacity"`
	Keys        []string  `json:"keys"`
	Format      string    `json:"format"`
}

func (m WelcomeMsg) GetType() MsgType { return m.Type }

type PongResponse struct {
	Type      MsgType   `json:"type"`
	RequestID uint32    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (m PongResponse) GetType() MsgType { return m.Type }

type ErrorResponse struct {
	Type        MsgType   `json:"type"`
	RequestType MsgType   `json:"request_type"`
	Code        ErrorCode `json:"code"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m ErrorResponse) GetType() MsgType { return m.Type }

type SnapshotMsg struct {
	Type MsgType `json:"type"`
	simulation.Snapshot
}

func (m SnapshotMsg) GetType() MsgType { return m.Type }
