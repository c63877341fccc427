package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/swarm/featureflag"
	"github.com/aukilabs/swarm/models"
	"github.com/aukilabs/swarm/simulation"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

const (
	// The header carrying the id a client identifies itself with.
	HeaderClientID = "X-Swarm-Client-Id"

	ErrTypeSessionNotJoined = "session_not_joined"

	formatJSON   = "json"
	formatBinary = "binary"
)

// ViewerHandler represents a service that streams a simulation session to a
// viewer and forwards the viewer's actions to it.
type ViewerHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The session viewers join.
	Session *models.Session

	FeatureFlags featureflag.FeatureFlag

	conn          *websocket.Conn
	currentViewer *models.Viewer
	binary        bool

	stopFrameHandling func()

	clientID string
}

func (h *ViewerHandler) HandleConnect(conn *websocket.Conn) {
	req := conn.Request()
	h.clientID = req.Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}
	h.binary = req.URL.Query().Get("format") == formatBinary

	h.conn = conn
}

func (h *ViewerHandler) HandleJoin(ctx context.Context, handleFrame func(), respond ResponseSender) error {
	if h.Session == nil {
		return errors.New("no session to join").
			WithType(ErrTypeSessionNotJoined)
	}

	viewer := &models.Viewer{
		ID:       h.Session.NewViewerID(),
		ClientID: h.clientID,
	}
	h.Session.AddViewer(viewer)
	h.currentViewer = viewer

	format := formatJSON
	if h.binary {
		format = formatBinary
	}

	world, capacity := h.Session.World()
	respond.Send(WelcomeMsg{
		Type:        MsgTypeWelcome,
		ViewerID:    viewer.ID,
		SessionUUID: h.Session.SessionUUID,
		World:       world,
		Capacity:    capacity,
		Keys:        simulation.AllKeys.Names(),
		Format:      format,
	})

	h.stopFrameHandling = h.Session.HandleFrame(handleFrame)
	return nil
}

func (h *ViewerHandler) HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req PingRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(PongResponse{
		Type:      MsgTypePong,
		RequestID: req.RequestID,
		Timestamp: time.Now(),
	})
	return nil
}

func (h *ViewerHandler) HandleInput(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req InputRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if !h.allowed(featureflag.FlagDisableViewerInput, respond, msg) {
		return nil
	}

	session, _, err := h.joined(msg)
	if err != nil {
		return err
	}

	session.SetKeys(simulation.ParseKeys(req.Keys))
	return nil
}

func (h *ViewerHandler) HandleView(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ViewRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	_, viewer, err := h.joined(msg)
	if err != nil {
		return err
	}

	if req.View.Size.X < 0 || req.View.Size.Y < 0 {
		respondError(respond, msg.Type, ErrorCodeBadRequest)
		return nil
	}

	viewer.SetView(req.View)
	return nil
}

func (h *ViewerHandler) HandleExplode(ctx context.Context, respond ResponseSender, msg Msg) error {
	var req ExplodeRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if !h.allowed(featureflag.FlagDisableExplosions, respond, msg) {
		return nil
	}

	session, _, err := h.joined(msg)
	if err != nil {
		return err
	}

	session.Explode(req.Position)
	return nil
}

func (h *ViewerHandler) HandlePause(ctx context.Context, respond ResponseSender, msg Msg) error {
	if !h.allowed(featureflag.FlagDisablePause, respond, msg) {
		return nil
	}

	session, _, err := h.joined(msg)
	if err != nil {
		return err
	}

	session.TogglePause()
	return nil
}

func (h *ViewerHandler) SendFrame(ctx context.Context, respond ResponseSender) error {
	session := h.Session
	viewer := h.currentViewer
	if session == nil || viewer == nil {
		return nil
	}

	snapshot := session.Snapshot(viewer.View())
	h.FeatureFlags.IfSet(featureflag.FlagDisableStars, func() {
		snapshot.Stars = nil
	})

	var msg Msg
	if h.binary {
		msg = Msg{
			Type:   MsgTypeSnapshot,
			Binary: true,
			Data:   MarshalSnapshot(snapshot),
		}
	} else {
		var err error
		msg, err = MsgFromPayload(SnapshotMsg{
			Type:     MsgTypeSnapshot,
			Snapshot: snapshot,
		})
		if err != nil {
			return err
		}
	}

	// A viewer that does not keep up skips frames rather than slowing down
	// the simulation.
	if !respond.TrySendMsg(msg) {
		session.FrameDropped()
	}
	return nil
}

func (h *ViewerHandler) HandleDisconnect(_ error) {
	if h.currentViewer != nil {
		h.leaveSession()
	}
}

func (h *ViewerHandler) Receiver() Receiver {
	return func() (Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *ViewerHandler) Sender() Sender {
	return func(msg Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *ViewerHandler) Close() {
}

func (h *ViewerHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *ViewerHandler) CurrentSession() *models.Session {
	if h.currentViewer == nil {
		return nil
	}
	return h.Session
}

func (h *ViewerHandler) CurrentViewer() *models.Viewer {
	return h.currentViewer
}

func (h *ViewerHandler) GetClientID() string {
	return h.clientID
}

// allowed responds with a forbidden error and returns false when flag is set.
func (h *ViewerHandler) allowed(flag featureflag.Flag, respond ResponseSender, msg Msg) bool {
	if !h.FeatureFlags.Has(flag) {
		return true
	}

	respondError(respond, msg.Type, ErrorCodeForbidden)
	return false
}

func (h *ViewerHandler) joined(msg Msg) (*models.Session, *models.Viewer, error) {
	if h.Session == nil || h.currentViewer == nil {
		return nil, nil, errors.New("session not joined").
			WithType(ErrTypeSessionNotJoined).
			WithTag("msg_type", msg.TypeString())
	}
	return h.Session, h.currentViewer, nil
}

func (h *ViewerHandler) leaveSession() {
	if h.stopFrameHandling != nil {
		h.stopFrameHandling()
		h.stopFrameHandling = nil
	}

	h.Session.RemoveViewer(h.currentViewer)

	// Keys held by the last viewer would otherwise stay pressed.
	if h.Session.ViewerCount() == 0 {
		h.Session.SetKeys(0)
	}

	h.currentViewer = nil
}
