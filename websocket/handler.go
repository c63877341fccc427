package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/swarm/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Handler represents a swarm viewer handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Joins the simulation session. handleFrame is to be called by the
	// session after each simulation frame.
	HandleJoin(ctx context.Context, handleFrame func(), respond ResponseSender) error

	// Handles a ping request.
	HandlePing(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles the keys pressed by the viewer.
	HandleInput(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a change of the viewer viewport.
	HandleView(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to set off an explosion.
	HandleExplode(ctx context.Context, respond ResponseSender, msg Msg) error

	// Handles a request to pause or resume the simulation.
	HandlePause(ctx context.Context, respond ResponseSender, msg Msg) error

	// Sends the current simulation state to the viewer.
	SendFrame(ctx context.Context, respond ResponseSender) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the service and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// The joined session.
	CurrentSession() *models.Session

	// The current viewer.
	CurrentViewer() *models.Viewer

	// Get ClientID
	GetClientID() string
}

// Handle handles the given service.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	// The swarm handler.
	Handler Handler

	sendChan       chan Msg
	sender         Sender
	receiveChan    chan Msg
	receiver       Receiver
	frameChan      chan struct{}
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	h.sendChan = make(chan Msg, sendChanSize)
	h.receiveChan = make(chan Msg, receiveChanSize)
	h.frameChan = make(chan struct{}, 1)

	var responder = responseSender{
		send:       h.send,
		sendMsg:    h.sendMsg,
		trySendMsg: h.trySendMsg,
	}

	// Joining happens before the transport goroutines start so that the
	// session and viewer are set when the first message goes through.
	if err := h.Handler.HandleJoin(ctx, h.handleFrame, responder); err != nil {
		h.disconnect(errors.New("joining session failed").Wrap(err))
	}

	var wg sync.WaitGroup

	h.sender = h.Handler.Sender()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiver = h.Handler.Receiver()
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	disconnected := false
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			h.disconnect(ctx.Err())

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", h.Handler.IdleTimeout()))

		case <-h.frameChan:
			if err := h.Handler.SendFrame(ctx, responder); err != nil {
				h.disconnect(errors.New("sending frame failed").Wrap(err))
			}

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			disconnected = true
			h.handleDisconnect(err)
			if ctx.Err() == nil {
				// cancel context so go routines can cleanly exit
				cancel()
			}
		}
	}

	if !disconnected {
		// The parent context ended first: closing the connection unblocks
		// the receiving goroutine.
		h.handleDisconnect(ctx.Err())
	}
	wg.Wait()
}

// handleFrame signals the loop that a frame is ready. Frames that arrive
// while one is still pending are coalesced.
func (h *handler) handleFrame() {
	select {
	case h.frameChan <- struct{}{}:
	default:
	}
}

func (h *handler) send(p Payload) {
	msg, err := MsgFromPayload(p)
	if err != nil {
		logs.WithTag("message", p).
			WithClientID(h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendChan <- msg
}

func (h *handler) sendMsg(msg Msg) {
	h.sendChan <- msg
}

func (h *handler) trySendMsg(msg Msg) bool {
	select {
	case h.sendChan <- msg:
		return true
	default:
		return false
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			msg, _, err := h.receiver()
			if err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}

			select {
			case h.receiveChan <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg Msg, responder ResponseSender) error {
	var err error

	switch msg.Type {
	case MsgTypePing:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case MsgTypeInput:
		err = h.Handler.HandleInput(ctx, responder, msg)

	case MsgTypeView:
		err = h.Handler.HandleView(ctx, responder, msg)

	case MsgTypeExplode:
		err = h.Handler.HandleExplode(ctx, responder, msg)

	case MsgTypePause:
		err = h.Handler.HandlePause(ctx, responder, msg)

	default:
		respondError(responder, msg.Type, ErrorCodeBadRequest)
		return nil
	}

	// Malformed requests are answered but do not end the connection.
	if err != nil && errors.IsType(err, ErrTypeMsgDecode) {
		respondError(responder, msg.Type, ErrorCodeBadRequest)
		return nil
	}
	return err
}

func (h *handler) disconnect(err error) {
	h.disconnectChan <- err
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

func respondError(respond ResponseSender, requestType MsgType, code ErrorCode) {
	respond.Send(ErrorResponse{
		Type:        MsgTypeError,
		RequestType: requestType,
		Code:        code,
		Timestamp:   time.Now(),
	})
}

type responseSender struct {
	send       func(Payload)
	sendMsg    func(Msg)
	trySendMsg func(Msg) bool
}

func (r responseSender) Send(p Payload) {
	r.send(p)
}

func (r responseSender) SendMsg(msg Msg) {
	r.sendMsg(msg)
}

func (r responseSender) TrySendMsg(msg Msg) bool {
	return r.trySendMsg(msg)
}
