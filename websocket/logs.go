package websocket

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"golang.org/x/net/websocket"
)

// HandlerWithLogs decorates h with connection logs and a periodic summary of
// the inbound messages.
func HandlerWithLogs(h Handler, summaryInterval time.Duration) Handler {
	ctx, cancel := context.WithCancel(context.Background())

	handler := &handlerWithLogs{
		Handler:            h,
		summaryInterval:    summaryInterval,
		closeSummaryWorker: cancel,
		counter:            make(map[string]int),
	}

	go handler.startSummaryWorker(ctx)
	return handler
}

type handlerWithLogs struct {
	Handler

	originalRequest *http.Request

	summaryInterval    time.Duration
	closeSummaryWorker func()
	counterMutex       sync.Mutex
	counter            map[string]int

	// Written once the viewer joined, before any message goes through the
	// receiver and sender.
	sessionUUID string
	viewerID    uint32
}

func (h *handlerWithLogs) HandleConnect(conn *websocket.Conn) {
	h.Handler.HandleConnect(conn)
	h.originalRequest = conn.Request()

	logs.WithTag("format", h.originalRequest.URL.Query().Get("format")).
		WithClientID(h.GetClientID()).
		Info("new viewer is connected")
}

func (h *handlerWithLogs) HandleJoin(ctx context.Context, handleFrame func(), respond ResponseSender) error {
	if err := h.Handler.HandleJoin(ctx, handleFrame, respond); err != nil {
		logs.WithTag("http_headers", h.httpHeaders()).
			WithClientID(h.GetClientID()).
			Warn(errors.New("viewer failed to join the session").Wrap(err))
		return err
	}

	if session := h.CurrentSession(); session != nil {
		h.sessionUUID = session.SessionUUID
	}
	if viewer := h.CurrentViewer(); viewer != nil {
		h.viewerID = viewer.ID
	}

	logs.WithTag("session_uuid", h.sessionUUID).
		WithTag("viewer_id", h.viewerID).
		WithTag("http_headers", h.httpHeaders()).
		WithClientID(h.GetClientID()).
		Info("viewer joined the session")
	return nil
}

func (h *handlerWithLogs) HandleDisconnect(err error) {
	h.Handler.HandleDisconnect(err)

	entry := logs.WithTag("session_uuid", h.sessionUUID).
		WithTag("viewer_id", h.viewerID).
		WithClientID(h.GetClientID())
	if err != nil {
		entry = entry.WithTag("reason", err.Error())
	}
	entry.Info("viewer disconnected")
}

func (h *handlerWithLogs) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (Msg, int, error) {
		msg, n, err := receive()
		if err != nil && !isClosed(err) {
			logs.WithTag("session_uuid", h.sessionUUID).
				WithTag("viewer_id", h.viewerID).
				WithClientID(h.GetClientID()).
				Error(errors.New("receiving message failed").Wrap(err))
		} else if err == nil {
			logs.WithTag("session_uuid", h.sessionUUID).
				WithTag("viewer_id", h.viewerID).
				WithTag("msg_type", msg.TypeString()).
				WithClientID(h.GetClientID()).
				Debug("message received")
			h.incCounter(msg.TypeString())
		}
		return msg, n, err
	}
}

func (h *handlerWithLogs) Sender() Sender {
	sender := h.Handler.Sender()

	return func(msg Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := sender(msg)
		if err != nil && !isClosed(err) {
			logs.WithTag("session_uuid", h.sessionUUID).
				WithTag("viewer_id", h.viewerID).
				WithTag("msg_type", msgType).
				WithClientID(h.GetClientID()).
				Error(errors.New("sending message failed").Wrap(err))
		} else if err == nil && msg.Type != MsgTypeSnapshot {
			// Snapshots go out every frame and would flood the debug logs.
			logs.WithTag("session_uuid", h.sessionUUID).
				WithTag("viewer_id", h.viewerID).
				WithTag("msg_type", msgType).
				WithClientID(h.GetClientID()).
				Debug("message sent")
		}
		return n, err
	}
}

func (h *handlerWithLogs) Close() {
	h.Handler.Close()
	h.closeSummaryWorker()
	h.logSummary()
}

func (h *handlerWithLogs) httpHeaders() any {
	if h.originalRequest == nil {
		return nil
	}

	return struct {
		UserAgent     string `json:"user_agent,omitempty"`
		XForwardedFor string `json:"x_forwarded_for,omitempty"`
	}{
		UserAgent:     h.originalRequest.UserAgent(),
		XForwardedFor: h.originalRequest.Header.Get("X-Forwarded-For"),
	}
}

// isClosed reports whether err comes from a connection closed by either side.
func isClosed(err error) bool {
	return stderrors.Is(err, io.EOF) || stderrors.Is(err, net.ErrClosed)
}

func (h *handlerWithLogs) startSummaryWorker(ctx context.Context) {
	ticker := time.NewTicker(h.summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.logSummary()
		}
	}
}

func (h *handlerWithLogs) incCounter(msgType string) {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	h.counter[msgType]++
}

func (h *handlerWithLogs) logSummary() {
	h.counterMutex.Lock()
	defer h.counterMutex.Unlock()

	if len(h.counter) == 0 {
		return
	}

	entry := logs.WithTag("session_uuid", h.sessionUUID).
		WithTag("viewer_id", h.viewerID).
		WithTag("time_interval", h.summaryInterval).
		WithClientID(h.GetClientID())

	for k, v := range h.counter {
		entry = entry.WithTag(k, v)
		delete(h.counter, k)
	}

	entry.Info("inbound message summary")
}
