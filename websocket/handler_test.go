package websocket

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/aukilabs/swarm/featureflag"
	"github.com/aukilabs/swarm/geom"
	"github.com/aukilabs/swarm/models"
	"github.com/aukilabs/swarm/simulation"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

const (
	testBoidCount = 16
	testStarCount = 16
	testCapacity  = 32
)

func newTestSession(t *testing.T) *models.Session {
	c := simulation.DefaultConfig()
	c.World = geom.NewRect(0, 0, 2000, 2000)
	c.MaxDepth = 5
	c.MaxBoids = testCapacity
	c.BoidCount = testBoidCount
	c.StarCount = testStarCount

	w, err := simulation.NewWorld(c, rand.New(rand.NewPCG(1, 2)))
	require.NoError(t, err)

	session := models.NewSession(1, time.Millisecond*10, w)
	go session.StartDispatchFrames()
	t.Cleanup(session.Close)
	return session
}

func newTestHandler(session *models.Session, flags ...featureflag.Flag) func() Handler {
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}

	return func() Handler {
		var h Handler = &ViewerHandler{
			ClientIdleTimeout: time.Minute,
			Session:           session,
			FeatureFlags:      featureflag.New(names),
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://swarm-test.local")
		return h
	}
}

type testFrame struct {
	data   []byte
	binary bool
}

var testFrameCodec = websocket.Codec{
	Unmarshal: func(data []byte, payloadType byte, v any) error {
		f := v.(*testFrame)
		f.data = data
		f.binary = payloadType == websocket.BinaryFrame
		return nil
	},
}

func receiveFrame(t *testing.T, conn *websocket.Conn) testFrame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second*5)))

	var f testFrame
	require.NoError(t, testFrameCodec.Receive(conn, &f))
	return f
}

// receiveMsg skips incoming messages until one of the given type arrives.
func receiveMsg(t *testing.T, conn *websocket.Conn, typ MsgType) Msg {
	for {
		f := receiveFrame(t, conn)
		if f.binary {
			continue
		}

		var header struct {
			Type MsgType `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f.data, &header))

		if header.Type == typ {
			return Msg{Type: header.Type, Data: f.data}
		}
	}
}

func receiveSnapshot(t *testing.T, conn *websocket.Conn) simulation.Snapshot {
	var res SnapshotMsg
	require.NoError(t, receiveMsg(t, conn, MsgTypeSnapshot).DataTo(&res))
	return res.Snapshot
}

func receiveError(t *testing.T, conn *websocket.Conn) ErrorResponse {
	var res ErrorResponse
	require.NoError(t, receiveMsg(t, conn, MsgTypeError).DataTo(&res))
	return res
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	require.NoError(t, websocket.Message.Send(conn, msg))
}

func TestHandlerHandleJoin(t *testing.T) {
	session := newTestSession(t)
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(session), "")
	defer close()

	var welcomeA, welcomeB WelcomeMsg
	require.NoError(t, receiveMsg(t, clientA, MsgTypeWelcome).DataTo(&welcomeA))
	require.NoError(t, receiveMsg(t, clientB, MsgTypeWelcome).DataTo(&welcomeB))

	require.NotZero(t, welcomeA.ViewerID)
	require.NotZero(t, welcomeB.ViewerID)
	require.NotEqual(t, welcomeA.ViewerID, welcomeB.ViewerID)
	require.Equal(t, session.SessionUUID, welcomeA.SessionUUID)
	require.Equal(t, geom.NewRect(0, 0, 2000, 2000), welcomeA.World)
	require.Equal(t, testCapacity, welcomeA.Capacity)
	require.Equal(t, simulation.AllKeys.Names(), welcomeA.Keys)
	require.Equal(t, "json", welcomeA.Format)

	require.Eventually(t, func() bool {
		return session.ViewerCount() == 2
	}, time.Second, time.Millisecond*10)
}

func TestHandlerHandlePing(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "")
	defer close()

	send(t, clientA, `{"type":"ping","request_id":1}`)

	var res PongResponse
	require.NoError(t, receiveMsg(t, clientA, MsgTypePong).DataTo(&res))
	require.Equal(t, uint32(1), res.RequestID)
	require.NotZero(t, res.Timestamp)
}

func TestHandlerSendFrame(t *testing.T) {
	t.Run("json snapshots", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "")
		defer close()

		first := receiveSnapshot(t, clientA)
		second := receiveSnapshot(t, clientA)

		require.Greater(t, second.Tick, first.Tick)
		require.Equal(t, geom.NewRect(0, 0, 2000, 2000), first.View)
		require.Equal(t, testBoidCount, first.Remaining)
		require.Equal(t, testCapacity, first.Capacity)
		require.Len(t, first.Boids, testBoidCount)
		require.Len(t, first.Stars, testStarCount)
	})

	t.Run("binary snapshots", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "format=binary")
		defer close()

		var welcome WelcomeMsg
		require.NoError(t, receiveMsg(t, clientA, MsgTypeWelcome).DataTo(&welcome))
		require.Equal(t, "binary", welcome.Format)

		f := receiveFrame(t, clientA)
		for !f.binary {
			f = receiveFrame(t, clientA)
		}

		snapshot, err := UnmarshalSnapshot(f.data)
		require.NoError(t, err)
		require.NotZero(t, snapshot.Tick)
		require.Equal(t, testBoidCount, snapshot.Remaining)
		require.Equal(t, testCapacity, snapshot.Capacity)
		require.Len(t, snapshot.Boids, testBoidCount)
		require.Len(t, snapshot.Stars, testStarCount)
	})
}

func TestHandlerHandleView(t *testing.T) {
	t.Run("snapshots follow the view", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "")
		defer close()

		view := geom.NewRect(0, 0, 500, 500)
		send(t, clientA, `{"type":"view","view":{"position":{"x":0,"y":0},"size":{"x":500,"y":500}}}`)

		snapshot := receiveSnapshot(t, clientA)
		for snapshot.View != view {
			snapshot = receiveSnapshot(t, clientA)
		}

		require.Equal(t, testBoidCount, snapshot.Remaining)
		for _, b := range snapshot.Boids {
			require.Less(t, b.Position.X, 500.0)
			require.Less(t, b.Position.Y, 500.0)
		}
		for _, s := range snapshot.Stars {
			require.True(t, view.Overlaps(geom.Rect{Position: s, Size: geom.Vec2{X: 1, Y: 1}}))
		}
	})

	t.Run("negative view size is rejected", func(t *testing.T) {
		clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "")
		defer close()

		send(t, clientA, `{"type":"view","view":{"position":{"x":0,"y":0},"size":{"x":-1,"y":500}}}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypeView, res.RequestType)
		require.Equal(t, ErrorCodeBadRequest, res.Code)
	})
}

func TestHandlerHandleInput(t *testing.T) {
	session := newTestSession(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(session), "")
	defer close()

	send(t, clientA, `{"type":"input","keys":["thrust","warp","FIRE"]}`)

	expected := simulation.ParseKeys([]string{"thrust", "fire"})
	require.Eventually(t, func() bool {
		return session.Keys() == expected
	}, time.Second*2, time.Millisecond*10)

	send(t, clientA, `{"type":"input","keys":[]}`)
	require.Eventually(t, func() bool {
		return session.Keys() == 0
	}, time.Second*2, time.Millisecond*10)
}

func TestHandlerHandleExplode(t *testing.T) {
	session := newTestSession(t)
	session.TogglePause()

	clientA, _, close := NewTestingEnv(t, newTestHandler(session), "")
	defer close()

	send(t, clientA, `{"type":"explode","position":{"x":1000,"y":1000}}`)

	snapshot := receiveSnapshot(t, clientA)
	for len(snapshot.Explosions) == 0 {
		snapshot = receiveSnapshot(t, clientA)
	}

	require.True(t, snapshot.Paused)
	require.Len(t, snapshot.Explosions, 1)
	require.Equal(t, geom.Vec2{X: 1000, Y: 1000}, snapshot.Explosions[0].Position)
}

func TestHandlerHandlePause(t *testing.T) {
	session := newTestSession(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(session), "")
	defer close()

	send(t, clientA, `{"type":"pause"}`)
	require.Eventually(t, session.Paused, time.Second*2, time.Millisecond*10)

	snapshot := receiveSnapshot(t, clientA)
	for !snapshot.Paused {
		snapshot = receiveSnapshot(t, clientA)
	}

	send(t, clientA, `{"type":"pause"}`)
	require.Eventually(t, func() bool {
		return !session.Paused()
	}, time.Second*2, time.Millisecond*10)
}

func TestHandlerFeatureFlags(t *testing.T) {
	session := newTestSession(t)
	clientA, _, close := NewTestingEnv(t, newTestHandler(session,
		featureflag.FlagDisableExplosions,
		featureflag.FlagDisableViewerInput,
		featureflag.FlagDisablePause,
		featureflag.FlagDisableStars,
	), "")
	defer close()

	t.Run("explode is forbidden", func(t *testing.T) {
		send(t, clientA, `{"type":"explode","position":{"x":1000,"y":1000}}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypeExplode, res.RequestType)
		require.Equal(t, ErrorCodeForbidden, res.Code)
	})

	t.Run("input is forbidden", func(t *testing.T) {
		send(t, clientA, `{"type":"input","keys":["thrust"]}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypeInput, res.RequestType)
		require.Equal(t, ErrorCodeForbidden, res.Code)
		require.Zero(t, session.Keys())
	})

	t.Run("pause is forbidden", func(t *testing.T) {
		send(t, clientA, `{"type":"pause"}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypePause, res.RequestType)
		require.Equal(t, ErrorCodeForbidden, res.Code)
		require.False(t, session.Paused())
	})

	t.Run("snapshots have no stars", func(t *testing.T) {
		snapshot := receiveSnapshot(t, clientA)
		require.Empty(t, snapshot.Stars)
		require.Len(t, snapshot.Boids, testBoidCount)
	})
}

func TestHandlerBadRequest(t *testing.T) {
	clientA, _, close := NewTestingEnv(t, newTestHandler(newTestSession(t)), "")
	defer close()

	t.Run("not json", func(t *testing.T) {
		send(t, clientA, `hello`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypeUnknown, res.RequestType)
		require.Equal(t, ErrorCodeBadRequest, res.Code)
	})

	t.Run("unknown type", func(t *testing.T) {
		send(t, clientA, `{"type":"warp"}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgType("warp"), res.RequestType)
		require.Equal(t, ErrorCodeBadRequest, res.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		send(t, clientA, `{"type":"ping","request_id":"one"}`)

		res := receiveError(t, clientA)
		require.Equal(t, MsgTypePing, res.RequestType)
		require.Equal(t, ErrorCodeBadRequest, res.Code)
	})

	t.Run("connection stays open", func(t *testing.T) {
		send(t, clientA, `{"type":"ping","request_id":7}`)

		var res PongResponse
		require.NoError(t, receiveMsg(t, clientA, MsgTypePong).DataTo(&res))
		require.Equal(t, uint32(7), res.RequestID)
	})
}

func TestHandlerHandleDisconnect(t *testing.T) {
	session := newTestSession(t)
	clientA, clientB, close := NewTestingEnv(t, newTestHandler(session), "")
	defer close()

	require.Eventually(t, func() bool {
		return session.ViewerCount() == 2
	}, time.Second*2, time.Millisecond*10)

	send(t, clientA, `{"type":"input","keys":["thrust"]}`)
	require.Eventually(t, func() bool {
		return session.Keys().Has(simulation.KeyThrust)
	}, time.Second*2, time.Millisecond*10)

	clientA.Close()
	require.Eventually(t, func() bool {
		return session.ViewerCount() == 1
	}, time.Second*2, time.Millisecond*10)
	require.True(t, session.Keys().Has(simulation.KeyThrust))

	clientB.Close()
	require.Eventually(t, func() bool {
		return session.ViewerCount() == 0
	}, time.Second*2, time.Millisecond*10)
	require.Zero(t, session.Keys())
}

func TestHandlerDisconnectOnIdleTimeout(t *testing.T) {
	session := newTestSession(t)
	clientA, _, close := newTestingEnv(t, func() Handler {
		return &ViewerHandler{
			ClientIdleTimeout: 0,
			Session:           session,
		}
	}, "")
	defer close()

	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(time.Second*5)))

	var err error
	for err == nil {
		var f testFrame
		err = testFrameCodec.Receive(clientA, &f)
	}
	require.Error(t, err)
}
