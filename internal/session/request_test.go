package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimiclab/simlink/internal/common/cnst"
)

func TestRequestResolvesByMessageID(t *testing.T) {
	s, d := newTestSession(t, Config{})
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)
	conn := d.conn(0)

	go func() {
		sent := conn.nextOut(t)

		// Noise that must not resolve the request.
		conn.deliver(t, NewMessage(cnst.TypeChatTurn, map[string]any{"text": "noise"}))
		other := NewMessage(cnst.TypeQualityChange+cnst.ReplySuffix, nil)
		other.MessageID = "unrelated"
		conn.deliver(t, other)

		reply := NewMessage(cnst.TypeRewardUpdate+cnst.ReplySuffix, map[string]any{"ok": true})
		reply.MessageID = sent.MessageID
		conn.deliver(t, reply)
		// A second matching reply must not panic or double-resolve.
		conn.deliver(t, reply)
	}()

	reply, err := s.Request(context.Background(),
		NewMessage(cnst.TypeRewardUpdate, map[string]any{"weights": []any{0.2, 0.8}}),
		time.Second)
	require.NoError(t, err)
	assert.Equal(t, cnst.TypeRewardUpdate+cnst.ReplySuffix, reply.Type)
	assert.Equal(t, true, reply.Payload["ok"])
}

func TestRequestResolvesByReplyType(t *testing.T) {
	s, d := newTestSession(t, Config{})
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)
	conn := d.conn(0)

	go func() {
		conn.nextOut(t)
		// Backends that predate message_id echo reply by type convention.
		conn.deliver(t, NewMessage(cnst.TypePoseLoad+cnst.ReplySuffix, map[string]any{"pose": "crouch"}))
	}()

	reply, err := s.Request(context.Background(),
		NewMessage(cnst.TypePoseLoad, map[string]any{"pose": "crouch"}),
		time.Second)
	require.NoError(t, err)
	assert.Equal(t, "crouch", reply.Payload["pose"])
}

func TestRequestDebugModelInfoEchoesOwnType(t *testing.T) {
	s, d := newTestSession(t, Config{})
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)
	conn := d.conn(0)

	go func() {
		conn.nextOut(t)
		conn.deliver(t, NewMessage(cnst.TypeDebugModelInfo, map[string]any{
			"is_computing": false,
			"model":        "humanoid-v2",
		}))
	}()

	reply, err := s.Request(context.Background(),
		NewMessage(cnst.TypeDebugModelInfo, nil), time.Second)
	require.NoError(t, err)
	assert.Equal(t, cnst.TypeDebugModelInfo, reply.Type)
	assert.Equal(t, "humanoid-v2", reply.Payload["model"])
	assert.False(t, s.IsComputing())
}

func TestRequestTimeout(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)

	start := time.Now()
	reply, err := s.Request(context.Background(),
		NewMessage(cnst.TypeAnimationLoad, map[string]any{"name": "wave"}),
		30*time.Millisecond)
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.ErrorIs(t, err, cnst.ErrRequestTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// The temporary handler is removed after the request settles.
	s.mu.Lock()
	remaining := len(s.handlers)
	s.mu.Unlock()
	assert.Zero(t, remaining)
}

func TestRequestCanceled(t *testing.T) {
	s, _ := newTestSession(t, Config{})
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := s.Request(ctx, NewMessage(cnst.TypeChatTurn, map[string]any{"text": "hi"}), time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestWhileDisconnectedQueuesAndResolvesAfterReconnect(t *testing.T) {
	s, d := newTestSession(t, Config{})

	done := make(chan struct{})
	var reply *Message
	var reqErr error
	go func() {
		defer close(done)
		reply, reqErr = s.Request(context.Background(),
			NewMessage(cnst.TypePoseLoad, map[string]any{"pose": "stand"}),
			time.Second)
	}()

	time.Sleep(10 * time.Millisecond) // let the request queue its message
	s.Connect()
	waitFor(t, time.Second, "connected", s.IsReady)

	conn := d.conn(0)
	sent := conn.nextOut(t)
	echo := NewMessage(cnst.TypePoseLoad+cnst.ReplySuffix, nil)
	echo.MessageID = sent.MessageID
	conn.deliver(t, echo)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("request did not settle")
	}
	require.NoError(t, reqErr)
	assert.Equal(t, sent.MessageID, reply.MessageID)
}
