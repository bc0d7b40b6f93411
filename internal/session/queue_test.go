package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mimiclab/simlink/internal/common/cnst"
)

func poseMsg(i int) *Message {
	return NewMessage(cnst.TypePoseLoad, map[string]any{"pose": fmt.Sprintf("p%d", i)})
}

func TestOutboundQueuePushEvictsOldest(t *testing.T) {
	q := newOutboundQueue(3)

	for i := 0; i < 3; i++ {
		assert.Nil(t, q.push(poseMsg(i)))
	}
	assert.Equal(t, 3, q.len())

	evicted := q.push(poseMsg(3))
	require.NotNil(t, evicted)
	assert.Equal(t, "p0", evicted.Payload["pose"])
	assert.Equal(t, 3, q.len())

	drained := q.drain()
	assert.Equal(t, 0, q.len())
	require.Len(t, drained, 3)
	for i, m := range drained {
		assert.Equal(t, fmt.Sprintf("p%d", i+1), m.Payload["pose"])
	}
}

func TestOutboundQueuePushFrontPreservesOrder(t *testing.T) {
	q := newOutboundQueue(5)
	q.push(poseMsg(4))

	// Re-queued flush remainder goes ahead of anything sent meanwhile.
	evicted := q.pushFront([]*Message{poseMsg(1), poseMsg(2), poseMsg(3)})
	assert.Zero(t, evicted)

	drained := q.drain()
	require.Len(t, drained, 4)
	for i, m := range drained {
		assert.Equal(t, fmt.Sprintf("p%d", i+1), m.Payload["pose"])
	}
}

func TestOutboundQueuePushFrontTrimsOverCap(t *testing.T) {
	q := newOutboundQueue(3)
	q.push(poseMsg(4))
	q.push(poseMsg(5))

	evicted := q.pushFront([]*Message{poseMsg(1), poseMsg(2), poseMsg(3)})
	assert.Equal(t, 2, evicted)
	assert.Equal(t, 3, q.len())

	// The oldest overall entries (the head of the re-queued batch) go first.
	drained := q.drain()
	require.Len(t, drained, 3)
	for i, m := range drained {
		assert.Equal(t, fmt.Sprintf("p%d", i+3), m.Payload["pose"])
	}
}
