package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient builds a hub-only client; the connection pumps never run in
// these tests.
func testClient(h *Hub, showtimeID uint64, sessionID string) *Client {
	return newClient(h, nil, showtimeID, sessionID, nil, nil)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case p, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestBroadcastReachesRoomOnly(t *testing.T) {
	h := NewHub(0)
	a := testClient(h, 10, "sess-a")
	b := testClient(h, 10, "sess-b")
	other := testClient(h, 11, "sess-c")
	h.Register(a)
	h.Register(b)
	h.Register(other)

	h.Broadcast(10, []byte("payload"), nil)

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(other), "other showtimes must not see the event")
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub(0)
	a := testClient(h, 10, "sess-a")
	b := testClient(h, 10, "sess-b")
	h.Register(a)
	h.Register(b)

	h.Broadcast(10, []byte("payload"), a)

	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}

func TestBroadcastEvictsSlowClient(t *testing.T) {
	h := NewHub(0)
	slow := testClient(h, 10, "sess-slow")
	h.Register(slow)

	// Fill the buffer; nobody reads.
	for i := 0; i < sendBuffer; i++ {
		h.Broadcast(10, []byte("x"), nil)
	}
	require.Equal(t, 1, h.Count(10))

	// One more overflows and evicts.
	h.Broadcast(10, []byte("overflow"), nil)
	assert.Equal(t, 0, h.Count(10))

	// The send channel was closed on eviction.
	msgs := drain(slow)
	assert.Len(t, msgs, sendBuffer)
	_, open := <-slow.send
	assert.False(t, open)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := NewHub(0)
	c := testClient(h, 10, "sess-a")
	h.Register(c)

	h.Unregister(c)
	h.Unregister(c) // double unregister must not panic
	assert.Equal(t, 0, h.Count(10))
}

func TestSendPersonalSkipsGoneClient(t *testing.T) {
	h := NewHub(0)
	c := testClient(h, 10, "sess-a")
	h.Register(c)
	h.Unregister(c)

	// Must not panic on the closed channel.
	h.SendPersonal(c, []byte("late"))
}

func TestSendPersonalDelivers(t *testing.T) {
	h := NewHub(0)
	a := testClient(h, 10, "sess-a")
	b := testClient(h, 10, "sess-b")
	h.Register(a)
	h.Register(b)

	h.SendPersonal(a, []byte("just you"))

	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestCountPerShowtime(t *testing.T) {
	h := NewHub(0)
	h.Register(testClient(h, 10, "a"))
	h.Register(testClient(h, 10, "b"))
	h.Register(testClient(h, 11, "c"))

	assert.Equal(t, 2, h.Count(10))
	assert.Equal(t, 1, h.Count(11))
	assert.Equal(t, 0, h.Count(12))
}
