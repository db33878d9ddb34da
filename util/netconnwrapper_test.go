package util

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineRecorder struct {
	net.Conn
	deadlines []time.Time
	written   int
}

func (c *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	c.deadlines = append(c.deadlines, t)
	return nil
}

func (c *deadlineRecorder) Write(p []byte) (int, error) {
	c.written += len(p)
	return len(p), nil
}

func TestNetConnWrapperRefreshesDeadlineLazily(t *testing.T) {
	rec := &deadlineRecorder{}
	conn := WrapNetConn(rec, time.Minute)

	before := time.Now()
	_, err := conn.Write([]byte("a\n"))
	assert.NoError(t, err)
	_, err = conn.Write([]byte("bc\n"))
	assert.NoError(t, err)

	assert.Equal(t, 5, rec.written)
	if assert.Len(t, rec.deadlines, 1) {
		assert.Equal(t, rec.deadlines[0], conn.WriteDeadline())
		assert.True(t, !conn.WriteDeadline().Before(before.Add(2*time.Minute)))
	}
}

func TestNetConnWrapperWithoutTimeout(t *testing.T) {
	rec := &deadlineRecorder{}
	conn := WrapNetConn(rec, 0)
	_, err := conn.Write([]byte("a\n"))
	assert.NoError(t, err)
	assert.Empty(t, rec.deadlines)
	assert.True(t, conn.WriteDeadline().IsZero())
}

func TestNetConnWrapperWriteTimeout(t *testing.T) {
	socket, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer socket.Close()

	client, err := net.Dial("tcp", socket.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	server, err := socket.Accept()
	require.NoError(t, err)
	defer server.Close() // never read, so the client's send buffer fills up

	conn := WrapNetConn(client, 50*time.Millisecond)
	chunk := make([]byte, 1024*1024)
	var werr error
	for i := 0; i < 1000 && werr == nil; i++ {
		_, werr = conn.Write(chunk)
	}
	assert.True(t, IsNetworkTimeout(werr), werr)
}
