package pipeproxy

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T) (server net.Conn, dial func() (net.Conn, error)) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	return serverConn, func() (net.Conn, error) { return clientConn, nil }
}

func TestProxyStartWritesAndReadsThroughPipe(t *testing.T) {
	server, dial := dialPair(t)
	defer server.Close()

	p := New("TESTPIPE", dial, nil)
	require.Equal(t, "TESTPIPE", p.ChannelName())

	frames, err := p.Start(1)
	require.NoError(t, err)
	require.Nil(t, frames)

	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		server.Write(buf[:n])
	}()

	out, err := p.Process(1, []byte("ping"))
	require.NoError(t, err)
	require.Empty(t, out)

	require.Eventually(t, func() bool {
		out, err = p.Process(1, nil)
		require.NoError(t, err)
		return len(out) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []byte("ping"), out[0])
}

func TestProxyProcessOnUnknownChannelIsNoOp(t *testing.T) {
	_, dial := dialPair(t)
	p := New("TESTPIPE", dial, nil)

	out, err := p.Process(99, []byte("x"))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestProxyCloseStopsReadPumpAndClosesConn(t *testing.T) {
	server, dial := dialPair(t)
	defer server.Close()

	p := New("TESTPIPE", dial, nil)
	_, err := p.Start(1)
	require.NoError(t, err)

	p.Close(1)

	out, err := p.Process(1, []byte("x"))
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestProxyStartReturnsDialError(t *testing.T) {
	wantErr := errors.New("dial failed")
	p := New("TESTPIPE", func() (net.Conn, error) { return nil, wantErr }, nil)

	_, err := p.Start(1)
	require.ErrorIs(t, err, wantErr)
}

func TestProxyOnErrorCalledWhenConnectionFails(t *testing.T) {
	server, dial := dialPair(t)

	var gotChannelID uint32
	var gotErr error
	done := make(chan struct{})
	p := New("TESTPIPE", dial, func(channelID uint32, err error) {
		gotChannelID = channelID
		gotErr = err
		close(done)
	})

	_, err := p.Start(7)
	require.NoError(t, err)

	server.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onError callback never fired")
	}
	require.Equal(t, uint32(7), gotChannelID)
	require.Error(t, gotErr)
}
