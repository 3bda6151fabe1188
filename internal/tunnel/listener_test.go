package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoProvider bridges every open to an in-memory stream that echoes back
// whatever is written to it.
type echoProvider struct {
	opens atomic.Int32
}

func (p *echoProvider) Open(ctx context.Context, podName, namespace string, remotePort uint16) (io.ReadWriteCloser, error) {
	p.opens.Add(1)
	near, far := net.Pipe()
	go func() {
		io.Copy(far, far)
		far.Close()
	}()
	return near, nil
}

// flakyProvider fails the first open and echoes afterwards.
type flakyProvider struct {
	echo  echoProvider
	opens atomic.Int32
}

func (p *flakyProvider) Open(ctx context.Context, podName, namespace string, remotePort uint16) (io.ReadWriteCloser, error) {
	if p.opens.Add(1) == 1 {
		return nil, fmt.Errorf("no port-forward stream for pod %q", podName)
	}
	return p.echo.Open(ctx, podName, namespace, remotePort)
}

func forwardSpec() ForwardSpec {
	return ForwardSpec{
		PodName:    "p1",
		Namespace:  "default",
		RemotePort: 8080,
		LocalAddr:  "127.0.0.1:0",
	}
}

func TestForwarderEndToEndPingEcho(t *testing.T) {
	sup := NewSupervisor(context.Background(), time.Second)
	fwd := NewForwarder(forwardSpec(), &echoProvider{})
	sup.Spawn(fwd.spec.TaskName(), fwd.Task(sup))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, err := fwd.Readiness().Await(ctx)
	require.NoError(t, err)

	// Readiness resolved the ephemeral port to a concrete one.
	tcpAddr, ok := addr.(*net.TCPAddr)
	require.True(t, ok)
	require.NotZero(t, tcpAddr.Port)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	// Shutdown closes the in-flight bridge: the dialer observes EOF within
	// the drain deadline and the overall serve returns success.
	sup.Shutdown()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(buf)
	assert.ErrorIs(t, err, io.EOF)

	assert.NoError(t, sup.Serve())
}

func TestForwarderBindFailureIsFatalAndReadinessIsLost(t *testing.T) {
	// Occupy a port so the forwarder's bind fails.
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	spec := forwardSpec()
	spec.LocalAddr = occupied.Addr().String()

	sup := NewSupervisor(context.Background(), time.Second)
	fwd := NewForwarder(spec, &echoProvider{})
	sup.Spawn(spec.TaskName(), fwd.Task(sup))

	err = sup.Serve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bind tcp socket")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = fwd.Readiness().Await(ctx)
	assert.ErrorIs(t, err, ErrReadinessLost)
}

func TestBridgeFailureDoesNotStopAcceptLoop(t *testing.T) {
	provider := &flakyProvider{}
	sup := NewSupervisor(context.Background(), time.Second)
	fwd := NewForwarder(forwardSpec(), provider)
	sup.Spawn(fwd.spec.TaskName(), fwd.Task(sup))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, err := fwd.Readiness().Await(ctx)
	require.NoError(t, err)

	// First connection: the remote open fails, the local socket is closed
	// without any bytes forwarded.
	failing, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer failing.Close()
	failing.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = failing.Read(make([]byte, 1))
	assert.Error(t, err, "connection with failed remote open must be closed")

	// The forwarder must keep accepting and bridging afterwards.
	for i := 0; i < 2; i++ {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)

		_, err = conn.Write([]byte("hi"))
		require.NoError(t, err)
		buf := make([]byte, 2)
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, err = io.ReadFull(conn, buf)
		require.NoError(t, err)
		assert.Equal(t, "hi", string(buf))
		conn.Close()
	}

	sup.Shutdown()
	assert.NoError(t, sup.Serve())
}

func TestForwarderCancellationStopsAccepting(t *testing.T) {
	sup := NewSupervisor(context.Background(), time.Second)
	fwd := NewForwarder(forwardSpec(), &echoProvider{})
	sup.Spawn(fwd.spec.TaskName(), fwd.Task(sup))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, err := fwd.Readiness().Await(ctx)
	require.NoError(t, err)

	sup.Shutdown()
	require.NoError(t, sup.Serve())

	// After shutdown the listener is closed: dialing must fail.
	conn, err := net.DialTimeout("tcp", addr.String(), 200*time.Millisecond)
	if err == nil {
		conn.Close()
		t.Fatal("listener still accepting after shutdown")
	}
}

func TestForwarderTaskName(t *testing.T) {
	spec := ForwardSpec{PodName: "p1", Namespace: "default", RemotePort: 8022, LocalAddr: "127.0.0.1:2222"}
	assert.Equal(t, "forwarder-127.0.0.1:2222/p1:8022", spec.TaskName())
}
