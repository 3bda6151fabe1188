package tunnel

import (
	"context"
	"fmt"
	"io"
	"net"

	"podlab/pkg/logging"
)

// StreamProvider turns a (pod, port) identity into a duplex byte stream over
// the orchestrator's port-forward wire protocol. Implementations do not
// retry; retry policy belongs to the caller of the whole command.
type StreamProvider interface {
	Open(ctx context.Context, podName, namespace string, remotePort uint16) (io.ReadWriteCloser, error)
}

// ForwardSpec describes one local listener and the remote pod port it bridges
// to. Immutable once its Forwarder starts.
type ForwardSpec struct {
	PodName    string
	Namespace  string
	RemotePort uint16
	// LocalAddr is the address to bind, e.g. "127.0.0.1:8080". A zero port
	// selects an ephemeral one; the real address is published via readiness.
	LocalAddr string
}

// TaskName derives the forwarder's supervisor registry name. Collisions only
// harm diagnostics, not correctness.
func (s ForwardSpec) TaskName() string {
	return fmt.Sprintf("forwarder-%s/%s:%d", s.LocalAddr, s.PodName, s.RemotePort)
}

// Forwarder accepts local TCP connections and bridges each one to a freshly
// opened remote stream. It owns the bind/accept loop only: bridges run as
// contained supervisor tasks, and the forwarder never waits for them.
type Forwarder struct {
	spec      ForwardSpec
	provider  StreamProvider
	readiness *Readiness
}

// NewForwarder creates a forwarder for spec. The readiness one-shot is
// created here so a consumer can subscribe before the task starts.
func NewForwarder(spec ForwardSpec, provider StreamProvider) *Forwarder {
	return &Forwarder{
		spec:      spec,
		provider:  provider,
		readiness: NewReadiness(),
	}
}

// Readiness returns the one-shot that yields the actual bound address.
func (f *Forwarder) Readiness() *Readiness {
	return f.readiness
}

// Task returns the forwarder's supervised body. Accepted connections are
// spawned as contained bridge tasks on sup.
func (f *Forwarder) Task(sup *Supervisor) TaskFunc {
	return func(ctx context.Context) Outcome {
		return f.run(ctx, sup)
	}
}

func (f *Forwarder) run(ctx context.Context, sup *Supervisor) Outcome {
	subsystem := f.spec.TaskName()

	listener, err := net.Listen("tcp", f.spec.LocalAddr)
	if err != nil {
		f.readiness.abandon()
		return Failed(fmt.Errorf("bind tcp socket %s: %w", f.spec.LocalAddr, err))
	}
	defer listener.Close()

	boundAddr := listener.Addr()
	logging.Info(subsystem, "Forwarding from %s -> %s:%d", boundAddr, f.spec.PodName, f.spec.RemotePort)
	f.readiness.publish(boundAddr)

	// Cancellation unblocks the accept below by closing the listener.
	stopWatch := context.AfterFunc(ctx, func() {
		listener.Close()
	})
	defer stopWatch()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logging.Debug(subsystem, "Accept loop stopped")
				return Succeeded()
			}
			return Failed(fmt.Errorf("accept on %s: %w", boundAddr, err))
		}

		// The shared signal may have fired between Accept returning and
		// now; no new bridge may start once it has.
		if ctx.Err() != nil {
			conn.Close()
			return Succeeded()
		}

		peer := conn.RemoteAddr()
		streamName := fmt.Sprintf("stream-%s-%d", boundAddr, peerPort(peer))
		logging.Debug(subsystem, "Accepted connection from %s", peer)
		sup.SpawnContained(streamName, bridgeTask(streamName, conn, f.spec, f.provider))
	}
}

func peerPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
