package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"podlab/pkg/logging"
)

// closeWriter is the optional half-close capability of a duplex stream.
// *net.TCPConn has it; remote stream implementations may.
type closeWriter interface {
	CloseWrite() error
}

// bridgeTask builds the contained task body for one accepted connection: it
// opens the matching remote stream and copies bytes in both directions until
// either side ends, an I/O error occurs, or the task is canceled. A failed
// remote open or a mid-transfer error ends only this bridge; the enclosing
// forwarder keeps accepting.
func bridgeTask(name string, local net.Conn, spec ForwardSpec, provider StreamProvider) TaskFunc {
	return func(ctx context.Context) Outcome {
		remote, err := provider.Open(ctx, spec.PodName, spec.Namespace, spec.RemotePort)
		if err != nil {
			local.Close()
			logging.Warn(name, "Failed to open remote stream for %s/%s:%d: %v",
				spec.Namespace, spec.PodName, spec.RemotePort, err)
			return Failed(fmt.Errorf("open remote stream: %w", err))
		}

		logging.Debug(name, "Bridging %s <-> %s/%s:%d", local.RemoteAddr(), spec.Namespace, spec.PodName, spec.RemotePort)

		var closeOnce sync.Once
		closeBoth := func() {
			closeOnce.Do(func() {
				local.Close()
				remote.Close()
			})
		}
		defer closeBoth()

		// On cancellation both halves are closed promptly; the supervisor's
		// drain deadline is the only grace period.
		stopWatch := context.AfterFunc(ctx, closeBoth)
		defer stopWatch()

		var g errgroup.Group
		g.Go(func() error {
			err := copyHalf(remote, local)
			if err != nil {
				// A failed direction tears down the whole bridge so the
				// opposite copy does not block forever.
				closeBoth()
			}
			return err
		})
		g.Go(func() error {
			err := copyHalf(local, remote)
			if err != nil {
				closeBoth()
			}
			return err
		})
		err = g.Wait()

		switch {
		case ctx.Err() != nil:
			logging.Debug(name, "Closing stream due to shutdown")
			return Succeeded()
		case err == nil || isBenignStreamError(err):
			return Succeeded()
		default:
			logging.Warn(name, "Stream error: %v", err)
			return Failed(err)
		}
	}
}

// copyHalf copies one direction, then half-closes the destination's write
// side so the peer observes EOF while the opposite direction keeps flowing.
func copyHalf(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	if cw, ok := dst.(closeWriter); ok {
		cw.CloseWrite()
	} else if c, ok := dst.(io.Closer); ok && err == nil {
		// No half-close support: a full close is the only way to propagate
		// EOF. The other direction will see net.ErrClosed, which is benign.
		c.Close()
	}
	return err
}

// isBenignStreamError reports whether err is an expected way for a bridged
// connection to end: the peer resetting or the sockets being closed under a
// finished copy. These terminate the bridge successfully and are never
// surfaced as failures.
func isBenignStreamError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
