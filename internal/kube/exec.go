package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// ExecOptions describes one exec or attach session inside the pod's
// container.
type ExecOptions struct {
	Command []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	// TTY allocates a pseudo-terminal; stderr is merged into stdout then.
	TTY bool
	// SizeQueue feeds terminal resizes to the remote side. Only used with
	// TTY.
	SizeQueue remotecommand.TerminalSizeQueue
}

// Exec runs a command in the pod's container and streams the given stdio
// until the command exits. A non-zero exit surfaces as an
// exec.CodeExitError from the remotecommand package.
func (c *Client) Exec(ctx context.Context, podName string, opts ExecOptions) error {
	execOpts := &corev1.PodExecOptions{
		Container: DefaultContainerName,
		Command:   opts.Command,
		Stdin:     opts.Stdin != nil,
		Stdout:    opts.Stdout != nil,
		Stderr:    opts.Stderr != nil && !opts.TTY,
		TTY:       opts.TTY,
	}

	req := c.Clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Namespace(c.Namespace).
		Name(podName).
		SubResource("exec").
		VersionedParams(execOpts, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.RESTConfig, http.MethodPost, req.URL())
	if err != nil {
		return fmt.Errorf("failed to create executor for pod %s: %w", podName, err)
	}

	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdin:             opts.Stdin,
		Stdout:            opts.Stdout,
		Stderr:            opts.Stderr,
		Tty:               opts.TTY,
		TerminalSizeQueue: opts.SizeQueue,
	})
	if err != nil {
		return fmt.Errorf("exec in pod %s failed: %w", podName, err)
	}
	return nil
}

// ExecInteractive runs a command with the local terminal in raw mode wired to
// a remote PTY, resizing the remote side on SIGWINCH. It restores the
// terminal state before returning.
func (c *Client) ExecInteractive(ctx context.Context, podName string, command []string) error {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return c.Exec(ctx, podName, ExecOptions{
			Command: command,
			Stdin:   os.Stdin,
			Stdout:  os.Stdout,
			Stderr:  os.Stderr,
		})
	}

	oldState, err := term.MakeRaw(stdinFd)
	if err != nil {
		return fmt.Errorf("failed to put terminal into raw mode: %w", err)
	}
	defer term.Restore(stdinFd, oldState)

	sizeQueue := newResizeQueue(ctx, stdinFd)
	defer sizeQueue.stop()

	return c.Exec(ctx, podName, ExecOptions{
		Command:   command,
		Stdin:     os.Stdin,
		Stdout:    os.Stdout,
		TTY:       true,
		SizeQueue: sizeQueue,
	})
}

// resizeQueue implements remotecommand.TerminalSizeQueue from SIGWINCH.
type resizeQueue struct {
	fd      int
	sizes   chan remotecommand.TerminalSize
	signals chan os.Signal
	done    chan struct{}
}

func newResizeQueue(ctx context.Context, fd int) *resizeQueue {
	q := &resizeQueue{
		fd:      fd,
		sizes:   make(chan remotecommand.TerminalSize, 1),
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	signal.Notify(q.signals, syscall.SIGWINCH)
	q.push()
	go func() {
		for {
			select {
			case <-q.signals:
				q.push()
			case <-ctx.Done():
				return
			case <-q.done:
				return
			}
		}
	}()
	return q
}

func (q *resizeQueue) push() {
	width, height, err := term.GetSize(q.fd)
	if err != nil {
		return
	}
	size := remotecommand.TerminalSize{Width: uint16(width), Height: uint16(height)}
	select {
	case q.sizes <- size:
	default:
		// A pending size is stale; replace it.
		select {
		case <-q.sizes:
		default:
		}
		q.sizes <- size
	}
}

// Next blocks until the terminal is resized. Returning nil ends the remote
// resize loop.
func (q *resizeQueue) Next() *remotecommand.TerminalSize {
	select {
	case size := <-q.sizes:
		return &size
	case <-q.done:
		return nil
	}
}

func (q *resizeQueue) stop() {
	signal.Stop(q.signals)
	close(q.done)
}
