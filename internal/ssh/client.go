package ssh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"podlab/pkg/logging"
)

// DefaultUser is the account the ssh subcommands log in as. Podlab pods run
// their sshd as the container's root user.
const DefaultUser = "root"

const dialTimeout = 10 * time.Second

// Conn is an authenticated ssh connection to a pod, reached through a local
// tunnel endpoint.
type Conn struct {
	client *ssh.Client
}

// Dial connects to addr (the local end of a tunnel) and authenticates with
// the signer. The endpoint is a loopback tunnel into a throwaway pod, so
// host keys are not verified.
func Dial(ctx context.Context, addr, user string, signer ssh.Signer) (*Conn, error) {
	clientConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, clientConfig)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	return &Conn{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// Close tears the connection down.
func (c *Conn) Close() error {
	return c.client.Close()
}

// Shell runs an interactive login shell with a PTY, the local terminal in
// raw mode, and window changes forwarded to the remote side. It returns when
// the remote shell exits.
func (c *Conn) Shell(ctx context.Context) error {
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	session.Stdin = os.Stdin
	session.Stdout = os.Stdout
	session.Stderr = os.Stderr

	stdinFd := int(os.Stdin.Fd())
	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("failed to put terminal into raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)

		width, height, err := term.GetSize(stdinFd)
		if err != nil {
			width, height = 80, 24
		}
		modes := ssh.TerminalModes{
			ssh.ECHO:          1,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		termType := os.Getenv("TERM")
		if termType == "" {
			termType = "xterm-256color"
		}
		if err := session.RequestPty(termType, height, width, modes); err != nil {
			return fmt.Errorf("failed to request pty: %w", err)
		}

		stopResize := forwardWindowChanges(session, stdinFd)
		defer stopResize()
	}

	if err := session.Shell(); err != nil {
		return fmt.Errorf("failed to start remote shell: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err := <-done:
		var exitErr *ssh.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			return fmt.Errorf("remote shell failed: %w", err)
		}
		if exitErr != nil {
			logging.Debug("SSH", "Remote shell exited with status %d", exitErr.ExitStatus())
		}
		return nil
	case <-ctx.Done():
		session.Close()
		return ctx.Err()
	}
}

// forwardWindowChanges relays SIGWINCH to the remote PTY until the returned
// stop function is called.
func forwardWindowChanges(session *ssh.Session, fd int) func() {
	signals := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(signals, syscall.SIGWINCH)
	go func() {
		for {
			select {
			case <-signals:
				if width, height, err := term.GetSize(fd); err == nil {
					_ = session.WindowChange(height, width)
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(signals)
		close(done)
	}
}
