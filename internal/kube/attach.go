package kube

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/term"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/remotecommand"
)

// Attach connects the local terminal to the pod's main container process,
// the way kubectl attach does. The container runs with a TTY, so the local
// terminal goes raw for the duration of the session.
func (c *Client) Attach(ctx context.Context, podName string) error {
	attachOpts := &corev1.PodAttachOptions{
		Container: DefaultContainerName,
		Stdin:     true,
		Stdout:    true,
		TTY:       true,
	}

	req := c.Clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Namespace(c.Namespace).
		Name(podName).
		SubResource("attach").
		VersionedParams(attachOpts, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.RESTConfig, http.MethodPost, req.URL())
	if err != nil {
		return fmt.Errorf("failed to create executor for pod %s: %w", podName, err)
	}

	stdinFd := int(os.Stdin.Fd())
	streamOpts := remotecommand.StreamOptions{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Tty:    true,
	}

	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return fmt.Errorf("failed to put terminal into raw mode: %w", err)
		}
		defer term.Restore(stdinFd, oldState)

		sizeQueue := newResizeQueue(ctx, stdinFd)
		defer sizeQueue.stop()
		streamOpts.TerminalSizeQueue = sizeQueue
	}

	if err := executor.StreamWithContext(ctx, streamOpts); err != nil {
		return fmt.Errorf("attach to pod %s failed: %w", podName, err)
	}
	return nil
}
