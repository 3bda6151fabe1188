package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/util/httpstream"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"

	"podlab/pkg/logging"
)

// PodStreamProvider opens raw byte streams to container ports through the
// API server's port-forward subresource. Each Open dials its own SPDY
// connection so a dead stream never takes sibling streams down with it.
type PodStreamProvider struct {
	client    *Client
	requestID atomic.Uint64
}

// NewPodStreamProvider returns a provider backed by the given client.
func NewPodStreamProvider(client *Client) *PodStreamProvider {
	return &PodStreamProvider{client: client}
}

// Open dials the pod's port-forward endpoint and returns a stream wired to
// remotePort. The returned stream supports CloseWrite for half-close
// propagation.
func (p *PodStreamProvider) Open(ctx context.Context, podName, namespace string, remotePort uint16) (io.ReadWriteCloser, error) {
	req := p.client.Clientset.CoreV1().RESTClient().
		Post().
		Resource("pods").
		Namespace(namespace).
		Name(podName).
		SubResource("portforward")

	transport, upgrader, err := spdy.RoundTripperFor(p.client.RESTConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create SPDY round tripper: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, req.URL())

	streamConn, _, err := dialer.Dial(portforward.PortForwardProtocolV1Name)
	if err != nil {
		return nil, fmt.Errorf("failed to dial port-forward for pod %s: %w", podName, err)
	}

	requestID := p.requestID.Add(1)

	headers := http.Header{}
	headers.Set(corev1.StreamType, corev1.StreamTypeError)
	headers.Set(corev1.PortHeader, strconv.Itoa(int(remotePort)))
	headers.Set(corev1.PortForwardRequestIDHeader, strconv.FormatUint(requestID, 10))
	errorStream, err := streamConn.CreateStream(headers)
	if err != nil {
		streamConn.Close()
		return nil, fmt.Errorf("failed to create error stream for pod %s port %d: %w", podName, remotePort, err)
	}
	// The error stream is read-only from our side.
	errorStream.Close()

	headers.Set(corev1.StreamType, corev1.StreamTypeData)
	dataStream, err := streamConn.CreateStream(headers)
	if err != nil {
		streamConn.Close()
		return nil, fmt.Errorf("failed to create data stream for pod %s port %d: %w", podName, remotePort, err)
	}

	s := &podStream{
		conn: streamConn,
		data: dataStream,
	}
	go s.watchErrors(podName, remotePort, errorStream)

	return s, nil
}

// podStream adapts a port-forward data stream to io.ReadWriteCloser. Closing
// the data stream half-closes our write side; Close tears the whole SPDY
// connection down.
type podStream struct {
	conn httpstream.Connection
	data httpstream.Stream

	closeOnce sync.Once
	remoteErr atomic.Pointer[error]
}

func (s *podStream) Read(p []byte) (int, error) {
	n, err := s.data.Read(p)
	if err != nil {
		if remote := s.remoteErr.Load(); remote != nil {
			return n, *remote
		}
	}
	return n, err
}

func (s *podStream) Write(p []byte) (int, error) {
	return s.data.Write(p)
}

// CloseWrite half-closes the stream so the container sees EOF while its
// responses keep flowing back.
func (s *podStream) CloseWrite() error {
	return s.data.Close()
}

func (s *podStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.data.Reset()
		err = s.conn.Close()
	})
	return err
}

// watchErrors surfaces errors the kubelet reports on the error stream, e.g.
// connection refused inside the pod.
func (s *podStream) watchErrors(podName string, remotePort uint16, errorStream httpstream.Stream) {
	message, err := io.ReadAll(errorStream)
	switch {
	case err != nil:
		logging.Debug("Kube", "Error stream for pod %s port %d ended: %v", podName, remotePort, err)
	case len(message) > 0:
		remote := fmt.Errorf("remote error on pod %s port %d: %s", podName, remotePort, string(message))
		s.remoteErr.Store(&remote)
		logging.Warn("Kube", "%v", remote)
	}
}
