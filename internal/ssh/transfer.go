package ssh

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"

	"podlab/pkg/logging"
)

// FileTransfer is one directed copy between the local machine and a pod.
type FileTransfer struct {
	// Upload is true for local-to-pod, false for pod-to-local.
	Upload     bool
	LocalPath  string
	RemotePath string
}

// ParseCopySpec decides the direction of a `copy SOURCE DEST` invocation. A
// leading colon marks the pod side (":/etc/os-release"); with no marker, an
// existing local SOURCE means upload and anything else means download.
func ParseCopySpec(source, destination string) (FileTransfer, error) {
	sourceRemote := strings.HasPrefix(source, ":")
	destRemote := strings.HasPrefix(destination, ":")

	switch {
	case sourceRemote && destRemote:
		return FileTransfer{}, fmt.Errorf("both %q and %q name pod paths, one side must be local", source, destination)
	case sourceRemote:
		return FileTransfer{
			Upload:     false,
			LocalPath:  destination,
			RemotePath: strings.TrimPrefix(source, ":"),
		}, nil
	case destRemote:
		return FileTransfer{
			Upload:     true,
			LocalPath:  source,
			RemotePath: strings.TrimPrefix(destination, ":"),
		}, nil
	}

	if _, err := os.Stat(source); err == nil {
		return FileTransfer{Upload: true, LocalPath: source, RemotePath: destination}, nil
	}
	return FileTransfer{Upload: false, LocalPath: destination, RemotePath: source}, nil
}

// Copy runs the transfer in its direction.
func (c *Conn) Copy(transfer FileTransfer) error {
	if transfer.Upload {
		return c.Put(transfer.LocalPath, transfer.RemotePath)
	}
	return c.Get(transfer.RemotePath, transfer.LocalPath)
}

// Get copies remotePath from the pod to localPath over sftp. A localPath of
// "" or "." keeps the remote base name in the current directory.
func (c *Conn) Get(remotePath, localPath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("failed to start sftp: %w", err)
	}
	defer client.Close()

	if localPath == "" || localPath == "." {
		localPath = filepath.Base(remotePath)
	}

	src, err := client.Open(remotePath)
	if err != nil {
		return fmt.Errorf("failed to open remote file %s: %w", remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	logging.Info("SSH", "Downloaded %s to %s (%d bytes)", remotePath, localPath, written)
	return nil
}

// Put copies localPath into the pod at remotePath over sftp. A remotePath of
// "" keeps the local base name in the remote working directory. The remote
// file inherits the local file's permission bits.
func (c *Conn) Put(localPath, remotePath string) error {
	client, err := sftp.NewClient(c.client)
	if err != nil {
		return fmt.Errorf("failed to start sftp: %w", err)
	}
	defer client.Close()

	if remotePath == "" {
		remotePath = filepath.Base(localPath)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}

	dst, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", remotePath, err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("failed to write remote file %s: %w", remotePath, err)
	}
	if err := client.Chmod(remotePath, info.Mode().Perm()); err != nil {
		logging.Warn("SSH", "Could not set permissions on %s: %v", remotePath, err)
	}
	logging.Info("SSH", "Uploaded %s to %s (%d bytes)", localPath, remotePath, written)
	return nil
}
