package ssh

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

// defaultKeyNames are probed in order under ~/.ssh when no key is configured.
var defaultKeyNames = []string{"id_ed25519", "id_ecdsa", "id_rsa"}

// ResolveKeyPath returns the private key file to use. An explicit path (flag
// or config) wins and must exist; otherwise the usual ~/.ssh keys are probed.
func ResolveKeyPath(explicitPath string) (string, error) {
	if explicitPath != "" {
		path := expandHome(explicitPath)
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("ssh key %s: %w", path, err)
		}
		return path, nil
	}

	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	for _, name := range defaultKeyNames {
		path := filepath.Join(homeDir, ".ssh", name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no ssh key found under %s, generate one or set sshPrivateKeyFilePath", filepath.Join(homeDir, ".ssh"))
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := osUserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

// LoadSigner parses the private key at path. Passphrase-protected keys are
// rejected with a pointer at ssh-agent, which we do not speak.
func LoadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		if _, ok := err.(*ssh.PassphraseMissingError); ok {
			return nil, fmt.Errorf("ssh key %s is passphrase protected, use an unencrypted key", path)
		}
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", path, err)
	}
	return signer, nil
}

// AuthorizedKeyLine renders the signer's public key as one authorized_keys
// line, trailing newline included.
func AuthorizedKeyLine(signer ssh.Signer) string {
	return string(ssh.MarshalAuthorizedKey(signer.PublicKey()))
}
