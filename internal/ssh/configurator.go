package ssh

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"podlab/internal/kube"
	"podlab/pkg/logging"
)

// Executor runs a command inside a pod. Satisfied by kube.Client.
type Executor interface {
	Exec(ctx context.Context, podName string, opts kube.ExecOptions) error
}

// setupScript appends the key from stdin to authorized_keys, once, with the
// permissions sshd insists on.
const setupScript = `set -e
mkdir -p ~/.ssh
chmod 700 ~/.ssh
touch ~/.ssh/authorized_keys
chmod 600 ~/.ssh/authorized_keys
key=$(cat)
grep -qxF "$key" ~/.ssh/authorized_keys || echo "$key" >> ~/.ssh/authorized_keys
`

// InstallAuthorizedKey installs one authorized_keys line in the pod so the
// ssh subcommands can authenticate. Running it twice is harmless.
func InstallAuthorizedKey(ctx context.Context, executor Executor, podName, authorizedKeyLine string) error {
	var stderr bytes.Buffer
	err := executor.Exec(ctx, podName, kube.ExecOptions{
		Command: []string{"sh", "-c", setupScript},
		Stdin:   strings.NewReader(strings.TrimSpace(authorizedKeyLine) + "\n"),
		Stderr:  &stderr,
	})
	if err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("failed to install ssh key in pod %s: %w: %s", podName, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("failed to install ssh key in pod %s: %w", podName, err)
	}
	logging.Info("SSH", "Installed public key in pod %s", podName)
	return nil
}
