package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"

	"podlab/internal/kube"
	"podlab/internal/ssh"
	"podlab/internal/tunnel"
	"podlab/pkg/logging"
)

var (
	sshIdentityFile string
	sshUser         string
	sshPortFlag     uint16
)

func newSSHCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh",
		Short: "SSH into pods and move files over sftp",
		Long: `Talks to the sshd inside a pod through an ephemeral loopback tunnel, so
nothing is exposed beyond the local machine. The pod must run an ssh
server on the port recorded at creation time (--ssh-port) and have your
public key installed, which "podlab ssh setup" does.`,
	}

	cmd.PersistentFlags().StringVarP(&sshIdentityFile, "identity", "i", "", "private key file (default: config, then ~/.ssh)")
	cmd.PersistentFlags().StringVarP(&sshUser, "user", "l", ssh.DefaultUser, "login user inside the pod")
	cmd.PersistentFlags().Uint16Var(&sshPortFlag, "ssh-port", 0, "container port of the pod's sshd, overriding the pod annotation")
	cmd.PersistentFlags().StringVarP(&podNameFlag, "pod-name", "p", "", "name of the target pod (default: the configured default pod, else a picker)")

	cmd.AddCommand(newSSHSetupCmd())
	cmd.AddCommand(newSSHShellCmd())
	cmd.AddCommand(newSSHGetCmd())
	cmd.AddCommand(newSSHPutCmd())
	cmd.AddCommand(newSSHCopyCmd())
	return cmd
}

// sshPortOf returns the container port sshd listens on, preferring the flag
// over the pod's annotation.
func sshPortOf(pod *corev1.Pod) (uint16, error) {
	if sshPortFlag != 0 {
		return sshPortFlag, nil
	}
	ports, err := kube.ServicePortsOf(pod)
	if err != nil {
		return 0, err
	}
	if ports.SSH == nil {
		return 0, fmt.Errorf("pod %s has no ssh port annotation, recreate it with --ssh-port or pass --ssh-port here", pod.Name)
	}
	return *ports.SSH, nil
}

// openSSHTunnel brings up an ephemeral loopback tunnel to the pod's sshd and
// returns its local address. The stop function tears the tunnel down and
// must be called once the session is over.
func openSSHTunnel(ctx context.Context, client *kube.Client, pod *corev1.Pod) (string, func(), error) {
	sshPort, err := sshPortOf(pod)
	if err != nil {
		return "", nil, err
	}

	spec := tunnel.ForwardSpec{
		PodName:    pod.Name,
		Namespace:  client.Namespace,
		RemotePort: sshPort,
		LocalAddr:  "127.0.0.1:0",
	}
	provider := kube.NewPodStreamProvider(client)
	sup := tunnel.NewSupervisor(ctx, tunnel.DefaultDrainDeadline)
	forwarder := tunnel.NewForwarder(spec, provider)
	sup.Spawn(spec.TaskName(), forwarder.Task(sup))
	sup.Spawn("reaper", tunnel.ReaperTask(sup, tunnel.DefaultReapInterval))

	serveDone := make(chan error, 1)
	go func() { serveDone <- sup.Serve() }()

	stop := func() {
		sup.Shutdown()
		if err := <-serveDone; err != nil {
			logging.Warn("SSH", "Tunnel shut down with error: %v", err)
		}
	}

	boundAddr, err := forwarder.Readiness().Await(ctx)
	if err != nil {
		sup.Shutdown()
		// The group's own error (e.g. the bind failure) explains the lost
		// readiness better than the readiness error does.
		if serveErr := <-serveDone; serveErr != nil {
			err = serveErr
		}
		return "", nil, fmt.Errorf("failed to open tunnel to pod %s: %w", pod.Name, err)
	}
	logging.Debug("SSH", "Tunnel to pod %s port %d ready on %s", pod.Name, sshPort, boundAddr)
	return boundAddr.String(), stop, nil
}

// dialPod resolves the target pod, opens the tunnel, and authenticates. The
// returned cleanup closes the connection and the tunnel.
func dialPod(cmd *cobra.Command, args []string) (*ssh.Conn, func(), error) {
	podName, err := resolvePodName(cmd, args)
	if err != nil {
		return nil, nil, err
	}
	client, err := newKubeClient()
	if err != nil {
		return nil, nil, err
	}
	ctx := cmdContext(cmd)

	pod, err := client.WaitUntilRunning(ctx, podName, podWaitTimeout())
	if err != nil {
		return nil, nil, err
	}

	keyPath, err := ssh.ResolveKeyPath(sshKeyPathFromFlagOrConfig())
	if err != nil {
		return nil, nil, err
	}
	signer, err := ssh.LoadSigner(keyPath)
	if err != nil {
		return nil, nil, err
	}

	addr, stopTunnel, err := openSSHTunnel(ctx, client, pod)
	if err != nil {
		return nil, nil, err
	}

	conn, err := ssh.Dial(ctx, addr, sshUser, signer)
	if err != nil {
		stopTunnel()
		return nil, nil, err
	}

	cleanup := func() {
		conn.Close()
		stopTunnel()
	}
	return conn, cleanup, nil
}

func sshKeyPathFromFlagOrConfig() string {
	if sshIdentityFile != "" {
		return sshIdentityFile
	}
	return loadedConfig.SSHPrivateKeyFilePath
}

func newSSHShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell [pod-name]",
		Short: "Open an interactive ssh shell in a pod",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cleanup, err := dialPod(cmd, args)
			if err != nil {
				return err
			}
			defer cleanup()
			return conn.Shell(cmdContext(cmd))
		},
	}
}

func newSSHSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup [pod-name]",
		Short: "Install your public key in a pod's authorized_keys",
		Long: `Derives the public key from your private key and appends it to
~/.ssh/authorized_keys inside the pod, using exec rather than ssh, so it
works before any key is installed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			podName, err := resolvePodName(cmd, args)
			if err != nil {
				return err
			}
			client, err := newKubeClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			if _, err := client.WaitUntilRunning(ctx, podName, podWaitTimeout()); err != nil {
				return err
			}

			keyPath, err := ssh.ResolveKeyPath(sshKeyPathFromFlagOrConfig())
			if err != nil {
				return err
			}
			signer, err := ssh.LoadSigner(keyPath)
			if err != nil {
				return err
			}

			if err := ssh.InstallAuthorizedKey(ctx, client, podName, ssh.AuthorizedKeyLine(signer)); err != nil {
				return err
			}
			fmt.Printf("Public key from %s installed in pod %s\n", keyPath, podName)
			return nil
		},
	}
}

func newSSHGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get REMOTE_PATH [LOCAL_PATH]",
		Short: "Download a file from a pod over sftp",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cleanup, err := dialPod(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			localPath := ""
			if len(args) == 2 {
				localPath = args[1]
			}
			return conn.Get(args[0], localPath)
		},
	}
}

func newSSHPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put LOCAL_PATH [REMOTE_PATH]",
		Short: "Upload a file to a pod over sftp",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, cleanup, err := dialPod(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			remotePath := ""
			if len(args) == 2 {
				remotePath = args[1]
			}
			return conn.Put(args[0], remotePath)
		},
	}
}

func newSSHCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy SOURCE DESTINATION",
		Short: "Copy a file to or from a pod over sftp",
		Long: `Copies one file between the local machine and a pod, inferring the
direction. A path with a leading colon is the pod side:

  podlab ssh copy build/app :/usr/local/bin/app   # upload
  podlab ssh copy :/var/log/app.log .             # download

Without a colon marker, an existing local SOURCE means upload and
anything else means download.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			transfer, err := ssh.ParseCopySpec(args[0], args[1])
			if err != nil {
				return err
			}

			conn, cleanup, err := dialPod(cmd, nil)
			if err != nil {
				return err
			}
			defer cleanup()

			return conn.Copy(transfer)
		},
	}
}
