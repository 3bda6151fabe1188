package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach [pod-name]",
		Short: "Attach the terminal to a pod's main process",
		Long: `Attaches stdin and stdout to the pod's container process, like
kubectl attach. Detach with the container runtime's escape sequence
(usually Ctrl-P Ctrl-Q); Ctrl-C is sent to the remote process.`,
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
			fmt.Printf("Attaching to pod %s...\n", podName)
			return client.Attach(ctx, podName)
		},
	}
	addPodNameFlag(cmd)
	return cmd
}
