package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"podlab/internal/kube"
)

func newExecuteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "execute [pod-name] [-- COMMAND [ARG...]]",
		Aliases: []string{"exec"},
		Short:   "Run a command or an interactive shell in a pod",
		Long: `Runs a command in the pod's container, streaming stdio. Without a
command, the pod's annotated interactive shell is started on a
pseudo-terminal.

The pod name may be omitted when a default pod exists:

  podlab execute                    # shell in the default pod
  podlab execute scratch            # shell in pod "scratch"
  podlab execute scratch -- ls /    # one-off command`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Everything after -- is the command; at most one positional
			// argument (the pod name) may precede it.
			command := args
			var nameArgs []string
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				nameArgs = args[:dash]
				command = args[dash:]
			} else if len(args) > 0 {
				nameArgs = args[:1]
				command = args[1:]
			}
			if len(nameArgs) > 1 {
				return cmd.Usage()
			}

			podName, err := resolvePodName(cmd, nameArgs)
			if err != nil {
				return err
			}
			client, err := newKubeClient()
			if err != nil {
				return err
			}
			ctx := cmdContext(cmd)

			pod, err := client.WaitUntilRunning(ctx, podName, podWaitTimeout())
			if err != nil {
				return err
			}

			if len(command) == 0 {
				return client.ExecInteractive(ctx, podName, kube.InteractiveShell(pod))
			}
			return client.Exec(ctx, podName, kube.ExecOptions{
				Command: command,
				Stdin:   os.Stdin,
				Stdout:  os.Stdout,
				Stderr:  os.Stderr,
			})
		},
	}
	addPodNameFlag(cmd)
	return cmd
}
