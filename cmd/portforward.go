package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"podlab/internal/config"
	"podlab/internal/kube"
	"podlab/internal/tunnel"
)

func newPortForwardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "port-forward [pod-name] [ADDRESS:LOCAL_PORT:CONTAINER_PORT...]",
		Aliases: []string{"pf"},
		Short:   "Tunnel local ports to a pod's container ports",
		Long: `Opens local listeners and bridges every accepted connection to a
container port, one Kubernetes port-forward stream per connection.

Without mappings on the command line, the mappings the pod was created
with (stored as annotations) are used. A LOCAL_PORT of 0 binds an
ephemeral port, printed once the listener is up.

Runs until interrupted. A dying connection is logged and reaped; the
remaining tunnels keep running.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A positional pod name never contains a colon, mappings always
			// do.
			var nameArgs []string
			var mappingArgs []string
			for i, arg := range args {
				if i == 0 && !strings.Contains(arg, ":") {
					nameArgs = append(nameArgs, arg)
					continue
				}
				mappingArgs = append(mappingArgs, arg)
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

			var mappings []config.PortMapping
			if len(mappingArgs) > 0 {
				for _, raw := range mappingArgs {
					mapping, err := config.ParsePortMapping(raw)
					if err != nil {
						return err
					}
					mappings = append(mappings, mapping)
				}
			} else {
				mappings, err = kube.PortMappings(pod)
				if err != nil {
					return err
				}
			}
			if len(mappings) == 0 {
				return fmt.Errorf("pod %s has no port mappings, pass ADDRESS:LOCAL_PORT:CONTAINER_PORT", podName)
			}

			provider := kube.NewPodStreamProvider(client)
			sup := tunnel.NewSupervisor(ctx, tunnel.DefaultDrainDeadline)
			sup.WatchInterrupts()
			sup.Spawn("reaper", tunnel.ReaperTask(sup, tunnel.DefaultReapInterval))

			if err := startForwarders(sup, provider, podName, client.Namespace, mappings, cmd.OutOrStdout()); err != nil {
				return err
			}

			fmt.Println("Press Ctrl+C to stop")
			return sup.Serve()
		},
	}
	addPodNameFlag(cmd)
	return cmd
}

// startForwarders spawns one forwarder per mapping and waits for each bound
// address. When a forwarder dies before becoming ready, the group is joined
// and its own error (the bind failure) is reported rather than the bare
// readiness loss.
func startForwarders(sup *tunnel.Supervisor, provider tunnel.StreamProvider, podName, namespace string, mappings []config.PortMapping, out io.Writer) error {
	for _, mapping := range mappings {
		spec := tunnel.ForwardSpec{
			PodName:    podName,
			Namespace:  namespace,
			RemotePort: mapping.ContainerPort,
			LocalAddr:  mapping.LocalAddr(),
		}
		forwarder := tunnel.NewForwarder(spec, provider)
		sup.Spawn(spec.TaskName(), forwarder.Task(sup))

		boundAddr, err := forwarder.Readiness().Await(sup.Context())
		if err != nil {
			sup.Shutdown()
			if serveErr := sup.Serve(); serveErr != nil {
				return serveErr
			}
			return fmt.Errorf("failed to bind %s: %w", mapping.LocalAddr(), err)
		}
		fmt.Fprintf(out, "Forwarding %s -> %s:%d\n", boundAddr, podName, mapping.ContainerPort)
	}
	return nil
}
