package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"podlab/internal/config"
	"podlab/internal/kube"
	"podlab/pkg/logging"
)

// defaultTimeoutSeconds bounds how long pod-waiting commands poll for the
// Running phase.
const defaultTimeoutSeconds = 15

var (
	cfgFile        string
	logLevelFlag   string
	kubeContext    string
	namespaceFlag  string
	timeoutSeconds uint64
	podNameFlag    string

	// loadedConfig is populated by the persistent pre-run before any
	// subcommand executes.
	loadedConfig config.PodlabConfig
)

// For mocking in tests
var kubeNewClientFn = kube.NewClient

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "podlab",
	Short: "Throwaway Kubernetes pods for development",
	Long: `podlab creates disposable pods in your current Kubernetes context and
gives you the plumbing to work inside them: attach, exec, ssh, file
transfer, and tunnels from local ports to container ports.

Pods created by podlab carry their port mappings and shell as
annotations, so every later command works from the cluster state alone.`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// handled by us (e.g. invalid arguments, failed connections)
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath := cfgFile
		if configPath == "" {
			configPath = os.Getenv(config.EnvConfigFilePath)
		}
		var err error
		loadedConfig, err = config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		levelName := loadedConfig.LogLevel
		if logLevelFlag != "" {
			levelName = logLevelFlag
		}
		logging.Init(logging.ParseLevel(levelName), os.Stderr)
		return nil
	},
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Version returns the version main.go injected.
func Version() string {
	return rootCmd.Version
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "podlab version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/podlab/config.yaml layered with ./.podlab/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&kubeContext, "kube-context", "", "kubeconfig context to use (default: current context)")
	rootCmd.PersistentFlags().StringVarP(&namespaceFlag, "namespace", "n", "", "namespace to use (default: the context's namespace)")
	rootCmd.PersistentFlags().Uint64VarP(&timeoutSeconds, "timeout-seconds", "t", defaultTimeoutSeconds, "maximum time in seconds to wait for a pod to run")

	rootCmd.AddCommand(newCreateCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newAttachCmd())
	rootCmd.AddCommand(newExecuteCmd())
	rootCmd.AddCommand(newPortForwardCmd())
	rootCmd.AddCommand(newImageCmd())
	rootCmd.AddCommand(newSSHCmd())
	rootCmd.AddCommand(newDefaultConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}

// podWaitTimeout converts the --timeout-seconds flag into the duration
// pod-waiting commands pass to WaitUntilRunning.
func podWaitTimeout() time.Duration {
	if timeoutSeconds == 0 {
		return defaultTimeoutSeconds * time.Second
	}
	return time.Duration(timeoutSeconds) * time.Second
}

// addPodNameFlag registers the shared -p/--pod-name selection flag on a
// pod-targeting command.
func addPodNameFlag(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&podNameFlag, "pod-name", "p", "", "name of the target pod (default: the configured default pod, else a picker)")
}

// cmdContext returns the command's context, or a background context when the
// command is invoked directly (tests call run functions with a nil command).
func cmdContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}

// newKubeClient builds the client every pod-touching subcommand uses,
// honoring --kube-context and --namespace over the config file.
func newKubeClient() (*kube.Client, error) {
	namespace := namespaceFlag
	if namespace == "" {
		namespace = loadedConfig.DefaultNamespace
	}
	client, err := kubeNewClientFn(kubeContext, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to cluster: %w", err)
	}
	return client, nil
}
