package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/docconv/internal/constants"
	"github.com/celestiaorg/docconv/pkg/api/v1/client"
	"github.com/celestiaorg/docconv/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagSetting       = "setting"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// newClient builds apiClient; tests replace it
	newClient = client.NewClient
)

// initClient initializes the API client
func initClient() error {
	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	var err error
	apiClient, err = newClient(opts)
	return err
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "docconv",
		Short:         "docconv CLI - submit and track document conversions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL,
		"Address of the docconv API server (env: "+constants.EnvServerAddress+")")

	root.AddCommand(newJobsCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

// clientPreRun resolves the server address and creates the client
func clientPreRun(cmd *cobra.Command, _ []string) error {
	// Flag > Env Var > Default
	if !cmd.Flags().Changed(flagServerAddress) {
		if envAddr := os.Getenv(constants.EnvServerAddress); envAddr != "" {
			serverAddress = envAddr
		}
	}
	if serverAddress == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	return initClient()
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

// parseSettings turns repeated key=value flags into a map
func parseSettings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}
		out[k] = v
	}
	return out, nil
}
