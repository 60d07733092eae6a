package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/slipway-sh/slipway/pkg/client"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slipway",
	Short: "Slipway - pre-warmed cloud workspace control plane",
	Long: `Slipway keeps a pool of booted workspace containers ready so that
assigning a developer an editor, a desktop, and a web endpoint for an
S3 bucket takes seconds instead of a cold container boot.

The serve command runs the control plane; the other commands talk to a
running one over its HTTP API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Slipway version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("server", defaultServer(), "Control plane address for client commands")
	rootCmd.PersistentFlags().String("token", os.Getenv("SLIPWAY_TOKEN"), "Bearer token for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(stopCmd)
}

func defaultServer() string {
	if addr := os.Getenv("SLIPWAY_SERVER"); addr != "" {
		return addr
	}
	return "http://localhost:8080"
}

// apiClient builds a client from the persistent flags.
func apiClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")

	c := client.NewClient(server)
	if token != "" {
		c = c.WithToken(token)
	}
	return c
}
