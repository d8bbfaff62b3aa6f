// Package cmd implements the command-line interface for crawlfrontier.
// Grounded on the teacher's cmd/root.go: a cobra root command, viper
// config layering (.env via godotenv, flags, environment), and an
// Execute() entry point called directly from main.go.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "crawlfrontier",
	Short: "Frontier & politeness scheduler for a single-machine web crawler",
	Long: `crawlfrontier decides, at every moment, which URL any given worker
fetches next: a hybrid file+index frontier, a politeness oracle that
caches and enforces robots.txt and per-domain delays, and an atomic
domain-claiming protocol safe for hundreds of concurrent workers.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, "crawlfrontier version 1.0.0")
		},
	})
}
