// capydoc serves and scripts an embedded document store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nasdf/capydoc"
	"github.com/nasdf/capydoc/config"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "capydoc",
	Short: "capydoc is an embedded, schema-validated document store",
	Long: `capydoc stores collections declared in GraphQL SDL and executes
GraphQL queries and mutations against them.

The store is configured by a YAML file naming the schema, the validator,
logging, and persistence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "capydoc.yaml", "Path of the configuration file")
}

// openDB opens the store described by the configuration flag.
func openDB(ctx context.Context) (*capydoc.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return capydoc.OpenConfig(ctx, cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
