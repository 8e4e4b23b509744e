package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/annel0/mmo-assets/internal/logging"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "assetctl",
		Short:         "Инструменты для модулей D2O и карт DLM",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !verbose {
				return nil
			}
			return logging.InitDefaultLogger("assetctl")
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if verbose {
				logging.CloseDefaultLogger()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "писать журнал в logs/")

	root.AddCommand(newD2OCmd(), newDLMCmd())
	return root
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
