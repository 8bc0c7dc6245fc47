package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"docsum/internal/config"
	"docsum/internal/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "docsum",
	Short: "Summarise documents and document collections",
	Long: `docsum extracts retrieval segments from a document (or an archive
of one), scores them with a hybrid BM25/dense/salience retrieval engine,
and synthesises a summary - either extractively or via an LLM. Markdown
files containing multiple H1-delimited works (an anthology, a complete
works) are detected automatically and summarised with a map-reduce pass
over a representative sample of the works.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.SetLevel(logger.ParseLevel(cfg.App.LogLevel))
		logger.Init()
		return nil
	},
}

func execute() error {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./.docsum.yaml)")
	rootCmd.AddCommand(newSummarizeCmd())
	rootCmd.AddCommand(newCapabilitiesCmd())
	return rootCmd.Execute()
}
