package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kovalyov-valentin/trend-radar/internal/config"
	"github.com/kovalyov-valentin/trend-radar/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "trend-radar",
	Short: "Collects AI news, extracts trends with an LLM and serves them over HTTP",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logger.Init(config.Get().LogLevel, config.Get().LogFile)
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Log.Error(err)
		os.Exit(1)
	}
}
