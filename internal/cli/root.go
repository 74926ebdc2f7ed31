package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/journeywatch/internal/config"
)

var (
	configPath string
	envFile    string

	// cfg is loaded before every command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "journeywatch",
	Short: "Journey safety risk classification and alert dispatch",
	Long:  "Classifies the safety risk of journey telemetry, picks one response action per sample,\nand records deduplicated alerts and a hash-chained audit trail.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		if envFile != "" {
			files = append(files, envFile)
		}
		loaded, err := config.Load(configPath, files...)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.journeywatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default ./.env)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
