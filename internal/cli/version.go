package cli

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is overridden at build time with
// -ldflags "-X github.com/ppiankov/journeywatch/internal/cli.version=..."
var version = "0.3.0"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := json.MarshalIndent(struct {
			Name    string `json:"name"`
			Version string `json:"version"`
			Go      string `json:"go"`
		}{"journeywatch", version, runtime.Version()}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
