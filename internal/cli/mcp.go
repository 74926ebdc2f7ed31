package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	jwmcp "github.com/ppiankov/journeywatch/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs journeywatch as an MCP (Model Context Protocol) server over stdio.\nExposes dry-run tools: journeywatch_assess, journeywatch_zone_check.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	c, err := loadCore(cfg)
	if err != nil {
		return err
	}
	srv := jwmcp.New(c.dryRun(), c.zones, version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "journeywatch MCP server running on stdio")
	return srv.Run(ctx)
}
