package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	mcpserver "logistria/internal/mcp"
)

var mcpAutoApprove bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve import tools to AI agents over MCP (stdio)",
	Long: `Runs a Model Context Protocol server on stdin/stdout. Destructive tools
(import_file, run_import_job) wait until an operator approves them in the
console, unless --yes is given. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().BoolVarP(&mcpAutoApprove, "yes", "y", false, "Approve destructive tools without asking an operator")
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := mcpserver.New(mcpserver.Deps{
		Emitter:   rt.events,
		Imports:   rt.imports,
		Orders:    rt.orders,
		Feeds:     rt.feeds,
		Store:     rt.docs,
		Approvals: rt.approvals,
		Approval:  mcpserver.ApprovalOptions{AutoApprove: mcpAutoApprove},
	})
	return srv.ServeStdio()
}
