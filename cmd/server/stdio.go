package main

import (
	"context"

	"github.com/jrsteele09/tidal-mcp/mcpserver"
	"github.com/spf13/cobra"
)

func newStdioCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve MCP on stdin and stdout",
		Long: `stdio runs the MCP tools for a single local client. Logs are written to
stderr so they never interleave with protocol messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.stdio(cmd.Context())
		},
	}
}

func (c *cli) stdio(ctx context.Context) error {
	a, err := newApp(c.config, c.logger)
	if err != nil {
		return err
	}
	defer a.Close()

	manager, err := a.newManager(nil)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	manager.StartJanitor(ctx, c.config.GetJanitorInterval())

	c.logger.Info().Str("version", version).Msg("Serving MCP on stdio")
	// A stdio client is the local user, so it may enumerate sessions.
	return mcpserver.ServeStdio(mcpserver.New(manager, version, c.logger, mcpserver.WithSessionListing()))
}
