package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	server "github.com/m-mizutani/gleaner/pkg/service/http"
	"github.com/m-mizutani/gleaner/pkg/service/mcp"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg     config
		addr    string
		withMCP bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "mcp",
			Usage:       "Also serve MCP tools over streamable HTTP at /mcp",
			Sources:     cli.EnvVars("GLEANER_SERVE_MCP"),
			Destination: &withMCP,
		},
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Listen address of the HTTP API",
			Value:       "127.0.0.1:3000",
			Sources:     cli.EnvVars("GLEANER_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []server.Option
			if withMCP {
				opts = append(opts, server.WithMCP(mcp.New(a.uc).Handler()))
			}
			return server.New(a.uc, opts...).ListenAndServe(ctx, addr)
		},
	}
}

func mcpCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the item operations as MCP tools over stdio",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			return mcp.New(a.uc).Run(ctx)
		},
	}
}
