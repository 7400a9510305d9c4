package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	var logLevel string

	cmd := &cli.Command{
		Name:  "gleaner",
		Usage: "Incremental discovery and LLM enrichment of community posts and feeds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level (debug, info, warn, error)",
				Value:       "info",
				Sources:     cli.EnvVars("GLEANER_LOG_LEVEL"),
				Destination: &logLevel,
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			watchCommand(),
			enrichCommand(),
			batchCommand(),
			analyzeCommand(),
			showCommand(),
			listCommand(),
			deleteCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	for _, sub := range cmd.Commands {
		sub.Action = withLogger(&logLevel, sub.Action)
	}

	if err := cmd.Run(ctx, argv); err != nil {
		logging.Default().Error("command failed", "error", err)
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// withLogger installs the logger configured by --log-level before the action runs
func withLogger(level *string, action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		logger := logging.New(*level, os.Stderr)
		logging.SetDefault(logger)
		return action(logging.With(ctx, logger), c)
	}
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintf(w, "%s\n", string(data))
	return nil
}
