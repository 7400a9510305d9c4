package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func analyzeCommand() *cli.Command {
	var (
		cfg         config
		instruction string
		input       string
		query       string
		count       int64
		promptType  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "instruction",
			Aliases:     []string{"m"},
			Usage:       "What to analyze across the items. Prompts interactively if empty",
			Destination: &instruction,
		},
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing an array of items",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Analyze the items of the last snapshot of this query",
			Destination: &query,
		},
		&cli.IntFlag{
			Name:        "count",
			Aliases:     []string{"n"},
			Usage:       fmt.Sprintf("Number of items to analyze (max %d)", item.MaxAnalyzeCount),
			Value:       item.DefaultAnalyzeCount,
			Destination: &count,
		},
		&cli.StringFlag{
			Name:        "prompt-type",
			Usage:       "Label stored with the analysis",
			Value:       model.DefaultPromptType,
			Destination: &promptType,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "analyze",
		Usage: "Run a free-form instruction over a list of items and store the result",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := analyzeTargets(ctx, a, input, query)
			if err != nil {
				return err
			}

			analyze := func(instruction string) error {
				record, err := a.uc.Analyze(ctx, item.AnalyzeInput{
					Items:       items,
					Instruction: instruction,
					Count:       int(count),
					PromptType:  promptType,
				})
				if err != nil {
					return goerr.Wrap(err, "failed to analyze items")
				}

				fmt.Fprintf(c.Root().Writer, "%s\n\n(analysis %s, %d items)\n", record.Result, record.ID, record.ItemCount)
				return nil
			}

			if instruction != "" {
				return analyze(instruction)
			}
			return promptLoop(c.Root().Writer, analyze)
		},
	}
}

func analyzeTargets(ctx context.Context, a *app, input, query string) ([]*model.Item, error) {
	switch {
	case input != "" && query != "":
		return nil, goerr.New("--input and --query are exclusive")

	case query != "":
		snapshot, err := a.repo.GetSnapshot(ctx, query)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to get snapshot", goerr.V("query", query))
		}
		if snapshot == nil {
			return nil, goerr.Wrap(model.ErrNotFound, "no snapshot for query", goerr.V("query", query))
		}
		return snapshot.Items, nil

	case input != "":
		var items []*model.Item
		if err := readInput(input, &items); err != nil {
			return nil, err
		}
		return items, nil

	default:
		return nil, goerr.New("either --input or --query is required")
	}
}

// promptLoop reads instructions line by line until "exit", Ctrl-D or Ctrl-C
func promptLoop(w io.Writer, fn func(string) error) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "instruction> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          w,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to start prompt")
	}
	defer rl.Close()

	fmt.Fprintf(w, "Type an instruction for the items. Type 'exit' to quit.\n")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return goerr.Wrap(err, "failed to read instruction")
		}

		line = strings.TrimSpace(line)
		if line == "exit" {
			return nil
		}
		if line == "" {
			continue
		}

		if err := fn(line); err != nil {
			fmt.Fprintf(w, "error: %s\n", err.Error())
		}
	}
}
