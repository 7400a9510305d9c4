package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/pipeline"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/gleaner/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	var (
		cfg        config
		jsonOutput bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print reports and fresh records as JSON",
			Destination: &jsonOutput,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Fetch each query once, enrich fresh items and replace the snapshots",
		ArgsUsage: "[query...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			queries := c.Args().Slice()
			if len(queries) == 0 {
				queries = a.settings.Queries
			}
			if len(queries) == 0 {
				return goerr.New("no query given, pass queries as arguments or in the config file")
			}

			reports, runErr := runWithSpinner(ctx, a.uc, queries)

			if jsonOutput {
				out := make([]map[string]any, 0, len(reports))
				for _, r := range reports {
					out = append(out, map[string]any{"report": r, "records": r.Records()})
				}
				if err := printJSON(c.Root().Writer, out); err != nil {
					return err
				}
			} else {
				printReports(c.Root().Writer, reports)
			}

			if runErr != nil {
				return goerr.Wrap(runErr, "some items were not processed")
			}
			return nil
		},
	}
}

func runWithSpinner(ctx context.Context, uc *item.UseCase, queries []string) ([]*pipeline.Report, error) {
	if isTerminal(os.Stderr) {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = fmt.Sprintf(" processing %d queries...", len(queries))
		s.Start()
		defer s.Stop()
	}

	return uc.CheckFreshAll(ctx, queries)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func printReports(w io.Writer, reports []*pipeline.Report) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tFETCHED\tFRESH\tHITS\tMISSES\tDEGRADED\tFAILED\tSNAPSHOT")
	for _, r := range reports {
		snapshot := "kept"
		if r.SnapshotReplaced {
			snapshot = "replaced"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Query, r.Fetched, r.Fresh, r.Hits, r.Misses, r.Degraded, r.Failed, snapshot)
	}
	_ = tw.Flush()

	for _, r := range reports {
		for _, record := range r.Records() {
			printRecord(w, record)
		}
	}
}

func printRecord(w io.Writer, record *model.EnrichmentRecord) {
	var title string
	if record.Item != nil {
		title = record.Item.Title
	}

	e := record.Enrichment
	switch {
	case e == nil:
		fmt.Fprintf(w, "[%s] %s\n", record.ItemID, title)
	case e.Degraded:
		fmt.Fprintf(w, "[%s] %s  degraded: %s\n", record.ItemID, title, e.Note)
	default:
		fmt.Fprintf(w, "[%s] %s  %s/%s relevance=%d\n",
			record.ItemID, title, e.Sentiment, e.Credibility, e.Relevance)
	}
}

func watchCommand() *cli.Command {
	var (
		cfg       config
		schedule  string
		immediate bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "schedule",
			Aliases:     []string{"s"},
			Usage:       "Cron expression or descriptor such as \"@every 15m\"; overrides the config file",
			Sources:     cli.EnvVars("GLEANER_SCHEDULE"),
			Destination: &schedule,
		},
		&cli.BoolFlag{
			Name:        "immediate",
			Usage:       "Run once at startup before waiting for the schedule",
			Destination: &immediate,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, sourceFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:      "watch",
		Usage:     "Run the pipeline periodically until interrupted",
		ArgsUsage: "[query...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			queries := c.Args().Slice()
			if len(queries) == 0 {
				queries = a.settings.Queries
			}
			if len(queries) == 0 {
				return goerr.New("no query given, pass queries as arguments or in the config file")
			}

			if schedule == "" {
				schedule = a.settings.Schedule
			}
			if schedule == "" {
				return goerr.New("schedule is required")
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := logging.From(ctx)
			job := func() {
				reports, err := a.uc.CheckFreshAll(ctx, queries)
				for _, r := range reports {
					logger.Info("query processed",
						"query", r.Query,
						"fetched", r.Fetched,
						"fresh", r.Fresh,
						"degraded", r.Degraded,
						"failed", r.Failed)
				}
				if err != nil {
					logger.Error("scheduled run failed", "error", err)
				}
			}

			cr := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
			if _, err := cr.AddFunc(schedule, job); err != nil {
				return goerr.Wrap(err, "invalid schedule", goerr.V("schedule", schedule))
			}

			logger.Info("watching", "queries", queries, "schedule", schedule)
			if immediate {
				job()
			}

			cr.Start()
			<-ctx.Done()
			<-cr.Stop().Done()

			logger.Info("watch stopped")
			return nil
		},
	}
}
