package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/gleaner/pkg/usecase/item"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const analysisIDPrefix = "analysis_"

func showCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a stored enrichment (by item id) or analysis (by analysis id)",
		ArgsUsage: "<id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return goerr.New("id is required")
			}

			a, err := cfg.newStoreApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if strings.HasPrefix(id, analysisIDPrefix) {
				record, err := a.uc.GetAnalysis(ctx, model.AnalysisID(id))
				if err != nil {
					return goerr.Wrap(err, "failed to show analysis")
				}
				return printJSON(c.Root().Writer, record)
			}

			record, err := a.uc.GetEnrichment(ctx, model.ItemID(id))
			if err != nil {
				return goerr.Wrap(err, "failed to show enrichment")
			}
			return printJSON(c.Root().Writer, record)
		},
	}
}

func listCommand() *cli.Command {
	var (
		cfg      config
		analyses bool
		degraded bool
		category string
		limit    int64
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "analyses",
			Aliases:     []string{"a"},
			Usage:       "List analyses instead of enrichments",
			Destination: &analyses,
		},
		&cli.BoolFlag{
			Name:        "degraded",
			Usage:       "Only degraded enrichments",
			Destination: &degraded,
		},
		&cli.StringFlag{
			Name:        "category",
			Usage:       "Only enrichments of this category",
			Destination: &category,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of records to list",
			Value:       100,
			Sources:     cli.EnvVars("GLEANER_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List stored enrichments or analyses, newest first",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newStoreApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
			defer tw.Flush()

			if analyses {
				records, err := a.uc.ListAnalyses(ctx, int(limit))
				if err != nil {
					return goerr.Wrap(err, "failed to list analyses")
				}
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%d items\t%s\n",
						r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.ItemCount, oneLine(r.Instruction, 60))
				}
				return nil
			}

			records, err := a.uc.ListEnrichments(ctx, item.ListOptions{
				Limit:        int(limit),
				DegradedOnly: degraded,
				Category:     category,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to list enrichments")
			}

			for _, r := range records {
				var title, cat string
				if r.Item != nil {
					title, cat = r.Item.Title, r.Item.Category
				}
				status := "-"
				if e := r.Enrichment; e != nil {
					status = fmt.Sprintf("%s/%s/%d", e.Sentiment, e.Credibility, e.Relevance)
					if e.Degraded {
						status = "degraded"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ItemID, cat, status, oneLine(title, 60))
			}
			return nil
		},
	}
}

func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > width {
		return string(r[:width]) + "..."
	}
	return s
}

func deleteCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)

	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete the stored enrichment of an item so that it is analyzed again",
		ArgsUsage: "<item-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			id := c.Args().First()
			if id == "" {
				return goerr.New("item id is required")
			}

			a, err := cfg.newStoreApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.uc.DeleteEnrichment(ctx, model.ItemID(id)); err != nil {
				return goerr.Wrap(err, "failed to delete enrichment")
			}

			fmt.Fprintf(c.Root().Writer, "Enrichment %s deleted\n", id)
			return nil
		},
	}
}
