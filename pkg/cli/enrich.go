package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/m-mizutani/gleaner/pkg/cache"
	"github.com/m-mizutani/gleaner/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func readInput(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return goerr.Wrap(err, "failed to open input", goerr.V("path", path))
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return goerr.Wrap(err, "failed to decode input", goerr.V("path", path))
	}
	return nil
}

func enrichCommand() *cli.Command {
	var (
		cfg    config
		input  string
		itemID model.ItemID
		query  string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing one item, - for stdin",
			Destination: &input,
		},
		&cli.StringFlag{
			Name:        "item-id",
			Aliases:     []string{"id"},
			Usage:       "Enrich the item with this id from the snapshot of --query",
			Destination: (*string)(&itemID),
		},
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Query whose snapshot holds --item-id",
			Destination: &query,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "enrich",
		Usage: "Enrich one item, returning the stored enrichment if it already exists",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var target *model.Item
			if itemID != "" {
				if query == "" {
					return goerr.New("--query is required with --item-id")
				}
				target, err = findSnapshotItem(ctx, a, query, itemID)
				if err != nil {
					return err
				}
			} else {
				target = &model.Item{}
				if err := readInput(input, target); err != nil {
					return err
				}
			}

			record, status, err := a.uc.EnrichItem(ctx, target)
			if err != nil {
				return goerr.Wrap(err, "failed to enrich item")
			}

			return printJSON(c.Root().Writer, model.OK(record).WithCached(status == cache.StatusHit))
		},
	}
}

func findSnapshotItem(ctx context.Context, a *app, query string, id model.ItemID) (*model.Item, error) {
	snapshot, err := a.repo.GetSnapshot(ctx, query)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get snapshot", goerr.V("query", query))
	}
	if snapshot == nil {
		return nil, goerr.Wrap(model.ErrNotFound, "no snapshot for query", goerr.V("query", query))
	}

	for _, x := range snapshot.Items {
		if x != nil && x.ID == id {
			return x, nil
		}
	}
	return nil, goerr.Wrap(model.ErrNotFound, "item is not in the snapshot", goerr.V("query", query), goerr.V("item_id", id))
}

func batchCommand() *cli.Command {
	var (
		cfg   config
		input string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "Path to JSON file containing an array of items, - for stdin",
			Destination: &input,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, pipelineFlags(&cfg)...)

	return &cli.Command{
		Name:  "batch",
		Usage: "Enrich many items with bounded concurrency",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := cfg.newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			var items []*model.Item
			if err := readInput(input, &items); err != nil {
				return err
			}

			res, err := a.uc.EnrichBatch(ctx, items)
			if res != nil {
				if err := printJSON(c.Root().Writer, model.OK(res).WithCount(len(res.Records))); err != nil {
					return err
				}
			}
			if err != nil {
				return goerr.Wrap(err, "failed to enrich batch")
			}
			return nil
		},
	}
}
