package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gleaner/pkg/adapter"
	"github.com/m-mizutani/gleaner/pkg/config"
	"github.com/m-mizutani/gt"
)

func writeFile(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
queries:
  - bitcoin
  - ethereum etf
limit: 50
sort: new
concurrency: 5
pacing: 2s
schedule: "*/15 * * * *"
`)

	cfg, err := config.Load(path)
	gt.NoError(t, err)
	gt.Equal(t, cfg.Queries, []string{"bitcoin", "ethereum etf"})
	gt.Equal(t, cfg.Limit, 50)
	gt.Equal(t, cfg.Sort, "new")
	gt.Equal(t, cfg.Concurrency, 5)
	gt.Equal(t, cfg.Pacing.Duration(), 2*time.Second)
	gt.Equal(t, cfg.Schedule, "*/15 * * * *")
}

func TestLoadInvalid(t *testing.T) {
	testCases := map[string]string{
		"bad duration": "pacing: soon\n",
		"limit":        "limit: 1000\n",
		"empty query":  "queries: [\"\"]\n",
		"schedule":     "schedule: every now and then\n",
		"concurrency":  "concurrency: -1\n",
		"not yaml":     "queries: [\n",
	}

	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, body))
			gt.Error(t, err)
		})
	}
}

func TestValidateForSource(t *testing.T) {
	cfg := &config.Config{Sort: "oldest"}

	gt.Error(t, cfg.ValidateFor(adapter.SourceReddit))
	gt.Error(t, cfg.ValidateFor(""))
	gt.NoError(t, cfg.ValidateFor(adapter.SourceFeed))

	cfg.Sort = "new"
	gt.NoError(t, cfg.ValidateFor(adapter.SourceReddit))

	cfg.Limit = -1
	gt.Error(t, cfg.ValidateFor(adapter.SourceFeed))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	gt.Error(t, err)
}

func TestMerge(t *testing.T) {
	file := &config.Config{
		Queries:     []string{"bitcoin"},
		Limit:       10,
		Sort:        "top",
		Concurrency: 2,
		Pacing:      config.Duration(time.Second),
		Schedule:    "@hourly",
	}

	flags := &config.Config{Limit: 40, Concurrency: 4}
	flags.Merge(file)

	gt.Equal(t, flags.Queries, []string{"bitcoin"})
	gt.Equal(t, flags.Limit, 40)
	gt.Equal(t, flags.Sort, "top")
	gt.Equal(t, flags.Concurrency, 4)
	gt.Equal(t, flags.Pacing.Duration(), time.Second)
	gt.Equal(t, flags.Schedule, "@hourly")

	flags.Merge(nil)
	gt.Equal(t, flags.Limit, 40)
}

func TestParseSchedule(t *testing.T) {
	_, err := config.ParseSchedule("@every 10m")
	gt.NoError(t, err)

	_, err = config.ParseSchedule("61 * * * *")
	gt.Error(t, err)
}
