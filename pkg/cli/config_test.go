package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
)

func TestSettingsFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gleaner.yaml")
	gt.NoError(t, os.WriteFile(path, []byte(`
queries: [bitcoin]
limit: 10
sort: top
concurrency: 2
pacing: 3s
`), 0o600))

	cfg := &config{configPath: path, limit: 40, pacing: time.Second}
	s, err := cfg.settings()
	gt.NoError(t, err)

	gt.Equal(t, s.Queries, []string{"bitcoin"})
	gt.Equal(t, s.Limit, 40)
	gt.Equal(t, s.Sort, "top")
	gt.Equal(t, s.Concurrency, 2)
	gt.Equal(t, s.Pacing.Duration(), time.Second)
}

func TestSettingsRejectsInvalidFlag(t *testing.T) {
	cfg := &config{sort: "sideways"}
	_, err := cfg.settings()
	gt.Error(t, err)
}

func TestSettingsSortDependsOnSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	gt.NoError(t, os.WriteFile(path, []byte("sort: latest\n"), 0o600))

	_, err := (&config{configPath: path, source: "feed"}).settings()
	gt.NoError(t, err)

	_, err = (&config{configPath: path, source: "reddit"}).settings()
	gt.Error(t, err)
}

func TestNewAnalyzerRequiresCredentials(t *testing.T) {
	ctx := context.Background()

	_, err := (&config{llm: "claude"}).newAnalyzer(ctx)
	gt.Error(t, err)

	_, err = (&config{llm: "gemini"}).newAnalyzer(ctx)
	gt.Error(t, err)

	_, err = (&config{llm: "gpt"}).newAnalyzer(ctx)
	gt.Error(t, err)
}

func TestNewAnalyzerClaude(t *testing.T) {
	a, err := (&config{llm: "claude", anthropicAPIKey: "test-key", model: "claude-test"}).newAnalyzer(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, a.ModelName(), "claude-test")
}

func TestStoreCommands(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	gt.V(t, Run(ctx, []string{"gleaner", "list", "--db-path", dbPath})).Nil()
	gt.V(t, Run(ctx, []string{"gleaner", "list", "--analyses", "--db-path", dbPath})).Nil()

	err := Run(ctx, []string{"gleaner", "show", "--db-path", dbPath, "t3_absent"})
	gt.V(t, err).NotNil()
	gt.Equal(t, err.Code, 1)

	err = Run(ctx, []string{"gleaner", "delete", "--db-path", dbPath, "t3_absent"})
	gt.V(t, err).NotNil()

	err = Run(ctx, []string{"gleaner", "show", "--db-path", dbPath})
	gt.V(t, err).NotNil()
}
