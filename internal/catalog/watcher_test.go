package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"reelsmith/internal/catalog"
	"reelsmith/internal/logging"
	"reelsmith/internal/testsupport"
)

func TestWatcherImportsChangedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTemplatesDir())
	st := testsupport.MustOpenStore(t, cfg)

	imported := make(chan catalog.Result, 4)
	watcher := catalog.NewWatcher(cfg.Paths.TemplatesDir, catalog.NewImporter(st), logging.NewNop(),
		catalog.WithDebounce(50*time.Millisecond),
		catalog.WithImportHook(func(_ string, result catalog.Result, err error) {
			if err != nil {
				t.Errorf("import failed: %v", err)
			}
			imported <- result
		}),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	path := filepath.Join(cfg.Paths.TemplatesDir, "hot.yaml")
	if err := os.WriteFile(path, []byte("kind: template\nslug: hot\nname: Hot\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case result := <-imported:
		if len(result.Templates) != 1 || result.Templates[0] != "hot" {
			t.Fatalf("unexpected import result %+v", result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watcher import")
	}

	tmpl, err := catalog.NewTemplates(st).Lookup(context.Background(), "hot")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !tmpl.IsSystem {
		t.Fatalf("watched templates are system templates, got %+v", tmpl)
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTemplatesDir())
	st := testsupport.MustOpenStore(t, cfg)

	calls := make(chan string, 1)
	watcher := catalog.NewWatcher(cfg.Paths.TemplatesDir, catalog.NewImporter(st), logging.NewNop(),
		catalog.WithDebounce(20*time.Millisecond),
		catalog.WithImportHook(func(path string, _ catalog.Result, _ error) { calls <- path }),
	)
	if err := watcher.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer watcher.Stop()

	if err := os.WriteFile(filepath.Join(cfg.Paths.TemplatesDir, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case path := <-calls:
		t.Fatalf("unexpected import of %s", path)
	case <-time.After(300 * time.Millisecond):
	}
}
