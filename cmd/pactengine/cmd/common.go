package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pact-foundation/pactengine/internal/core/config"
	"github.com/pact-foundation/pactengine/internal/core/db"
	"github.com/pact-foundation/pactengine/internal/jsondoc"
)

var errNoStore = errors.New("no contract store configured (use --db-url or PACT_STORE_URL)")

// readInput reads a file, or standard input when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func readJSON(path string, stdin io.Reader) (any, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, err
	}
	doc, err := jsondoc.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func readJSONObject(path string, stdin io.Reader) (map[string]any, error) {
	doc, err := readJSON(path, stdin)
	if err != nil {
		return nil, err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a JSON object, got %s", path, jsondoc.TypeName(doc))
	}
	return obj, nil
}

// openStore connects to the configured store and brings its schema up to
// date. The returned close function releases the connection pool.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, observer db.OpObserver) (*db.ContractStore, func(), error) {
	if cfg.Store.URL == "" {
		return nil, nil, errNoStore
	}
	conn, err := db.Open(ctx, cfg.Store.URL)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := conn.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}
	if err := db.MigrateUp(ctx, conn); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	store, err := db.NewContractStore(conn, logger)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if observer != nil {
		store = store.WithObserver(observer)
	}
	return store, closeFn, nil
}
