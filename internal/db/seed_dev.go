package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	SiteName string
}

// SeedDev stores a partial settings blob naming the site, unless settings
// already exist. Everything else falls back to the built-in defaults.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	name := strings.TrimSpace(opt.SiteName)
	if name == "" {
		name = "Dev Site"
	}

	blob, err := json.Marshal(map[string]string{"siteName": name})
	if err != nil {
		return fmt.Errorf("seed settings marshal: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO kv_blobs(key, value, updated_at_ms)
VALUES ('settings', ?, ?);
`, blob, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}

	return nil
}
