package gravity

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"homelabctl/internal/config"
)

// requiredTables is the gravity schema contract this tool depends on.
// The schema is owned by Pi-hole, not by us.
var requiredTables = []string{"adlist", "adlist_by_group", "group"}

type adlistRow struct {
	ID      int64          `db:"id"`
	Enabled int            `db:"enabled"`
	Address string         `db:"address"`
	Comment sql.NullString `db:"comment"`
}

// editLocalDB applies the provisioning changes to a staged copy of
// gravity.db. It validates the schema before any write and applies
// everything inside one transaction.
func editLocalDB(ctx context.Context, path string, adlists []config.Adlist, groupID int64) error {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	if err := checkSchema(ctx, db); err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO "group"(id, enabled, name, description) VALUES (?, 1, ?, ?)`,
		groupID, "Default", "Auto-created"); err != nil {
		return fmt.Errorf("ensure default group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE "group" SET enabled=1 WHERE id=?`, groupID); err != nil {
		return fmt.Errorf("enable default group: %w", err)
	}

	for _, a := range adlists {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO adlist(address, enabled, date_added, date_modified, comment)
			 VALUES (?, 1, strftime('%s','now'), strftime('%s','now'), ?)`,
			a.URL, a.Comment); err != nil {
			return fmt.Errorf("insert adlist %s: %w", a.URL, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE adlist SET enabled=1, date_modified=strftime('%s','now'), comment=? WHERE address=?`,
			a.Comment, a.URL); err != nil {
			return fmt.Errorf("update adlist %s: %w", a.URL, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO adlist_by_group(adlist_id, group_id)
			 SELECT id, ? FROM adlist WHERE address=?`,
			groupID, a.URL); err != nil {
			return fmt.Errorf("link adlist %s: %w", a.URL, err)
		}
	}

	return tx.Commit()
}

// checkSchema confirms the three required tables exist. A mismatch is
// fatal before any write is attempted.
func checkSchema(ctx context.Context, db *sqlx.DB) error {
	var names []string
	if err := db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master WHERE type='table'`); err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	var missing []string
	for _, n := range requiredTables {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("unexpected gravity schema; missing tables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// queryLocalAdlists reads the confirmation listing from a staged copy
// of gravity.db.
func queryLocalAdlists(ctx context.Context, path string) ([]adlistRow, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	var rows []adlistRow
	if err := db.SelectContext(ctx, &rows, listQuery); err != nil {
		return nil, err
	}
	return rows, nil
}
