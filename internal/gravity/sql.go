package gravity

import (
	"fmt"
	"strings"

	"homelabctl/internal/config"
)

// quoteSQL escapes a value for embedding in a SQL string literal sent
// to the in-container sqlite3 client.
func quoteSQL(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// ensureDefaultGroupSQL creates the default group if absent and
// force-enables it, so group links written later always attach to an
// enabled group.
func ensureDefaultGroupSQL(groupID int64) string {
	return fmt.Sprintf(`INSERT OR IGNORE INTO "group"(id, enabled, name, description)
VALUES (%d, 1, 'Default', 'Auto-created');
UPDATE "group" SET enabled=1 WHERE id=%d;
`, groupID, groupID)
}

// upsertAdlistSQL is the insert-or-ignore-then-update pattern: the
// insert seeds a missing row, the unconditional update converges
// enabled/comment/date_modified on every run, and the final insert
// ensures exactly one link to the default group.
func upsertAdlistSQL(a config.Adlist, groupID int64) string {
	u := quoteSQL(a.URL)
	c := quoteSQL(a.Comment)
	return fmt.Sprintf(`INSERT OR IGNORE INTO adlist(address, enabled, date_added, date_modified, comment)
VALUES ('%s', 1, strftime('%%s','now'), strftime('%%s','now'), '%s');
UPDATE adlist
   SET enabled=1,
       date_modified=strftime('%%s','now'),
       comment='%s'
 WHERE address='%s';
INSERT OR IGNORE INTO adlist_by_group(adlist_id, group_id)
SELECT id, %d FROM adlist WHERE address='%s';
`, u, c, c, u, groupID, u)
}

// provisionScript builds the full SQL batch applied by the fast path.
func provisionScript(adlists []config.Adlist, groupID int64) string {
	var b strings.Builder
	b.WriteString(ensureDefaultGroupSQL(groupID))
	for _, a := range adlists {
		b.WriteString("\n")
		b.WriteString(upsertAdlistSQL(a, groupID))
	}
	return b.String()
}

const listQuery = "SELECT id, enabled, address, comment FROM adlist ORDER BY id"
