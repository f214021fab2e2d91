package gravity

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"homelabctl/internal/config"
	"homelabctl/internal/dockercli"
)

const sqliteProbe = "bash -lc command -v sqlite3 >/dev/null 2>&1"

var testAdlists = []config.Adlist{
	{URL: "https://big.oisd.nl/", Comment: "OISD Big"},
	{URL: "https://v.firebog.net/hosts/Easyprivacy.txt", Comment: "EasyPrivacy (Firebog)"},
	{URL: "https://v.firebog.net/hosts/AdguardDNS.txt", Comment: "AdGuard DNS (Firebog)"},
}

func newProvisioner(rt dockercli.Runtime, out io.Writer, dry bool) *Provisioner {
	return &Provisioner{
		Runtime: rt,
		Cfg: config.GravityConfig{
			DBPath:  "/etc/pihole/gravity.db",
			Adlists: testAdlists,
		},
		Log:    zerolog.Nop(),
		Out:    out,
		DryRun: dry,
	}
}

func TestResolveContainerExactMatch(t *testing.T) {
	rt := dockercli.NewFake()
	rt.ContainersMap["pihole"] = dockercli.ContainerInfo{Name: "pihole"}
	rt.ContainersMap["my-pihole-old"] = dockercli.ContainerInfo{Name: "my-pihole-old"}

	p := newProvisioner(rt, io.Discard, false)
	got, err := p.ResolveContainer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "pihole" {
		t.Fatalf("got %s, want pihole", got)
	}
}

func TestResolveContainerSubstringMatch(t *testing.T) {
	rt := dockercli.NewFake()
	rt.ContainersMap["homelab-PiHole-1"] = dockercli.ContainerInfo{Name: "homelab-PiHole-1"}

	p := newProvisioner(rt, io.Discard, false)
	got, err := p.ResolveContainer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "homelab-PiHole-1" {
		t.Fatalf("got %s, want homelab-PiHole-1", got)
	}
}

func TestResolveContainerConfiguredOverride(t *testing.T) {
	p := newProvisioner(dockercli.NewFake(), io.Discard, false)
	p.Cfg.Container = "dns"
	got, err := p.ResolveContainer(context.Background())
	if err != nil || got != "dns" {
		t.Fatalf("got %s, %v; want dns", got, err)
	}
}

func TestResolveContainerNoMatch(t *testing.T) {
	rt := dockercli.NewFake()
	rt.ContainersMap["caddy"] = dockercli.ContainerInfo{Name: "caddy"}

	p := newProvisioner(rt, io.Discard, false)
	if _, err := p.ResolveContainer(context.Background()); err == nil {
		t.Fatalf("expected an error when no pihole-like container runs")
	}
}

func TestDryRunFastPathNeverMutates(t *testing.T) {
	rt := dockercli.NewFake()
	rt.ContainersMap["pihole"] = dockercli.ContainerInfo{Name: "pihole"}

	out := &bytes.Buffer{}
	p := newProvisioner(rt, out, true)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := rt.CallsOf("exec-input"); len(calls) != 0 {
		t.Fatalf("dry-run piped SQL into the container: %+v", calls)
	}
	if calls := rt.CallsOf("copy-to"); len(calls) != 0 {
		t.Fatalf("dry-run copied a database back: %+v", calls)
	}
	for _, c := range rt.CallsOf("exec") {
		if len(c.Args) > 1 && c.Args[1] == "pihole" {
			t.Fatalf("dry-run triggered a gravity rebuild: %+v", c)
		}
	}
	if !strings.Contains(out.String(), "--dry-run: would run SQL inside container") {
		t.Fatalf("dry-run output not labeled:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "INSERT OR IGNORE INTO adlist") {
		t.Fatalf("dry-run should show the constructed SQL:\n%s", out.String())
	}
}

func TestDryRunFallbackStagesButNeverCopiesBack(t *testing.T) {
	rt := dockercli.NewFake()
	rt.ContainersMap["pihole"] = dockercli.ContainerInfo{Name: "pihole"}
	rt.ExecResults = map[string]error{sqliteProbe: fmt.Errorf("exit 1")}

	out := &bytes.Buffer{}
	p := newProvisioner(rt, out, true)
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls := rt.CallsOf("copy-from"); len(calls) != 1 {
		t.Fatalf("fallback dry-run should still stage the database: %+v", calls)
	}
	if calls := rt.CallsOf("copy-to"); len(calls) != 0 {
		t.Fatalf("dry-run copied a database back: %+v", calls)
	}
}

// createGravityDB builds a minimal gravity schema matching Pi-hole's
// contract: the three tables this tool requires, with the UNIQUE
// address constraint the upsert relies on.
func createGravityDB(t *testing.T, path string) {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE "group" (id INTEGER PRIMARY KEY, enabled INTEGER NOT NULL DEFAULT 1, name TEXT, description TEXT)`,
		`CREATE TABLE adlist (id INTEGER PRIMARY KEY AUTOINCREMENT, address TEXT UNIQUE NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1, date_added INTEGER, date_modified INTEGER, comment TEXT)`,
		`CREATE TABLE adlist_by_group (adlist_id INTEGER NOT NULL, group_id INTEGER NOT NULL,
			PRIMARY KEY (adlist_id, group_id))`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
}

func TestEditLocalDBIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gravity.db")
	createGravityDB(t, path)
	ctx := context.Background()

	for run := 0; run < 2; run++ {
		if err := editLocalDB(ctx, path, testAdlists, 0); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var adlistCount, disabled, linkCount, groupEnabled int
	if err := db.Get(&adlistCount, `SELECT COUNT(*) FROM adlist`); err != nil {
		t.Fatalf("count adlist: %v", err)
	}
	if adlistCount != 3 {
		t.Fatalf("adlist rows = %d, want 3", adlistCount)
	}
	if err := db.Get(&disabled, `SELECT COUNT(*) FROM adlist WHERE enabled != 1`); err != nil {
		t.Fatalf("count disabled: %v", err)
	}
	if disabled != 0 {
		t.Fatalf("%d adlists left disabled", disabled)
	}
	if err := db.Get(&linkCount, `SELECT COUNT(*) FROM adlist_by_group WHERE group_id = 0`); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if linkCount != 3 {
		t.Fatalf("group links = %d, want 3 (no duplicates)", linkCount)
	}
	if err := db.Get(&groupEnabled, `SELECT enabled FROM "group" WHERE id = 0`); err != nil {
		t.Fatalf("default group missing: %v", err)
	}
	if groupEnabled != 1 {
		t.Fatalf("default group not enabled")
	}
}

func TestEditLocalDBReenablesDisabledList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gravity.db")
	createGravityDB(t, path)
	ctx := context.Background()

	if err := editLocalDB(ctx, path, testAdlists, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`UPDATE adlist SET enabled=0, comment='stale'`); err != nil {
		t.Fatalf("disable: %v", err)
	}
	db.Close()

	if err := editLocalDB(ctx, path, testAdlists, 0); err != nil {
		t.Fatalf("re-run: %v", err)
	}

	db, err = sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var row adlistRow
	if err := db.Get(&row, `SELECT id, enabled, address, comment FROM adlist WHERE address = ?`, testAdlists[0].URL); err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Enabled != 1 || row.Comment.String != testAdlists[0].Comment {
		t.Fatalf("re-run did not converge: %+v", row)
	}
}

func TestEditLocalDBMissingSchemaIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gravity.db")
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("create db: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE adlist (id INTEGER PRIMARY KEY, address TEXT UNIQUE, enabled INTEGER, date_added INTEGER, date_modified INTEGER, comment TEXT)`); err != nil {
		t.Fatalf("schema: %v", err)
	}
	db.Close()

	err = editLocalDB(context.Background(), path, testAdlists, 0)
	if err == nil {
		t.Fatalf("expected a schema error")
	}
	if !strings.Contains(err.Error(), "missing tables") {
		t.Fatalf("unexpected error: %v", err)
	}

	// No partial write happened.
	db, err = sqlx.Connect("sqlite3", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.Get(&count, `SELECT COUNT(*) FROM adlist`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("schema failure still wrote %d rows", count)
	}
}

func TestListFallbackRendersRows(t *testing.T) {
	src := filepath.Join(t.TempDir(), "gravity.db")
	createGravityDB(t, src)
	if err := editLocalDB(context.Background(), src, testAdlists[:1], 0); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rt := dockercli.NewFake()
	rt.ContainersMap["pihole"] = dockercli.ContainerInfo{Name: "pihole"}
	rt.ExecResults = map[string]error{sqliteProbe: fmt.Errorf("exit 1")}
	rt.CopyFromFunc = func(container, from, to string) error {
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		return os.WriteFile(to, data, 0o600)
	}

	out := &bytes.Buffer{}
	p := newProvisioner(rt, out, false)
	if err := p.List(context.Background(), "pihole"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "id | enabled | address | comment") {
		t.Fatalf("missing header:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "https://big.oisd.nl/") {
		t.Fatalf("missing row:\n%s", out.String())
	}
}
