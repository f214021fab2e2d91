// Package gravity provisions Pi-hole adlists: it ensures a curated
// set of blocklist URLs is present, enabled, and linked to the
// default group in a Pi-hole container's gravity database, then
// triggers a blocklist rebuild.
package gravity

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"homelabctl/internal/config"
	"homelabctl/internal/dockercli"
)

// Provisioner applies the configured adlists to a Pi-hole container.
type Provisioner struct {
	Runtime dockercli.Runtime
	Cfg     config.GravityConfig
	Log     zerolog.Logger
	Out     io.Writer
	DryRun  bool
}

// ResolveContainer returns the configured container name, or
// auto-detects a running container whose name is or contains
// "pihole".
func (p *Provisioner) ResolveContainer(ctx context.Context) (string, error) {
	if p.Cfg.Container != "" {
		return p.Cfg.Container, nil
	}
	names, err := p.Runtime.ListContainers(ctx)
	if err != nil {
		return "", fmt.Errorf("detect pihole container: %w", err)
	}
	for _, n := range names {
		if n == "pihole" {
			return n, nil
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), "pihole") {
			return n, nil
		}
	}
	return "", fmt.Errorf("couldn't detect a Pi-hole container automatically; pass --container <name>")
}

// Run executes the full provisioning flow against the resolved
// container and prints the confirmation listing.
func (p *Provisioner) Run(ctx context.Context) error {
	container, err := p.ResolveContainer(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(p.Out, "Target container: %s\n", container)
	fmt.Fprintln(p.Out, "Ensuring/adding adlists...")

	if err := p.apply(ctx, container); err != nil {
		return err
	}

	if p.DryRun {
		fmt.Fprintln(p.Out, "\n--dry-run specified: skipping gravity update. Use --list to inspect current state.")
		return nil
	}

	fmt.Fprintln(p.Out, "\nRebuilding gravity (pihole -g). This may take a minute...")
	if err := p.Runtime.Exec(ctx, container, "pihole", "-g"); err != nil {
		return fmt.Errorf("gravity rebuild: %w", err)
	}
	fmt.Fprintln(p.Out, "Done.\nCurrent adlists:")
	return p.List(ctx, container)
}

func (p *Provisioner) apply(ctx context.Context, container string) error {
	if p.hasSQLite(ctx, container) {
		return p.applyInContainer(ctx, container)
	}
	p.Log.Debug().Str("container", container).Msg("no sqlite3 in container, using copy-out fallback")
	return p.applyFallback(ctx, container)
}

// hasSQLite probes for a sqlite3 binary inside the container; its
// absence selects the copy-out/edit/copy-back fallback.
func (p *Provisioner) hasSQLite(ctx context.Context, container string) bool {
	err := p.Runtime.Exec(ctx, container, "bash", "-lc", "command -v sqlite3 >/dev/null 2>&1")
	return err == nil
}

// applyInContainer pipes one SQL batch into the container's sqlite3.
func (p *Provisioner) applyInContainer(ctx context.Context, container string) error {
	script := provisionScript(p.Cfg.Adlists, p.Cfg.DefaultGroupID)
	if p.DryRun {
		fmt.Fprintf(p.Out, "--dry-run: would run SQL inside container:\n%s\n", script)
		return nil
	}
	if err := p.Runtime.ExecInput(ctx, container, script, "sqlite3", p.Cfg.DBPath); err != nil {
		return fmt.Errorf("apply adlists in %s: %w", container, err)
	}
	return nil
}

// applyFallback copies the database out, edits the staged copy, and
// copies it back. Dry-run still stages the copy so the lookup steps
// run, but never writes anything back.
func (p *Provisioner) applyFallback(ctx context.Context, container string) error {
	tmp, err := os.MkdirTemp("", "gravity-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	local := filepath.Join(tmp, "gravity.db")
	if err := p.Runtime.CopyFrom(ctx, container, p.Cfg.DBPath, local); err != nil {
		return err
	}
	if p.DryRun {
		fmt.Fprintf(p.Out, "--dry-run: would edit DB at %s and copy back to %s\n", local, p.Cfg.DBPath)
		return nil
	}
	if err := editLocalDB(ctx, local, p.Cfg.Adlists, p.Cfg.DefaultGroupID); err != nil {
		return err
	}
	return p.Runtime.CopyTo(ctx, local, container, p.Cfg.DBPath)
}

// List prints the current adlist rows (id, enabled, address, comment)
// ordered by id.
func (p *Provisioner) List(ctx context.Context, container string) error {
	if p.hasSQLite(ctx, container) {
		out, err := p.Runtime.ExecOutput(ctx, container,
			"sqlite3", "-header", "-column", p.Cfg.DBPath, listQuery+";")
		if err != nil {
			return fmt.Errorf("list adlists: %w", err)
		}
		fmt.Fprintln(p.Out, out)
		return nil
	}

	tmp, err := os.MkdirTemp("", "gravity-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	local := filepath.Join(tmp, "gravity.db")
	if err := p.Runtime.CopyFrom(ctx, container, p.Cfg.DBPath, local); err != nil {
		return err
	}
	rows, err := queryLocalAdlists(ctx, local)
	if err != nil {
		return err
	}
	fmt.Fprintln(p.Out, "id | enabled | address | comment")
	for _, r := range rows {
		fmt.Fprintf(p.Out, "%d | %d | %s | %s\n", r.ID, r.Enabled, r.Address, r.Comment.String)
	}
	return nil
}
