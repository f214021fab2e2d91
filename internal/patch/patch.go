// Package patch reconciles a backup snapshot's bind-mount archives
// against the bind mounts reported by the configured containers,
// archiving anything missing that falls inside the allow-listed host
// path prefixes.
package patch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"homelabctl/internal/archive"
	"homelabctl/internal/config"
	"homelabctl/internal/dockercli"
	"homelabctl/internal/snapshot"
)

// Candidate is one host path that should be present in the snapshot,
// attributed to the first container seen mounting it.
type Candidate struct {
	Container string
	Source    string
	Dest      string
}

// Patcher holds the collaborators for one patch run.
type Patcher struct {
	Runtime  dockercli.Runtime
	Archiver archive.Archiver
	Cfg      config.PatchConfig
	Log      zerolog.Logger
	Out      io.Writer
	DryRun   bool

	// RunScript executes the external rebuild script. Overridable in
	// tests; nil means run it directly.
	RunScript func(ctx context.Context, path string) error

	// PathExists reports whether a host path exists. Overridable in
	// tests; nil means os.Stat.
	PathExists func(path string) bool
}

// AllowedPrefixes unions the default prefixes with caller-supplied
// extras, de-duplicated preserving first-seen order.
func AllowedPrefixes(defaults, extra []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(defaults)+len(extra))
	for _, p := range append(append([]string{}, defaults...), extra...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ShouldInclude reports whether src is an allow-listed prefix or
// nested under one. The separator check keeps sibling paths sharing a
// string prefix (/etc/pihole2 vs /etc/pihole) from matching.
func ShouldInclude(src string, prefixes []string) bool {
	srcNorm := filepath.Clean(src)
	for _, p := range prefixes {
		pNorm := filepath.Clean(p)
		if srcNorm == pNorm || len(srcNorm) > len(pNorm) &&
			srcNorm[:len(pNorm)] == pNorm && srcNorm[len(pNorm)] == os.PathSeparator {
			return true
		}
	}
	return false
}

// Missing returns the candidates whose derived archive name is absent
// from the existing set.
func Missing(candidates []Candidate, existing map[string]bool) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if !existing[archive.Name(c.Source)] {
			out = append(out, c)
		}
	}
	return out
}

func (p *Patcher) pathExists(path string) bool {
	if p.PathExists != nil {
		return p.PathExists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// GatherCandidates collects the host paths to ensure in the snapshot:
// the configured must-include paths plus every allow-listed bind
// mount of the configured containers, de-duplicated by source keeping
// the first occurrence.
func (p *Patcher) GatherCandidates(ctx context.Context, containers, allowed []string) []Candidate {
	var candidates []Candidate

	for _, must := range p.Cfg.MustInclude {
		if ShouldInclude(must, allowed) && p.pathExists(must) {
			candidates = append(candidates, Candidate{Container: "required", Source: must, Dest: must})
		}
	}

	for _, name := range containers {
		info, err := p.Runtime.Inspect(ctx, name)
		if err != nil {
			p.Log.Warn().Str("container", name).Err(err).Msg("inspect failed, skipping")
			continue
		}
		for _, m := range info.Binds() {
			if m.Source == "" || m.Destination == "" {
				continue
			}
			if !p.pathExists(m.Source) || !ShouldInclude(m.Source, allowed) {
				continue
			}
			candidates = append(candidates, Candidate{Container: name, Source: m.Source, Dest: m.Destination})
		}
	}

	seen := map[string]bool{}
	out := candidates[:0]
	for _, c := range candidates {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		out = append(out, c)
	}
	return out
}

// Run executes the full reconciliation against the resolved snapshot.
func (p *Patcher) Run(ctx context.Context, explicitBackup string, containers, extraPrefixes []string, rebuildImage bool) error {
	backupRoot, err := snapshot.Resolve(explicitBackup, p.Cfg.BackupsRoot, p.Cfg.LatestPointer)
	if err != nil {
		return fmt.Errorf("%w; run your backup first or pass --backup /path/to/backup", err)
	}
	fmt.Fprintf(p.Out, "Using backup: %s\n", backupRoot)

	if len(containers) == 0 {
		containers = p.Cfg.Containers
	}

	if !p.DryRun {
		if err := p.Archiver.PreAuthenticate(ctx); err != nil {
			return fmt.Errorf("sudo is required to archive root-owned paths: %w", err)
		}
	}

	allowed := AllowedPrefixes(p.Cfg.Prefixes, extraPrefixes)
	candidates := p.GatherCandidates(ctx, containers, allowed)
	if len(candidates) == 0 {
		p.Log.Warn().Msg("no archivable bind mounts found for the configured containers")
	}

	bindDir := filepath.Join(backupRoot, snapshot.BindMountsDir)
	existing, err := snapshot.ListArchives(bindDir)
	if err != nil {
		return fmt.Errorf("list existing archives: %w", err)
	}

	fmt.Fprintln(p.Out, "\n== BEFORE ==")
	fmt.Fprintf(p.Out, "bind-mount archives present: %d\n", len(existing))
	for _, n := range snapshot.SortedNames(existing) {
		fmt.Fprintf(p.Out, "  - %s\n", n)
	}

	missing := Missing(candidates, existing)
	if len(missing) == 0 {
		fmt.Fprintln(p.Out, "\nNothing missing; backup already contains all targeted bind mounts.")
	} else {
		fmt.Fprintln(p.Out, "\nMissing archives that will be created:")
		for _, c := range missing {
			fmt.Fprintf(p.Out, "  - %s  (container: %s)  -> %s/%s\n",
				c.Source, c.Container, snapshot.BindMountsDir, archive.Name(c.Source))
		}
	}

	created := p.ensureArchives(ctx, missing, bindDir)

	final, err := snapshot.ListArchives(bindDir)
	if err != nil {
		return fmt.Errorf("list archives after patch: %w", err)
	}
	if p.DryRun {
		// Reflect the hypothetical additions in the AFTER view.
		for _, n := range created {
			final[n] = true
		}
	}
	fmt.Fprintln(p.Out, "\n== AFTER ==")
	fmt.Fprintf(p.Out, "bind-mount archives present: %d\n", len(final))
	newSet := map[string]bool{}
	for _, n := range created {
		newSet[n] = true
	}
	for _, n := range snapshot.SortedNames(final) {
		mark := ""
		if newSet[n] {
			mark = " (new)"
		}
		fmt.Fprintf(p.Out, "  - %s%s\n", n, mark)
	}

	if rebuildImage {
		p.rebuild(ctx)
	}

	fmt.Fprintln(p.Out, "\nDone.")
	return nil
}

// ensureArchives creates the missing archives and returns the names
// actually created (or, in dry-run, those that would be). A failure
// on one path is logged and skipped; remaining paths still run.
func (p *Patcher) ensureArchives(ctx context.Context, missing []Candidate, bindDir string) []string {
	var created []string
	if len(missing) == 0 {
		return created
	}
	if !p.DryRun {
		if err := os.MkdirAll(bindDir, 0o755); err != nil {
			p.Log.Error().Str("dir", bindDir).Err(err).Msg("cannot create bind-mounts directory")
			return created
		}
	}
	for _, c := range missing {
		name := archive.Name(c.Source)
		target := filepath.Join(bindDir, name)
		if p.DryRun {
			fmt.Fprintf(p.Out, "[dry-run] Would archive: %s -> %s\n", c.Source, target)
			created = append(created, name)
			continue
		}
		fmt.Fprintf(p.Out, "Archiving %s (from %s) -> %s\n", c.Source, c.Container, target)
		if err := p.Archiver.Archive(ctx, c.Source, target); err != nil {
			p.Log.Error().Str("source", c.Source).Err(err).Msg("archive failed")
			continue
		}
		created = append(created, name)
	}
	return created
}

// rebuild invokes the external backup-image build script. Absence or
// failure is reported but never fails the run.
func (p *Patcher) rebuild(ctx context.Context) {
	script := p.Cfg.RebuildScript
	if !p.pathExists(script) {
		p.Log.Warn().Str("script", script).Msg("rebuild script not found; skipping image rebuild")
		return
	}
	fmt.Fprintln(p.Out, "\n== Rebuilding backup Docker image ==")
	run := p.RunScript
	if run == nil {
		run = runScript
	}
	if err := run(ctx, script); err != nil {
		p.Log.Error().Str("script", script).Err(err).Msg("image rebuild failed")
	}
}

func runScript(ctx context.Context, path string) error {
	cmd := newScriptCmd(ctx, path)
	return cmd.Run()
}
