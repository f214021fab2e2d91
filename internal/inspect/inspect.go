// Package inspect extracts the snapshot bundle embedded in a packaged
// backup image and reports on its structure and per-container
// completeness.
package inspect

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"homelabctl/internal/archive"
	"homelabctl/internal/config"
	"homelabctl/internal/dockercli"
	"homelabctl/internal/snapshot"
)

// Inspector cross-checks a backup image's embedded snapshot bundle.
type Inspector struct {
	Runtime dockercli.Runtime
	Cfg     config.InspectConfig
	Log     zerolog.Logger
	Out     io.Writer
}

// ListBackupImages returns the locally available backup images under
// the configured repository, sorted by tag.
func (i *Inspector) ListBackupImages(ctx context.Context) ([]string, error) {
	images, err := i.Runtime.ListImages(ctx)
	if err != nil {
		return nil, err
	}
	prefix := i.Cfg.ImageRepository + ":"
	var out []string
	for _, img := range images {
		if strings.HasPrefix(img, prefix) {
			out = append(out, img)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ResolveImage picks the image to inspect: an explicit tag wins, else
// the lexicographically greatest tag under the repository prefix
// (timestamp-style tags sort newest-last).
func (i *Inspector) ResolveImage(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	imgs, err := i.ListBackupImages(ctx)
	if err != nil {
		return "", err
	}
	if len(imgs) == 0 {
		return "", fmt.Errorf("no backup image found; build one with the backup-image script, load one with docker load, or pass --image")
	}
	return imgs[len(imgs)-1], nil
}

// Run extracts the bundle and prints the full report. The throwaway
// container and temp directory are removed on every exit path.
func (i *Inspector) Run(ctx context.Context, explicitImage string, expect []string) error {
	image, err := i.ResolveImage(ctx, explicitImage)
	if err != nil {
		return err
	}
	if len(expect) == 0 {
		expect = i.Cfg.Expect
	}

	tmp, err := os.MkdirTemp("", "bundle-inspect-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	fmt.Fprintf(i.Out, "Using image: %s\n", image)
	cid, err := i.Runtime.Create(ctx, image)
	if err != nil {
		return i.createFailure(ctx, image, err)
	}
	defer func() {
		if rmErr := i.Runtime.Remove(ctx, cid); rmErr != nil {
			i.Log.Warn().Str("container", cid).Err(rmErr).Msg("could not remove throwaway container")
		}
	}()

	if err := i.Runtime.CopyFrom(ctx, cid, i.Cfg.BundlePath, tmp); err != nil {
		return fmt.Errorf("extract %s from image: %w", i.Cfg.BundlePath, err)
	}

	bundle := filepath.Join(tmp, filepath.Base(i.Cfg.BundlePath))
	if _, err := os.Stat(bundle); err != nil {
		return fmt.Errorf("%s not found inside the image; is this the right image?", i.Cfg.BundlePath)
	}

	i.report(bundle, expect)
	return nil
}

// createFailure decorates a container-create error with the list of
// available backup images, mirroring the guidance a stuck user needs.
func (i *Inspector) createFailure(ctx context.Context, image string, cause error) error {
	imgs, listErr := i.ListBackupImages(ctx)
	if listErr != nil || len(imgs) == 0 {
		return fmt.Errorf("could not create container from image %q: %w; no %s images are present locally", image, cause, i.Cfg.ImageRepository)
	}
	return fmt.Errorf("could not create container from image %q: %w; available: %s", image, cause, strings.Join(imgs, ", "))
}

func (i *Inspector) report(bundle string, expect []string) {
	backup := filepath.Join(bundle, "backup")
	vols := filepath.Join(backup, snapshot.VolumesDir)
	binds := filepath.Join(backup, snapshot.BindMountsDir)
	comps := filepath.Join(backup, snapshot.ComposeDir)
	man := filepath.Join(backup, snapshot.ManifestsDir)
	certs := filepath.Join(backup, snapshot.CertsDir)
	imagesTar := filepath.Join(backup, snapshot.ImagesTar)

	volArch, _ := snapshot.ListArchives(vols)
	bindArch, _ := snapshot.ListArchives(binds)
	compFiles := listFiles(comps)

	fmt.Fprintln(i.Out, "\n== Top-level presence ==")
	fmt.Fprintf(i.Out, "  %-15s %s  (%d archives)\n", snapshot.VolumesDir+"/:", pretty(dirExists(vols)), len(volArch))
	fmt.Fprintf(i.Out, "  %-15s %s  (%d archives)\n", snapshot.BindMountsDir+"/:", pretty(dirExists(binds)), len(bindArch))
	fmt.Fprintf(i.Out, "  %-15s %s  (%d files)\n", snapshot.ComposeDir+"/:", pretty(dirExists(comps)), len(compFiles))
	fmt.Fprintf(i.Out, "  %-15s %s\n", snapshot.ManifestsDir+"/:", pretty(dirExists(man)))
	fmt.Fprintf(i.Out, "  %-15s %s\n", snapshot.ImagesTar+":", pretty(fileExists(imagesTar)))
	certPresent := fileExists(filepath.Join(certs, i.Cfg.CertFile))
	fmt.Fprintf(i.Out, "  %-15s %s   %s: %s\n", snapshot.CertsDir+"/:", pretty(dirExists(certs)), i.Cfg.CertFile, pretty(certPresent))

	if len(compFiles) > 0 {
		fmt.Fprintf(i.Out, "\n%s/ (first 10):\n", snapshot.ComposeDir)
		for idx, n := range compFiles {
			if idx >= 10 {
				break
			}
			fmt.Fprintf(i.Out, "  - %s\n", n)
		}
	}

	for _, manifest := range []string{snapshot.RunningImages, snapshot.ContainersTSV} {
		lines := readLines(filepath.Join(man, manifest))
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(i.Out, "\n%s:\n", manifest)
		for _, l := range lines {
			fmt.Fprintf(i.Out, "  - %s\n", l)
		}
	}

	containers, ok := i.loadContainersManifest(filepath.Join(man, snapshot.ContainersJSON))
	if !ok {
		i.Log.Warn().Msg("containers.json missing or unreadable; deep cross-check skipped")
		fmt.Fprintln(i.Out, "\n== Done ==")
		return
	}

	i.crossCheck(containers, expect, volArch, bindArch, vols, binds)
	fmt.Fprintln(i.Out, "\n== Done ==")
}

// loadContainersManifest parses containers.json. Parse failures are
// warnings; the caller skips the per-container section and the run
// still completes successfully.
func (i *Inspector) loadContainersManifest(path string) ([]dockercli.ContainerInfo, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	containers, err := dockercli.DecodeInspect(data)
	if err != nil {
		i.Log.Warn().Err(err).Msg("could not parse containers.json")
		return nil, false
	}
	return containers, len(containers) > 0
}

// crossCheck re-derives every expected archive name from the recorded
// mounts and reports whether it is actually present in the bundle.
func (i *Inspector) crossCheck(containers []dockercli.ContainerInfo, expect []string, volArch, bindArch map[string]bool, volsDir, bindsDir string) {
	byName := map[string]dockercli.ContainerInfo{}
	var names []string
	for _, c := range containers {
		if c.Name == "" {
			continue
		}
		byName[c.Name] = c
		names = append(names, c.Name)
	}

	ordered := orderExpectFirst(names, expect)

	fmt.Fprintln(i.Out, "\n== Per-container capture check ==")
	for _, name := range ordered {
		c := byName[name]
		fmt.Fprintf(i.Out, "\n[%s]  image: %s\n", name, c.Image)

		if vols := c.Volumes(); len(vols) > 0 {
			fmt.Fprintln(i.Out, "  Volumes:")
			for _, m := range vols {
				expected := ""
				if m.Name != "" {
					expected = m.Name + archive.Suffix
				}
				i.printMount(m.Name, m.Destination, expected, snapshot.VolumesDir, volArch, volsDir)
			}
		} else {
			fmt.Fprintln(i.Out, "  Volumes: (none)")
		}

		if binds := c.Binds(); len(binds) > 0 {
			fmt.Fprintln(i.Out, "  Bind mounts:")
			for _, m := range binds {
				expected := ""
				if m.Source != "" {
					expected = archive.Name(m.Source)
				}
				i.printMount(m.Source, m.Destination, expected, snapshot.BindMountsDir, bindArch, bindsDir)
			}
		} else {
			fmt.Fprintln(i.Out, "  Bind mounts: (none)")
		}
	}
}

func (i *Inspector) printMount(label, dest, expected, dir string, present map[string]bool, archDir string) {
	ok := expected != "" && present[expected]
	note := ""
	switch {
	case expected != "" && !ok:
		note = fmt.Sprintf("   (expected: %s/%s)", dir, expected)
	case ok:
		if n, err := archive.EntryCount(filepath.Join(archDir, expected)); err == nil {
			note = fmt.Sprintf("   (%d entries)", n)
		} else {
			i.Log.Warn().Str("archive", expected).Err(err).Msg("archive unreadable")
			note = "   (unreadable)"
		}
	}
	fmt.Fprintf(i.Out, "    - %-35s -> %-25s  archived: %s%s\n", label, dest, pretty(ok), note)
}

// orderExpectFirst puts the highlighted names first (in expect order),
// then the rest alphabetically.
func orderExpectFirst(names, expect []string) []string {
	have := map[string]bool{}
	for _, n := range names {
		have[n] = true
	}
	var ordered []string
	taken := map[string]bool{}
	for _, e := range expect {
		if have[e] && !taken[e] {
			ordered = append(ordered, e)
			taken[e] = true
		}
	}
	rest := make([]string, 0, len(names))
	for _, n := range names {
		if !taken[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

func pretty(ok bool) string {
	if ok {
		return "yes"
	}
	return "NO"
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

func readLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
