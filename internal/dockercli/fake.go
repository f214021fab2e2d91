package dockercli

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Call records one invocation against the fake runtime.
type Call struct {
	Op   string
	Args []string
}

// Fake is an in-memory Runtime implementation for unit tests.
type Fake struct {
	ContainersMap map[string]ContainerInfo
	ImagesList    []string

	// ExecResults maps a space-joined argv to the error Exec-style
	// calls should return. Missing keys succeed.
	ExecResults map[string]error

	CreateID     string
	CreateErr    error
	CopyFromFunc func(container, src, dst string) error
	CopyToFunc   func(src, container, dst string) error

	Calls   []Call
	Removed []string
}

func NewFake() *Fake {
	return &Fake{ContainersMap: map[string]ContainerInfo{}}
}

func (f *Fake) record(op string, args ...string) {
	f.Calls = append(f.Calls, Call{Op: op, Args: args})
}

// CallsOf returns the recorded calls for one operation.
func (f *Fake) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) ListContainers(ctx context.Context) ([]string, error) {
	f.record("list-containers")
	names := make([]string, 0, len(f.ContainersMap))
	for n := range f.ContainersMap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

func (f *Fake) ListImages(ctx context.Context) ([]string, error) {
	f.record("list-images")
	return append([]string{}, f.ImagesList...), nil
}

func (f *Fake) Inspect(ctx context.Context, name string) (ContainerInfo, error) {
	f.record("inspect", name)
	info, ok := f.ContainersMap[name]
	if !ok {
		return ContainerInfo{}, fmt.Errorf("no such container: %s", name)
	}
	return info, nil
}

func (f *Fake) Create(ctx context.Context, image string) (string, error) {
	f.record("create", image)
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	if f.CreateID == "" {
		return "fake-container-id", nil
	}
	return f.CreateID, nil
}

func (f *Fake) CopyFrom(ctx context.Context, container, src, dst string) error {
	f.record("copy-from", container, src, dst)
	if f.CopyFromFunc != nil {
		return f.CopyFromFunc(container, src, dst)
	}
	return nil
}

func (f *Fake) CopyTo(ctx context.Context, src, container, dst string) error {
	f.record("copy-to", src, container, dst)
	if f.CopyToFunc != nil {
		return f.CopyToFunc(src, container, dst)
	}
	return nil
}

func (f *Fake) Exec(ctx context.Context, container string, argv ...string) error {
	f.record("exec", append([]string{container}, argv...)...)
	return f.execResult(argv)
}

func (f *Fake) ExecInput(ctx context.Context, container, stdin string, argv ...string) error {
	f.record("exec-input", append([]string{container}, argv...)...)
	return f.execResult(argv)
}

func (f *Fake) ExecOutput(ctx context.Context, container string, argv ...string) (string, error) {
	f.record("exec-output", append([]string{container}, argv...)...)
	return "", f.execResult(argv)
}

func (f *Fake) Remove(ctx context.Context, id string) error {
	f.record("remove", id)
	f.Removed = append(f.Removed, id)
	return nil
}

func (f *Fake) execResult(argv []string) error {
	if f.ExecResults == nil {
		return nil
	}
	return f.ExecResults[strings.Join(argv, " ")]
}

var _ Runtime = (*Fake)(nil)
