package dockercli

import (
	"context"
	"fmt"
	"strings"

	"homelabctl/internal/util"
)

const dockerBin = "docker"

// Client drives the docker CLI on the host.
type Client struct{}

// New returns a docker CLI client after verifying the binary exists.
func New() (*Client, error) {
	if err := util.RequireBinary(dockerBin); err != nil {
		return nil, err
	}
	return &Client{}, nil
}

func (c *Client) ListContainers(ctx context.Context) ([]string, error) {
	out, err := util.Output(util.Command(ctx, dockerBin, []string{"ps", "--format", "{{.Names}}"}, nil))
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return splitLines(out), nil
}

func (c *Client) ListImages(ctx context.Context) ([]string, error) {
	out, err := util.Output(util.Command(ctx, dockerBin, []string{"images", "--format", "{{.Repository}}:{{.Tag}}"}, nil))
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return splitLines(out), nil
}

func (c *Client) Inspect(ctx context.Context, name string) (ContainerInfo, error) {
	out, err := util.Output(util.Command(ctx, dockerBin, []string{"inspect", name}, nil))
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("inspect %s: %w", name, err)
	}
	infos, err := DecodeInspect([]byte(out))
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("inspect %s: decode: %w", name, err)
	}
	if len(infos) == 0 {
		return ContainerInfo{}, fmt.Errorf("inspect %s: empty result", name)
	}
	return infos[0], nil
}

func (c *Client) Create(ctx context.Context, image string) (string, error) {
	out, err := util.Output(util.Command(ctx, dockerBin, []string{"create", image}, nil))
	if err != nil {
		return "", fmt.Errorf("create from %s: %w", image, err)
	}
	return out, nil
}

func (c *Client) CopyFrom(ctx context.Context, container, src, dst string) error {
	_, err := util.Output(util.Command(ctx, dockerBin, []string{"cp", container + ":" + src, dst}, nil))
	if err != nil {
		return fmt.Errorf("copy %s:%s: %w", container, src, err)
	}
	return nil
}

func (c *Client) CopyTo(ctx context.Context, src, container, dst string) error {
	_, err := util.Output(util.Command(ctx, dockerBin, []string{"cp", src, container + ":" + dst}, nil))
	if err != nil {
		return fmt.Errorf("copy to %s:%s: %w", container, dst, err)
	}
	return nil
}

func (c *Client) Exec(ctx context.Context, container string, argv ...string) error {
	args := append([]string{"exec", "-i", container}, argv...)
	_, err := util.Output(util.Command(ctx, dockerBin, args, nil))
	return err
}

func (c *Client) ExecInput(ctx context.Context, container, stdin string, argv ...string) error {
	args := append([]string{"exec", "-i", container}, argv...)
	cmd := util.Command(ctx, dockerBin, args, nil)
	cmd.Stdin = strings.NewReader(stdin)
	_, err := util.Output(cmd)
	return err
}

func (c *Client) ExecOutput(ctx context.Context, container string, argv ...string) (string, error) {
	args := append([]string{"exec", "-i", container}, argv...)
	return util.Output(util.Command(ctx, dockerBin, args, nil))
}

func (c *Client) Remove(ctx context.Context, id string) error {
	_, err := util.Output(util.Command(ctx, dockerBin, []string{"rm", "-f", id}, nil))
	return err
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

var _ Runtime = (*Client)(nil)
