package dockercli

import (
	"context"
	"encoding/json"
	"strings"
)

// Mount is one mount descriptor as reported by container inspection.
type Mount struct {
	Type        string
	Name        string
	Source      string
	Destination string
}

// ContainerInfo is the subset of inspect output the tools consume.
type ContainerInfo struct {
	Name   string
	Image  string
	Mounts []Mount
}

// Volumes returns the managed-volume mounts.
func (c ContainerInfo) Volumes() []Mount {
	return c.mountsOfType("volume")
}

// Binds returns the bind mounts.
func (c ContainerInfo) Binds() []Mount {
	return c.mountsOfType("bind")
}

func (c ContainerInfo) mountsOfType(t string) []Mount {
	var out []Mount
	for _, m := range c.Mounts {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Runtime is a narrow interface over the container runtime CLI.
// Keep it small and focused on what the tools actually need so it
// stays fakeable in tests.
type Runtime interface {
	// ListContainers returns the names of running containers.
	ListContainers(ctx context.Context) ([]string, error)
	// ListImages returns locally available images as repository:tag.
	ListImages(ctx context.Context) ([]string, error)
	// Inspect returns metadata for a single container.
	Inspect(ctx context.Context, name string) (ContainerInfo, error)
	// Create materializes a container from an image without starting
	// it and returns the container id.
	Create(ctx context.Context, image string) (string, error)
	// CopyFrom copies a path out of a container to the host.
	CopyFrom(ctx context.Context, container, src, dst string) error
	// CopyTo copies a host path into a container.
	CopyTo(ctx context.Context, src, container, dst string) error
	// Exec runs a command inside a running container.
	Exec(ctx context.Context, container string, argv ...string) error
	// ExecInput runs a command inside a container with stdin attached.
	ExecInput(ctx context.Context, container, stdin string, argv ...string) error
	// ExecOutput runs a command inside a container and returns stdout.
	ExecOutput(ctx context.Context, container string, argv ...string) (string, error)
	// Remove force-removes a container. Best effort.
	Remove(ctx context.Context, id string) error
}

// rawInspect mirrors the inspect JSON shape. Compose-era manifests
// sometimes carry Target instead of Destination.
type rawInspect struct {
	Name   string `json:"Name"`
	Image  string `json:"Image"`
	Config struct {
		Image string `json:"Image"`
	} `json:"Config"`
	Mounts []struct {
		Type        string `json:"Type"`
		Name        string `json:"Name"`
		Source      string `json:"Source"`
		Destination string `json:"Destination"`
		Target      string `json:"Target"`
	} `json:"Mounts"`
}

// DecodeInspect parses an inspect JSON array (the output of the
// inspect command, and the same shape recorded in snapshot manifests)
// into ContainerInfo values.
func DecodeInspect(data []byte) ([]ContainerInfo, error) {
	var raw []rawInspect
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]ContainerInfo, 0, len(raw))
	for _, r := range raw {
		info := ContainerInfo{
			Name:  strings.TrimPrefix(r.Name, "/"),
			Image: r.Config.Image,
		}
		if info.Image == "" {
			info.Image = r.Image
		}
		for _, m := range r.Mounts {
			dest := m.Destination
			if dest == "" {
				dest = m.Target
			}
			info.Mounts = append(info.Mounts, Mount{
				Type:        m.Type,
				Name:        m.Name,
				Source:      m.Source,
				Destination: dest,
			})
		}
		out = append(out, info)
	}
	return out, nil
}
