package archive

import (
	"context"
	"fmt"
	"os"
	"strings"

	"homelabctl/internal/util"
)

// Archiver creates snapshot archives from host paths. The patcher
// depends on this interface so its reconciliation logic can be tested
// without touching tar or sudo.
type Archiver interface {
	// PreAuthenticate acquires any credentials needed for later
	// Archive calls, so a loop of them does not prompt repeatedly.
	PreAuthenticate(ctx context.Context) error
	// Archive writes a gzip tar of src to dst.
	Archive(ctx context.Context, src, dst string) error
}

// HostArchiver archives host paths, escalating through sudo for
// root-owned sources the invoking user cannot read.
type HostArchiver struct{}

// PreAuthenticate refreshes the sudo timestamp up front so the
// archive loop does not prompt for a password per path.
func (h *HostArchiver) PreAuthenticate(ctx context.Context) error {
	cmd := util.Command(ctx, "sudo", []string{"-v"}, nil)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("sudo authentication failed: %w", err)
	}
	return nil
}

// Archive first tries an in-process tar writer; when the source is
// not fully readable it falls back to sudo tar and fixes ownership of
// the result back to the invoking user.
func (h *HostArchiver) Archive(ctx context.Context, src, dst string) error {
	localErr := CreateLocal(src, dst)
	if localErr == nil {
		return nil
	}

	rel := strings.TrimPrefix(src, "/")
	if _, err := util.Output(util.Command(ctx, "sudo", []string{"tar", "czf", dst, "-C", "/", rel}, nil)); err != nil {
		return fmt.Errorf("archive %s: %w (local attempt: %v)", src, err, localErr)
	}
	owner := fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	if _, err := util.Output(util.Command(ctx, "sudo", []string{"chown", owner, dst}, nil)); err != nil {
		return fmt.Errorf("chown %s: %w", dst, err)
	}
	return nil
}

var _ Archiver = (*HostArchiver)(nil)
