package patch

import (
	"context"
	"os"
	"os/exec"

	"homelabctl/internal/util"
)

// newScriptCmd runs the rebuild script with the user's terminal
// attached, since it may produce its own progress output.
func newScriptCmd(ctx context.Context, path string) *exec.Cmd {
	cmd := util.Command(ctx, path, nil, nil)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
