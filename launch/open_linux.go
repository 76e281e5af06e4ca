//go:build !darwin && !windows

package launch

import (
	"context"
	"os/exec"
)

func dispatchCommand(ctx context.Context, url string) *exec.Cmd {
	return exec.CommandContext(ctx, "xdg-open", url)
}
