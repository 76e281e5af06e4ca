//go:build darwin

package launch

import (
	"context"
	"os/exec"
)

func dispatchCommand(ctx context.Context, url string) *exec.Cmd {
	return exec.CommandContext(ctx, "open", url)
}
