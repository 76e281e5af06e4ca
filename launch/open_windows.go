//go:build windows

package launch

import (
	"context"
	"os/exec"
)

func dispatchCommand(ctx context.Context, url string) *exec.Cmd {
	return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
}
