package server

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"time"

	"github.com/conneroisu/sitepipe/internal/logging"
)

func openBrowser(ctx context.Context, logger logging.Logger, target string) {
	time.Sleep(100 * time.Millisecond)

	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		logger.Warn(ctx, err, "Refusing to open browser", "url", target)
		return
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		cmd = exec.Command("xdg-open", u.String())
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", u.String())
	case "darwin":
		cmd = exec.Command("open", u.String())
	default:
		logger.Warn(ctx, fmt.Errorf("unsupported platform %s", runtime.GOOS), "Failed to open browser")
		return
	}

	if err := cmd.Start(); err != nil {
		logger.Warn(ctx, err, "Failed to open browser", "url", target)
		return
	}
	go func() { _ = cmd.Wait() }()
}
