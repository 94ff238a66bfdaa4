package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"voicenotes/internal/config"
	"voicenotes/internal/deps"
)

// Identifier reports who the configured bot is. The Telegram session
// satisfies it.
type Identifier interface {
	Identity(ctx context.Context) (string, error)
}

// CheckTelegram verifies that the Bot API accepts the token.
// It uses a 15-second timeout and a single attempt.
func CheckTelegram(ctx context.Context, bot Identifier) Result {
	const name = "Telegram"
	if bot == nil {
		return Result{Name: name, Detail: "client unavailable"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	identity, err := bot.Identity(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("authorized as %s", identity)}
}

// CheckToken reports whether a bot token was resolved from config,
// environment or token file.
func CheckToken(cfg *config.Config) Result {
	const name = "Bot token"
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return Result{Name: name, Detail: "missing (set telegram.token, TELEGRAM_BOT_TOKEN or telegram.token_file)"}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckChat reports whether delivery is enabled.
func CheckChat(cfg *config.Config) Result {
	const name = "Target chat"
	chat, ok := cfg.TargetChat()
	if !ok {
		return Result{Name: name, Detail: "not set; passes run in registration mode and deliver nothing"}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d", chat)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries a pass needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (Bot API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (Bot API unreachable)"
	}
	return err.Error()
}
