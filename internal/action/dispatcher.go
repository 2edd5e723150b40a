package action

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TUF-SCAR/Jarvis-Local/internal/observability"
	"github.com/TUF-SCAR/Jarvis-Local/internal/resilience"
)

// Dispatcher executes resolved targets on the host. The returned detail
// string goes into the audit record.
type Dispatcher interface {
	Dispatch(ctx context.Context, t Target) (detail string, err error)
}

// Executor dispatches targets through external commands: the platform
// opener for apps and URLs, a typing tool for text, and a screenshot
// tool for captures.
type Executor struct {
	screenshots *ScreenshotNamer
	typeDelayMs int
	retry       *resilience.RetryConfig
}

// NewExecutor creates the host dispatcher. Transient failures are
// retried with backoff per retry; nil uses a single attempt.
func NewExecutor(screenshotsDir string, typeDelayMs int, retry *resilience.RetryConfig) *Executor {
	return &Executor{
		screenshots: NewScreenshotNamer(screenshotsDir),
		typeDelayMs: typeDelayMs,
		retry:       retry,
	}
}

// Dispatch runs one target. Session verbs (help, intents, stop, say)
// are handled by the caller, not here.
func (e *Executor) Dispatch(ctx context.Context, t Target) (string, error) {
	start := time.Now()
	var detail string
	err := resilience.Retry(func() error {
		var innerErr error
		detail, innerErr = e.dispatchOnce(ctx, t)
		return innerErr
	}, e.retry, func(err error) bool {
		// A cancelled context will not succeed on retry.
		return ctx.Err() == nil
	})
	observability.RecordDispatch(time.Since(start))
	if err != nil {
		observability.RecordError("dispatch_failed", "action")
		return "", err
	}
	log.Debug().
		Str("kind", t.Kind.String()).
		Str("detail", detail).
		Dur("latency", time.Since(start)).
		Msg("Action dispatched")
	return detail, nil
}

func (e *Executor) dispatchOnce(ctx context.Context, t Target) (string, error) {
	switch t.Kind {
	case KindApp:
		return e.openApp(ctx, t.Value)
	case KindURL:
		return e.openURL(ctx, t.Value)
	case KindType:
		return e.typeText(ctx, t.Value)
	case KindScreenshot:
		return e.takeScreenshot(ctx)
	}
	return "", fmt.Errorf("target kind %v is not dispatchable", t.Kind)
}

func (e *Executor) openApp(ctx context.Context, app string) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", app)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", app)
	default:
		cmd = exec.CommandContext(ctx, app)
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("launching %q: %w", app, err)
	}
	// Detach; the app outlives the utterance.
	go cmd.Wait()
	return fmt.Sprintf("launched %s", app), nil
}

func (e *Executor) openURL(ctx context.Context, url string) (string, error) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", url)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", url)
	}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("opening %q: %w", url, err)
	}
	return fmt.Sprintf("opened %s", url), nil
}

func (e *Executor) typeText(ctx context.Context, text string) (string, error) {
	if runtime.GOOS != "linux" {
		return "", fmt.Errorf("typing is only supported through xdotool on linux")
	}
	cmd := exec.CommandContext(ctx, "xdotool", "type", "--delay", strconv.Itoa(e.typeDelayMs), text)
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("typing text: %w", err)
	}
	return fmt.Sprintf("typed %d characters", len(text)), nil
}

func (e *Executor) takeScreenshot(ctx context.Context) (string, error) {
	path, err := e.screenshots.Next()
	if err != nil {
		return "", err
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "screencapture", path)
	default:
		cmd = exec.CommandContext(ctx, "scrot", path)
	}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}
	return fmt.Sprintf("saved %s", path), nil
}
