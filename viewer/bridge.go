package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrControlRejected is returned when the server answered a control call with
// ok:false.
var ErrControlRejected = errors.New("control call rejected")

// ControlClient is the slice of the API the bridge drives.
type ControlClient interface {
	Advance(ctx context.Context) (*ControlResult, error)
	Schedule(ctx context.Context, youtubeID string) (*ControlResult, error)
}

// RefreshDelay is how long the bridge waits after a successful control call
// before asking for a state refresh, giving the server time to settle.
const RefreshDelay = 500 * time.Millisecond

// AdminBridge exposes the two privileged channel controls. Both are
// fire-and-forget: failures are reported to the inline log and nothing else
// happens; successes schedule one delayed refresh.
type AdminBridge struct {
	api     ControlClient
	clock   clockwork.Clock
	refresh func()
	logf    func(line string)
}

// NewAdminBridge creates the control bridge. refresh is invoked RefreshDelay
// after each successful call; logf receives the one-line feedback shown in
// the admin view.
func NewAdminBridge(api ControlClient, clock clockwork.Clock, refresh func(), logf func(string)) *AdminBridge {
	if logf == nil {
		logf = func(string) {}
	}
	return &AdminBridge{
		api:     api,
		clock:   clock,
		refresh: refresh,
		logf:    logf,
	}
}

func (b *AdminBridge) logLine(format string, args ...interface{}) {
	stamp := b.clock.Now().Format("15:04:05")
	b.logf(fmt.Sprintf("[%s] %s", stamp, fmt.Sprintf(format, args...)))
}

// Advance asks the server to pick and commit the next video.
func (b *AdminBridge) Advance(ctx context.Context) error {
	b.logLine("⏭ Avanzando al siguiente vídeo...")

	result, err := b.api.Advance(ctx)
	if err != nil {
		b.logLine("❌ Error: %v", err)
		return err
	}
	if !result.OK {
		b.logLine("❌ %s", errorText(result.Error))
		return fmt.Errorf("%w: %s", ErrControlRejected, errorText(result.Error))
	}

	b.logLine("✅ Nuevo vídeo: %s", result.YoutubeID)
	b.scheduleRefresh()
	return nil
}

// Schedule asks the server to queue a specific video next.
func (b *AdminBridge) Schedule(ctx context.Context, youtubeID string) error {
	b.logLine("📌 Programando vídeo: %s...", youtubeID)

	result, err := b.api.Schedule(ctx, youtubeID)
	if err != nil {
		b.logLine("❌ Error: %v", err)
		return err
	}
	if !result.OK {
		b.logLine("❌ %s", errorText(result.Error))
		return fmt.Errorf("%w: %s", ErrControlRejected, errorText(result.Error))
	}

	b.logLine("✅ Vídeo programado: %s", youtubeID)
	b.scheduleRefresh()
	return nil
}

// scheduleRefresh waits out RefreshDelay and refreshes once. It does not wait
// for confirmation that the server settled, it only sleeps.
func (b *AdminBridge) scheduleRefresh() {
	if b.refresh == nil {
		return
	}
	b.clock.AfterFunc(RefreshDelay, b.refresh)
}

func errorText(msg string) string {
	if msg == "" {
		return "Error desconocido"
	}
	return msg
}
