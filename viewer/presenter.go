package viewer

import (
	"fmt"
	"sync"
)

// EmbedHost is the host the playback surface embeds from.
const EmbedHost = "https://www.youtube.com"

// EmbedURL builds the deterministic playback URL for a video at an offset:
// autoplay on, scrubber and keyboard off, related content suppressed. The
// offset clamps at zero.
func EmbedURL(videoID string, elapsedSeconds int) string {
	start := elapsedSeconds
	if start < 0 {
		start = 0
	}
	return fmt.Sprintf(
		"%s/embed/%s?autoplay=1&start=%d&controls=0&rel=0&modestbranding=1&iv_load_policy=3&disablekb=1",
		EmbedHost, videoID, start,
	)
}

// Surface is the passive playback element of the live page. It cannot be
// seeked or paused, only reloaded with a new source URL. LoadURL returns a
// channel closed when the surface reports ready for that load.
type Surface interface {
	LoadURL(url string) (ready <-chan struct{})
	ShowLoading()
	HideLoading()
}

// Presenter owns the page's one playback surface and the URL currently
// assigned to it.
type Presenter struct {
	surface Surface

	mu         sync.Mutex
	currentURL string
}

// NewPresenter creates a presenter around the page's surface.
func NewPresenter(surface Surface) *Presenter {
	return &Presenter{surface: surface}
}

// Present rebuilds the surface from scratch for a video at an offset. The
// loading indicator shows before assignment and hides on the surface's own
// ready signal; if that signal never fires the indicator stays up, there is
// no timeout.
func (p *Presenter) Present(videoID string, elapsedSeconds int) {
	url := EmbedURL(videoID, elapsedSeconds)

	p.mu.Lock()
	p.currentURL = url
	p.mu.Unlock()

	p.surface.ShowLoading()
	ready := p.surface.LoadURL(url)
	go func() {
		<-ready
		p.surface.HideLoading()
	}()
}

// CurrentURL returns the URL last assigned to the surface, empty before the
// first Present.
func (p *Presenter) CurrentURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentURL
}
