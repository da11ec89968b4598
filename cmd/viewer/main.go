package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Raulcadiz/Carnavalix/viewer"
)

// terminalSurface renders the playback surface as printed embed URLs. A
// frame swap is instantaneous here, so the ready channel closes immediately.
type terminalSurface struct{}

func (terminalSurface) LoadURL(url string) <-chan struct{} {
	fmt.Printf("▶ %s\n", url)
	ready := make(chan struct{})
	close(ready)
	return ready
}

func (terminalSurface) ShowLoading() { fmt.Println("⏳ Cargando vídeo...") }
func (terminalSurface) HideLoading() {}

type terminalPanel struct{}

func (terminalPanel) ShowNowPlaying(title, sourceChannel string) {
	fmt.Printf("🔴 EN DIRECTO: %s (%s)\n", title, sourceChannel)
}

func (terminalPanel) ShowError(message string) {
	fmt.Printf("⚠ %s\n", message)
}

func (terminalPanel) SetAdminVisible(visible bool) {
	if visible {
		fmt.Println("(comandos de admin disponibles: /siguiente, /programar <url>)")
	}
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	serverURL := flag.String("server", "http://localhost:8000", "base URL of the channel server")
	feedURL := flag.String("feed", "ws://localhost:8000/ws", "WebSocket feed URL, empty disables chat")
	room := flag.String("sala", viewer.DefaultRoom, "chat room to join")
	name := flag.String("nombre", "", "display name in chat")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := viewer.NewAPIClient(*serverURL)
	session := viewer.NewSession(viewer.SessionConfig{
		API:         api,
		Surface:     terminalSurface{},
		Panel:       terminalPanel{},
		FeedURL:     *feedURL,
		Room:        *room,
		DisplayName: *name,
	})

	bridge := viewer.NewAdminBridge(api, clockwork.NewRealClock(), session.Sync, func(line string) {
		fmt.Println(line)
	})

	errCh := make(chan error, 1)
	go func() { errCh <- session.Run(ctx) }()

	go readCommands(ctx, session, bridge)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("session ended")
			os.Exit(1)
		}
	}
}

// readCommands turns stdin lines into chat messages and admin commands.
func readCommands(ctx context.Context, session *viewer.Session, bridge *viewer.AdminBridge) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch {
		case line == "/siguiente":
			cmdCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := bridge.Advance(cmdCtx); err != nil {
				log.Debug().Err(err).Msg("advance failed")
			}
			cancel()
		case strings.HasPrefix(line, "/programar "):
			cmdCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := bridge.Schedule(cmdCtx, strings.TrimPrefix(line, "/programar ")); err != nil {
				log.Debug().Err(err).Msg("schedule failed")
			}
			cancel()
		case strings.HasPrefix(line, "/sala "):
			if err := session.SwitchRoom(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/sala "))); err != nil {
				fmt.Printf("⚠ no se pudo cambiar de sala: %v\n", err)
			}
		default:
			if err := session.Send(line); err != nil {
				fmt.Printf("⚠ no se pudo enviar: %v\n", err)
			}
		}
	}
}
