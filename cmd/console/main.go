package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/robot-engine/pkg/compiler"
	"github.com/jwebster45206/robot-engine/pkg/engine"
	"github.com/jwebster45206/robot-engine/pkg/level"
)

type ConsoleConfig struct {
	LevelsDir  string
	StepDelay  time.Duration
	APIBaseURL string
	Username   string
	Timeout    time.Duration
}

func main() {
	cfg := &ConsoleConfig{
		LevelsDir:  getEnv("LEVELS_DIR", ""),
		APIBaseURL: getEnv("API_BASE_URL", ""),
		Username:   strings.TrimSpace(getEnv("ROBOT_USERNAME", "")),
		Timeout:    10 * time.Second,
	}
	if d, err := time.ParseDuration(getEnv("STEP_DELAY", "300ms")); err == nil {
		cfg.StepDelay = d
	}

	// the terminal belongs to the UI; engine logs only on errors
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	catalog, err := level.NewCatalog(cfg.LevelsDir, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load levels: %v\n", err)
		os.Exit(1)
	}

	var progress *progressClient
	startIndex := 0
	if cfg.APIBaseURL != "" && cfg.Username != "" {
		client := &http.Client{Timeout: cfg.Timeout}
		if !testConnection(client, cfg.APIBaseURL) {
			fmt.Fprintf(os.Stderr, "Could not connect to API at %s. Playing without cloud save.\n", cfg.APIBaseURL)
		} else {
			progress = &progressClient{client: client, baseURL: cfg.APIBaseURL}
			if saved, err := progress.get(cfg.Username); err == nil {
				startIndex = warpIndex(catalog, saved)
			}
		}
	}

	events := make(chan tea.Msg, 64)
	controller := engine.NewController(engine.Options{
		StepDelay: cfg.StepDelay,
		Compiler:  compiler.New(compiler.Options{}),
		Notifier:  chanNotifier(events),
		Logger:    logger,
		Hooks: engine.Hooks{
			OnLog:   func(string) { send(events, changedMsg{}) },
			OnPhase: func(engine.Phase) { send(events, changedMsg{}) },
			OnWin:   func(id int) { send(events, wonMsg{levelID: id}) },
		},
	})
	defer controller.Close()

	ui, err := NewConsoleUI(cfg, catalog, controller, events, progress, startIndex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}

// warpIndex maps a saved level id to a catalog index. Progress past the
// last level lands on the last one.
func warpIndex(catalog *level.Catalog, saved int) int {
	if idx, ok := catalog.IndexOf(saved); ok {
		return idx
	}
	if saved > 1 && catalog.Len() > 0 {
		return catalog.Len() - 1
	}
	return 0
}

// send never blocks the engine; the UI rebuilds from a snapshot, so a
// dropped change message costs nothing.
func send(events chan<- tea.Msg, msg tea.Msg) {
	select {
	case events <- msg:
	default:
	}
}

type chanNotifier chan tea.Msg

func (n chanNotifier) Notify(message string, d time.Duration) {
	send(n, toastMsg{message: message, duration: d})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
