// ABOUTME: Entry point for the herdbook breeding-record server
// ABOUTME: Subcommands: serve, init, health

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/elevage/herdbook/internal/auth"
	"github.com/elevage/herdbook/internal/config"
	"github.com/elevage/herdbook/internal/server"
	"github.com/elevage/herdbook/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _                   _ _                 _
| |__   ___ _ __ __| | |__   ___   ___ | | __
| '_ \ / _ \ '__/ _' | '_ \ / _ \ / _ \| |/ /
| | | |  __/ | | (_| | |_) | (_) | (_) |   <
|_| |_|\___|_|  \__,_|_.__/ \___/ \___/|_|\_\
`

// xdgDir resolves an XDG base directory, preferring the named env var and
// falling back to homeRel under the home directory, then to fallback when
// even the home directory is unknown.
func xdgDir(envVar, homeRel, fallback string) string {
	if dir := os.Getenv(envVar); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fallback
	}
	return filepath.Join(home, homeRel)
}

// getConfigPath returns the path to the herdbook config file.
// HERDBOOK_CONFIG overrides the XDG lookup entirely.
func getConfigPath() string {
	if envPath := os.Getenv("HERDBOOK_CONFIG"); envPath != "" {
		return envPath
	}
	base := xdgDir("XDG_CONFIG_HOME", ".config", "")
	if base == "" {
		return "herdbook.yaml" // no home directory; use the working dir
	}
	return filepath.Join(base, "herdbook", "herdbook.yaml")
}

// getDataPath returns the herdbook data directory (database lives here).
func getDataPath() string {
	base := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"), "")
	if base == "" {
		return "data"
	}
	return filepath.Join(base, "herdbook")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: herdbook <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the API server")
		fmt.Println("  init     Create a default config file")
		fmt.Println("  health   Check server health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Backend: %s", cfg.Database.Backend)
	if cfg.Database.Backend == "sqlite" {
		gray.Printf(" (%s)", cfg.Database.Path)
	}
	fmt.Println()
	fmt.Println()

	logger.Info("starting herdbook",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"backend", cfg.Database.Backend,
	)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	authService := auth.New(st, cfg.Sessions.Lifetime)
	srv := server.New(st, authService, cfg.Server.HTTPAddr)
	return srv.Run(ctx)
}

// openStore picks the storage backend once at startup. Every consumer sees
// only the Store interface after this point.
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Database.Backend {
	case "memory":
		return store.NewMemoryStore(cfg.Sessions.SweepInterval), nil
	case "sqlite":
		return store.NewSQLiteStore(cfg.Database.Path)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Database.Backend)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler renders colorized log lines with thread-safe writes. Attrs
// added through WithGroup carry a dotted group prefix.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	prefix string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("debug"),
	slog.LevelInfo:  color.CyanString(" info"),
	slog.LevelWarn:  color.YellowString(" warn"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("error"),
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05.000")))
	buf.WriteByte(' ')
	if tag, ok := levelTags[r.Level]; ok {
		buf.WriteString(tag)
	} else {
		buf.WriteString(r.Level.String())
	}
	buf.WriteString("  ")
	buf.WriteString(r.Message)

	// Stored attrs were prefixed when added; record attrs get the current
	// group prefix.
	for _, a := range h.attrs {
		writeAttr(&buf, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, h.prefix+a.Key, a.Value)
		return true
	})

	buf.WriteByte('\n')
	fmt.Print(buf.String())
	return nil
}

func writeAttr(buf *strings.Builder, key string, v slog.Value) {
	buf.WriteString(color.HiBlackString(" " + key + "="))
	buf.WriteString(v.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &colorHandler{level: h.level, attrs: merged, prefix: h.prefix}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &colorHandler{level: h.level, attrs: h.attrs, prefix: h.prefix + name + "."}
}

// runInit writes a default config file, refusing to overwrite one that exists.
func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "herdbook.db")

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# herdbook configuration
# Generated by herdbook init

server:
  http_addr: "localhost:8080"

database:
  backend: "sqlite"
  path: "%s"

sessions:
  lifetime: "168h"
  sweep_interval: "1h"

logging:
  level: "info"
  format: "text"
`, dbPath)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
