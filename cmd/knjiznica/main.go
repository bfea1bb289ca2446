package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/erazemk/knjiznica/internal/api"
	"github.com/erazemk/knjiznica/internal/bootstrap"
	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/library"
	"github.com/erazemk/knjiznica/internal/store"
)

// purgeInterval is how often expired revoked tokens are removed.
const purgeInterval = time.Hour

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger sends INFO/WARN to stdout and ERROR to stderr, and every level
// to logPath as well when it is set. The returned cleanup closes the file.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()
	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	slog.SetDefault(slog.New(&levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}))
	return cleanup, nil
}

// envOr returns the environment variable key, or fallback when it is unset.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func main() {
	// A .env file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "error: reading .env: %v\n", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("knjiznica", flag.ContinueOnError)

	defaultDB := envOr("KNJIZNICA_DB", "knjiznica.sqlite3")
	var dbPath string
	fs.StringVar(&dbPath, "db", defaultDB, "")
	fs.StringVar(&dbPath, "d", defaultDB, "")

	defaultAddr := envOr("KNJIZNICA_ADDR", ":8080")
	var addr string
	fs.StringVar(&addr, "addr", defaultAddr, "")
	fs.StringVar(&addr, "a", defaultAddr, "")

	defaultAdmin := envOr("KNJIZNICA_ADMIN", "admin")
	var adminUser string
	fs.StringVar(&adminUser, "user", defaultAdmin, "")
	fs.StringVar(&adminUser, "u", defaultAdmin, "")

	defaultLog := envOr("KNJIZNICA_LOG", "")
	var logPath string
	fs.StringVar(&logPath, "log", defaultLog, "")
	fs.StringVar(&logPath, "l", defaultLog, "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: knjiznica [flags]

Flags:
  -d, -db <path>          SQLite database path (default: knjiznica.sqlite3, env KNJIZNICA_DB)
  -a, -addr <host:port>   listen address (default: :8080, env KNJIZNICA_ADDR)
  -u, -user <name>        admin username on first run (default: admin, env KNJIZNICA_ADMIN)
  -l, -log <path>         log file path (default: stdout/stderr only, env KNJIZNICA_LOG)
  -h, -help               show this help and exit

Variables are also read from a .env file in the working directory.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	closeLog, err := setupLogger(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := bootstrap.InitDatabase(ctx, dbPath, adminUser)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		bootstrap.PrintInitResult(dbPath, adminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready", "path", dbPath)

	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		slog.Error("failed to get JWT secret", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(library.New(database), jwtSecret),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(purgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				n, err := store.PurgeRevokedTokens(ctx, database, now)
				if err != nil {
					slog.Error("purging revoked tokens", "error", err)
					continue
				}
				if n > 0 {
					slog.Info("purged revoked tokens", "count", n)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}
