package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/oprema/internal/api"
	"github.com/erazemk/oprema/internal/config"
	"github.com/erazemk/oprema/internal/db"
	"github.com/erazemk/oprema/internal/events"
	"github.com/erazemk/oprema/internal/model"
	"github.com/erazemk/oprema/internal/store"
)

type options struct {
	configPath string
	dbPath     string
	addr       string
	adminUser  string
	logPath    string
	publicURL  string
	sample     string
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("oprema", flag.ContinueOnError)
	opts := &options{}

	fs.StringVar(&opts.configPath, "config", "", "")
	fs.StringVar(&opts.configPath, "c", "", "")
	fs.StringVar(&opts.dbPath, "db", "", "")
	fs.StringVar(&opts.dbPath, "d", "", "")
	fs.StringVar(&opts.addr, "addr", "", "")
	fs.StringVar(&opts.addr, "a", "", "")
	fs.StringVar(&opts.adminUser, "user", "", "")
	fs.StringVar(&opts.adminUser, "u", "", "")
	fs.StringVar(&opts.logPath, "log", "", "")
	fs.StringVar(&opts.logPath, "l", "", "")
	fs.StringVar(&opts.publicURL, "url", "", "")
	fs.StringVar(&opts.sample, "sample-config", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: oprema [flags]

Flags:
  -c, -config <path>      config file (default: ~/.config/oprema/config.toml or ./oprema.toml)
  -d, -db <path>          SQLite database path (default: oprema.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -url <url>              public base URL printed into QR labels
  -sample-config <path>   write a sample config file and exit
  -h, -help               show this help and exit

Environment: OPREMA_CONFIG, OPREMA_DB, OPREMA_ADDR, OPREMA_ADMIN, OPREMA_LOG, OPREMA_URL.
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return opts, nil
}

// apply overrides configuration with flags given on the command line.
func (o *options) apply(cfg *config.Config) error {
	for target, value := range map[*string]string{
		&cfg.Server.DBPath:    o.dbPath,
		&cfg.Server.Addr:      o.addr,
		&cfg.Server.AdminUser: o.adminUser,
		&cfg.Server.LogPath:   o.logPath,
		&cfg.Server.PublicURL: o.publicURL,
	} {
		if value != "" {
			*target = value
		}
	}
	return cfg.Validate()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if opts.sample != "" {
		if err := config.CreateSample(opts.sample); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample config written to %s\n", opts.sample)
		return
	}

	cfg, cfgPath, cfgExists, err := config.Load(opts.configPath)
	if err == nil {
		err = opts.apply(cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Server.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if cfgExists {
		slog.Info("config loaded", "path", cfgPath)
	}

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	dbPath := cfg.Server.DBPath

	// One server per database file.
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("database %s is in use by another server", dbPath)
	}
	defer lock.Unlock()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		database, password, err := initDatabase(dbPath, cfg.Server.AdminUser)
		if err != nil {
			return fmt.Errorf("initializing database: %w", err)
		}
		database.Close()

		printInitResult(dbPath, cfg.Server.AdminUser, password)
		fmt.Println()
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	slog.Info("database ready", "path", dbPath)

	ctx := context.Background()
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("loading JWT secret: %w", err)
	}
	if err := store.SetSetting(ctx, database, store.SettingLabelBase, cfg.Server.PublicURL); err != nil {
		return fmt.Errorf("storing label base URL: %w", err)
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	hub := events.NewHub()
	go hub.Run(hubCtx)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, jwtSecret, hub)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		stopHub()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr, "label_base", cfg.Server.PublicURL)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	slog.Info("server stopped, closing database")
	return nil
}

// initDatabase creates a new database with its schema and an admin account.
// A half-created file is removed on failure.
func initDatabase(path, adminUsername string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}
	fail := func(err error) (*sql.DB, string, error) {
		database.Close()
		os.Remove(path)
		return nil, "", err
	}

	if err := db.EnsureSchema(database); err != nil {
		return fail(fmt.Errorf("ensuring schema: %w", err))
	}

	password, err := generatePassword(16)
	if err != nil {
		return fail(fmt.Errorf("generating password: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fail(fmt.Errorf("hashing password: %w", err))
	}

	if _, err := store.CreateUser(context.Background(), database, adminUsername, "", string(hash), model.RoleAdmin); err != nil {
		return fail(fmt.Errorf("creating admin user: %w", err))
	}

	return database, password, nil
}

func printInitResult(dbPath, username, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println()
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password now, it cannot be recovered.")
	fmt.Println("Log in and change it with PUT /api/auth/password.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
