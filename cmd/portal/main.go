package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/faciam-dev/formportal/internal/catalog"
	"github.com/faciam-dev/formportal/internal/draft"
	"github.com/faciam-dev/formportal/internal/events"
	"github.com/faciam-dev/formportal/internal/logger"
	"github.com/faciam-dev/formportal/internal/server"
	"github.com/faciam-dev/formportal/internal/session"
	"github.com/faciam-dev/formportal/pkg/client"
	"github.com/faciam-dev/formportal/pkg/formengine"
	"github.com/faciam-dev/formportal/pkg/util"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", util.GetEnv("PORTAL_ADDR", ":8080"), "listen address")
	apiURL := flag.String("api-url", util.GetEnv("PORTAL_API_URL", "http://localhost:9090"), "insurance backend base URL")
	drafts := flag.String("drafts", util.GetEnv("PORTAL_DRAFTS", "memory"), "draft store DSN: memory, redis://..., sqlite://path, mysql://... or postgres://...")
	draftTTL := flag.Duration("draft-ttl", 7*24*time.Hour, "drop drafts untouched for this long (0 keeps them)")
	debounce := flag.Duration("debounce", draft.DefaultDelay, "delay before a changed form is written to its draft")
	tblPrefix := flag.String("table-prefix", util.GetEnv("TABLE_PREFIX", "portal_"), "SQL table prefix")
	catalogPath := flag.String("catalog", util.GetEnv("PORTAL_CATALOG", ""), "insurance catalog YAML file")
	eventsPath := flag.String("events", util.GetEnv("PORTAL_EVENTS", ""), "events sink configuration YAML file")
	idle := flag.Duration("idle", 30*time.Minute, "forget visitor state untouched for this long")
	timeout := flag.Duration("timeout", 10*time.Second, "backend request timeout")
	logFormat := flag.String("log-format", util.GetEnv("LOG_FORMAT", "text"), "log format: text or json")
	logLevel := flag.String("log-level", util.GetEnv("LOG_LEVEL", "info"), "log level")
	openapi := flag.String("openapi", "", "write OpenAPI JSON and exit")
	flag.Parse()

	logger.Set(logger.New(os.Stdout, *logFormat, *logLevel))
	zl, err := logger.Sugared(*logFormat, *logLevel)
	if err != nil {
		logger.L.Error("zap logger", "err", err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()
	formengine.SetLogger(zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := util.DetectDraftBackend(*drafts)
	if err != nil {
		logger.L.Error("detect draft backend", "dsn", *drafts, "err", err)
		os.Exit(1)
	}

	var (
		store draft.Store
		db    *sql.DB
		purge func(context.Context, time.Time) (int64, error)
	)
	switch backend {
	case util.BackendRedis:
		rs, err := draft.NewRedisStore(*drafts, "portal:", *draftTTL)
		if err != nil {
			logger.L.Error("redis drafts", "err", err)
			os.Exit(1)
		}
		defer rs.Close()
		store = rs
	case util.BackendSQLite, util.BackendMySQL, util.BackendPostgres:
		dsn, err := util.DriverDSN(backend, *drafts)
		if err != nil {
			logger.L.Error("draft dsn", "err", err)
			os.Exit(1)
		}
		db, err = sql.Open(backend, dsn)
		if err != nil {
			logger.L.Error("db open", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		ss := &draft.SQLStore{DB: db, Driver: backend, TablePrefix: *tblPrefix}
		if err := ss.Migrate(ctx); err != nil {
			logger.L.Error("migrate drafts", "err", err)
			os.Exit(1)
		}
		store = ss
		purge = ss.Purge
	default:
		store = draft.NewMemoryStore()
	}
	logger.L.Info("draft store", "backend", backend)

	if err := server.InitEvents(ctx, *eventsPath, db, backend, *tblPrefix); err != nil {
		logger.L.Error("events config", "path", *eventsPath, "err", err)
		os.Exit(1)
	}

	cat := catalog.NewStore(*catalogPath, logger.L)
	if err := cat.Load(); err != nil {
		logger.L.Error("load catalog", "path", *catalogPath, "err", err)
		os.Exit(1)
	}
	go cat.Watch(ctx)

	sessions := session.NewManager(store, session.WithDelay(*debounce))
	api := client.New(*apiURL, client.WithLogger(zl), client.WithTimeout(*timeout))

	srv, err := server.New(server.Config{Logger: zl}, api, sessions, cat)
	if err != nil {
		logger.L.Error("build server", "err", err)
		os.Exit(1)
	}

	if *openapi != "" {
		data, err := json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
		if err != nil {
			logger.L.Error("marshal openapi", "err", err)
			os.Exit(1)
		}
		p := filepath.Clean(*openapi)
		if err := os.WriteFile(p, data, 0o600); err != nil {
			logger.L.Error("write openapi", "err", err)
			os.Exit(1)
		}
		return
	}

	sched := gocron.NewScheduler(time.UTC)
	if _, err := sched.Every(5).Minutes().Do(func() { srv.Sweep(*idle) }); err != nil {
		logger.L.Error("schedule visitor sweep", "err", err)
	}
	if purge != nil && *draftTTL > 0 {
		if _, err := sched.Cron("0 3 * * *").Do(func() {
			n, err := purge(context.Background(), time.Now().Add(-*draftTTL))
			if err != nil {
				logger.L.Error("purge drafts", "err", err)
				return
			}
			logger.L.Info("purged drafts", "count", n)
		}); err != nil {
			logger.L.Error("schedule draft purge", "err", err)
		}
	}
	sched.StartAsync()
	defer sched.Stop()

	logger.L.Info("listening", "addr", *addr, "backend", *apiURL)
	hs := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.L.Error("listen", "addr", *addr, "err", err)
		os.Exit(1)
	}
	if err := serve(ctx, hs, ln, 10*time.Second); err != nil {
		logger.L.Error("server error", "err", err)
		os.Exit(1)
	}

	sessions.Close()
	if events.Default != nil {
		events.Default.Wait()
	}
	logger.L.Info("stopped")
}

// serve runs hs on ln until ctx is done. It returns once in-flight requests
// have finished or grace has passed, so callers can flush state afterwards.
func serve(ctx context.Context, hs *http.Server, ln net.Listener, grace time.Duration) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()
		if err := hs.Shutdown(shutdownCtx); err != nil {
			logger.L.Error("shutdown", "err", err)
		}
	}()
	if err := hs.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
