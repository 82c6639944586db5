package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alertapp "solarwatch/internal/alerts/application"
	alertmemory "solarwatch/internal/alerts/infrastructure/memory"
	alertpostgres "solarwatch/internal/alerts/infrastructure/postgres"
	alerthttp "solarwatch/internal/alerts/interfaces/http"
	alertnotify "solarwatch/internal/alerts/notify"
	"solarwatch/internal/auth"
	"solarwatch/internal/fusionsolar"
	"solarwatch/internal/observability/metrics"
	readingsapp "solarwatch/internal/readings/application"
	readingshttp "solarwatch/internal/readings/interfaces/http"
	"solarwatch/internal/readings/simulator"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	var db *sql.DB
	var repo alertapp.Repository
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		repo = alertpostgres.NewAlertRepository(db)
	} else {
		logger.Printf("no DATABASE_URL set, alerts stored in memory")
		repo = alertmemory.NewAlertRepository()
	}

	metrics.Init(db, logger)

	store, err := alertapp.NewWatchedStore(repo, logger)
	if err != nil {
		logger.Fatalf("alert store error: %v", err)
	}

	notifiers := []alertapp.AlertNotifier{}
	if cfg.AlertWebhookURL != "" {
		channel, err := alertnotify.NewWebhookChannel(cfg.AlertWebhookURL)
		if err != nil {
			logger.Fatalf("alert webhook error: %v", err)
		}
		tpl, err := alertnotify.NewTemplate(cfg.AlertNotifyTemplate)
		if err != nil {
			logger.Fatalf("alert template error: %v", err)
		}
		notifier, err := alertnotify.NewNotifier(channel, tpl,
			alertnotify.WithLogger(logger),
			alertnotify.WithRequestTimeout(cfg.AlertNotifyTimeout),
		)
		if err != nil {
			logger.Fatalf("alert notifier error: %v", err)
		}
		notifiers = append(notifiers, notifier)
	}

	tracker, err := alertapp.NewTracker(store,
		alertapp.WithNotifier(alertnotify.NewMultiNotifier(notifiers...)),
		alertapp.WithLogger(logger),
	)
	if err != nil {
		logger.Fatalf("alert tracker error: %v", err)
	}
	if err := tracker.Init(context.Background()); err != nil {
		logger.Fatalf("alert tracker init error: %v", err)
	}
	store.Subscribe(tracker.HandleChange)

	broker := alerthttp.NewSSEBroker()
	store.Subscribe(broker.HandleChange)

	readingsCfg, err := readingsapp.LoadConfig()
	if err != nil {
		logger.Fatalf("readings config error: %v", err)
	}
	window := readingsapp.NewWindow(readingsCfg.WindowSize)

	var source readingsapp.Source
	switch readingsCfg.Mode {
	case readingsapp.ModeFusionSolar:
		client, err := fusionsolar.NewClient(
			readingsCfg.FusionSolar.BaseURL,
			readingsCfg.FusionSolar.Username,
			readingsCfg.FusionSolar.Password,
		)
		if err != nil {
			logger.Fatalf("fusionsolar client error: %v", err)
		}
		source, err = fusionsolar.NewSource(client, readingsCfg.FusionSolar.StationCode, logger)
		if err != nil {
			logger.Fatalf("fusionsolar source error: %v", err)
		}
	default:
		simOpts := []simulator.Option{
			simulator.WithLowProbability(readingsCfg.Simulator.LowProbability),
		}
		if readingsCfg.Simulator.Seed != 0 {
			simOpts = append(simOpts, simulator.WithSeed(readingsCfg.Simulator.Seed))
		}
		source = simulator.New(simOpts...)
	}

	sampler, err := readingsapp.NewSampler(source, tracker, window,
		time.Duration(readingsCfg.IntervalSeconds)*time.Second, logger)
	if err != nil {
		logger.Fatalf("sampler error: %v", err)
	}
	go sampler.Run(context.Background())

	alertHandler, err := alerthttp.NewHandler(store)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	exportHandler, err := alerthttp.NewExportHandler(store)
	if err != nil {
		logger.Fatalf("export handler error: %v", err)
	}
	readingsHandler := readingshttp.NewHandler(window, logger)

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/active", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/exports/", exportHandler)
	mux.HandleFunc("/api/v1/readings/latest", readingsHandler.Latest)
	mux.HandleFunc("/api/v1/readings/recent", readingsHandler.Recent)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL         string
	HTTPAddr            string
	JWTSecret           string
	AlertWebhookURL     string
	AlertNotifyTemplate string
	AlertNotifyTimeout  time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:         getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:           getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AlertWebhookURL:     getenvDefault("ALERT_WEBHOOK_URL", ""),
		AlertNotifyTemplate: getenvDefault("ALERT_NOTIFY_TEMPLATE", ""),
		AlertNotifyTimeout:  getenvDuration("ALERT_NOTIFY_TIMEOUT", 5*time.Second),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush lets the event stream write through the logging wrapper.
func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
