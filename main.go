package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wabaconnect/cache"
	"wabaconnect/config"
	"wabaconnect/controllers"
	"wabaconnect/db"
	"wabaconnect/events"
	"wabaconnect/logging"
	"wabaconnect/monitoring"
	"wabaconnect/provider"
	"wabaconnect/router"
	"wabaconnect/tools"
	"wabaconnect/whatsapp"
	"wabaconnect/workers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	issueToken := flag.Int64("issue-token", 0, "print a development bearer token for the given tenant id and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *issueToken > 0 {
		token, err := controllers.IssueTenantToken(cfg.Security.JwtSecret, *issueToken, 24*time.Hour)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	logger, err := logging.NewLogger(logging.Config{Component: "api", Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg config.Configuration, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.TestMode.Validate(); err != nil {
		logger.Warn("test mode unavailable", zap.Error(err))
	}

	monitoring.InitMetrics(logger)

	database, err := db.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	rdb := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessions := cache.NewSessionStore(rdb)
	defer sessions.Close()

	var publisher whatsapp.Publisher = events.NewLogPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger), logger)
		defer kp.Close()
		publisher = kp
		logger.Info("kafka publisher initialized",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	graph := provider.NewGraph(tools.GraphClient{
		BaseURL:     cfg.WhatsApp.GraphBaseURL,
		AccessToken: cfg.WhatsApp.SystemUserToken,
		ApiVersion:  cfg.WhatsApp.ApiVersion,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
	}, cfg.WhatsApp.AppID+"|"+cfg.WhatsApp.AppSecret, logger.Named("graph"))

	queue := db.NewRefreshQueue(database)
	svc := whatsapp.NewService(whatsapp.Deps{
		Store:     db.NewTenantStore(database),
		Links:     graph,
		Status:    graph,
		Refreshes: queue,
		Sessions:  sessions,
		Events:    publisher,
		Logger:    logger.Named("workflow"),
	}, whatsapp.Settings{
		Provider: cfg.WhatsApp.Provider,
		Signup: whatsapp.SignupSettings{
			BaseURL:     cfg.WhatsApp.SignupBaseURL,
			RedirectURI: cfg.WhatsApp.RedirectURI,
			AppID:       cfg.WhatsApp.AppID,
			ConfigID:    cfg.WhatsApp.ConfigID,
			PopupWidth:  cfg.WhatsApp.PopupWidth,
			PopupHeight: cfg.WhatsApp.PopupHeight,
		},
		Origins: whatsapp.OriginPolicy{
			Own:     cfg.PublicOrigin,
			Trusted: cfg.WhatsApp.TrustedOrigins,
		},
		TestMode: cfg.TestMode,
	})

	controllers.SetConfigurations(cfg)
	controllers.SetLogger(logger.Named("http"))

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	r.Use(controllers.SetWorkflowToContext(svc, sessions))
	router.Initialize(r, cfg, logger)

	apiServer := &http.Server{
		Addr:              ":" + cfg.ApiPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.MetricsPort,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	processor := workers.NewStatusRefreshProcessor(queue, svc, logger.Named("refresh-worker"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", apiServer.Addr))
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", metricsServer.Addr))
		return serve(metricsServer)
	})
	g.Go(func() error {
		return processor.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
