package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"price-history/internal/bot"
	"price-history/internal/cache"
	"price-history/internal/config"
	"price-history/internal/db"
	"price-history/internal/handler"
	"price-history/internal/job"
	"price-history/internal/provider"
	"price-history/internal/repository"
	"price-history/internal/service"
	"price-history/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "price-history/docs"
)

var (
	loadEnvFunc          = godotenv.Load
	loadConfigFunc       = config.Load
	initPostgresFunc     = db.InitPostgres
	initRedisFunc        = cache.InitRedis
	initTracerFunc       = tracing.InitTracer
	newPriceRecordRepo   = repository.NewPriceRecordRepository
	newRateTableRepo     = repository.NewRateTableRepository
	newPricePollerFunc   = job.NewPricePoller
	startPollerFunc      = func(p *job.PricePoller, ctx context.Context) { go p.Start(ctx) }
	startTelegramBotFunc = bot.StartTelegramBot
	newRouterFunc        = gin.Default
	setupSignalNotify    = ossignal.Notify
	waitForSignalFunc    = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc  = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServer   = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Price History API
// @version         1.0
// @description     Rolling price statistics and cross-asset conversion rates.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	recordRepo := newPriceRecordRepo(db.Pool, tracer)
	tableRepo := newRateTableRepo(cache.Client, tracer)
	if db.Pool != nil {
		if err := recordRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	candlesClient := provider.NewCandlesClient(cfg.CandlesServiceURL, cfg.CollaboratorTimeout, tracer)
	assetsClient := provider.NewAssetsClient(cfg.AssetsServiceURL, cfg.CollaboratorTimeout, tracer)
	converterClient := provider.NewConverterClient(cfg.ConverterServiceURL, cfg.CollaboratorTimeout, tracer)

	windowService := service.NewPriceWindowService(tracer, recordRepo, cfg.BrokerID, service.WindowIntervals{
		H24: cfg.H24RefreshInterval,
		D7:  cfg.D7RefreshInterval,
		M1:  cfg.M1RefreshInterval,
		M3:  cfg.M3RefreshInterval,
	})
	rateService := service.NewRateService(tracer, recordRepo, converterClient, tableRepo, cfg.BrokerID, nil)
	priceService := service.NewBasePriceService(tracer, recordRepo, tableRepo, cfg.BrokerID, nil)

	poller := newPricePollerFunc(
		tracer,
		assetsClient,
		candlesClient,
		windowService,
		rateService,
		cfg.BrokerID,
		time.Duration(cfg.PricePollSecs)*time.Second,
	)

	alerts := startTelegramBotFunc(cfg.TelegramBotToken, priceService, priceService, decimal.NewFromFloat(cfg.AlertMoveThresholdPct))
	if alerts != nil {
		poller.AddListener(alerts)
	}

	priceHub := handler.NewPriceHub()
	poller.AddListener(priceHub)

	startPollerFunc(poller, ctx)

	h := handler.New(tracer, priceService, priceHub)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("price-history"))
	r.Use(cors.Default())

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    httpAddrFromEnv(),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServer(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
