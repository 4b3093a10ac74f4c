package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-market-notify/internal/application/device"
	"github.com/go-market-notify/internal/application/directory"
	"github.com/go-market-notify/internal/application/dispatch"
	"github.com/go-market-notify/internal/application/notification"
	"github.com/go-market-notify/internal/application/preference"
	"github.com/go-market-notify/internal/application/template"
	"github.com/go-market-notify/internal/config"
	"github.com/go-market-notify/internal/domain"
	"github.com/go-market-notify/internal/infrastructure/awsconf"
	"github.com/go-market-notify/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-market-notify/internal/infrastructure/jwt"
	"github.com/go-market-notify/internal/infrastructure/kafka"
	"github.com/go-market-notify/internal/infrastructure/rediscache"
	s3infra "github.com/go-market-notify/internal/infrastructure/s3"
	"github.com/go-market-notify/internal/infrastructure/sns"
	"github.com/go-market-notify/internal/infrastructure/sqlite"
	"github.com/go-market-notify/internal/pkg/eventbus"
	transporthttp "github.com/go-market-notify/internal/transport/http"
	"github.com/go-market-notify/internal/transport/http/handler"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconf.Load(ctx, cfg, "")
	if err != nil {
		log.Fatalf("aws config: %v", err)
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(awsCfg, cfg.AWSEndpointURL)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	deviceRepo := dynamo.NewDeviceRepo(dynamoClient, cfg.DynamoTables.Devices)
	assignmentRepo := dynamo.NewAssignmentRepo(dynamoClient, cfg.DynamoTables.DeliveryAssignments)
	preferenceRepo := dynamo.NewPreferenceRepo(dynamoClient, cfg.DynamoTables.Preferences)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt provider: %v", err)
	}

	health := map[string]handler.Pinger{}

	// Preference cache (optional). A nil interface, not a nil *Cache, disables it.
	var prefCache preference.Cache
	if cfg.RedisAddr != "" {
		cache := rediscache.NewCache(strings.Split(cfg.RedisAddr, ","), cfg.RedisPassword)
		defer cache.Close()
		if err := cache.Ping(ctx); err != nil {
			log.Printf("WARN: redis unreachable, preference cache still enabled: %v", err)
		}
		prefCache = cache
		health["redis"] = cache
	}
	prefSvc := preference.NewService(preferenceRepo, prefCache, cfg.PreferenceCacheTTL)

	var source template.Source = template.NewEmbeddedSource()
	if cfg.TemplateSource == "s3" {
		s3Store := s3infra.NewStore(s3infra.NewClient(awsCfg, cfg.AWSEndpointURL), cfg.S3BucketName)
		source = template.NewS3Source(s3Store, cfg.TemplatePrefix)
	}
	templates := template.NewResolver(source, cfg.TemplateLocales, cfg.DefaultLocale)
	if err := templates.LoadMessages(ctx); err != nil {
		log.Printf("WARN: templates not loaded, retrying on first dispatch: %v", err)
	}

	snsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		log.Fatalf("aws config for sns: %v", err)
	}
	sender := sns.NewPushSender(sns.NewClient(snsCfg, cfg.AWSEndpointURL))

	dir := directory.NewService(userRepo, deviceRepo, assignmentRepo)
	dispatcher := dispatch.NewDispatcher(sender, dir, prefSvc, templates, cfg.DispatchTimeout)

	// Local notification log and the bus that tells open views about changes.
	bus := eventbus.New[domain.StoreEvent]()
	store := sqlite.NewStore(cfg.StorePath, bus)
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		log.Printf("WARN: notification store unavailable, readiness checks retry it: %v", err)
	}
	health["store"] = store

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopic,
			func(ctx context.Context, ev domain.DomainEvent) { dispatcher.Dispatch(ctx, ev) })
		if err != nil {
			log.Fatalf("kafka consumer: %v", err)
		}
		defer consumer.Close()
		go func() {
			log.Printf("Consuming domain events from %s", cfg.KafkaTopic)
			if err := consumer.Run(ctx); err != nil {
				log.Printf("ERROR: kafka consumer stopped: %v", err)
			}
		}()
	}

	deps := &transporthttp.Deps{
		Notifications: notification.NewService(store),
		Devices:       device.NewService(deviceRepo),
		Dispatcher:    dispatcher,
		Preferences:   prefSvc,
		Assignments:   assignmentRepo,
		Users:         userRepo,
		Templates:     templates,
		Events:        bus,
		Verifier:      jwtProvider,
		Health:        health,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.AppPort),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset: the notification stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
