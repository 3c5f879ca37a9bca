package router

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/media"
	"app/internal/middleware"
	"app/internal/realtime"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Resources holds the long-lived clients the router wires up. main owns
// their lifecycle.
type Resources struct {
	Pool      *pgxpool.Pool
	Publisher *realtime.PubSubPublisher
	Listener  *realtime.Listener
}

// Close releases every resource. Safe to call with partially initialized
// fields.
func (r *Resources) Close() {
	if r.Listener != nil {
		_ = r.Listener.Close()
	}
	if r.Publisher != nil {
		_ = r.Publisher.Close()
	}
	if r.Pool != nil {
		r.Pool.Close()
	}
}

func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *Resources, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initialized")

	res := &Resources{}

	// 1. Open DB connection pool
	pool, err := pgxpool.New(ctx, normalizeDSN(cfg))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")
	res.Pool = pool

	// 2. Initialize S3 uploader
	uploader, err := storage.NewS3Uploader(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create S3 uploader")
		res.Close()
		return nil, nil, err
	}

	// 3. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 4. Initialize the change-event bus and in-process hub
	publisher, err := realtime.NewPublisher(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
		res.Close()
		return nil, nil, err
	}
	res.Publisher = publisher

	hub := realtime.NewHub()
	listener, err := realtime.NewListener(ctx, cfg, hub, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create Pub/Sub listener")
		res.Close()
		return nil, nil, err
	}
	res.Listener = listener

	// 5. Initialize repositories & services & handlers
	userRepo := repository.NewUserRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	creditRepo := repository.NewCreditRepo(pool)
	generationRepo := repository.NewGenerationRepo(pool)

	creditSvc := service.NewCreditService(creditRepo, publisher, logger)
	authSvc := service.NewAuthService(userRepo, sessionRepo, creditSvc, cfg, logger)
	userSvc := service.NewUserService(userRepo, logger)
	stripeSvc := service.NewStripeService(cfg, creditSvc, logger)
	webhookClient := service.NewWebhookClient(cfg.WebhookURL, cfg.WebhookAuthToken, logger)
	mediaValidator := media.NewValidator(cfg.MaxVideoDurationSec)
	generationSvc := service.NewGenerationService(
		generationRepo,
		creditSvc,
		mediaValidator,
		uploader,
		webhookClient,
		publisher,
		time.Duration(cfg.WebhookTimeoutMin)*time.Minute,
		logger,
	)

	authHandler := handler.NewAuthHandler(authSvc, validate, cfg.AppOriginURL, logger)
	userHandler := handler.NewUserHandler(userSvc, validate, logger)
	creditHandler := handler.NewCreditHandler(creditSvc, stripeSvc, validate, logger)
	generationHandler := handler.NewGenerationHandler(generationSvc, logger)
	eventsHandler := handler.NewEventsHandler(hub, logger)

	// 6. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	// 7. Create ServeMux router
	mux := http.NewServeMux()

	apiV1Mux := http.NewServeMux()
	authHandler.RegisterRoutes(apiV1Mux)
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	creditHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	generationHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	eventsHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Stripe signs its requests; no bearer token on this route.
	mux.HandleFunc("/webhooks/stripe", stripeSvc.HandleWebhook)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// 8. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.AppOriginURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), res, nil
}

// normalizeDSN adjusts the connection string for the environment: local
// development disables SSL, everything else runs behind a transaction pooler
// and needs the simple query protocol.
func normalizeDSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		dsn += dsnSeparator(dsn) + "sslmode=disable"
	}
	if cfg.Environment != "development" && !strings.Contains(dsn, "default_query_exec_mode") {
		dsn += dsnSeparator(dsn) + "default_query_exec_mode=simple_protocol"
	}
	return dsn
}

func dsnSeparator(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return "&"
		}
		return "?"
	}
	return " "
}
