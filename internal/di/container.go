package di

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sethvargo/go-retry"
	"go.uber.org/dig"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/artifact-api/internal/auth"
	"github.com/example/artifact-api/internal/classifier"
	"github.com/example/artifact-api/internal/config"
	"github.com/example/artifact-api/internal/grpcserver"
	"github.com/example/artifact-api/internal/handlers"
	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/objectstore"
	"github.com/example/artifact-api/internal/repository"
	"github.com/example/artifact-api/internal/secrets"
	"github.com/example/artifact-api/internal/usecase"
	"github.com/example/artifact-api/internal/vision"
)

// GoogleOptions are the client options shared by every Google API client.
type GoogleOptions []option.ClientOption

// BuildContainer registers every component of the API. Constructors only run
// when something is resolved, so the migrate command never dials Redis or
// Google APIs.
func BuildContainer(ctx context.Context, cfg *config.Config) (*dig.Container, error) {
	container := dig.New()

	providers := []interface{}{
		func() context.Context { return ctx },
		func() *config.Config { return cfg },
		func(cfg *config.Config) (*zap.Logger, error) {
			return logging.NewLogger(cfg.Log.Level)
		},
		openDatabase,
		openRedis,
		func(db *gorm.DB, logger *zap.Logger) *repository.Repository {
			return repository.New(db, logger)
		},
		func(client *redis.Client) usecase.Cache {
			return usecase.NewRedisCache(client)
		},
		newSecretLoader,
		newGoogleOptions,
		newJWTSecret,
		newObjectStore,
		newAnalyzer,
		func(cfg *config.Config) (classifier.Classifier, error) {
			opts, err := cfg.ClassifierOptions()
			if err != nil {
				return nil, err
			}
			return classifier.New(opts)
		},
		func(cfg *config.Config, secret auth.SecretSource) *auth.Issuer {
			return auth.NewIssuer(secret, cfg.JWT.Audience, cfg.JWT.TTL)
		},
		func(cfg *config.Config, repo *repository.Repository, cache usecase.Cache, store objectstore.Store, analyzer vision.Analyzer, c classifier.Classifier, logger *zap.Logger) *usecase.AnalysisUseCase {
			return usecase.NewAnalysisUseCase(repo, cache, store, analyzer, c, cfg.Cache.TTL, logger)
		},
		func(repo *repository.Repository, store objectstore.Store, logger *zap.Logger) *usecase.ItemUseCase {
			return usecase.NewItemUseCase(repo, store, logger)
		},
		func(repo *repository.Repository, store objectstore.Store, logger *zap.Logger) *usecase.PhotoUseCase {
			return usecase.NewPhotoUseCase(repo, store, logger)
		},
		func(repo *repository.Repository, issuer *auth.Issuer, logger *zap.Logger) *usecase.JuryUseCase {
			return usecase.NewJuryUseCase(repo, issuer, logger)
		},
		newRouter,
		newHealthServer,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return nil, err
		}
	}
	return container, nil
}

func connectRetry(attempts uint64) retry.Backoff {
	b := retry.NewFibonacci(500 * time.Millisecond)
	b = retry.WithCappedDuration(10*time.Second, b)
	return retry.WithMaxRetries(attempts, b)
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	err := retry.Do(ctx, connectRetry(cfg.Database.ConnectRetries), func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if err != nil {
			logger.Warn("database not ready, retrying", zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, logging.NewOperationError("di.open_database", "", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, logging.NewOperationError("di.database_handle", "", err)
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	return db, nil
}

func openRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	err := retry.Do(ctx, connectRetry(cfg.Database.ConnectRetries), func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis not ready, retrying", zap.Error(err), zap.String("addr", cfg.Redis.Addr))
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, logging.NewOperationError("di.open_redis", "", err)
	}
	return client, nil
}

// baseGoogleOptions holds credentials configured locally.
func baseGoogleOptions(cfg *config.Config) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.Google.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Google.CredentialsJSON)))
	case cfg.Google.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Google.CredentialsFile))
	}
	if cfg.Google.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.Google.APIKey))
	}
	return opts
}

// newSecretLoader returns nil when no Secret Manager project is configured.
func newSecretLoader(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*secrets.Loader, error) {
	if cfg.Secrets.ProjectID == "" {
		return nil, nil
	}
	return secrets.NewLoader(ctx, cfg.Secrets.ProjectID, logger, baseGoogleOptions(cfg)...)
}

// newGoogleOptions falls back to a service account stored in Secret Manager
// when no credentials are configured locally.
func newGoogleOptions(ctx context.Context, cfg *config.Config, loader *secrets.Loader, logger *zap.Logger) (GoogleOptions, error) {
	opts := baseGoogleOptions(cfg)
	if len(opts) > 0 || loader == nil || cfg.Secrets.CredentialsName == "" {
		return opts, nil
	}
	creds, err := loader.Get(ctx, cfg.Secrets.CredentialsName)
	if err != nil {
		return nil, err
	}
	logger.Info("using Google credentials from Secret Manager", zap.String("secret", cfg.Secrets.CredentialsName))
	return GoogleOptions{option.WithCredentialsJSON([]byte(creds))}, nil
}

func newJWTSecret(ctx context.Context, cfg *config.Config, loader *secrets.Loader) (auth.SecretSource, error) {
	if cfg.JWT.Secret != "" {
		return auth.NewStaticSecret(cfg.JWT.Secret), nil
	}
	if loader == nil || cfg.Secrets.JWTSecretName == "" {
		return nil, auth.ErrMissingSecret
	}
	value, err := loader.Get(ctx, cfg.Secrets.JWTSecretName)
	if err != nil {
		return nil, err
	}
	return auth.NewStaticSecret(value), nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, google GoogleOptions, logger *zap.Logger) (objectstore.Store, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		return objectstore.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL, logger, google...)
	case "s3":
		s3cfg := objectstore.S3Config{
			Bucket:          cfg.Storage.Bucket,
			Region:          cfg.Storage.S3.Region,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			PublicBaseURL:   cfg.Storage.PublicBaseURL,
		}
		client, err := objectstore.NewS3Client(ctx, s3cfg)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3Store(client, s3cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func newAnalyzer(ctx context.Context, cfg *config.Config, google GoogleOptions, logger *zap.Logger) (vision.Analyzer, error) {
	opts := append([]option.ClientOption{}, google...)
	if cfg.Vision.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Vision.Endpoint))
	}
	return vision.NewGoogleAnalyzer(ctx, cfg.Vision.MaxResults, logger, opts...)
}

// RouterDeps collects what the HTTP router needs.
type RouterDeps struct {
	dig.In

	Config   *config.Config
	Logger   *zap.Logger
	Secret   auth.SecretSource
	Analysis *usecase.AnalysisUseCase
	Items    *usecase.ItemUseCase
	Photos   *usecase.PhotoUseCase
	Juries   *usecase.JuryUseCase
}

func newRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), logging.RequestLogger(deps.Logger))
	router.MaxMultipartMemory = deps.Config.Server.MaxUploadSize

	handlers.RegisterRoutes(router, handlers.Services{
		Analysis: deps.Analysis,
		Items:    deps.Items,
		Photos:   deps.Photos,
		Juries:   deps.Juries,
	}, auth.JWTMiddleware(deps.Secret, deps.Config.JWT.Audience), deps.Config.Server.MaxUploadSize, deps.Logger)
	return router
}

func newHealthServer(db *gorm.DB, client *redis.Client, logger *zap.Logger) *grpcserver.Server {
	return grpcserver.New(map[string]grpcserver.Check{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}, 15*time.Second, logger)
}
