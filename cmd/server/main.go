package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"queryforge/config"
	"queryforge/internal/controller"
	"queryforge/internal/eventbus"
	"queryforge/internal/executor"
	docexecutor "queryforge/internal/executor/doc"
	searchexecutor "queryforge/internal/executor/search"
	"queryforge/internal/history"
	"queryforge/internal/llm"
	"queryforge/internal/model"
	"queryforge/internal/orchestrator"
	"queryforge/internal/retention"
	"queryforge/internal/schema"
	docschema "queryforge/internal/schema/doc"
	searchschema "queryforge/internal/schema/search"
	"queryforge/internal/translator"
	doctranslator "queryforge/internal/translator/doc"
	searchtranslator "queryforge/internal/translator/search"
)

// @title           QueryForge API
// @version         1.0
// @description     Translates natural-language questions into Elasticsearch and MongoDB queries against a field schema learned at startup.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support Team
// @contact.url    http://www.example.com/support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @schemes   http https

// @tag.name         query
// @tag.description  Natural-language query translation and execution

// @tag.name         health
// @tag.description  API health check operations

func main() {
	app := fx.New(
		fx.Provide(
			NewConfig,
			NewGinEngine,
			NewSchemaExtractor,
			NewFieldMap,
			NewTranslator,
			NewExecutor,
			NewLLMClient,
			NewOrchestrator,
			ProvideHistoryStore,
			ProvideEventBusPublisher,
			controller.NewQueryController,
		),
		fx.Invoke(
			RegisterAPIRoutes,
			RegisterRetentionScheduler,
		),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}
	<-app.Done()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStop()
	log.Info().Msg("shutting down application...")
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown due to error or timeout")
	}
}

func NewConfig() (*config.Config, error) {
	return config.NewConfig()
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

// NewSchemaExtractor builds the backend-appropriate Extractor, wrapped in
// the single-writer/multi-reader cache every orchestrator call shares.
func NewSchemaExtractor(cfg *config.Config) (schema.Extractor, error) {
	switch cfg.Backend.Kind {
	case "doc":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		delegate, err := docschema.NewExtractor(ctx, docschema.Config{
			URI:            cfg.Backend.ConnectionURL,
			Database:       cfg.Backend.Database,
			Collection:     cfg.Backend.Collection,
			CategoryFields: cfg.Backend.CategoryFields,
			FieldsToIgnore: cfg.Backend.FieldsToIgnore,
			SampleSize:     cfg.Backend.SampleSize,
		})
		if err != nil {
			return nil, fmt.Errorf("building document schema extractor: %w", err)
		}
		return schema.NewCachedExtractor(delegate), nil
	default:
		delegate, err := searchschema.NewExtractor(searchschema.Config{
			Addresses:      strings.Split(cfg.Backend.ConnectionURL, ","),
			Index:          cfg.Backend.Index,
			CategoryFields: cfg.Backend.CategoryFields,
			FieldsToIgnore: cfg.Backend.FieldsToIgnore,
			BucketSize:     cfg.Backend.BucketSize,
		})
		if err != nil {
			return nil, fmt.Errorf("building search schema extractor: %w", err)
		}
		return schema.NewCachedExtractor(delegate), nil
	}
}

// NewFieldMap forces the cached extractor to warm during application
// startup rather than on the first inbound request, so the translator
// (which needs the FieldMap up front) can be constructed synchronously.
func NewFieldMap(extractor schema.Extractor) (*model.FieldMap, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fm, err := extractor.Extract(ctx)
	if err != nil {
		return nil, fmt.Errorf("warming schema cache: %w", err)
	}
	return fm, nil
}

func NewTranslator(cfg *config.Config, fm *model.FieldMap) translator.Translator {
	switch cfg.Backend.Kind {
	case "doc":
		return doctranslator.NewTranslator(fm)
	default:
		return searchtranslator.NewTranslator(fm, cfg.Backend.BucketSize, cfg.Backend.TopHitsSize)
	}
}

func NewExecutor(cfg *config.Config) (executor.Executor, error) {
	switch cfg.Backend.Kind {
	case "doc":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Backend.ConnectionURL))
		if err != nil {
			return nil, fmt.Errorf("connecting document executor client: %w", err)
		}
		collection := client.Database(cfg.Backend.Database).Collection(cfg.Backend.Collection)
		return docexecutor.NewExecutor(collection), nil
	default:
		client, err := elasticsearch.NewTypedClient(elasticsearch.Config{
			Addresses: strings.Split(cfg.Backend.ConnectionURL, ","),
		})
		if err != nil {
			return nil, fmt.Errorf("connecting search executor client: %w", err)
		}
		return searchexecutor.NewExecutor(client, cfg.Backend.Index), nil
	}
}

func NewLLMClient(cfg *config.Config) llm.Client {
	return llm.NewGeminiClient(cfg.LLM.APIKey, cfg.LLM.Model)
}

// NewOrchestrator threads the configured backend kind through as the label
// orchestrator.New uses on every metric it emits.
func NewOrchestrator(ex schema.Extractor, tr translator.Translator, ex2 executor.Executor, llmClient llm.Client, cfg *config.Config) *orchestrator.Orchestrator {
	return orchestrator.New(ex, tr, ex2, llmClient, cfg.Backend.Kind)
}

// ProvideHistoryStore returns a nil Store (auditing disabled) when no DSN
// is configured, rather than failing application startup over an optional
// collaborator.
func ProvideHistoryStore(lc fx.Lifecycle, cfg *config.Config) (history.Store, error) {
	if cfg.History.DSN == "" {
		log.Warn().Msg("no history DSN configured, call auditing disabled")
		return nil, nil
	}
	return history.ProvideStore(lc, cfg.History.DSN)
}

// ProvideEventBusPublisher mirrors ProvideHistoryStore's optional-collaborator
// pattern for the Kafka-backed event bus.
func ProvideEventBusPublisher(lc fx.Lifecycle, cfg *config.Config) (eventbus.Publisher, error) {
	if len(cfg.EventBus.Brokers) == 0 || cfg.EventBus.Topic == "" {
		log.Warn().Msg("no eventbus brokers/topic configured, call event publishing disabled")
		return nil, nil
	}
	return eventbus.NewKafkaPublisher(lc, cfg.EventBus.Brokers, cfg.EventBus.Topic)
}

func RegisterAPIRoutes(
	lifecycle fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	queryController *controller.QueryController,
) {
	controller.RegisterQueryRoutes(router, queryController)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("starting HTTP server on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error().Err(err).Msg("HTTP server ListenAndServe error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("shutting down HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}

// RegisterRetentionScheduler wires the audit-log pruning cron only when a
// history store is actually configured.
func RegisterRetentionScheduler(lc fx.Lifecycle, cfg *config.Config, store history.Store) {
	if store == nil {
		log.Warn().Msg("history store disabled, skipping retention scheduler")
		return
	}
	retention.NewScheduler(lc, store, cfg.Retention.Schedule, cfg.Retention.MaxAge)
}
