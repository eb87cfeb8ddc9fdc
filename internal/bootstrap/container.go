package bootstrap

import (
	"context"
	"log"
	"time"

	"bizinsight-be/internal/config"
	"bizinsight-be/internal/constant"
	"bizinsight-be/internal/controller"
	"bizinsight-be/internal/pkg/logger"
	"bizinsight-be/internal/pkg/serverutils"
	"bizinsight-be/internal/repository/memory"
	"bizinsight-be/internal/repository/unitofwork"
	"bizinsight-be/internal/service"
	"bizinsight-be/internal/websocket"
	"bizinsight-be/pkg/events"
	"bizinsight-be/pkg/insight/classifier"
	"bizinsight-be/pkg/insight/executor"
	"bizinsight-be/pkg/insight/response"
	"bizinsight-be/pkg/insight/schema"
	"bizinsight-be/pkg/insight/sqlgen"
	"bizinsight-be/pkg/insight/validator"
	"bizinsight-be/pkg/llm"
	"bizinsight-be/pkg/llm/factory"
	"bizinsight-be/pkg/lock"
	"bizinsight-be/pkg/metrics"

	pktNats "bizinsight-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const turnLockTTL = time.Minute

type Container struct {
	// Controllers
	InsightController controller.IInsightController

	// Services
	InsightService      service.IInsightService
	ConversationService service.IConversationService

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	WebSocketHub    *websocket.Hub

	Metrics *metrics.Metrics
	Logger  logger.ILogger

	closers []func()
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	appMetrics := metrics.NewMetrics()
	c := &Container{Metrics: appMetrics, Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS is optional: completed-turn events are still pushed to sockets without it.
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	} else {
		c.closers = append(c.closers, natsPub.Close)
	}

	// Redis backs the turn lock and the socket fan-out across instances.
	var rdb redis.UniversalClient
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-process turn locks", err)
		client.Close()
	} else {
		rdb = client
		c.closers = append(c.closers, func() { client.Close() })
	}
	cancel()

	var locker lock.TurnLocker = lock.NewMemoryLocker()
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, "insight:turn:", turnLockTTL)
	}

	// WebSocket Hub
	c.WebSocketHub = websocket.NewHub(rdb, sysLogger)

	// 4. LLM
	llmProvider, err := factory.NewLLMProvider(factory.ProviderConfig{
		Provider:      cfg.Ai.LLMProvider,
		Model:         cfg.Ai.GeneratorModel,
		APIKey:        cfg.Keys.OpenAI,
		BaseURL:       cfg.Ai.LLMBaseURL,
		OllamaBaseURL: cfg.Ai.OllamaBaseURL,
		Timeout:       time.Duration(cfg.Ai.RequestTimeout) * time.Second,
	})
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", llmProvider.Name(), cfg.Ai.GeneratorModel)

	// 5. Insight Pipeline
	var introspector schema.Introspector = schema.NewSchemaIntrospector(
		schema.NewPostgresCatalog(db, "public"),
		cfg.Insight.SchemaKeywords,
		cfg.Insight.SampleRows,
		sysLogger,
	)
	if cfg.Insight.SchemaCacheTTL > 0 {
		ttl := time.Duration(cfg.Insight.SchemaCacheTTL) * time.Second
		introspector = schema.NewCachedIntrospector(introspector, memory.NewSchemaCacheRepository(ttl), ttl)
	}

	pipeline := service.InsightPipeline{
		Classifier:   classifier.NewPromptClassifier(llmProvider, cfg.Ai.ClassifierModel, sysLogger),
		Introspector: introspector,
		Generator:    sqlgen.NewSQLGenerator(llmProvider, cfg.Ai.GeneratorModel, sysLogger),
		Validator:    validator.NewSQLValidator(validator.NewGormPlanner(db), sysLogger),
		Executor: executor.NewQueryExecutor(
			executor.NewGormRunner(db),
			time.Duration(cfg.Insight.QueryTimeout)*time.Second,
			constant.MaxSQLResultRows,
			sysLogger,
		),
		Synthesizer: response.NewResponseSynthesizer(llmProvider, cfg.Ai.SynthesizerModel, sysLogger),
	}

	// 6. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Insight.EventTopic)

	var forwarder events.Fanout
	if natsPub != nil {
		forwarder = append(forwarder, natsPub)
	}
	forwarder = append(forwarder, c.WebSocketHub)
	c.ConsumerService = service.NewConsumerService(pubSub, cfg.Insight.EventTopic, forwarder, sysLogger)

	c.ConversationService = service.NewConversationService(uowFactory, sysLogger)
	c.InsightService = service.NewInsightService(
		uowFactory,
		pipeline,
		llm.DefaultPricing(),
		locker,
		publisherService,
		appMetrics,
		sysLogger,
		time.Duration(cfg.Insight.SuggestionWordDelay)*time.Millisecond,
	)

	// 7. Controllers
	c.InsightController = controller.NewInsightController(
		c.InsightService,
		c.ConversationService,
		c.WebSocketHub,
		serverutils.NewJwtMiddleware(cfg.App.JwtSecret),
		sysLogger,
	)

	c.closers = append(c.closers, func() { pubSub.Close() })
	return c
}

// Close releases broker and cache connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.Logger.Sync()
}
