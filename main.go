package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/config"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/event"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/generator"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/handlers"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/kv"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/session"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/topics"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	gin.SetMode(cfg.GinMode)

	store, err := newStore(cfg)
	if err != nil {
		log.Fatalw("failed to initialize storage", "backend", cfg.StorageBackend, "error", err)
	}
	defer store.Close(context.Background())
	log.Infow("storage initialized", "backend", cfg.StorageBackend)

	// RabbitMQ event publisher (optional)
	var publisher *event.Publisher
	if cfg.RabbitMQURI != "" && cfg.RabbitMQExchange != "" {
		publisher, err = event.NewPublisher(cfg.RabbitMQURI, cfg.RabbitMQExchange, log)
		if err != nil {
			log.Fatalw("failed to connect to RabbitMQ", "error", err)
		}
		defer publisher.Close()
	} else {
		log.Infow("RabbitMQ not configured, events will not be published")
	}

	gen := generator.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, log)
	tracker := topics.NewTracker(store, log)
	sessions := session.NewService(store, log)
	quizHandler := handlers.NewQuizHandler(sessions, gen, tracker, store, log)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Content-Type"},
	}))

	setupRoutes(r, quizHandler, publisher)

	log.Infow("starting quiz service", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalw("server failed", "error", err)
	}
}

func newStore(cfg *config.Config) (kv.Store, error) {
	switch cfg.StorageBackend {
	case "redis":
		return kv.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "mongo":
		return kv.NewMongoStore(cfg.MongoURI, cfg.MongoDatabase)
	case "memory":
		return kv.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func setupRoutes(r *gin.Engine, quizHandler *handlers.QuizHandler, publisher *event.Publisher) {
	api := r.Group("/api")
	{
		api.GET("/health", quizHandler.Health)
		api.GET("/popular-topics", quizHandler.GetPopularTopics)

		api.POST("/generate-quiz", func(c *gin.Context) {
			quizHandler.GenerateQuiz(c)
			if publisher != nil {
				publisher.Publish("quiz.session.created", gin.H{
					"timestamp": time.Now(),
				})
			}
		})

		quiz := api.Group("/quiz")
		{
			quiz.GET("/:sessionId", quizHandler.GetSession)

			quiz.POST("/:sessionId/answer", func(c *gin.Context) {
				quizHandler.SubmitAnswer(c)
				if publisher != nil {
					publisher.Publish("quiz.answer.submitted", gin.H{
						"session_id": c.Param("sessionId"),
						"timestamp":  time.Now(),
					})
				}
			})

			quiz.POST("/:sessionId/next", func(c *gin.Context) {
				quizHandler.NextQuestion(c)
				if publisher != nil {
					publisher.Publish("quiz.question.requested", gin.H{
						"session_id": c.Param("sessionId"),
						"timestamp":  time.Now(),
					})
				}
			})
		}
	}

	// Anything else gets the plain-text banner, status 200.
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "AI Quiz App API")
	})
}
