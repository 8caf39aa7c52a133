package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/generator"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/kv"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/session"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/topics"
)

const (
	defaultDifficulty    = "medium"
	defaultQuestionCount = 5
)

type QuizHandler struct {
	Sessions  *session.Service
	Generator *generator.Generator
	Topics    *topics.Tracker
	Store     kv.Store
	Log       *logger.Logger
}

func NewQuizHandler(sessions *session.Service, gen *generator.Generator, tracker *topics.Tracker, store kv.Store, log *logger.Logger) *QuizHandler {
	return &QuizHandler{
		Sessions:  sessions,
		Generator: gen,
		Topics:    tracker,
		Store:     store,
		Log:       log,
	}
}

// Health reports service liveness and store reachability.
func (h *QuizHandler) Health(c *gin.Context) {
	storage := "ok"
	if _, err := h.Store.Get(c.Request.Context(), "health:ping"); err != nil && !errors.Is(err, kv.ErrNotFound) {
		storage = "error"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ai-quiz-app",
		"storage": storage,
	})
}

// GetPopularTopics returns the top tracked topics, or the defaults when
// nothing has been tracked yet.
func (h *QuizHandler) GetPopularTopics(c *gin.Context) {
	list, err := h.Topics.List(c.Request.Context())
	if err != nil {
		h.Log.Errorw("failed to list popular topics", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get popular topics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": list})
}

// GenerateQuiz creates a session from freshly generated questions. The
// generator degrades to a fallback question on upstream failure, so this
// only errors when the store write fails.
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	var req struct {
		Topic         string `json:"topic"`
		Difficulty    string `json:"difficulty"`
		QuestionCount int    `json:"questionCount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Topic is required"})
		return
	}
	if req.Difficulty == "" {
		req.Difficulty = defaultDifficulty
	}
	if req.QuestionCount <= 0 {
		req.QuestionCount = defaultQuestionCount
	}

	ctx := c.Request.Context()
	questions := h.Generator.Generate(ctx, req.Topic, req.Difficulty, req.QuestionCount)

	sess, err := h.Sessions.Create(ctx, req.Topic, req.Difficulty, questions)
	if err != nil {
		h.Log.Errorw("failed to create session", "topic", req.Topic, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate quiz"})
		return
	}

	// Tracker write must not be cut short by the response completing.
	h.Topics.Record(context.Background(), req.Topic)

	c.JSON(http.StatusOK, gin.H{
		"sessionId":       sess.SessionID,
		"topic":           sess.Topic,
		"difficulty":      sess.Difficulty,
		"totalQuestions":  sess.TotalQuestions,
		"currentQuestion": 1,
		"questions":       sess.Questions,
	})
}

// GetSession returns the full session with the current question and
// derived progress.
func (h *QuizHandler) GetSession(c *gin.Context) {
	status, err := h.Sessions.Status(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// SubmitAnswer checks the answer against the current question and records
// it. The session does not advance until the client calls next.
func (h *QuizHandler) SubmitAnswer(c *gin.Context) {
	var req struct {
		Answer *int `json:"answer"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Answer == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer is required"})
		return
	}

	result, err := h.Sessions.SubmitAnswer(c.Request.Context(), c.Param("sessionId"), *req.Answer)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// NextQuestion advances the session, returning either the next question or
// the terminal summary.
func (h *QuizHandler) NextQuestion(c *gin.Context) {
	result, err := h.Sessions.Advance(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if result.Summary != nil {
		c.JSON(http.StatusOK, result.Summary)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"question": result.Question,
		"progress": result.Progress,
	})
}

func (h *QuizHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrQuizCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Quiz already completed"})
	case errors.Is(err, session.ErrNoCurrentQuestion):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No current question"})
	default:
		h.Log.Errorw("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
