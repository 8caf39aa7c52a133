package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/generator"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/kv"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/session"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/topics"
)

// newTestRouter wires the handler into a gin engine with the same routes
// main registers. llmURL points the generator at a stub (or nothing, in
// which case every generation falls back).
func newTestRouter(llmURL string) *gin.Engine {
	gin.SetMode(gin.TestMode)

	store := kv.NewMemoryStore()
	log := logger.NewNop()
	h := NewQuizHandler(
		session.NewService(store, log),
		generator.New(llmURL, "", "test-model", log),
		topics.NewTracker(store, log),
		store,
		log,
	)

	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/popular-topics", h.GetPopularTopics)
		api.POST("/generate-quiz", h.GenerateQuiz)
		quiz := api.Group("/quiz")
		{
			quiz.GET("/:sessionId", h.GetSession)
			quiz.POST("/:sessionId/answer", h.SubmitAnswer)
			quiz.POST("/:sessionId/next", h.NextQuestion)
		}
	}
	r.NoRoute(func(c *gin.Context) {
		c.String(http.StatusOK, "AI Quiz App API")
	})
	return r
}

// twoQuestionLLM serves a fixed two-question quiz with correct answers at
// indexes 0 and 1.
func twoQuestionLLM(t *testing.T) *httptest.Server {
	t.Helper()
	content := `{"questions": [
		{"id": 1, "question": "First?", "options": ["a","b","c","d"], "correctAnswer": 0, "explanation": "first"},
		{"id": 2, "question": "Second?", "options": ["a","b","c","d"], "correctAnswer": 1, "explanation": "second"}
	]}`
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	if len(w.Body.Bytes()) > 0 && json.Unmarshal(w.Body.Bytes(), &parsed) != nil {
		parsed = nil
	}
	return w, parsed
}

func TestGenerateQuizRequiresTopic(t *testing.T) {
	r := newTestRouter("http://127.0.0.1:0")

	w, body := doJSON(t, r, http.MethodPost, "/api/generate-quiz", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "Topic is required" {
		t.Errorf("error = %v, want %q", body["error"], "Topic is required")
	}
}

func TestGenerateQuizSucceedsOnFallback(t *testing.T) {
	// Generator points at a dead endpoint; creation must still succeed
	// with the single fallback question.
	r := newTestRouter("http://127.0.0.1:0")

	w, body := doJSON(t, r, http.MethodPost, "/api/generate-quiz", map[string]interface{}{
		"topic": "Kubernetes",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	if body["sessionId"] == "" || body["sessionId"] == nil {
		t.Error("expected a sessionId")
	}
	if body["difficulty"] != "medium" {
		t.Errorf("difficulty = %v, want default medium", body["difficulty"])
	}
	if body["totalQuestions"] != float64(1) {
		t.Errorf("totalQuestions = %v, want 1 (fallback)", body["totalQuestions"])
	}
	questions, ok := body["questions"].([]interface{})
	if !ok || len(questions) != 1 {
		t.Fatalf("expected one fallback question, got %v", body["questions"])
	}
	q := questions[0].(map[string]interface{})
	if q["correctAnswer"] != float64(0) {
		t.Errorf("fallback correctAnswer = %v, want 0", q["correctAnswer"])
	}
	if opts, ok := q["options"].([]interface{}); !ok || len(opts) != 4 {
		t.Errorf("fallback options = %v, want 4 placeholders", q["options"])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	r := newTestRouter("http://127.0.0.1:0")

	w, body := doJSON(t, r, http.MethodGet, "/api/quiz/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body["error"] != "Session not found" {
		t.Errorf("error = %v, want %q", body["error"], "Session not found")
	}
}

func TestSubmitAnswerRequiresAnswer(t *testing.T) {
	r := newTestRouter("http://127.0.0.1:0")

	w, body := doJSON(t, r, http.MethodPost, "/api/quiz/any/answer", map[string]interface{}{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body["error"] != "Answer is required" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestFullQuizFlowOverHTTP(t *testing.T) {
	llm := twoQuestionLLM(t)
	defer llm.Close()
	r := newTestRouter(llm.URL)

	// Generate.
	w, body := doJSON(t, r, http.MethodPost, "/api/generate-quiz", map[string]interface{}{
		"topic":         "Networking",
		"difficulty":    "hard",
		"questionCount": 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate: status %d, body %s", w.Code, w.Body.String())
	}
	sessionID, _ := body["sessionId"].(string)
	if sessionID == "" {
		t.Fatal("no sessionId in generate response")
	}
	if body["currentQuestion"] != float64(1) {
		t.Errorf("currentQuestion = %v, want 1", body["currentQuestion"])
	}

	base := "/api/quiz/" + sessionID

	// Status read.
	w, body = doJSON(t, r, http.MethodGet, base, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	progress := body["progress"].(map[string]interface{})
	if progress["current"] != float64(1) || progress["total"] != float64(2) {
		t.Errorf("unexpected progress %v", progress)
	}

	// Answer Q1 correctly (index 0).
	w, body = doJSON(t, r, http.MethodPost, base+"/answer", map[string]interface{}{"answer": 0})
	if w.Code != http.StatusOK {
		t.Fatalf("answer 1: status %d, body %s", w.Code, w.Body.String())
	}
	if body["isCorrect"] != true || body["score"] != float64(1) || body["isLastQuestion"] != false {
		t.Errorf("answer 1 response: %v", body)
	}

	// Advance to Q2.
	w, body = doJSON(t, r, http.MethodPost, base+"/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("next 1: status %d", w.Code)
	}
	if body["question"] == nil {
		t.Fatal("expected next question")
	}
	progress = body["progress"].(map[string]interface{})
	if progress["current"] != float64(2) {
		t.Errorf("progress.current = %v, want 2", progress["current"])
	}

	// Answer Q2 wrong (correct is 1, send 2).
	w, body = doJSON(t, r, http.MethodPost, base+"/answer", map[string]interface{}{"answer": 2})
	if w.Code != http.StatusOK {
		t.Fatalf("answer 2: status %d", w.Code)
	}
	if body["isCorrect"] != false || body["score"] != float64(1) || body["isLastQuestion"] != true {
		t.Errorf("answer 2 response: %v", body)
	}

	// Final advance completes the quiz.
	w, body = doJSON(t, r, http.MethodPost, base+"/next", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("final next: status %d", w.Code)
	}
	if body["completed"] != true || body["finalScore"] != float64(1) ||
		body["totalQuestions"] != float64(2) || body["percentage"] != float64(50) {
		t.Errorf("summary: %v", body)
	}
	if answers, ok := body["answers"].([]interface{}); !ok || len(answers) != 2 {
		t.Errorf("expected 2 answer records in summary, got %v", body["answers"])
	}

	// Further calls are rejected with 400.
	w, body = doJSON(t, r, http.MethodPost, base+"/next", nil)
	if w.Code != http.StatusBadRequest || body["error"] != "Quiz already completed" {
		t.Errorf("next after completion: status %d, body %v", w.Code, body)
	}
	w, body = doJSON(t, r, http.MethodPost, base+"/answer", map[string]interface{}{"answer": 0})
	if w.Code != http.StatusBadRequest || body["error"] != "Quiz already completed" {
		t.Errorf("answer after completion: status %d, body %v", w.Code, body)
	}
}

func TestPopularTopicsDefaultsAndTracking(t *testing.T) {
	llm := twoQuestionLLM(t)
	defer llm.Close()
	r := newTestRouter(llm.URL)

	w, body := doJSON(t, r, http.MethodGet, "/api/popular-topics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	defaults, ok := body["topics"].([]interface{})
	if !ok || len(defaults) != 10 {
		t.Fatalf("expected 10 default topics, got %v", body["topics"])
	}

	// Generating a quiz records its topic.
	doJSON(t, r, http.MethodPost, "/api/generate-quiz", map[string]interface{}{"topic": "Networking"})

	w, body = doJSON(t, r, http.MethodGet, "/api/popular-topics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	list, _ := body["topics"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("expected the tracked topic only, got %v", body["topics"])
	}
	entry := list[0].(map[string]interface{})
	if entry["topic"] != "Networking" || entry["count"] != float64(1) {
		t.Errorf("tracked entry: %v", entry)
	}
}

func TestUnknownRouteReturnsBanner(t *testing.T) {
	r := newTestRouter("http://127.0.0.1:0")

	req := httptest.NewRequest(http.MethodGet, "/something/else", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "AI Quiz App API" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter("http://127.0.0.1:0")

	w, body := doJSON(t, r, http.MethodGet, "/api/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["status"] != "ok" || body["storage"] != "ok" {
		t.Errorf("health body: %v", body)
	}
}
