// Package generator turns a topic/difficulty/count request into a set of
// multiple-choice questions through an OpenAI-compatible chat-completions
// endpoint. Generation failure never aborts quiz creation: any upstream or
// parse error degrades to a single fallback question.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/models"
)

type Generator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	log     *logger.Logger
}

func New(baseURL, apiKey, model string, log *logger.Logger) *Generator {
	return &Generator{
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		log:     log,
	}
}

type chatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []chatCompletionMessage `json:"messages"`
	Stream      bool                    `json:"stream"`
	Temperature float64                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the model for count questions about topic. One attempt, no
// streaming, no retry. The upstream's question list is accepted as given:
// counts and option lengths are not validated here.
func (g *Generator) Generate(ctx context.Context, topic, difficulty string, count int) []models.Question {
	content, err := g.complete(ctx, buildPrompt(topic, difficulty, count))
	if err != nil {
		g.log.Warnw("quiz generation failed, using fallback question", "topic", topic, "error", err)
		return fallbackQuestions(topic)
	}

	questions, err := parseQuestions(content)
	if err != nil {
		g.log.Warnw("could not parse generated quiz, using fallback question", "topic", topic, "error", err)
		return fallbackQuestions(topic)
	}
	return questions
}

func buildPrompt(topic, difficulty string, count int) string {
	return fmt.Sprintf(`Generate %d multiple choice quiz questions about "%s" with %s difficulty level.

Format your response as a JSON object with this exact structure:
{
  "questions": [
    {
      "id": 1,
      "question": "Question text here?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correctAnswer": 0,
      "explanation": "Explanation of why this answer is correct"
    }
  ]
}

Make sure the questions are educational and test understanding of the topic.`, count, topic, difficulty)
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	request := chatCompletionRequest{
		Model: g.model,
		Messages: []chatCompletionMessage{
			{Role: "user", Content: prompt},
		},
		Stream:      false,
		Temperature: 0.7,
		MaxTokens:   2000,
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response chatCompletionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("LLM response contained no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// parseQuestions treats the model output as free text and takes the
// substring from the first "{" to the last "}" as candidate JSON.
func parseQuestions(content string) ([]models.Question, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object found in response")
	}

	var payload struct {
		Questions []models.Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
		return nil, err
	}
	if len(payload.Questions) == 0 {
		return nil, errors.New("response contained no questions")
	}
	return payload.Questions, nil
}

func fallbackQuestions(topic string) []models.Question {
	return []models.Question{
		{
			ID:            1,
			Question:      fmt.Sprintf("What is the main topic of %q?", topic),
			Options:       []string{"Option A", "Option B", "Option C", "Option D"},
			CorrectAnswer: 0,
			Explanation:   "This is a sample question generated as a fallback.",
		},
	}
}
