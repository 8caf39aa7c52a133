// Package session drives the per-session quiz state machine: create,
// status, submit-answer and advance. Answering and advancing are two
// separate calls so the client can show feedback before moving on.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Duckierstone42/cf-ai-quiz-app/internal/kv"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/logger"
	"github.com/Duckierstone42/cf-ai-quiz-app/internal/models"
)

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrQuizCompleted     = errors.New("quiz already completed")
	ErrNoCurrentQuestion = errors.New("no current question")
)

const keyPrefix = "session:"

// Service loads the session record from the store on every call; there is
// no in-process session cache. Mutations for the same session are
// serialized through a per-session mutex so concurrent read-modify-write
// cycles cannot silently drop each other's updates.
type Service struct {
	store kv.Store
	log   *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store kv.Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

type Progress struct {
	Current    int `json:"current"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

type Status struct {
	Session         *models.Session  `json:"session"`
	CurrentQuestion *models.Question `json:"currentQuestion,omitempty"`
	Progress        Progress         `json:"progress"`
}

type AnswerResult struct {
	IsCorrect      bool   `json:"isCorrect"`
	CorrectAnswer  int    `json:"correctAnswer"`
	Explanation    string `json:"explanation"`
	Score          int    `json:"score"`
	TotalAnswered  int    `json:"totalAnswered"`
	IsLastQuestion bool   `json:"isLastQuestion"`
}

// Summary is the terminal payload returned by the advance that completes
// the quiz.
type Summary struct {
	Completed      bool                  `json:"completed"`
	FinalScore     int                   `json:"finalScore"`
	TotalQuestions int                   `json:"totalQuestions"`
	Percentage     int                   `json:"percentage"`
	Answers        []models.AnswerRecord `json:"answers"`
	TimeSpent      int64                 `json:"timeSpent"`
}

// AdvanceResult carries either the next question with progress, or the
// terminal summary when the advance completed the quiz.
type AdvanceResult struct {
	Question *models.Question
	Progress *Progress
	Summary  *Summary
}

// Create initializes and persists a new session with all questions
// pre-populated. totalQuestions is fixed to the generated question count.
func (s *Service) Create(ctx context.Context, topic, difficulty string, questions []models.Question) (*models.Session, error) {
	sess := &models.Session{
		SessionID:      uuid.NewString(),
		Topic:          topic,
		Difficulty:     difficulty,
		Questions:      questions,
		TotalQuestions: len(questions),
		Answers:        []models.AnswerRecord{},
		StartTime:      time.Now().UnixMilli(),
	}
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Debugw("session created", "session_id", sess.SessionID, "topic", topic, "questions", len(questions))
	return sess, nil
}

// Status is a pure read of the session plus derived progress.
func (s *Service) Status(ctx context.Context, sessionID string) (*Status, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Status{
		Session:         sess,
		CurrentQuestion: sess.CurrentQuestion(),
		Progress:        progress(sess),
	}, nil
}

// SubmitAnswer records the answer for the current question and updates the
// score. It does not advance the index; Advance is a separate call.
func (s *Service) SubmitAnswer(ctx context.Context, sessionID string, answer int) (*AnswerResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrQuizCompleted
	}
	question := sess.CurrentQuestion()
	if question == nil {
		return nil, ErrNoCurrentQuestion
	}

	isCorrect := answer == question.CorrectAnswer
	sess.Answers = append(sess.Answers, models.AnswerRecord{
		QuestionID:    question.ID,
		Question:      question.Question,
		UserAnswer:    answer,
		CorrectAnswer: question.CorrectAnswer,
		IsCorrect:     isCorrect,
		Explanation:   question.Explanation,
		Timestamp:     time.Now().UnixMilli(),
	})
	if isCorrect {
		sess.Score++
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}

	return &AnswerResult{
		IsCorrect:      isCorrect,
		CorrectAnswer:  question.CorrectAnswer,
		Explanation:    question.Explanation,
		Score:          sess.Score,
		TotalAnswered:  len(sess.Answers),
		IsLastQuestion: sess.CurrentQuestionIndex == sess.TotalQuestions-1,
	}, nil
}

// Advance moves the session to the next question, or completes it when the
// index reaches the end. The increment is unconditional: skipping the
// current question without answering is the caller's prerogative.
func (s *Service) Advance(ctx context.Context, sessionID string) (*AdvanceResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Completed {
		return nil, ErrQuizCompleted
	}

	sess.CurrentQuestionIndex++

	if sess.CurrentQuestionIndex >= sess.TotalQuestions {
		sess.Completed = true
		end := time.Now().UnixMilli()
		sess.EndTime = &end
		if err := s.save(ctx, sess); err != nil {
			return nil, err
		}
		return &AdvanceResult{
			Summary: &Summary{
				Completed:      true,
				FinalScore:     sess.Score,
				TotalQuestions: sess.TotalQuestions,
				Percentage:     percentage(sess.Score, sess.TotalQuestions),
				Answers:        sess.Answers,
				TimeSpent:      end - sess.StartTime,
			},
		}, nil
	}

	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	prog := progress(sess)
	return &AdvanceResult{
		Question: sess.CurrentQuestion(),
		Progress: &prog,
	}, nil
}

func (s *Service) load(ctx context.Context, sessionID string) (*models.Session, error) {
	raw, err := s.store.Get(ctx, keyPrefix+sessionID)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *Service) save(ctx context.Context, sess *models.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.store.Put(ctx, keyPrefix+sess.SessionID, raw); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

func progress(sess *models.Session) Progress {
	current := sess.CurrentQuestionIndex + 1
	return Progress{
		Current:    current,
		Total:      sess.TotalQuestions,
		Percentage: percentage(current, sess.TotalQuestions),
	}
}

// Round-half-up of numerator/denominator as a percentage.
func percentage(numerator, denominator int) int {
	return int(math.Round(float64(numerator) / float64(denominator) * 100))
}
