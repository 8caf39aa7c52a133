package models

// Question is fixed at session creation and never changes afterwards.
type Question struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// AnswerRecord snapshots the question text and explanation at answer time.
type AnswerRecord struct {
	QuestionID    int    `json:"questionId"`
	Question      string `json:"question"`
	UserAnswer    int    `json:"userAnswer"`
	CorrectAnswer int    `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
	Timestamp     int64  `json:"timestamp"`
}

// Session is the persisted record for one quiz run, stored as a single
// JSON value under "session:{sessionId}". Timestamps are Unix milliseconds.
type Session struct {
	SessionID            string         `json:"sessionId"`
	Topic                string         `json:"topic"`
	Difficulty           string         `json:"difficulty"`
	Questions            []Question     `json:"questions"`
	TotalQuestions       int            `json:"totalQuestions"`
	CurrentQuestionIndex int            `json:"currentQuestionIndex"`
	Answers              []AnswerRecord `json:"answers"`
	Score                int            `json:"score"`
	Completed            bool           `json:"completed"`
	StartTime            int64          `json:"startTime"`
	EndTime              *int64         `json:"endTime"`
}

// CurrentQuestion returns the question at the current index, or nil when
// the index has moved past the end of the list.
func (s *Session) CurrentQuestion() *Question {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Questions) {
		return nil
	}
	return &s.Questions[s.CurrentQuestionIndex]
}
