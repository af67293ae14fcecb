package domain

import "time"

// Identity is the authenticated principal as reported by the quiz API.
type Identity struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	IsAdmin   bool   `json:"is_admin"`
	IsTeacher bool   `json:"is_teacher"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

// Registration carries the register form.
type Registration struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// Option is a possible answer for a question. IsCorrect is only populated
// for teachers and in attempt reviews.
type Option struct {
	ID        int64  `json:"id,omitempty"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is one step of a quiz; Position is 1-based and sequential.
type Question struct {
	ID            int64    `json:"id,omitempty"`
	Position      int      `json:"position,omitempty"`
	Text          string   `json:"text"`
	AllowMultiple bool     `json:"allow_multiple"`
	Options       []Option `json:"options"`
}

// Quiz is a catalog entry.
type Quiz struct {
	ID                     int64     `json:"id"`
	Slug                   string    `json:"slug"`
	Title                  string    `json:"title"`
	QuestionCount          int       `json:"question_count"`
	TimePerQuestionSeconds int       `json:"time_per_question_seconds"`
	IsActive               bool      `json:"is_active"`
	Owner                  *Identity `json:"owner,omitempty"`
}

// QuizDetail is a quiz with its questions, as seen by its teacher.
type QuizDetail struct {
	Quiz
	Questions []Question `json:"questions"`
}

// NewQuiz is the teacher's create-quiz form.
type NewQuiz struct {
	Title                  string `json:"title"`
	Slug                   string `json:"slug"`
	TimePerQuestionSeconds int    `json:"time_per_question_seconds"`
	IsActive               bool   `json:"is_active"`
}

// Answer is a recorded, immutable answer within an attempt.
type Answer struct {
	Position          int       `json:"position"`
	SelectedOptionIDs []int64   `json:"selected_option_ids"`
	IsCorrect         bool      `json:"is_correct"`
	IsForfeit         bool      `json:"is_forfeit"`
	Points            int       `json:"points"`
	Question          *Question `json:"question,omitempty"`
}

// Attempt is one learner's run through a quiz.
type Attempt struct {
	ID         int64      `json:"id"`
	User       *Identity  `json:"user,omitempty"`
	Quiz       *Quiz      `json:"quiz,omitempty"`
	Score      int        `json:"score"`
	Total      int        `json:"total"`
	IsFinished bool       `json:"is_finished"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Answers    []Answer   `json:"answers"`
}

// QuizAttempts is the teacher's results view for one quiz.
type QuizAttempts struct {
	Quiz     Quiz      `json:"quiz"`
	Attempts []Attempt `json:"attempts"`
}

// CurrentState is the question-state payload of the current and answer
// endpoints. When Finished is true the other fields are meaningless.
type CurrentState struct {
	Finished bool      `json:"finished"`
	Position int       `json:"position,omitempty"`
	Total    int       `json:"total,omitempty"`
	TimeLeft int       `json:"time_left,omitempty"`
	Question *Question `json:"question,omitempty"`
}

// AnswerSubmission is either a selection or a forfeit.
type AnswerSubmission struct {
	OptionIDs []int64 `json:"option_ids,omitempty"`
	Forfeit   bool    `json:"forfeit,omitempty"`
}

// ForfeitSubmission returns a zero-point non-answer.
func ForfeitSubmission() AnswerSubmission {
	return AnswerSubmission{Forfeit: true}
}
