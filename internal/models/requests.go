package models

type CreateCourseRequest struct {
	Title         string `json:"title" binding:"required,no_html"`
	Description   string `json:"description"`
	PriceMinor    int64  `json:"price_minor" binding:"gte=0"`
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"image_public_id"`
}

type UpdateCourseRequest struct {
	Title         string `json:"title" binding:"required,no_html"`
	Description   string `json:"description"`
	PriceMinor    int64  `json:"price_minor" binding:"gte=0"`
	ImageURL      string `json:"image_url"`
	ImagePublicID string `json:"image_public_id"`
}

// CreateLessonRequest appends the lesson when Position is nil.
type CreateLessonRequest struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	VideoURL      *string `json:"video_url"`
	VideoPublicID *string `json:"video_public_id"`
	Position      *int    `json:"position"`
}

// UpdateLessonRequest only touches the fields that are set.
type UpdateLessonRequest struct {
	Title         *string `json:"title"`
	Content       *string `json:"content"`
	VideoURL      *string `json:"video_url"`
	VideoPublicID *string `json:"video_public_id"`
	Position      *int    `json:"position"`
}

type CreateQuizRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	PassScore   int    `json:"pass_score" binding:"gte=0,lte=100"`
	Position    *int   `json:"position"`
}

type UpdateQuizRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	PassScore   *int    `json:"pass_score"`
	Position    *int    `json:"position"`
}

type ReorderContentRequest struct {
	Items []ContentRef `json:"items" binding:"required,dive"`
}

type QuizQuestionInput struct {
	Prompt        string   `json:"prompt" binding:"required"`
	Options       []string `json:"options" binding:"required,min=2"`
	CorrectOption int      `json:"correct_option" binding:"gte=0"`
	Explanation   string   `json:"explanation"`
}

type ReplaceQuizQuestionsRequest struct {
	Questions []QuizQuestionInput `json:"questions" binding:"dive"`
}

type QuizAnswerSubmission struct {
	QuestionID     uint `json:"question_id" binding:"required"`
	SelectedOption int  `json:"selected_option"`
}

type SubmitQuizAttemptRequest struct {
	Answers []QuizAnswerSubmission `json:"answers" binding:"dive"`
}

type QuizAttemptResult struct {
	Attempt  QuizAttempt `json:"attempt"`
	Attempts int64       `json:"attempts"`
}

type InitiatePaymentRequest struct {
	CourseIDs   []uint `json:"course_ids" binding:"required,min=1"`
	AmountMinor int64  `json:"amount_minor" binding:"required,gt=0"`
}

type PaymentCheckout struct {
	PaymentID        uint          `json:"payment_id"`
	Reference        string        `json:"reference"`
	AuthorizationURL string        `json:"authorization_url"`
	Status           PaymentStatus `json:"status"`
	Reused           bool          `json:"reused"`
}

type PaymentVerification struct {
	Reference       string        `json:"reference"`
	Status          PaymentStatus `json:"status"`
	AlreadyTerminal bool          `json:"already_terminal"`
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
