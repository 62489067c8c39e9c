package dto

// QuestionCreateDTO is used within TestCreateDTO for admin test creation.
type QuestionCreateDTO struct {
	OrderInTest   int      `json:"order_in_test" binding:"required,min=1"`
	Type          string   `json:"type" binding:"required,oneof=multiple_choice true_false short_answer"`
	Prompt        string   `json:"prompt" binding:"required"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer" binding:"required"`
	Points        int      `json:"points" binding:"required,gt=0"`
}

// TestCreateDTO is for admin to create a new test with all its questions.
type TestCreateDTO struct {
	Title                     string              `json:"title" binding:"required"`
	Description               string              `json:"description,omitempty"`
	DurationMinutes           int                 `json:"duration_minutes" binding:"required,gt=0"`
	PassingScore              int                 `json:"passing_score" binding:"min=0,max=100"`
	CategoryType              string              `json:"category_type" binding:"required,oneof=LANGUAGE TECHNICAL PROFESSIONAL ACADEMIC"`
	Level                     *string             `json:"level,omitempty"`
	CertificateValidityMonths *int                `json:"certificate_validity_months,omitempty" binding:"omitempty,min=0"`
	Questions                 []QuestionCreateDTO `json:"questions" binding:"required,min=1,dive"`
}

// AdminQuestionResponseDTO includes the answer key; never return it to candidates.
type AdminQuestionResponseDTO struct {
	ID            uint     `json:"id"`
	OrderInTest   int      `json:"order_in_test"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options,omitempty"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        int      `json:"points"`
}

type AdminTestResponseDTO struct {
	ID                        uint                       `json:"id"`
	Title                     string                     `json:"title"`
	Description               string                     `json:"description,omitempty"`
	DurationMinutes           int                        `json:"duration_minutes"`
	PassingScore              int                        `json:"passing_score"`
	TotalQuestions            int                        `json:"total_questions"`
	CategoryType              string                     `json:"category_type"`
	Level                     *string                    `json:"level,omitempty"`
	IsPublished               bool                       `json:"is_published"`
	CertificateValidityMonths *int                       `json:"certificate_validity_months,omitempty"`
	Questions                 []AdminQuestionResponseDTO `json:"questions,omitempty"`
}

type RevokeCertificateDTO struct {
	Reason      string `json:"reason" binding:"required"`
	PerformedBy *uint  `json:"performed_by"`
}

type CertificateActionDTO struct {
	PerformedBy *uint `json:"performed_by"`
}

type RegenerateCertificateDTO struct {
	TemplateType *string `json:"template_type" binding:"omitempty,oneof=classic modern minimal"`
	PerformedBy  *uint   `json:"performed_by"`
}
