package campaign

import "time"

// Batch groups campaigns created from one template and persona with
// different variable sets. Batch status reuses campaign statuses: queued until
// executed, running while members run, then completed or failed.
type Batch struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	TemplateID   string     `json:"templateId"`
	PersonaID    string     `json:"personaId"`
	Status       Status     `json:"status"`
	Total        int        `json:"total"`
	Completed    int        `json:"completed"`
	Failed       int        `json:"failed"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// CancelReason is recorded on batch members canceled before they ran.
const CancelReason = "canceled"
