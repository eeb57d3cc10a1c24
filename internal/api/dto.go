package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kwcat/internal/models"
)

// MaxKeywords bounds a single categorization request.
const MaxKeywords = 50000

// CategorizeRequest is the request body for POST /projects/{id}/categorization.
type CategorizeRequest struct {
	Keywords []models.KeywordRecord `json:"keywords" validate:"required"`
	Force    bool                   `json:"force" example:"false"`
}

// Validate implements validation.Validatable.
func (r CategorizeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Keywords,
			validation.Required.Error("keywords are required"),
			validation.Length(1, MaxKeywords),
		),
	)
}

// CategorizeResponse is returned after a categorization run.
type CategorizeResponse struct {
	Success           bool                   `json:"success" example:"true"`
	Categories        []models.Category      `json:"categories" validate:"required"`
	Keywords          []models.KeywordRecord `json:"keywords" validate:"required"`
	AISource          models.Source          `json:"ai_source" example:"fallback" enums:"ai,fallback,database"`
	KeywordCount      int                    `json:"keyword_count" example:"2"`
	OriginalCount     int                    `json:"original_count" example:"3"`
	DuplicatesRemoved int                    `json:"duplicates_removed" example:"1"`
	ResponseTimeMS    int64                  `json:"response_time_ms" example:"120"`
	SavedToDB         bool                   `json:"saved_to_db" example:"true"`
}

// StatusResponse reports the cached categorization of a project.
type StatusResponse struct {
	Success            bool              `json:"success" example:"true"`
	CategorizationDone bool              `json:"categorization_done"`
	Categories         []models.Category `json:"categories"`
}
