package api

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type ValidationErrorResponse struct {
	Error   string            `json:"error" example:"validation failed"`
	Details []ValidationError `json:"details"`
}

type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}
