package models

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	// Human readable message
	Message string `json:"message" example:"Recipient not found."`
	// Stable machine readable code
	Code string `json:"code" example:"RECIPIENT_NOT_FOUND"`
	// Underlying error, only outside production
	Detail string `json:"detail,omitempty"`
}

// WebhookAck is returned to the payment processor once a delivery was handled
type WebhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status,omitempty"`
}

type URLResponse struct {
	URL string `json:"url"`
}
