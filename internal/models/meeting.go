package models

// MeetingRequest is a request to book a support call with a
// specialist. Validation tags are enforced at the HTTP boundary before
// any calendar API call is made.
type MeetingRequest struct {
	Email         string `json:"email" validate:"required,email"`
	Topic         string `json:"topic"`
	PreferredDate string `json:"preferred_date" validate:"required,datetime=2006-01-02"`
	PreferredTime string `json:"preferred_time" validate:"required,datetime=15:04"`
	Notes         string `json:"notes"`
}

type MeetingConfirmation struct {
	Scheduled bool   `json:"scheduled"`
	EventID   string `json:"event_id,omitempty"`
	Message   string `json:"message"`
}
