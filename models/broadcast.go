package models

import "time"

// Event types pushed to connected forms
const (
	EventReports         = "reports"
	EventPhotos          = "photos"
	EventDraft           = "draft"
	EventLocation        = "location"
	EventLocationRequest = "location_request"
	EventToast           = "toast"
	EventDownloads       = "downloads"
)

// Notice levels, matching the form's toast styles
const (
	NoticeSuccess = "success"
	NoticeWarning = "warning"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// Event is the envelope of every websocket message
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Notice is a short transient user-facing message
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// PhotoPreview is what the form needs to render one thumbnail
type PhotoPreview struct {
	Index    int    `json:"index"`
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	DataURL  string `json:"data_url"`
}
