package models

import (
	"encoding/base64"
	"fmt"
	"math"
	"time"
)

// Photo is a downscaled, JPEG-encoded image attached to the draft.
type Photo struct {
	ID           string `json:"id"`
	EncodedImage string `json:"encoded_image"` // base64, standard encoding
	FileName     string `json:"file_name"`
}

// Bytes decodes the embedded JPEG payload.
func (p Photo) Bytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.EncodedImage)
}

// DataURL renders the photo as an inline image URL for previews.
func (p Photo) DataURL() string {
	return "data:image/jpeg;base64," + p.EncodedImage
}

// Stub drops the image payload and keeps only the file name.
func (p Photo) Stub() PhotoStub {
	return PhotoStub{FileName: p.FileName}
}

// PhotoStub is what survives of a photo once a report is persisted.
type PhotoStub struct {
	FileName string `json:"file_name"`
}

// Location is a resolved GPS fix.
type Location struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

// Coordinates formats the fix with six decimals, e.g. "52.370216, 4.895168".
func (l Location) Coordinates() string {
	return fmt.Sprintf("%.6f, %.6f", l.Latitude, l.Longitude)
}

// AccuracyLabel formats the accuracy radius rounded to whole meters.
func (l Location) AccuracyLabel() string {
	return fmt.Sprintf("±%d meter", int64(math.Round(l.AccuracyMeters)))
}

// MapsURL links the fix on Google Maps.
func (l Location) MapsURL() string {
	return fmt.Sprintf("https://www.google.com/maps?q=%.6f,%.6f", l.Latitude, l.Longitude)
}

// ReportFields are the form values shared by drafts and persisted reports.
type ReportFields struct {
	IncidentType        IncidentType `json:"type"`
	ReporterName        string       `json:"reporter_name"`
	LocationDescription string       `json:"location_description"`
	Priority            Priority     `json:"priority"`
	Description         string       `json:"description"`
	CorrectiveAction    string       `json:"corrective_action"`
	RecipientEmail      string       `json:"recipient_email"`
	Location            *Location    `json:"location,omitempty"`
}

// ReportDraft is the single in-progress report.
type ReportDraft struct {
	ReportFields
	Photos []Photo `json:"photos"`
}

// Clone returns a deep copy that shares no mutable state with d.
func (d ReportDraft) Clone() ReportDraft {
	c := d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	c.Photos = make([]Photo, len(d.Photos))
	copy(c.Photos, d.Photos)
	return c
}

// DraftUpdate carries a partial form edit; nil fields are left untouched.
type DraftUpdate struct {
	IncidentType        *IncidentType `json:"type,omitempty"`
	ReporterName        *string       `json:"reporter_name,omitempty"`
	LocationDescription *string       `json:"location_description,omitempty"`
	Priority            *Priority     `json:"priority,omitempty"`
	Description         *string       `json:"description,omitempty"`
	CorrectiveAction    *string       `json:"corrective_action,omitempty"`
	RecipientEmail      *string       `json:"recipient_email,omitempty"`
}

// Validate rejects unknown enum values. Unset values are allowed.
func (u DraftUpdate) Validate() error {
	if u.IncidentType != nil {
		if _, err := ParseIncidentType(string(*u.IncidentType)); err != nil {
			return err
		}
	}
	if u.Priority != nil {
		if _, err := ParsePriority(string(*u.Priority)); err != nil {
			return err
		}
	}
	return nil
}

// Report is the persisted form of a finalized draft.
type Report struct {
	ID int64 `json:"id"`
	ReportFields
	TypeLabel        string      `json:"type_label"`
	PriorityLabel    string      `json:"priority_label"`
	FormattedDate    string      `json:"formatted_date"`
	CaptureTimestamp int64       `json:"capture_timestamp"`
	Photos           []PhotoStub `json:"photos"`
	PhotoCount       int         `json:"photo_count"`
}

// NewReport finalizes a draft snapshot. Photo payloads are dropped here; the
// photo count is kept so the report still says how many were sent.
func NewReport(draft ReportDraft, capturedAt time.Time, formattedDate string) Report {
	fields := draft.ReportFields
	if fields.Location != nil {
		loc := *fields.Location
		fields.Location = &loc
	}
	stubs := make([]PhotoStub, 0, len(draft.Photos))
	for _, p := range draft.Photos {
		stubs = append(stubs, p.Stub())
	}
	return Report{
		ReportFields:     fields,
		TypeLabel:        fields.IncidentType.Label(),
		PriorityLabel:    fields.Priority.Label(),
		FormattedDate:    formattedDate,
		CaptureTimestamp: capturedAt.UnixMilli(),
		Photos:           stubs,
		PhotoCount:       len(stubs),
	}
}

// Preferences are the remembered "last used" form values.
type Preferences struct {
	ReporterName   string `json:"reporter_name"`
	RecipientEmail string `json:"recipient_email"`
}

// Preferences returns the name and email to remember from these fields.
func (f ReportFields) Preferences() Preferences {
	return Preferences{ReporterName: f.ReporterName, RecipientEmail: f.RecipientEmail}
}
