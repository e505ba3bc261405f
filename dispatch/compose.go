package dispatch

import (
	"fmt"
	"strings"

	"houtveilig/models"
)

const (
	heavyRule = "============================================="
	lightRule = "------------------------------"
)

// Message is the composed subject and plain text body of a report.
type Message struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Compose renders the email subject and body for a report.
func Compose(appName string, f models.ReportFields, photoCount int, formattedDate string) Message {
	subject := fmt.Sprintf("[%s] %s - %s - %s", appName, f.Priority.Label(), f.IncidentType.Label(), formattedDate)

	var b strings.Builder
	b.WriteString("INCIDENT REPORT: HAZARDOUS SITUATION / DAMAGE\n")
	b.WriteString(heavyRule + "\n\n")

	b.WriteString("📋 REPORT DETAILS\n")
	b.WriteString(lightRule + "\n")
	fmt.Fprintf(&b, "Type: %s\n", f.IncidentType.Label())
	fmt.Fprintf(&b, "Priority: %s\n", f.Priority.Label())
	fmt.Fprintf(&b, "Date/Time: %s\n", formattedDate)
	fmt.Fprintf(&b, "Reporter: %s\n", f.ReporterName)
	if f.LocationDescription != "" {
		fmt.Fprintf(&b, "Location: %s\n", f.LocationDescription)
	}

	b.WriteString("\n📝 DESCRIPTION\n")
	b.WriteString(lightRule + "\n")
	b.WriteString(f.Description + "\n")

	if f.CorrectiveAction != "" {
		b.WriteString("\n✅ ACTION TAKEN\n")
		b.WriteString(lightRule + "\n")
		b.WriteString(f.CorrectiveAction + "\n")
	}

	if loc := f.Location; loc != nil {
		b.WriteString("\n📍 GPS LOCATION\n")
		b.WriteString(lightRule + "\n")
		fmt.Fprintf(&b, "Latitude: %.6f\n", loc.Latitude)
		fmt.Fprintf(&b, "Longitude: %.6f\n", loc.Longitude)
		fmt.Fprintf(&b, "Accuracy: %s\n", loc.AccuracyLabel())
		fmt.Fprintf(&b, "Google Maps: %s\n", loc.MapsURL())
	}

	if photoCount > 0 {
		b.WriteString("\n📷 PHOTOS\n")
		b.WriteString(lightRule + "\n")
		fmt.Fprintf(&b, "Number of photos: %d\n", photoCount)
		b.WriteString("Note: the photos are sent as separate attachments.\n")
	}

	b.WriteString("\n" + heavyRule + "\n")
	fmt.Fprintf(&b, "Sent via the %s reporting app\n", appName)

	return Message{Subject: subject, Body: b.String()}
}

// MailtoURI builds a mailto link with the subject and body percent-encoded.
func MailtoURI(recipient string, m Message) string {
	return "mailto:" + encodeURIComponent(recipient) +
		"?subject=" + encodeURIComponent(m.Subject) +
		"&body=" + encodeURIComponent(m.Body)
}

// AttachmentName names the n-th photo (1-based) of a report.
func AttachmentName(n int) string {
	return fmt.Sprintf("report-photo-%d.jpg", n)
}

// encodeURIComponent escapes everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ).
// Spaces become %20, never '+', which mail clients would show literally.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if unreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func unreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

// normalize trims the free-text fields the way the form submits them.
func normalize(f models.ReportFields) models.ReportFields {
	f.ReporterName = strings.TrimSpace(f.ReporterName)
	f.LocationDescription = strings.TrimSpace(f.LocationDescription)
	f.Description = strings.TrimSpace(f.Description)
	f.CorrectiveAction = strings.TrimSpace(f.CorrectiveAction)
	f.RecipientEmail = strings.TrimSpace(f.RecipientEmail)
	return f
}
