package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"houtveilig/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeSections(t *testing.T) {
	fields := models.ReportFields{
		IncidentType:        models.IncidentHazardousSituation,
		ReporterName:        "Jan",
		LocationDescription: "Hall 2, planer",
		Priority:            models.PriorityHigh,
		Description:         "Dust extraction is off",
		CorrectiveAction:    "Machine switched off",
		Location:            &models.Location{Latitude: 52.3702157, Longitude: 4.8951679, AccuracyMeters: 7.6},
	}

	m := Compose("HoutVeilig", fields, 3, "01-03-2024 12:00")
	assert.Equal(t, "[HoutVeilig] 🟠 High - Hazardous Situation - 01-03-2024 12:00", m.Subject)
	for _, want := range []string{
		"Type: Hazardous Situation\n",
		"Priority: 🟠 High\n",
		"Reporter: Jan\n",
		"Location: Hall 2, planer\n",
		"Dust extraction is off\n",
		"✅ ACTION TAKEN",
		"Machine switched off\n",
		"Latitude: 52.370216\n",
		"Longitude: 4.895168\n",
		"Accuracy: ±8 meter\n",
		"Google Maps: https://www.google.com/maps?q=52.370216,4.895168\n",
		"Number of photos: 3\n",
		"Sent via the HoutVeilig reporting app\n",
	} {
		assert.Contains(t, m.Body, want)
	}
}

func TestComposeOmitsOptionalSections(t *testing.T) {
	m := Compose("HoutVeilig", models.ReportFields{
		IncidentType: models.IncidentOther,
		Priority:     models.PriorityLow,
		ReporterName: "Jan",
		Description:  "x",
	}, 0, "01-03-2024 12:00")

	assert.NotContains(t, m.Body, "Location:")
	assert.NotContains(t, m.Body, "ACTION TAKEN")
	assert.NotContains(t, m.Body, "GPS LOCATION")
	assert.NotContains(t, m.Body, "PHOTOS")
}

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"a b", "a%20b"},
		{"a+b", "a%2Bb"},
		{"x@y.nl", "x%40y.nl"},
		{"line\nbreak", "line%0Abreak"},
		{"keep-_.!~*'()", "keep-_.!~*'()"},
		{"[HoutVeilig]", "%5BHoutVeilig%5D"},
		{"🔴", "%F0%9F%94%B4"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, encodeURIComponent(tt.in))
	}
}

func TestMailtoURI(t *testing.T) {
	uri := MailtoURI("a@b.nl", Message{Subject: "Hi there", Body: "1 & 2"})
	assert.Equal(t, "mailto:a%40b.nl?subject=Hi%20there&body=1%20%26%202", uri)
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "report-photo-1.jpg", AttachmentName(1))
	assert.Equal(t, "report-photo-5.jpg", AttachmentName(5))
}

func TestDirDownloader(t *testing.T) {
	dir := t.TempDir()
	d := NewDirDownloader(dir, "/exports")

	urls, err := d.Download(context.Background(), "1709294400000", []Attachment{
		{Name: "report-photo-1.jpg", Data: []byte("one")},
		{Name: "../report-photo-2.jpg", Data: []byte("two")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/exports/1709294400000/report-photo-1.jpg",
		"/exports/1709294400000/report-photo-2.jpg",
	}, urls)

	data, err := os.ReadFile(filepath.Join(dir, "1709294400000", "report-photo-2.jpg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "two"))
}
