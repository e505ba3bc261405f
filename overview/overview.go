package overview

import (
	"html"
	"html/template"
	"io"

	"houtveilig/models"

	geojson "github.com/paulmach/go.geojson"
)

// ExcerptLength is how many characters of the description a card shows.
const ExcerptLength = 150

// Card is the list entry for one saved report.
type Card struct {
	ID            int64  `json:"id"`
	TypeLabel     string `json:"type_label"`
	Date          string `json:"date"`
	Excerpt       string `json:"excerpt"` // HTML-escaped
	Priority      string `json:"priority"`
	PriorityLabel string `json:"priority_label"`
	PhotoCount    int    `json:"photo_count"`
}

// ExcerptHTML marks the already escaped excerpt as safe for the template.
func (c Card) ExcerptHTML() template.HTML {
	return template.HTML(c.Excerpt)
}

// Truncate cuts text to n characters and appends "..." when it was longer.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// Cards builds the list entries in collection order.
func Cards(reports []models.Report) []Card {
	cards := make([]Card, 0, len(reports))
	for _, r := range reports {
		cards = append(cards, Card{
			ID:            r.ID,
			TypeLabel:     r.IncidentType.CardLabel(),
			Date:          r.FormattedDate,
			Excerpt:       html.EscapeString(Truncate(r.Description, ExcerptLength)),
			Priority:      string(r.Priority),
			PriorityLabel: r.PriorityLabel,
			PhotoCount:    r.PhotoCount,
		})
	}
	return cards
}

var listTemplate = template.Must(template.New("reports").Parse(`{{if not .}}<div class="empty-state">
	<span class="empty-icon">📋</span>
	<p>No saved reports yet</p>
</div>
{{else}}{{range .}}<div class="report-card priority-{{.Priority}}" data-id="{{.ID}}">
	<div class="report-card-header">
		<span class="report-card-type">{{.TypeLabel}}</span>
		<span class="report-card-date">{{.Date}}</span>
	</div>
	<p class="report-card-description">{{.ExcerptHTML}}</p>
	<div class="report-card-footer">
		<span class="report-card-priority priority-badge-{{.Priority}}">{{.PriorityLabel}}</span>
		<div class="report-card-actions">
			{{if .PhotoCount}}<span class="report-card-photos">📷 {{.PhotoCount}}</span>{{end}}
			<button class="btn btn-danger btn-small" data-action="delete" data-id="{{.ID}}">🗑️</button>
		</div>
	</div>
</div>
{{end}}{{end}}`))

// Render writes the report list, or the empty placeholder, as HTML.
func Render(w io.Writer, reports []models.Report) error {
	return listTemplate.Execute(w, Cards(reports))
}

// GeoJSON exports the reports that carry a GPS fix as a FeatureCollection.
func GeoJSON(reports []models.Report) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range reports {
		if r.Location == nil {
			continue
		}
		f := geojson.NewPointFeature([]float64{r.Location.Longitude, r.Location.Latitude})
		f.ID = r.ID
		f.SetProperty("type", string(r.IncidentType))
		f.SetProperty("type_label", r.TypeLabel)
		f.SetProperty("priority", string(r.Priority))
		f.SetProperty("date", r.FormattedDate)
		f.SetProperty("description", r.Description)
		f.SetProperty("accuracy_meters", r.Location.AccuracyMeters)
		f.SetProperty("photo_count", r.PhotoCount)
		fc.AddFeature(f)
	}
	return fc.MarshalJSON()
}
