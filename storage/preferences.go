package storage

import (
	"context"

	"houtveilig/metrics"
	"houtveilig/models"

	"github.com/apex/log"
)

// Preferences remembers the reporter name and recipient email between
// sessions.
type Preferences struct {
	kv KV
}

func NewPreferences(kv KV) *Preferences {
	return &Preferences{kv: kv}
}

// Load returns the remembered values; unreadable keys come back empty.
func (p *Preferences) Load(ctx context.Context) models.Preferences {
	return models.Preferences{
		ReporterName:   p.get(ctx, KeyPreferredName),
		RecipientEmail: p.get(ctx, KeyPreferredEmail),
	}
}

// Save overwrites both remembered values.
func (p *Preferences) Save(ctx context.Context, prefs models.Preferences) {
	p.set(ctx, KeyPreferredName, prefs.ReporterName)
	p.set(ctx, KeyPreferredEmail, prefs.RecipientEmail)
}

func (p *Preferences) get(ctx context.Context, key string) string {
	v, _, err := p.kv.Get(ctx, key)
	if err != nil {
		metrics.PersistenceFailuresTotal.WithLabelValues("preferences").Inc()
		log.WithError(err).WithField("key", key).Warn("could not read preference")
		return ""
	}
	return v
}

func (p *Preferences) set(ctx context.Context, key, value string) {
	if err := p.kv.Set(ctx, key, value); err != nil {
		metrics.PersistenceFailuresTotal.WithLabelValues("preferences").Inc()
		log.WithError(err).WithField("key", key).Warn("could not store preference")
	}
}
