package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"houtveilig/metrics"
	"houtveilig/models"
	"houtveilig/validation"

	"github.com/apex/log"
)

// Durable keys
const (
	KeyReports        = "reports"
	KeyPreferredName  = "preferred-name"
	KeyPreferredEmail = "preferred-email"
)

// Repository is the in-memory report collection, most recent first, mirrored
// to a KV store. The in-memory copy is authoritative: store failures are
// logged and swallowed.
//
// Every mutation holds mu until its write has been issued, so quiet and
// explicit saves are applied and persisted in call order.
type Repository struct {
	kv  KV
	now func() time.Time

	mu      sync.Mutex
	reports []models.Report
	lastID  int64

	// OnChange, when set, receives the collection after every mutation.
	OnChange func([]models.Report)
}

func NewRepository(kv KV) *Repository {
	return &Repository{
		kv:  kv,
		now: time.Now,
	}
}

// Load replaces the collection with what the store holds. Missing or
// unreadable data yields an empty collection.
func (r *Repository) Load(ctx context.Context) []models.Report {
	r.mu.Lock()
	r.reports = r.read(ctx)
	r.lastID = 0
	for _, rep := range r.reports {
		if rep.ID > r.lastID {
			r.lastID = rep.ID
		}
	}
	out := r.snapshot()
	r.mu.Unlock()

	metrics.ReportsStored.Set(float64(len(out)))
	return out
}

func (r *Repository) read(ctx context.Context) []models.Report {
	raw, ok, err := r.kv.Get(ctx, KeyReports)
	if err != nil {
		r.failed("load", err)
		return []models.Report{}
	}
	if !ok || raw == "" {
		return []models.Report{}
	}
	var reports []models.Report
	if err := json.Unmarshal([]byte(raw), &reports); err != nil {
		r.failed("decode", err)
		return []models.Report{}
	}
	for i := range reports {
		reports[i].PhotoCount = max(reports[i].PhotoCount, len(reports[i].Photos))
	}
	return reports
}

// Save prepends report with a fresh ID and persists the collection. An
// explicit save must pass full validation. A silent one only needs a type
// and a description, otherwise it fails with validation.ErrIncomplete.
func (r *Repository) Save(ctx context.Context, report models.Report, silent bool) (models.Report, error) {
	if silent {
		if !validation.Quiet(report.ReportFields) {
			return models.Report{}, validation.ErrIncomplete
		}
	} else if err := validation.Validate(report.ReportFields); err != nil {
		return models.Report{}, err
	}
	if report.PhotoCount < len(report.Photos) {
		report.PhotoCount = len(report.Photos)
	}

	r.mu.Lock()
	report.ID = r.nextID()
	r.reports = append([]models.Report{report}, r.reports...)
	r.write(ctx, "save")
	out := r.snapshot()
	r.mu.Unlock()

	log.WithFields(log.Fields{
		"id":     report.ID,
		"type":   report.IncidentType,
		"photos": report.PhotoCount,
		"silent": silent,
	}).Info("report saved")
	r.changed(out)
	return report, nil
}

// Delete removes the report with id. It reports whether one was found.
func (r *Repository) Delete(ctx context.Context, id int64) bool {
	r.mu.Lock()
	found := false
	kept := make([]models.Report, 0, len(r.reports))
	for _, rep := range r.reports {
		if rep.ID == id {
			found = true
			continue
		}
		kept = append(kept, rep)
	}
	if !found {
		r.mu.Unlock()
		return false
	}
	r.reports = kept
	r.write(ctx, "delete")
	out := r.snapshot()
	r.mu.Unlock()

	r.changed(out)
	return true
}

// ClearAll empties the collection and removes the durable key.
func (r *Repository) ClearAll(ctx context.Context) {
	r.mu.Lock()
	r.reports = []models.Report{}
	if err := r.kv.Delete(ctx, KeyReports); err != nil {
		r.failed("clear", err)
	}
	out := r.snapshot()
	r.mu.Unlock()

	log.Info("all reports cleared")
	r.changed(out)
}

// List returns the collection, most recent first.
func (r *Repository) List() []models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Get looks up a report by id.
func (r *Repository) Get(id int64) (models.Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ID == id {
			return rep, true
		}
	}
	return models.Report{}, false
}

// nextID derives a millisecond timestamp ID, bumped when two saves land in
// the same millisecond. Must be called with mu held.
func (r *Repository) nextID() int64 {
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return id
}

// write persists the collection. Must be called with mu held.
func (r *Repository) write(ctx context.Context, op string) {
	data, err := json.Marshal(r.reports)
	if err != nil {
		r.failed(op, err)
		return
	}
	if err := r.kv.Set(ctx, KeyReports, string(data)); err != nil {
		r.failed(op, err)
	}
}

func (r *Repository) snapshot() []models.Report {
	out := make([]models.Report, len(r.reports))
	copy(out, r.reports)
	return out
}

func (r *Repository) failed(op string, err error) {
	metrics.PersistenceFailuresTotal.WithLabelValues(op).Inc()
	log.WithError(err).WithFields(log.Fields{"op": op, "key": KeyReports}).Warn("could not persist reports")
}

func (r *Repository) changed(reports []models.Report) {
	metrics.ReportsStored.Set(float64(len(reports)))
	if r.OnChange != nil {
		r.OnChange(reports)
	}
}
