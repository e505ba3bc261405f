package draft

import (
	"errors"
	"strings"
	"sync"

	"houtveilig/models"

	"github.com/google/uuid"
)

var ErrPhotoIndex = errors.New("photo index out of range")

// Admit returns how many photos of a batch of size k fit next to the current
// ones: min(k, maxPhotos-current), never negative.
func Admit(k, current, maxPhotos int) int {
	room := maxPhotos - current
	if room <= 0 || k <= 0 {
		return 0
	}
	if k < room {
		return k
	}
	return room
}

// Store owns the single in-progress report. All mutations go through it.
type Store struct {
	mu        sync.Mutex
	draft     models.ReportDraft
	pending   map[string]struct{}
	maxPhotos int

	// OnChange, when set, receives a snapshot after every mutation.
	OnChange func(models.ReportDraft)
}

// New creates an empty draft limited to maxPhotos photos.
func New(maxPhotos int) *Store {
	return &Store{
		pending:   make(map[string]struct{}),
		maxPhotos: maxPhotos,
	}
}

// MaxPhotos is the photo limit of the draft.
func (s *Store) MaxPhotos() int {
	return s.maxPhotos
}

// Snapshot returns a deep copy of the draft.
func (s *Store) Snapshot() models.ReportDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Apply merges a partial form edit into the draft.
func (s *Store) Apply(u models.DraftUpdate) {
	s.mutate(func(d *models.ReportDraft) bool {
		if u.IncidentType != nil {
			d.IncidentType = *u.IncidentType
		}
		if u.ReporterName != nil {
			d.ReporterName = *u.ReporterName
		}
		if u.LocationDescription != nil {
			d.LocationDescription = *u.LocationDescription
		}
		if u.Priority != nil {
			d.Priority = *u.Priority
		}
		if u.Description != nil {
			d.Description = *u.Description
		}
		if u.CorrectiveAction != nil {
			d.CorrectiveAction = *u.CorrectiveAction
		}
		if u.RecipientEmail != nil {
			d.RecipientEmail = *u.RecipientEmail
		}
		return true
	})
}

// SetLocation replaces the resolved location.
func (s *Store) SetLocation(loc models.Location) {
	s.mutate(func(d *models.ReportDraft) bool {
		d.Location = &loc
		return true
	})
}

// Reserve claims slots for up to n photos that are still being processed and
// returns one ID per admitted photo. Pending photos count against the limit.
func (s *Store) Reserve(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	admitted := Admit(n, len(s.draft.Photos)+len(s.pending), s.maxPhotos)
	ids := make([]string, 0, admitted)
	for i := 0; i < admitted; i++ {
		id := uuid.NewString()
		s.pending[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Commit attaches a processed photo if its reservation is still a member of
// the draft. It returns false for stale completions (draft reset meanwhile).
func (s *Store) Commit(id string, photo models.Photo) bool {
	return s.mutate(func(d *models.ReportDraft) bool {
		if _, ok := s.pending[id]; !ok {
			return false
		}
		delete(s.pending, id)
		photo.ID = id
		d.Photos = append(d.Photos, photo)
		return true
	})
}

// Release gives back a reservation whose processing failed.
func (s *Store) Release(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// IsPending reports whether id is reserved but not yet committed.
func (s *Store) IsPending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

// RemovePhoto removes the photo at index.
func (s *Store) RemovePhoto(index int) (models.Photo, error) {
	var removed models.Photo
	err := ErrPhotoIndex
	s.mutate(func(d *models.ReportDraft) bool {
		if index < 0 || index >= len(d.Photos) {
			return false
		}
		removed = d.Photos[index]
		d.Photos = append(d.Photos[:index:index], d.Photos[index+1:]...)
		err = nil
		return true
	})
	return removed, err
}

// Photos returns a copy of the committed photos in display order.
func (s *Store) Photos() []models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Photo, len(s.draft.Photos))
	copy(out, s.draft.Photos)
	return out
}

// PhotoCount counts committed and pending photos.
func (s *Store) PhotoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.draft.Photos) + len(s.pending)
}

// Reset empties the draft, drops pending photos and restores the remembered
// reporter name and recipient email.
func (s *Store) Reset(prefs models.Preferences) {
	s.mutate(func(d *models.ReportDraft) bool {
		*d = models.ReportDraft{}
		d.ReporterName = prefs.ReporterName
		d.RecipientEmail = prefs.RecipientEmail
		for id := range s.pending {
			delete(s.pending, id)
		}
		return true
	})
}

// Prefill sets the reporter name and recipient email unless they are blank.
func (s *Store) Prefill(name, email string) {
	s.mutate(func(d *models.ReportDraft) bool {
		changed := false
		if name = strings.TrimSpace(name); name != "" {
			d.ReporterName = name
			changed = true
		}
		if email = strings.TrimSpace(email); email != "" {
			d.RecipientEmail = email
			changed = true
		}
		return changed
	})
}

// mutate runs fn under the lock and notifies OnChange when fn reports a change.
func (s *Store) mutate(fn func(d *models.ReportDraft) bool) bool {
	s.mu.Lock()
	changed := fn(&s.draft)
	var snap models.ReportDraft
	if changed {
		snap = s.draft.Clone()
	}
	onChange := s.OnChange
	s.mu.Unlock()

	if changed && onChange != nil {
		onChange(snap)
	}
	return changed
}
