package draft

import (
	"sync"
	"testing"

	"houtveilig/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestAdmit(t *testing.T) {
	tests := []struct {
		name     string
		k        int
		current  int
		max      int
		expected int
	}{
		{"empty draft", 3, 0, 5, 3},
		{"exactly fills", 2, 3, 5, 2},
		{"overflow", 3, 4, 5, 1},
		{"full", 2, 5, 5, 0},
		{"over full", 1, 7, 5, 0},
		{"nothing offered", 0, 0, 5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Admit(tt.k, tt.current, tt.max))
		})
	}
}

func TestApplyAndSnapshot(t *testing.T) {
	s := New(5)
	damage := models.IncidentDamage
	s.Apply(models.DraftUpdate{IncidentType: &damage, ReporterName: strPtr("Jan")})
	s.Apply(models.DraftUpdate{Description: strPtr("Broken railing")})

	snap := s.Snapshot()
	assert.Equal(t, models.IncidentDamage, snap.IncidentType)
	assert.Equal(t, "Jan", snap.ReporterName)
	assert.Equal(t, "Broken railing", snap.Description)

	snap.ReporterName = "mutated"
	assert.Equal(t, "Jan", s.Snapshot().ReporterName)
}

func TestReserveCountsPending(t *testing.T) {
	s := New(5)
	first := s.Reserve(3)
	require.Len(t, first, 3)

	second := s.Reserve(4)
	assert.Len(t, second, 2)
	assert.Equal(t, 5, s.PhotoCount())
	assert.Empty(t, s.Reserve(1))
}

func TestCommitAfterResetIsDiscarded(t *testing.T) {
	s := New(5)
	ids := s.Reserve(2)
	require.Len(t, ids, 2)

	assert.True(t, s.Commit(ids[0], models.Photo{FileName: "a.jpg", EncodedImage: "AAAA"}))
	s.Reset(models.Preferences{ReporterName: "Jan"})
	assert.False(t, s.Commit(ids[1], models.Photo{FileName: "b.jpg"}))

	snap := s.Snapshot()
	assert.Empty(t, snap.Photos)
	assert.Equal(t, "Jan", snap.ReporterName)
	assert.Equal(t, 0, s.PhotoCount())
}

func TestReleaseFreesSlot(t *testing.T) {
	s := New(1)
	ids := s.Reserve(1)
	require.Len(t, ids, 1)
	assert.True(t, s.IsPending(ids[0]))

	s.Release(ids[0])
	assert.False(t, s.IsPending(ids[0]))
	assert.Len(t, s.Reserve(1), 1)
}

func TestRemovePhoto(t *testing.T) {
	s := New(5)
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		id := s.Reserve(1)[0]
		require.True(t, s.Commit(id, models.Photo{FileName: name}))
	}

	removed, err := s.RemovePhoto(1)
	require.NoError(t, err)
	assert.Equal(t, "b.jpg", removed.FileName)

	photos := s.Photos()
	require.Len(t, photos, 2)
	assert.Equal(t, "a.jpg", photos[0].FileName)
	assert.Equal(t, "c.jpg", photos[1].FileName)

	_, err = s.RemovePhoto(2)
	assert.ErrorIs(t, err, ErrPhotoIndex)
	_, err = s.RemovePhoto(-1)
	assert.ErrorIs(t, err, ErrPhotoIndex)
}

func TestResetRestoresPreferences(t *testing.T) {
	s := New(5)
	other := models.IncidentOther
	s.Apply(models.DraftUpdate{IncidentType: &other, ReporterName: strPtr("Someone"), Description: strPtr("x")})
	s.SetLocation(models.Location{Latitude: 52, Longitude: 4})

	s.Reset(models.Preferences{ReporterName: "Jan", RecipientEmail: "safety@example.com"})

	snap := s.Snapshot()
	assert.Equal(t, models.IncidentUnset, snap.IncidentType)
	assert.Empty(t, snap.Description)
	assert.Nil(t, snap.Location)
	assert.Equal(t, "Jan", snap.ReporterName)
	assert.Equal(t, "safety@example.com", snap.RecipientEmail)
}

func TestPrefillSkipsBlank(t *testing.T) {
	s := New(5)
	s.Prefill("Jan", "")
	s.Prefill("  ", "safety@example.com")

	snap := s.Snapshot()
	assert.Equal(t, "Jan", snap.ReporterName)
	assert.Equal(t, "safety@example.com", snap.RecipientEmail)
}

func TestOnChange(t *testing.T) {
	s := New(5)
	var got []models.ReportDraft
	s.OnChange = func(d models.ReportDraft) { got = append(got, d) }

	s.Apply(models.DraftUpdate{ReporterName: strPtr("Jan")})
	_, _ = s.RemovePhoto(0)
	s.Prefill("", "")

	require.Len(t, got, 1)
	assert.Equal(t, "Jan", got[0].ReporterName)
}

func TestConcurrentReserveNeverExceedsMax(t *testing.T) {
	s := New(5)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(s.Reserve(2))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, total)
}
