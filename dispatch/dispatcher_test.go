package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"houtveilig/draft"
	"houtveilig/models"
	"houtveilig/storage"
	"houtveilig/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapKV struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *mapKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeSharer struct {
	canShare bool
	err      error
	block    chan struct{}
	entered  chan struct{}

	mu       sync.Mutex
	payloads []SharePayload
}

func (f *fakeSharer) CanShare(SharePayload) bool { return f.canShare }

func (f *fakeSharer) Share(ctx context.Context, p SharePayload) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.payloads = append(f.payloads, p)
	f.mu.Unlock()
	return f.err
}

type recordingDownloader struct {
	mu      sync.Mutex
	batches map[string][]Attachment
}

func (r *recordingDownloader) Download(_ context.Context, batch string, files []Attachment) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batches == nil {
		r.batches = map[string][]Attachment{}
	}
	r.batches[batch] = files
	urls := make([]string, 0, len(files))
	for _, f := range files {
		urls = append(urls, "/exports/"+batch+"/"+f.Name)
	}
	return urls, nil
}

type fixture struct {
	store      *draft.Store
	kv         *mapKV
	repo       *storage.Repository
	prefs      *storage.Preferences
	sharer     *fakeSharer
	downloader *recordingDownloader
	d          *Dispatcher
}

func newFixture(sharer *fakeSharer) *fixture {
	f := &fixture{
		store:      draft.New(5),
		kv:         &mapKV{data: map[string]string{}},
		downloader: &recordingDownloader{},
		sharer:     sharer,
	}
	f.repo = storage.NewRepository(f.kv)
	f.prefs = storage.NewPreferences(f.kv)

	opts := Options{
		AppName:    "HoutVeilig",
		Location:   time.UTC,
		DateLayout: "02-01-2006 15:04",
		Downloader: f.downloader,
	}
	if sharer != nil {
		opts.Sharer = sharer
	}
	f.d = NewDispatcher(f.store, f.repo, f.prefs, opts)
	f.d.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	f.d.batchID = func(at time.Time) string { return strconv.FormatInt(at.UnixMilli(), 10) + "-a1b2c3d4" }
	return f
}

func (f *fixture) fill(t *testing.T, incident models.IncidentType, priority models.Priority, desc string) {
	t.Helper()
	name, email := "Jan de Vries", "veiligheid@example.com"
	f.store.Apply(models.DraftUpdate{
		IncidentType:   &incident,
		Priority:       &priority,
		Description:    &desc,
		ReporterName:   &name,
		RecipientEmail: &email,
	})
}

func (f *fixture) addPhotos(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		id := f.store.Reserve(1)[0]
		require.True(t, f.store.Commit(id, models.Photo{
			FileName:     "IMG_000" + string(rune('1'+i)) + ".jpg",
			EncodedImage: base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, byte(i)}),
		}))
	}
}

func TestSubmitMailtoWithoutPhotos(t *testing.T) {
	f := newFixture(nil)
	f.fill(t, models.IncidentDamage, models.PriorityCritical, "Cracked blade guard")

	res, err := f.d.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Succeeded, res.Outcome)
	assert.Equal(t, ChannelMailto, res.Channel)
	assert.Equal(t, "[HoutVeilig] 🔴 Critical - Damage - 01-03-2024 12:00", res.Subject)
	assert.True(t, strings.HasPrefix(res.MailtoURI, "mailto:veiligheid%40example.com?subject="))
	assert.Contains(t, res.MailtoURI, encodeURIComponent("[HoutVeilig] 🔴 Critical - Damage - 01-03-2024 12:00"))
	assert.Contains(t, res.MailtoURI, "Cracked%20blade%20guard")
	assert.NotContains(t, res.MailtoURI, "+")
	assert.Empty(t, res.Notices)
	assert.False(t, res.Reset)

	reports := f.repo.List()
	require.Len(t, reports, 1)
	assert.Equal(t, 0, reports[0].PhotoCount)
	assert.Equal(t, "Cracked blade guard", f.store.Snapshot().Description)
	assert.Equal(t, "Jan de Vries", f.prefs.Load(context.Background()).ReporterName)
}

func TestSubmitShareSuccessResetsDraft(t *testing.T) {
	sharer := &fakeSharer{canShare: true}
	f := newFixture(sharer)
	f.fill(t, models.IncidentNearMiss, models.PriorityHigh, "Forklift almost hit a colleague")
	f.addPhotos(t, 2)

	res, err := f.d.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ChannelShare, res.Channel)
	assert.Equal(t, Succeeded, res.Outcome)
	assert.True(t, res.Reset)
	assert.Empty(t, res.MailtoURI)

	require.Len(t, sharer.payloads, 1)
	files := sharer.payloads[0].Files
	require.Len(t, files, 2)
	assert.Equal(t, "report-photo-1.jpg", files[0].Name)
	assert.Equal(t, "report-photo-2.jpg", files[1].Name)
	assert.Equal(t, "image/jpeg", files[0].ContentType)

	reports := f.repo.List()
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].PhotoCount)
	assert.NotContains(t, f.kv.data[storage.KeyReports], base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0}))

	snap := f.store.Snapshot()
	assert.Empty(t, snap.Photos)
	assert.Empty(t, snap.Description)
	assert.Equal(t, "Jan de Vries", snap.ReporterName)
	assert.Equal(t, "veiligheid@example.com", snap.RecipientEmail)
}

func TestSubmitShareCancelledSavesNothing(t *testing.T) {
	f := newFixture(&fakeSharer{canShare: true, err: ErrShareCancelled})
	f.fill(t, models.IncidentDamage, models.PriorityLow, "Loose plank")
	f.addPhotos(t, 1)

	res, err := f.d.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Cancelled, res.Outcome)
	assert.Nil(t, res.Report)
	assert.Empty(t, f.repo.List())
	assert.Len(t, f.store.Photos(), 1)
	f.d.Wait()
	assert.Empty(t, f.downloader.batches)
}

func TestSubmitShareFailureFallsBackToMailto(t *testing.T) {
	f := newFixture(&fakeSharer{canShare: true, err: errors.New("share target crashed")})
	f.fill(t, models.IncidentDamage, models.PriorityMedium, "Broken lamp")
	f.addPhotos(t, 2)

	var downloaded []string
	f.d.OnDownloaded = func(urls []string) { downloaded = urls }

	res, err := f.d.Submit(context.Background())
	require.NoError(t, err)
	f.d.Wait()

	assert.Equal(t, ChannelMailto, res.Channel)
	assert.NotEmpty(t, res.MailtoURI)
	assert.False(t, res.Reset)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, models.NoticeWarning, res.Notices[0].Level)
	assert.Equal(t, []string{
		"/exports/1709294400000-a1b2c3d4/report-photo-1.jpg",
		"/exports/1709294400000-a1b2c3d4/report-photo-2.jpg",
	}, downloaded)

	reports := f.repo.List()
	require.Len(t, reports, 1)
	assert.Equal(t, 2, reports[0].PhotoCount)
	assert.Len(t, f.store.Photos(), 2)
}

func TestSubmitUnshareablePayloadFallsBackToMailto(t *testing.T) {
	sharer := &fakeSharer{canShare: false}
	f := newFixture(sharer)
	f.fill(t, models.IncidentOther, models.PriorityLow, "Spilled oil")
	f.addPhotos(t, 1)

	res, err := f.d.Submit(context.Background())
	require.NoError(t, err)
	f.d.Wait()

	assert.Equal(t, ChannelMailto, res.Channel)
	assert.Empty(t, sharer.payloads)
	assert.Len(t, f.downloader.batches["1709294400000-a1b2c3d4"], 1)
}

func TestSubmitsInSameMillisecondGetSeparateDownloads(t *testing.T) {
	f := newFixture(nil)
	f.d.batchID = newBatchID
	f.fill(t, models.IncidentDamage, models.PriorityHigh, "Worn chain on the saw")
	f.addPhotos(t, 1)

	for i := 0; i < 2; i++ {
		_, err := f.d.Submit(context.Background())
		require.NoError(t, err)
	}
	f.d.Wait()

	require.Len(t, f.downloader.batches, 2)
	for batch := range f.downloader.batches {
		assert.True(t, strings.HasPrefix(batch, "1709294400000-"), batch)
	}
}

func TestSubmitValidationFails(t *testing.T) {
	f := newFixture(nil)
	damage := models.IncidentDamage
	f.store.Apply(models.DraftUpdate{IncidentType: &damage})

	_, err := f.d.Submit(context.Background())
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validation.FieldReporterName, verr.Field)
	assert.Empty(t, f.repo.List())
}

func TestSubmitIsNotReentrant(t *testing.T) {
	sharer := &fakeSharer{canShare: true, block: make(chan struct{}), entered: make(chan struct{}, 1)}
	f := newFixture(sharer)
	f.fill(t, models.IncidentDamage, models.PriorityHigh, "Blade guard")
	f.addPhotos(t, 1)

	done := make(chan error, 1)
	go func() {
		_, err := f.d.Submit(context.Background())
		done <- err
	}()
	<-sharer.entered

	_, err := f.d.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)
	_, err = f.d.SaveLocal(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(sharer.block)
	require.NoError(t, <-done)
	assert.Len(t, f.repo.List(), 1)
}

func TestSaveLocal(t *testing.T) {
	f := newFixture(nil)
	f.prefs.Save(context.Background(), models.Preferences{ReporterName: "Jan de Vries"})
	f.fill(t, models.IncidentUnsafeAct, models.PriorityMedium, "No gloves at the saw")
	f.addPhotos(t, 1)

	res, err := f.d.SaveLocal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ChannelLocal, res.Channel)
	assert.True(t, res.Reset)
	require.Len(t, res.Notices, 1)
	assert.Equal(t, models.NoticeSuccess, res.Notices[0].Level)
	require.NotNil(t, res.Report)
	assert.Equal(t, 1, res.Report.PhotoCount)

	snap := f.store.Snapshot()
	assert.Empty(t, snap.Description)
	assert.Equal(t, "Jan de Vries", snap.ReporterName)
}

func TestSaveLocalKeepsEnteredNameAndEmail(t *testing.T) {
	f := newFixture(nil)
	f.prefs.Save(context.Background(), models.Preferences{ReporterName: "Old Name", RecipientEmail: "old@example.com"})
	f.fill(t, models.IncidentDamage, models.PriorityLow, "Split handle on the axe")

	_, err := f.d.SaveLocal(context.Background())
	require.NoError(t, err)

	snap := f.store.Snapshot()
	assert.Empty(t, snap.Description)
	assert.Equal(t, "Jan de Vries", snap.ReporterName)
	assert.Equal(t, "veiligheid@example.com", snap.RecipientEmail)
}

func TestSaveLocalRequiresFullValidation(t *testing.T) {
	f := newFixture(nil)
	other := models.IncidentOther
	desc := "Quiet-valid but no name or priority"
	f.store.Apply(models.DraftUpdate{IncidentType: &other, Description: &desc})

	_, err := f.d.SaveLocal(context.Background())
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, f.repo.List())
	assert.Equal(t, desc, f.store.Snapshot().Description)
}
