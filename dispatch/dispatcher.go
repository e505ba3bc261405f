package dispatch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"houtveilig/draft"
	"houtveilig/metrics"
	"houtveilig/models"
	"houtveilig/validation"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// ErrSubmissionInProgress is returned when a submit or save is already running.
var ErrSubmissionInProgress = errors.New("a submission is already in progress")

// Delivery channels
const (
	ChannelShare  = "share"
	ChannelMailto = "mailto"
	ChannelLocal  = "local"
)

// Reports persists finalized reports.
type Reports interface {
	Save(ctx context.Context, report models.Report, silent bool) (models.Report, error)
}

// PreferenceStore remembers the last used name and email.
type PreferenceStore interface {
	Load(ctx context.Context) models.Preferences
	Save(ctx context.Context, prefs models.Preferences)
}

// Result describes what a submission did.
type Result struct {
	Outcome   Outcome         `json:"outcome"`
	Channel   string          `json:"channel,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Body      string          `json:"body,omitempty"`
	MailtoURI string          `json:"mailto_uri,omitempty"`
	Report    *models.Report  `json:"report,omitempty"`
	Reset     bool            `json:"reset"`
	Notices   []models.Notice `json:"notices,omitempty"`
}

func (r *Result) notify(level, message string) {
	r.Notices = append(r.Notices, models.Notice{Level: level, Message: message})
}

// Options configures a Dispatcher.
type Options struct {
	AppName    string
	Location   *time.Location
	DateLayout string
	Sharer     Sharer
	Downloader Downloader
}

// Dispatcher turns the draft into a delivered and persisted report.
type Dispatcher struct {
	appName    string
	loc        *time.Location
	layout     string
	store      *draft.Store
	reports    Reports
	prefs      PreferenceStore
	downloader Downloader
	strategies []Strategy
	now        func() time.Time
	batchID    func(capturedAt time.Time) string

	inFlight atomic.Bool
	wg       sync.WaitGroup

	// OnDownloaded, when set, receives the URLs of photos written by the
	// mailto fallback.
	OnDownloaded func(urls []string)
}

func NewDispatcher(store *draft.Store, reports Reports, prefs PreferenceStore, opts Options) *Dispatcher {
	d := &Dispatcher{
		appName:    opts.AppName,
		loc:        opts.Location,
		layout:     opts.DateLayout,
		store:      store,
		reports:    reports,
		prefs:      prefs,
		downloader: opts.Downloader,
		now:        time.Now,
		batchID:    newBatchID,
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	if opts.Sharer != nil {
		d.strategies = append(d.strategies, &shareStrategy{sharer: opts.Sharer})
	}
	d.strategies = append(d.strategies, &mailtoStrategy{d: d})
	return d
}

// Submit validates the draft, delivers it through the first strategy that
// does not fail and saves it quietly. A cancelled share ends the submission
// without saving. The draft is reset only after a successful share.
func (d *Dispatcher) Submit(ctx context.Context) (*Result, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer d.inFlight.Store(false)

	snap := d.store.Snapshot()
	snap.ReportFields = normalize(snap.ReportFields)
	if err := validation.Validate(snap.ReportFields); err != nil {
		return nil, err
	}

	capturedAt := d.now()
	date := capturedAt.In(d.loc).Format(d.layout)
	prefs := snap.Preferences()
	d.prefs.Save(ctx, prefs)

	msg := Compose(d.appName, snap.ReportFields, len(snap.Photos), date)
	sub := &Submission{
		Message:   msg,
		Recipient: snap.RecipientEmail,
		Photos:    snap.Photos,
		Batch:     d.batchID(capturedAt),
	}
	res := &Result{Outcome: FailedTryNext, Subject: msg.Subject, Body: msg.Body}

	for _, s := range d.strategies {
		outcome, err := s.Deliver(ctx, sub, res)
		if err != nil {
			log.WithError(err).WithField("channel", s.Name()).Warn("delivery failed, trying next channel")
		}
		if outcome == FailedTryNext {
			continue
		}
		res.Outcome = outcome
		res.Channel = s.Name()
		break
	}
	metrics.SubmissionsTotal.WithLabelValues(res.Channel, res.Outcome.String()).Inc()

	if res.Outcome == Cancelled {
		log.Info("share cancelled by user")
		return res, nil
	}

	report := models.NewReport(snap, capturedAt, date)
	saved, err := d.reports.Save(ctx, report, true)
	if err != nil {
		return res, err
	}
	res.Report = &saved

	if res.Channel == ChannelShare && res.Outcome == Succeeded {
		d.store.Reset(prefs)
		res.Reset = true
	}

	log.WithFields(log.Fields{
		"channel": res.Channel,
		"outcome": res.Outcome.String(),
		"id":      saved.ID,
		"photos":  saved.PhotoCount,
	}).Info("report submitted")
	return res, nil
}

// SaveLocal stores the draft without sending it. It requires full validation
// and resets the draft on success, keeping the name and email just entered.
func (d *Dispatcher) SaveLocal(ctx context.Context) (*Result, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer d.inFlight.Store(false)

	snap := d.store.Snapshot()
	snap.ReportFields = normalize(snap.ReportFields)

	capturedAt := d.now()
	report := models.NewReport(snap, capturedAt, capturedAt.In(d.loc).Format(d.layout))
	saved, err := d.reports.Save(ctx, report, false)
	if err != nil {
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues(ChannelLocal, Succeeded.String()).Inc()

	d.store.Reset(snap.Preferences())
	res := &Result{
		Outcome: Succeeded,
		Channel: ChannelLocal,
		Report:  &saved,
		Reset:   true,
	}
	res.notify(models.NoticeSuccess, "Report saved locally! ✅")
	return res, nil
}

// newBatchID names the download folder of one submission. The random suffix
// keeps two submissions in the same millisecond apart.
func newBatchID(capturedAt time.Time) string {
	return strconv.FormatInt(capturedAt.UnixMilli(), 10) + "-" + uuid.NewString()[:8]
}

// Wait blocks until pending photo downloads have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) download(sub *Submission) {
	if d.downloader == nil {
		return
	}
	files, err := sub.Attachments()
	if err != nil {
		log.WithError(err).Warn("could not prepare photo downloads")
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		urls, err := d.downloader.Download(context.Background(), sub.Batch, files)
		if err != nil {
			log.WithError(err).WithField("batch", sub.Batch).Warn("photo download failed")
		}
		if len(urls) > 0 && d.OnDownloaded != nil {
			d.OnDownloaded(urls)
		}
	}()
}
