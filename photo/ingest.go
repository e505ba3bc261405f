package photo

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"houtveilig/draft"
	"houtveilig/image"
	"houtveilig/metrics"
	"houtveilig/models"

	"github.com/apex/log"
)

// Compressor turns an uploaded image into a bounded JPEG.
type Compressor interface {
	Compress(data []byte) ([]byte, image.Result, error)
}

// Input is one selected file.
type Input struct {
	FileName string
	Data     []byte
}

// Admission describes how much of a selection was accepted.
type Admission struct {
	Admitted int    `json:"admitted"`
	Dropped  int    `json:"dropped"`
	Warning  string `json:"warning,omitempty"`
}

// Result is the completion of one photo task.
type Result struct {
	ID       string       `json:"id"`
	FileName string       `json:"file_name"`
	Photo    models.Photo `json:"-"`
	Applied  bool         `json:"applied"`
	Err      error        `json:"-"`
}

// Notice turns a failed result into a user-facing message.
func (r Result) Notice() *models.Notice {
	if r.Err == nil {
		return nil
	}
	return &models.Notice{
		Level:   models.NoticeError,
		Message: fmt.Sprintf("Could not process photo %s", r.FileName),
	}
}

// Batch tracks the tasks started for one selection.
type Batch struct {
	Admission
	wg      sync.WaitGroup
	results []Result
}

// Wait blocks until every task of the batch has completed and returns the
// results in selection order.
func (b *Batch) Wait() []Result {
	b.wg.Wait()
	return b.results
}

// Ingestor downscales selected photos and attaches them to the draft.
type Ingestor struct {
	compressor Compressor
	store      *draft.Store

	// OnResult, when set, is called once per completed task.
	OnResult func(Result)
}

func NewIngestor(compressor Compressor, store *draft.Store) *Ingestor {
	return &Ingestor{
		compressor: compressor,
		store:      store,
	}
}

// Ingest admits as many inputs as fit in the draft and processes each one on
// its own goroutine. Inputs beyond the limit are dropped with a warning.
func (i *Ingestor) Ingest(ctx context.Context, inputs []Input) *Batch {
	ids := i.store.Reserve(len(inputs))

	b := &Batch{
		Admission: Admission{
			Admitted: len(ids),
			Dropped:  len(inputs) - len(ids),
		},
		results: make([]Result, len(ids)),
	}
	if b.Dropped > 0 {
		b.Warning = fmt.Sprintf("%d photo(s) skipped (maximum %d allowed)", b.Dropped, i.store.MaxPhotos())
		metrics.PhotosProcessedTotal.WithLabelValues("dropped").Add(float64(b.Dropped))
		log.WithFields(log.Fields{
			"selected": len(inputs),
			"admitted": b.Admitted,
		}).Warn("photo selection exceeds limit")
	}

	for n, id := range ids {
		b.wg.Add(1)
		go func(n int, id string, in Input) {
			defer b.wg.Done()
			res := i.process(ctx, id, in)
			b.results[n] = res
			if i.OnResult != nil {
				i.OnResult(res)
			}
		}(n, id, inputs[n])
	}
	return b
}

func (i *Ingestor) process(ctx context.Context, id string, in Input) Result {
	res := Result{ID: id, FileName: in.FileName}
	start := time.Now()

	if err := ctx.Err(); err != nil {
		i.store.Release(id)
		res.Err = err
		metrics.PhotosProcessedTotal.WithLabelValues("error").Inc()
		return res
	}
	if !i.store.IsPending(id) {
		metrics.PhotosProcessedTotal.WithLabelValues("stale").Inc()
		return res
	}

	data, info, err := i.compressor.Compress(in.Data)
	metrics.PhotoProcessingSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		i.store.Release(id)
		res.Err = fmt.Errorf("failed to process %s: %w", in.FileName, err)
		metrics.PhotosProcessedTotal.WithLabelValues("error").Inc()
		log.WithError(err).WithField("file", in.FileName).Warn("photo processing failed")
		return res
	}

	res.Photo = models.Photo{
		ID:           id,
		EncodedImage: base64.StdEncoding.EncodeToString(data),
		FileName:     in.FileName,
	}
	res.Applied = i.store.Commit(id, res.Photo)
	if !res.Applied {
		metrics.PhotosProcessedTotal.WithLabelValues("stale").Inc()
		log.WithField("file", in.FileName).Debug("discarding photo completed after draft reset")
		return res
	}

	metrics.PhotosProcessedTotal.WithLabelValues("ok").Inc()
	log.WithFields(log.Fields{
		"file":   in.FileName,
		"width":  info.Width,
		"height": info.Height,
		"bytes":  info.OutputBytes,
	}).Debug("photo attached")
	return res
}

// Previews lists the draft photos in display order.
func Previews(photos []models.Photo) []models.PhotoPreview {
	out := make([]models.PhotoPreview, 0, len(photos))
	for n, p := range photos {
		out = append(out, models.PhotoPreview{
			Index:    n,
			ID:       p.ID,
			FileName: p.FileName,
			DataURL:  p.DataURL(),
		})
	}
	return out
}
