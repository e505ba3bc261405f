package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"houtveilig/config"
	"houtveilig/dispatch"
	"houtveilig/draft"
	"houtveilig/location"
	"houtveilig/models"
	"houtveilig/photo"
	"houtveilig/sso"
	"houtveilig/storage"
	"houtveilig/validation"
	ws "houtveilig/websocket"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
)

// MaxUploadBytes bounds a single selected photo before downscaling.
const MaxUploadBytes = 25 << 20

// Deps are the components the HTTP surface drives.
type Deps struct {
	Config     *config.Config
	Hub        *ws.Hub
	Store      *draft.Store
	Ingestor   *photo.Ingestor
	Acquirer   *location.Acquirer
	Provider   *location.ReportedProvider
	Dispatcher *dispatch.Dispatcher
	Reports    *storage.Repository
	Prefs      *storage.Preferences
	Session    *sso.Session
}

// Handlers contains all HTTP handlers
type Handlers struct {
	Deps
}

// NewHandlers creates a new handlers instance
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// DraftView is the draft as the form renders it.
type DraftView struct {
	models.ReportFields
	Photos     []models.PhotoPreview `json:"photos"`
	PhotoCount int                   `json:"photo_count"`
	MaxPhotos  int                   `json:"max_photos"`
}

func (h *Handlers) draftView() DraftView {
	d := h.Store.Snapshot()
	return DraftView{
		ReportFields: d.ReportFields,
		Photos:       photo.Previews(d.Photos),
		PhotoCount:   h.Store.PhotoCount(),
		MaxPhotos:    h.Store.MaxPhotos(),
	}
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Timestamp        string `json:"timestamp"`
	ConnectedClients int    `json:"connected_clients"`
	Reports          int    `json:"reports"`
}

// HealthCheck returns the service health status
func (h *Handlers) HealthCheck(c *gin.Context) {
	clients, _ := h.Hub.GetStats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:           "healthy",
		Service:          "houtveilig",
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
		ConnectedClients: clients,
		Reports:          len(h.Reports.List()),
	})
}

// WebSocket upgrader
var upgrader = gorilla.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Events upgrades to the form's event stream.
func (h *Handlers) Events(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Failed to upgrade connection to WebSocket: %v", err)
		return
	}
	ws.NewClient(h.Hub, conn)
	log.Debug("WebSocket connection established")
}

// GetDraft handles GET /api/v1/draft
func (h *Handlers) GetDraft(c *gin.Context) {
	c.JSON(http.StatusOK, h.draftView())
}

// UpdateDraft handles PATCH /api/v1/draft
func (h *Handlers) UpdateDraft(c *gin.Context) {
	var u models.DraftUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := u.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Store.Apply(u)
	c.JSON(http.StatusOK, h.draftView())
}

// ResetDraft handles DELETE /api/v1/draft. The reporter name and recipient
// email survive the reset.
func (h *Handlers) ResetDraft(c *gin.Context) {
	h.Store.Reset(h.Store.Snapshot().Preferences())
	c.JSON(http.StatusOK, h.draftView())
}

// AddPhotos handles POST /api/v1/draft/photos. Photos are processed in the
// background unless ?wait=true is given.
func (h *Handlers) AddPhotos(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form with photos required"})
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no photos selected"})
		return
	}

	inputs := make([]photo.Input, 0, len(files))
	for _, fh := range files {
		if fh.Size > MaxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large: " + fh.Filename})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read " + fh.Filename})
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes))
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read " + fh.Filename})
			return
		}
		inputs = append(inputs, photo.Input{FileName: fh.Filename, Data: data})
	}

	// processing outlives the request
	batch := h.Ingestor.Ingest(context.Background(), inputs)
	if batch.Warning != "" {
		h.Hub.Toast(models.NoticeWarning, batch.Warning)
	}

	if c.Query("wait") != "true" {
		c.JSON(http.StatusAccepted, batch.Admission)
		return
	}
	results := batch.Wait()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"admission": batch.Admission,
		"results":   results,
		"failed":    failed,
		"draft":     h.draftView(),
	})
}

func photoIndex(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo index"})
		return 0, false
	}
	return index, true
}

// RemovePhoto handles DELETE /api/v1/draft/photos/:index
func (h *Handlers) RemovePhoto(c *gin.Context) {
	index, ok := photoIndex(c)
	if !ok {
		return
	}
	if _, err := h.Store.RemovePhoto(index); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.Hub.Toast(models.NoticeWarning, "Photo removed")
	c.JSON(http.StatusOK, h.draftView())
}

// GetPhoto handles GET /api/v1/draft/photos/:index
func (h *Handlers) GetPhoto(c *gin.Context) {
	index, ok := photoIndex(c)
	if !ok {
		return
	}
	photos := h.Store.Photos()
	if index < 0 || index >= len(photos) {
		c.JSON(http.StatusNotFound, gin.H{"error": draft.ErrPhotoIndex.Error()})
		return
	}
	data, err := photos[index].Bytes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt photo"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// AcquireLocation handles POST /api/v1/location/acquire. It blocks until the
// fix arrives or the location timeout passes.
func (h *Handlers) AcquireLocation(c *gin.Context) {
	st, _ := h.Acquirer.Acquire(c.Request.Context())
	c.JSON(http.StatusOK, st)
}

// LocationFixRequest is posted by the browser with the outcome of a
// geolocation request.
type LocationFixRequest struct {
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Accuracy    float64  `json:"accuracy"`
	ErrorCode   *int     `json:"error_code"`
	Unsupported bool     `json:"unsupported"`
}

// LocationFix handles POST /api/v1/location/fix
func (h *Handlers) LocationFix(c *gin.Context) {
	var req LocationFixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.applyFix(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

var errEmptyFix = errors.New("latitude and longitude, error_code or unsupported required")

func (h *Handlers) applyFix(req LocationFixRequest) error {
	switch {
	case req.Unsupported:
		h.Provider.MarkUnsupported()
	case req.ErrorCode != nil:
		h.Provider.Fail(location.ErrorCode(*req.ErrorCode))
	case req.Latitude != nil && req.Longitude != nil:
		return h.Provider.Report(location.Fix{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Accuracy:  req.Accuracy,
		})
	default:
		return errEmptyFix
	}
	return nil
}

// HandleInbound routes messages sent over the event stream.
func (h *Handlers) HandleInbound(msg ws.Inbound) {
	switch msg.Type {
	case models.EventLocation:
		var req LocationFixRequest
		if err := bindRaw(msg.Data, &req); err != nil {
			log.WithError(err).Debug("ignoring malformed location message")
			return
		}
		if err := h.applyFix(req); err != nil {
			log.WithError(err).Debug("ignoring invalid location message")
		}
	default:
		log.Debugf("ignoring %q message", msg.Type)
	}
}

// LocationStatusView is the indicator state plus the number of requests
// still waiting for the browser to answer.
type LocationStatusView struct {
	location.Status
	Waiting int `json:"waiting"`
}

// LocationStatus handles GET /api/v1/location/status
func (h *Handlers) LocationStatus(c *gin.Context) {
	c.JSON(http.StatusOK, LocationStatusView{
		Status:  h.Acquirer.Status(),
		Waiting: h.Provider.Waiting(),
	})
}

// Submit handles POST /api/v1/submit
func (h *Handlers) Submit(c *gin.Context) {
	res, err := h.Dispatcher.Submit(c.Request.Context())
	h.respondDispatch(c, res, err)
}

// SaveLocal handles POST /api/v1/save
func (h *Handlers) SaveLocal(c *gin.Context) {
	res, err := h.Dispatcher.SaveLocal(c.Request.Context())
	h.respondDispatch(c, res, err)
}

func (h *Handlers) respondDispatch(c *gin.Context, res *dispatch.Result, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		h.Hub.Toast(models.NoticeError, verr.Message)
		c.JSON(http.StatusUnprocessableEntity, verr)
		return
	case errors.Is(err, dispatch.ErrSubmissionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.WithError(err).Error("submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}

	for _, n := range res.Notices {
		h.Hub.Toast(n.Level, n.Message)
	}
	c.JSON(http.StatusOK, res)
}

// CreateSession handles POST /api/v1/session with the SSO ID token.
func (h *Handlers) CreateSession(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token required"})
		return
	}
	name, err := h.Session.Authenticate(req.IDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	h.Store.Prefill(name, "")
	c.JSON(http.StatusOK, gin.H{
		"display_name": name,
		"username":     h.Session.Username(),
	})
}

// SessionView tells the form who is signed in once sign-in has settled.
type SessionView struct {
	Settled     bool   `json:"settled"`
	SignedIn    bool   `json:"signed_in"`
	DisplayName string `json:"display_name,omitempty"`
	Username    string `json:"username,omitempty"`
}

func sessionState(id sso.Identity) SessionView {
	var view SessionView
	select {
	case <-id.Ready():
		view.Settled = true
	default:
	}
	view.DisplayName, view.SignedIn = id.DisplayName()
	return view
}

// GetSession handles GET /api/v1/session
func (h *Handlers) GetSession(c *gin.Context) {
	view := sessionState(h.Session)
	view.Username = h.Session.Username()
	c.JSON(http.StatusOK, view)
}

// DeleteSession handles DELETE /api/v1/session, sent on sign-out or when the
// reporter continues without signing in.
func (h *Handlers) DeleteSession(c *gin.Context) {
	h.Session.SignOut()
	h.Session.Anonymous()
	c.Status(http.StatusNoContent)
}

// GetPreferences handles GET /api/v1/preferences
func (h *Handlers) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.Prefs.Load(c.Request.Context()))
}
