package service

import (
	"context"
	"database/sql"

	"houtveilig/config"
	"houtveilig/dispatch"
	"houtveilig/draft"
	"houtveilig/email"
	"houtveilig/handlers"
	"houtveilig/image"
	"houtveilig/location"
	"houtveilig/models"
	"houtveilig/overview"
	"houtveilig/photo"
	"houtveilig/sso"
	"houtveilig/storage"
	"houtveilig/websocket"

	"github.com/apex/log"
)

// Service owns the draft, the report collection and everything that feeds
// them for one form session.
type Service struct {
	config   *config.Config
	db       *sql.DB
	handlers *handlers.Handlers
	deps     handlers.Deps
}

// NewService connects to the configured store and builds the service.
func NewService(cfg *config.Config) (*Service, error) {
	db, kv, err := storage.Open(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	s := New(cfg, kv)
	s.db = db
	return s, nil
}

// New builds the service on top of an existing KV store.
func New(cfg *config.Config, kv storage.KV) *Service {
	hub := websocket.NewHub()
	store := draft.New(cfg.MaxPhotos)
	repo := storage.NewRepository(kv)
	prefs := storage.NewPreferences(kv)

	provider := location.NewReportedProvider()
	acquirer := location.NewAcquirer(provider, location.Options{
		HighAccuracy: true,
		Timeout:      cfg.LocationTimeout,
		MaxCachedAge: cfg.LocationMaxAge,
	})

	opts := dispatch.Options{
		AppName:    cfg.AppName,
		Location:   cfg.Location(),
		DateLayout: cfg.DateLayout,
		Downloader: dispatch.NewDirDownloader(cfg.ExportDir, "/exports"),
	}
	if cfg.SendGridAPIKey != "" {
		opts.Sharer = email.NewSharer(cfg)
	}

	deps := handlers.Deps{
		Config:     cfg,
		Hub:        hub,
		Store:      store,
		Ingestor:   photo.NewIngestor(image.NewCompressor(cfg.MaxImageDimension, cfg.JPEGQuality), store),
		Acquirer:   acquirer,
		Provider:   provider,
		Dispatcher: dispatch.NewDispatcher(store, repo, prefs, opts),
		Reports:    repo,
		Prefs:      prefs,
		Session:    sso.NewSession(cfg.SSOJWTSecret),
	}

	s := &Service{
		config:   cfg,
		deps:     deps,
		handlers: handlers.NewHandlers(deps),
	}
	s.wire()
	return s
}

// wire turns state changes into events for connected forms.
func (s *Service) wire() {
	d := s.deps

	d.Store.OnChange = func(draft models.ReportDraft) {
		d.Hub.Broadcast(models.EventDraft, draft.ReportFields)
		d.Hub.Broadcast(models.EventPhotos, photo.Previews(draft.Photos))
	}
	d.Reports.OnChange = func(reports []models.Report) {
		d.Hub.Broadcast(models.EventReports, overview.Cards(reports))
	}
	d.Ingestor.OnResult = func(r photo.Result) {
		if n := r.Notice(); n != nil {
			d.Hub.Toast(n.Level, n.Message)
		}
	}
	d.Acquirer.OnStatus = func(st location.Status, loc *models.Location) {
		if loc != nil {
			d.Store.SetLocation(*loc)
		}
		d.Hub.Broadcast(models.EventLocation, st)
	}
	d.Provider.OnRequest = func(opts location.Options) {
		d.Hub.Broadcast(models.EventLocationRequest, opts)
	}
	d.Dispatcher.OnDownloaded = func(urls []string) {
		d.Hub.Broadcast(models.EventDownloads, urls)
	}
	d.Hub.OnMessage = s.handlers.HandleInbound
}

// Start loads persisted state and starts the event hub.
func (s *Service) Start() error {
	log.Info("Starting incident report service...")
	ctx := context.Background()

	go s.deps.Hub.Run()

	reports := s.deps.Reports.Load(ctx)
	prefs := s.deps.Prefs.Load(ctx)
	s.deps.Store.Reset(prefs)
	log.WithFields(log.Fields{
		"reports":    len(reports),
		"remembered": prefs.ReporterName != "",
	}).Info("Loaded saved state")

	log.Info("Incident report service started successfully")
	return nil
}

// Stop stops the service gracefully
func (s *Service) Stop() error {
	log.Info("Stopping incident report service...")
	s.deps.Dispatcher.Wait()
	s.deps.Hub.Stop()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Errorf("Error closing database: %v", err)
		}
	}
	log.Info("Incident report service stopped")
	return nil
}

// GetHandlers returns the HTTP handlers
func (s *Service) GetHandlers() *handlers.Handlers {
	return s.handlers
}
