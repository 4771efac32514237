// Package starcms is a content engine for an entertainment site built with
// Go, Echo, and templ. It serves public celebrity, movie and news pages and a
// superadmin API whose editor sessions assemble documents field by field and
// stream media to object storage.
//
// Users provide their own templ templates via the ViewFuncs struct, and
// starcms handles the handler logic, middleware, and database operations.
package starcms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/form"
	"github.com/eringen/starcms/storage"
	"github.com/eringen/starcms/upload"
)

// ViewFuncs holds user-provided templ components that the framework calls
// when rendering pages.
type ViewFuncs struct {
	Home           func(site SiteConfig, data HomeData) templ.Component
	Celebrities    func(site SiteConfig, list CelebrityList) templ.Component
	Celebrity      func(site SiteConfig, profile CelebrityProfile) templ.Component
	UpcomingMovies func(site SiteConfig, page MoviesPage) templ.Component
	NewsArticle    func(site SiteConfig, page NewsPage) templ.Component
	AdminLogin     func(showError bool, csrfToken string) templ.Component
	AdminDashboard func(site SiteConfig, stats []KindStats, csrfToken string) templ.Component
	NotFound       func() templ.Component
	ServerError    func() templ.Component
}

// App is the central starcms application. It wires together the store,
// cache, upload pipeline, editor sessions, handlers, and middleware.
type App struct {
	Config  SiteConfig
	Echo    *echo.Echo
	Store   *Store
	Cache   *ContentCache
	Views   ViewFuncs
	Logger  *zap.Logger
	Uploads *upload.Pipeline
	Forms   *form.Registry

	objects      storage.ObjectStore
	loginLimiter *LoginLimiter
	customRoutes []func(*App)
	staticDir    string
	isAdmin      func(echo.Context) bool
	clock        func() time.Time

	stopJanitor context.CancelFunc
	janitorDone sync.WaitGroup
}

// New creates a new starcms App with the given configuration and view functions.
func New(cfg SiteConfig, views ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     views,
		Logger:    zap.NewNop(),
		staticDir: "public",
		isAdmin:   IsAdmin,
	}
	a.Echo.HideBanner = true

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Start initializes the database, cache, storage, middleware, routes, and
// starts the server. It blocks until the server stops.
func (a *App) Start() error {
	if a.Config.AdminPassword == "" {
		return fmt.Errorf("starcms: AdminPassword is required")
	}
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("starcms: SessionSecret is required")
	}

	if err := a.init(context.Background()); err != nil {
		return err
	}

	a.setupMiddleware()
	a.setupRoutes()
	for _, fn := range a.customRoutes {
		fn(a)
	}

	a.startJanitor(time.Minute)

	a.Logger.Info("listening", zap.String("addr", a.Config.Addr), zap.String("storage", a.Config.Storage.Backend))
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// init builds every collaborator the handlers need.
func (a *App) init(ctx context.Context) error {
	store, err := NewStore(ctx, a.Config.DatabasePath)
	if err != nil {
		return fmt.Errorf("starcms: init store: %w", err)
	}
	a.Store = store
	a.Cache = NewContentCache(a.Store, a.Config.ContentCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	if a.objects == nil {
		objects, err := newObjectStore(a.Config)
		if err != nil {
			return err
		}
		a.objects = objects
	}
	a.Uploads = upload.New(a.objects, upload.NewTracker(),
		upload.WithLogger(a.Logger.Named("upload")),
		upload.WithMaxSize(int64(a.Config.Uploads.MaxSizeMB)<<20),
		upload.WithImageOptimization(a.Config.Uploads.MaxImageWidth),
		upload.WithBatchConcurrency(a.Config.Uploads.BatchConcurrency),
	)
	a.Forms = form.NewRegistry(a.Config.FormSessionTTL)
	return nil
}

func newObjectStore(cfg SiteConfig) (storage.ObjectStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		// the client is built on first upload so a missing bucket does not
		// keep the public site from starting
		return storage.LazyS3(cfg.Storage.S3), nil
	case "local":
		return storage.NewLocalStore(cfg.Storage.LocalDir, cfg.Storage.PublicBaseURL), nil
	case "memory":
		return storage.NewMemoryStore(cfg.Storage.PublicBaseURL), nil
	}
	return nil, fmt.Errorf("starcms: unknown storage backend %q", cfg.Storage.Backend)
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	// Public routes
	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.GET("/celebrities/", a.handleCelebrities)
	e.GET("/celebrities/:slug/", a.handleCelebrity)
	e.GET("/movies/upcoming/", a.handleUpcomingMovies)
	e.GET("/news/:slug/", a.handleNewsArticle)

	// Admin pages
	e.GET("/admin/", a.handleAdmin)
	e.POST("/admin/login/", a.handleAdminLogin)
	e.POST("/admin/logout/", handleAdminLogout)

	// Admin JSON API
	api := e.Group("/admin/api", a.requireAdmin)
	api.GET("/:kind", a.handleList)
	api.GET("/:kind/stats", a.handleStats)
	api.GET("/:kind/:id", a.handleGet)
	api.POST("/:kind", a.handleCreate)
	api.PUT("/:kind/:id", a.handleUpdate)
	api.DELETE("/:kind/:id", a.handleDelete)

	forms := e.Group("/admin/forms", a.requireAdmin)
	forms.POST("/:kind", a.handleFormOpen)
	forms.GET("/:session", a.handleFormGet)
	forms.PATCH("/:session/fields", a.handleFormField)
	forms.POST("/:session/tab", a.handleFormTab)
	forms.POST("/:session/uploads", a.handleFormUpload)
	forms.DELETE("/:session/media", a.handleFormRemoveMedia)
	forms.POST("/:session/submit", a.handleFormSubmit)
	forms.POST("/:session/cancel", a.handleFormCancel)

	uploads := e.Group("/admin/uploads", a.requireAdmin)
	uploads.GET("/:task", a.handleUploadStatus)
	uploads.GET("/:task/ws", a.handleUploadStream)
	uploads.GET("/:task/preview", a.handleUploadPreview)
}

// startJanitor periodically cancels idle editor sessions, which releases
// their uploads, and forgets finished upload tasks.
func (a *App) startJanitor(every time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	a.stopJanitor = cancel
	a.janitorDone.Add(1)
	go func() {
		defer a.janitorDone.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.sweep(ctx)
			}
		}
	}()
}

func (a *App) sweep(ctx context.Context) {
	for _, ed := range a.Forms.Expire() {
		if ed.State().Closed {
			continue
		}
		if err := ed.Cancel(ctx); err != nil && !errors.Is(err, form.ErrClosed) {
			a.Logger.Warn("cancel idle session", zap.String("session", ed.ID()), zap.Error(err))
			continue
		}
		a.Logger.Info("idle session expired", zap.String("session", ed.ID()))
	}
	if n := a.Uploads.Tracker().Prune(a.Config.UploadRetention); n > 0 {
		a.Logger.Debug("pruned upload tasks", zap.Int("count", n))
	}
	a.loginLimiter.Prune()
}

// Shutdown stops the server gracefully and releases resources.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Echo.Shutdown(ctx)
	if cerr := a.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close cleans up resources. Call this when the app is shutting down.
func (a *App) Close() error {
	if a.stopJanitor != nil {
		a.stopJanitor()
		a.janitorDone.Wait()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or fails if empty.
func MustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("starcms: required environment variable %s is not set", key)
	}
	return v, nil
}
