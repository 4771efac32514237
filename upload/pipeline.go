// Package upload streams editor-selected files to an object store with
// progress reporting, and removes them again by reversing the store's
// addressing scheme.
//
// Objects are stored under {folder}/{category}/{timestamp}_{filename}, where
// folder is derived from identifying fields of the record being edited.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eringen/starcms/storage"
)

// ErrTransfer wraps failures talking to the object store.
var ErrTransfer = errors.New("upload: transfer failed")

// ErrPrecondition is matched by every PreconditionError.
var ErrPrecondition = errors.New("upload: precondition failed")

// PreconditionError rejects an upload before any I/O. Message is meant for
// the editor.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string { return e.Message }

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// Request describes one file to upload.
type Request struct {
	// Folder derives the destination folder. An error or an empty folder
	// rejects the upload as a precondition failure.
	Folder   func() (string, error)
	Category string
	Field    string
	Filename string
	// ContentType is sniffed from the data when empty.
	ContentType string
	Body        io.Reader
	// OnProgress receives non-decreasing percentages, ending with 100 on
	// success.
	OnProgress func(pct int)
	// OnResolve runs after the task succeeds or fails.
	OnResolve func(t *Task)
}

// Pipeline runs uploads against an object store.
type Pipeline struct {
	store       storage.ObjectStore
	tracker     *Tracker
	logger      *zap.Logger
	maxSize     int64
	optimize    bool
	maxWidth    int
	now         func() time.Time
	chunkSize   int
	newID       func() string
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for task lifecycle events.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.logger = l } }

// WithMaxSize limits accepted file size in bytes.
func WithMaxSize(n int64) Option { return func(p *Pipeline) { p.maxSize = n } }

// WithImageOptimization re-encodes raster images wider than maxWidth as JPEG.
func WithImageOptimization(maxWidth int) Option {
	return func(p *Pipeline) {
		p.optimize = maxWidth > 0
		p.maxWidth = maxWidth
	}
}

// WithClock overrides the time source used for object keys.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithBatchConcurrency bounds the number of parallel transfers in UploadBatch.
func WithBatchConcurrency(n int) Option { return func(p *Pipeline) { p.concurrency = n } }

// New creates a Pipeline writing to store and registering tasks in tracker.
func New(store storage.ObjectStore, tracker *Tracker, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		tracker:     tracker,
		logger:      zap.NewNop(),
		maxSize:     10 << 20,
		now:         time.Now,
		chunkSize:   32 << 10,
		newID:       uuid.NewString,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracker == nil {
		p.tracker = NewTracker()
	}
	return p
}

// Tracker returns the registry of tasks started by the pipeline.
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Start validates req, registers a task and transfers the file in the
// background. Precondition failures are returned before any I/O and leave no
// task behind. The transfer outlives ctx's cancellation but keeps its values;
// use Task.Abort to stop it.
func (p *Pipeline) Start(ctx context.Context, req Request) (*Task, error) {
	folder, err := p.folder(req)
	if err != nil {
		return nil, err
	}
	if req.Body == nil {
		return nil, &PreconditionError{Message: "No file selected"}
	}
	data, err := io.ReadAll(io.LimitReader(req.Body, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("upload: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, &PreconditionError{Message: "The selected file is empty"}
	}
	if int64(len(data)) > p.maxSize {
		return nil, &PreconditionError{Message: fmt.Sprintf("File too large (max %dMB)", p.maxSize>>20)}
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	preview, previewType := data, contentType
	filename := req.Filename
	if p.optimize && isRaster(contentType) {
		if out, ok, err := optimizeImage(bytes.NewReader(data), p.maxWidth); err == nil && ok {
			data = out
			contentType = "image/jpeg"
			filename = strings.TrimSuffix(filename, path.Ext(filename)) + ".jpg"
		}
	}

	key := p.Key(folder, req.Category, filename)
	t := newTask(p.newID(), req.Field, key, preview, previewType, req.OnProgress)
	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	p.tracker.add(t)

	p.logger.Info("upload started",
		zap.String("task", t.ID),
		zap.String("key", key),
		zap.Int("bytes", len(data)),
	)
	go p.transfer(tctx, cancel, t, data, contentType, req.OnResolve)
	return t, nil
}

// Upload runs a transfer to completion and returns the permanent URL.
func (p *Pipeline) Upload(ctx context.Context, req Request) (string, error) {
	t, err := p.Start(ctx, req)
	if err != nil {
		return "", err
	}
	u, err := t.Wait(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		t.Abort()
	}
	return u, err
}

// UploadBatch uploads every request concurrently and returns URLs in request
// order. Each request keeps its own task and progress stream. The first
// failure cancels the remaining transfers.
func (p *Pipeline) UploadBatch(ctx context.Context, reqs []Request) ([]string, error) {
	urls := make([]string, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			u, err := p.Upload(gctx, req)
			if err != nil {
				return err
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

// Remove deletes the object behind url. URLs the store does not own are left
// alone and reported as removed=false with no error, so the caller simply
// clears its reference. A missing object counts as removed.
func (p *Pipeline) Remove(ctx context.Context, url string) (bool, error) {
	key, ok := p.store.KeyFromURL(url)
	if !ok {
		return false, nil
	}
	if err := p.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.logger.Warn("delete failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	p.logger.Info("object deleted", zap.String("key", key))
	return true, nil
}

// Key builds the object key for filename.
func (p *Pipeline) Key(folder, category, filename string) string {
	if category == "" {
		category = "media"
	}
	name := fmt.Sprintf("%d_%s", p.now().UnixMilli(), SanitizeFilename(filename))
	return path.Join(strings.Trim(folder, "/"), SanitizeFilename(category), name)
}

func (p *Pipeline) folder(req Request) (string, error) {
	if req.Folder == nil {
		return "", &PreconditionError{Message: "Upload destination is unknown"}
	}
	folder, err := req.Folder()
	if err != nil {
		var pe *PreconditionError
		if errors.As(err, &pe) {
			return "", pe
		}
		return "", &PreconditionError{Message: err.Error()}
	}
	folder = strings.Trim(folder, "/")
	if folder == "" || strings.Contains(folder, "..") {
		return "", &PreconditionError{Message: "Upload destination is unknown"}
	}
	return folder, nil
}

func (p *Pipeline) transfer(ctx context.Context, cancel context.CancelFunc, t *Task, data []byte, contentType string, onResolve func(*Task)) {
	defer cancel()
	body := &progressReader{r: bytes.NewReader(data), size: int64(len(data)), chunk: p.chunkSize, report: t.report}
	url, err := p.store.Put(ctx, t.Key, body, int64(len(data)), contentType)
	if err == nil && ctx.Err() != nil {
		// aborted after the object landed; do not leave it behind
		if derr := p.store.Delete(context.Background(), t.Key); derr != nil {
			p.logger.Warn("cleanup after abort failed", zap.String("key", t.Key), zap.Error(derr))
		}
		err = ctx.Err()
	}
	if err != nil {
		p.logger.Warn("upload failed", zap.String("task", t.ID), zap.String("key", t.Key), zap.Error(err))
		t.fail(fmt.Errorf("%w: %v", ErrTransfer, err))
	} else {
		p.logger.Info("upload finished", zap.String("task", t.ID), zap.String("url", url))
		t.succeed(url)
	}
	if onResolve != nil {
		onResolve(t)
	}
}

// progressReader reports the share of bytes read. Reads are capped at chunk
// bytes so small files still produce intermediate values.
type progressReader struct {
	r      *bytes.Reader
	size   int64
	read   int64
	chunk  int
	report func(int)
}

func (pr *progressReader) Read(b []byte) (int, error) {
	if pr.chunk > 0 && len(b) > pr.chunk {
		b = b[:pr.chunk]
	}
	n, err := pr.r.Read(b)
	pr.read += int64(n)
	if n > 0 && pr.size > 0 {
		pr.report(int(pr.read * 100 / pr.size))
	}
	return n, err
}

// Seek lets signing clients rewind the body; progress already reported is
// kept because Task clamps to the highest value seen.
func (pr *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := pr.r.Seek(offset, whence)
	if err == nil {
		pr.read = pos
	}
	return pos, err
}

// SanitizeFilename lowercases name and replaces runs of characters outside
// [a-z0-9._-] with a single underscore.
func SanitizeFilename(name string) string {
	name = strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	var b strings.Builder
	under := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			under = false
		default:
			if !under {
				b.WriteByte('_')
				under = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "file"
	}
	return out
}
