package starcms

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/upload"
)

type uploadFailure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type uploadResponse struct {
	Tasks  []upload.Snapshot `json:"tasks"`
	Errors []uploadFailure   `json:"errors,omitempty"`
	State  any               `json:"state"`
	Record any               `json:"record"`
}

// handleFormUpload starts one upload task per file in the "file" form field.
// List fields receive a preview placeholder per file right away; every task
// then resolves independently and is tracked by its id.
func (a *App) handleFormUpload(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	mf, err := c.MultipartForm()
	if err != nil || len(mf.File["file"]) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "No file selected"})
	}
	field := c.FormValue("field")
	if field == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing target field"})
	}
	category := c.FormValue("category")
	if category == "" {
		category = field
	}

	var res uploadResponse
	for _, fh := range mf.File["file"] {
		snap, err := a.startUpload(c.Request().Context(), ed, field, category, fh.Filename, fh.Header.Get(echo.HeaderContentType), func() (io.ReadCloser, error) {
			return fh.Open()
		})
		if err != nil {
			var pe *upload.PreconditionError
			if errors.As(err, &pe) && len(res.Tasks) == 0 {
				// the folder is the same for every file, nothing will start
				return a.apiError(c, err)
			}
			if !errors.As(err, &pe) {
				a.Logger.Warn("upload not started", zap.String("file", fh.Filename), zap.Error(err))
			}
			res.Errors = append(res.Errors, uploadFailure{File: fh.Filename, Error: userMessage(err)})
			continue
		}
		res.Tasks = append(res.Tasks, snap)
	}
	if len(res.Tasks) == 0 {
		return c.JSON(http.StatusBadRequest, res)
	}
	res.State, res.Record = ed.State(), ed.Snapshot()
	return c.JSON(http.StatusAccepted, res)
}

func (a *App) startUpload(ctx context.Context, ed *editor, field, category, filename, contentType string, open func() (io.ReadCloser, error)) (upload.Snapshot, error) {
	src, err := open()
	if err != nil {
		return upload.Snapshot{}, err
	}
	defer src.Close()

	// the task must not resolve into the session before it is registered
	// there
	registered := make(chan bool, 1)
	t, err := a.Uploads.Start(ctx, upload.Request{
		Folder:      ed.UploadFolder,
		Category:    category,
		Field:       field,
		Filename:    filename,
		ContentType: contentType,
		Body:        src,
		OnResolve: func(t *upload.Task) {
			ok := <-registered
			a.resolveUpload(ed, t, ok)
		},
	})
	if err != nil {
		return upload.Snapshot{}, err
	}
	if err := ed.BeginUpload(t.ID, field, upload.PreviewHandle(t.ID), t.Abort); err != nil {
		registered <- false
		t.Abort()
		return upload.Snapshot{}, err
	}
	registered <- true
	return t.Snapshot(), nil
}

// resolveUpload settles a finished task in its session. An object the
// session can no longer use is deleted again.
func (a *App) resolveUpload(ed *editor, t *upload.Task, registered bool) {
	snap := t.Snapshot()
	log := a.Logger.With(zap.String("session", ed.ID()), zap.String("task", t.ID))
	if snap.Status != upload.StatusSucceeded {
		if registered {
			ed.FailUpload(t.ID)
		}
		log.Warn("upload failed", zap.String("error", snap.Error))
		return
	}
	if registered && ed.CompleteUpload(t.ID, snap.URL) {
		return
	}
	log.Info("discarding upload no longer referenced", zap.String("url", snap.URL))
	a.removeMedia(context.Background(), []string{snap.URL})
}

func userMessage(err error) string {
	var pe *upload.PreconditionError
	if errors.As(err, &pe) {
		return pe.Message
	}
	if errors.Is(err, upload.ErrTransfer) {
		return "Upload failed, please try again"
	}
	return err.Error()
}

func (a *App) lookupTask(c echo.Context) (*upload.Task, bool) {
	return a.Uploads.Tracker().Get(c.Param("task"))
}

func errTaskNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown upload"})
}

func (a *App) handleUploadStatus(c echo.Context) error {
	t, ok := a.lookupTask(c)
	if !ok {
		return errTaskNotFound(c)
	}
	return c.JSON(http.StatusOK, t.Snapshot())
}

// handleUploadPreview serves the local copy of a file while its transfer
// runs. Once the task resolves the preview is gone.
func (a *App) handleUploadPreview(c echo.Context) error {
	t, ok := a.lookupTask(c)
	if !ok {
		return errTaskNotFound(c)
	}
	data, contentType, ok := t.Preview()
	if !ok {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, contentType, data)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const wsWriteTimeout = 10 * time.Second

// handleUploadStream pushes task snapshots over a websocket until the task
// resolves, then closes the connection.
func (a *App) handleUploadStream(c echo.Context) error {
	t, ok := a.lookupTask(c)
	if !ok {
		return errTaskNotFound(c)
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already answered the request
		a.Logger.Debug("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer conn.Close()

	updates, unsubscribe := t.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				unsubscribe()
				return
			}
		}
	}()

	for snap := range updates {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(snap); err != nil {
			return nil
		}
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return nil
}
