package starcms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/content"
	"github.com/eringen/starcms/form"
	"github.com/eringen/starcms/upload"
)

// editor is an open editor session of the dashboard. Media removed by the
// editor stays in storage until the session saves, so a cancelled edit never
// leaves the stored document pointing at deleted objects.
type editor struct {
	form.Controller
	def content.Definition

	mu       sync.Mutex
	removals []string
	saved    content.Document
}

func (ed *editor) scheduleRemoval(url string) {
	ed.mu.Lock()
	ed.removals = append(ed.removals, url)
	ed.mu.Unlock()
}

// takeRemovals returns the scheduled removals the saved document no longer
// references.
func (ed *editor) takeRemovals() []string {
	ed.mu.Lock()
	defer ed.mu.Unlock()
	var keep []string
	if ed.saved != nil {
		keep = ed.saved.Media()
	}
	var out []string
	for _, u := range ed.removals {
		if !slices.Contains(keep, u) && !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	ed.removals = nil
	return out
}

type formResponse struct {
	State  form.State `json:"state"`
	Tabs   []form.Tab `json:"tabs"`
	Record any        `json:"record"`
}

func viewOf(ed *editor) formResponse {
	return formResponse{State: ed.State(), Tabs: ed.def.Tabs(), Record: ed.Snapshot()}
}

func errSessionNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Editor session not found or expired"})
}

func (a *App) lookupEditor(c echo.Context) (*editor, bool) {
	ctrl, ok := a.Forms.Get(c.Param("session"))
	if !ok {
		return nil, false
	}
	ed, ok := ctrl.(*editor)
	return ed, ok
}

func (a *App) handleFormOpen(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	ctx := c.Request().Context()
	var existing content.Document
	if id := c.QueryParam("id"); id != "" {
		doc, err := a.Store.Get(ctx, def.Kind(), id)
		if err != nil {
			return a.apiError(c, err)
		}
		existing = doc
	}
	ed, err := a.openEditor(def, existing)
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, viewOf(ed))
}

func (a *App) openEditor(def content.Definition, existing content.Document) (*editor, error) {
	ed := &editor{def: def}
	id := uuid.NewString()
	log := a.Logger.With(zap.String("session", id), zap.String("kind", string(def.Kind())))
	ctrl, err := def.Open(id, existing, content.SessionHooks{
		OnSave: func(ctx context.Context, doc content.Document) (content.Document, error) {
			saved, err := a.saveDocument(ctx, def.Kind(), doc)
			if err != nil {
				log.Warn("save failed", zap.Error(err))
				return nil, err
			}
			ed.mu.Lock()
			ed.saved = saved
			ed.mu.Unlock()
			return saved, nil
		},
		OnCancel: func(ctx context.Context) {
			log.Info("editor cancelled")
		},
		OnOrphans: func(ctx context.Context, urls []string) {
			log.Info("removing orphaned uploads", zap.Int("count", len(urls)))
			a.removeMedia(ctx, urls)
		},
	})
	if err != nil {
		return nil, err
	}
	ed.Controller = ctrl
	a.Forms.Add(ed)
	log.Info("editor opened", zap.String("mode", string(ed.State().Mode)))
	return ed, nil
}

func (a *App) handleFormGet(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	return c.JSON(http.StatusOK, viewOf(ed))
}

type fieldRequest struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

func (a *App) handleFormField(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	var req fieldRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.Path == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Expected {\"path\", \"value\"}"})
	}
	if req.Value == nil {
		req.Value = json.RawMessage("null")
	}
	if ref, ok := ed.def.References()[req.Path]; ok {
		if err := a.setReference(c.Request().Context(), ed, req, ref); err != nil {
			return a.apiError(c, err)
		}
		return c.JSON(http.StatusOK, viewOf(ed))
	}
	if err := ed.SetField(req.Path, req.Value); err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(ed))
}

// setReference stores an id pointing at another document together with
// that document's slug.
func (a *App) setReference(ctx context.Context, ed *editor, req fieldRequest, ref content.Reference) error {
	var id string
	if err := json.Unmarshal(req.Value, &id); err != nil && string(req.Value) != "null" {
		return &content.ValidationError{Field: req.Path, Message: "Expected an id"}
	}
	slug := ""
	if id = strings.TrimSpace(id); id != "" {
		doc, err := a.Store.Get(ctx, ref.Kind, id)
		if errors.Is(err, ErrNotFound) {
			return &content.ValidationError{Field: req.Path, Message: "The selected " + string(ref.Kind) + " no longer exists"}
		}
		if err != nil {
			return err
		}
		slug = doc.Base().Slug
	}
	if err := ed.SetField(req.Path, id); err != nil {
		return err
	}
	return ed.SetField(ref.SlugPath, slug)
}

func (a *App) handleFormTab(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	var req struct {
		Tab form.Tab `json:"tab"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Expected {\"tab\"}"})
	}
	if err := ed.SelectTab(req.Tab); err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, viewOf(ed))
}

func (a *App) handleFormRemoveMedia(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	var req struct {
		Field string `json:"field"`
		URL   string `json:"url"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil || req.Field == "" || req.URL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Expected {\"field\", \"url\"}"})
	}
	if err := ed.RemoveReference(req.Field, req.URL); err != nil {
		return a.apiError(c, err)
	}
	if upload.IsPreview(req.URL) {
		if t, ok := a.Uploads.Tracker().Get(strings.TrimPrefix(req.URL, upload.PreviewScheme)); ok {
			t.Abort()
		}
	} else {
		ed.scheduleRemoval(req.URL)
	}
	return c.JSON(http.StatusOK, viewOf(ed))
}

func (a *App) handleFormSubmit(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	ctx := c.Request().Context()
	if err := ed.Submit(ctx); err != nil {
		return a.apiError(c, err)
	}
	a.Forms.Remove(ed.ID())
	a.removeMedia(ctx, ed.takeRemovals())
	ed.mu.Lock()
	saved := ed.saved
	ed.mu.Unlock()
	return c.JSON(http.StatusOK, formResponse{State: ed.State(), Tabs: ed.def.Tabs(), Record: saved})
}

func (a *App) handleFormCancel(c echo.Context) error {
	ed, ok := a.lookupEditor(c)
	if !ok {
		return errSessionNotFound(c)
	}
	if err := ed.Cancel(c.Request().Context()); err != nil && !errors.Is(err, form.ErrClosed) {
		return a.apiError(c, err)
	}
	a.Forms.Remove(ed.ID())
	return c.NoContent(http.StatusNoContent)
}
