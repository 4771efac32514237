package starcms

import (
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/content"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !a.isAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	stats, err := a.allStats(c.Request().Context())
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminDashboard(a.Config, stats, CsrfToken(c)))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	pass := c.FormValue("password")
	if subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1 {
		if err := setAdminSession(c); err != nil {
			return err
		}
		a.Logger.Info("admin login", zap.String("ip", ip))
		return c.Redirect(http.StatusSeeOther, "/admin/")
	}
	a.loginLimiter.Record(ip)
	a.Logger.Warn("admin login failed", zap.String("ip", ip))
	return Render(c, a.Views.AdminLogin(true, CsrfToken(c)))
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) allStats(ctx context.Context) ([]KindStats, error) {
	var out []KindStats
	for _, k := range content.Kinds() {
		st, err := a.Store.Stats(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, KindStats{Kind: k, Stats: st})
	}
	return out, nil
}

// kindParam resolves the :kind route parameter.
func kindParam(c echo.Context) (content.Definition, bool) {
	k, ok := content.ParseKind(c.Param("kind"))
	if !ok {
		return nil, false
	}
	return content.Lookup(k)
}

func errUnknownKind(c echo.Context) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": "Unknown content type"})
}

func (a *App) handleList(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	status := content.Status(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown status filter"})
	}
	q := ListQuery{
		Page:     page,
		Limit:    limit,
		Search:   c.QueryParam("search"),
		Status:   status,
		Sort:     c.QueryParam("sort"),
		Featured: c.QueryParam("featured") == "true",
	}
	res, err := a.Store.List(c.Request().Context(), def.Kind(), q)
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (a *App) handleStats(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	st, err := a.Store.Stats(c.Request().Context(), def.Kind())
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (a *App) handleGet(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	doc, err := a.Store.Get(c.Request().Context(), def.Kind(), c.Param("id"))
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (a *App) decodeBody(c echo.Context, def content.Definition) (content.Document, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 4<<20))
	if err != nil {
		return nil, err
	}
	doc, err := def.Decode(body)
	if err != nil {
		return nil, &content.ValidationError{Message: "Malformed document: " + err.Error()}
	}
	return doc, nil
}

func (a *App) handleCreate(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	doc, err := a.decodeBody(c, def)
	if err != nil {
		return a.apiError(c, err)
	}
	doc.Base().ID = ""
	saved, err := a.saveDocument(c.Request().Context(), def.Kind(), doc)
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

func (a *App) handleUpdate(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	doc, err := a.decodeBody(c, def)
	if err != nil {
		return a.apiError(c, err)
	}
	doc.Base().ID = c.Param("id")
	saved, err := a.saveDocument(c.Request().Context(), def.Kind(), doc)
	if err != nil {
		return a.apiError(c, err)
	}
	return c.JSON(http.StatusOK, saved)
}

func (a *App) handleDelete(c echo.Context) error {
	def, ok := kindParam(c)
	if !ok {
		return errUnknownKind(c)
	}
	if err := a.deleteDocument(c.Request().Context(), def.Kind(), c.Param("id")); err != nil {
		return a.apiError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// saveDocument recomputes derived fields, validates and persists doc. It is
// the single write path for both the REST API and editor sessions.
func (a *App) saveDocument(ctx context.Context, kind content.Kind, doc content.Document) (content.Document, error) {
	doc.Prepare(a.now())
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	saved, err := a.Store.Save(ctx, kind, doc)
	if err != nil {
		return nil, err
	}
	a.Cache.Invalidate()
	m := saved.Base()
	a.Logger.Info("document saved",
		zap.String("kind", string(kind)),
		zap.String("id", m.ID),
		zap.String("slug", m.Slug),
		zap.String("status", string(m.Status)),
	)
	return saved, nil
}

// deleteDocument removes a document and then, best effort, the media it
// referenced in managed storage.
func (a *App) deleteDocument(ctx context.Context, kind content.Kind, id string) error {
	doc, err := a.Store.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if err := a.Store.Delete(ctx, kind, id); err != nil {
		return err
	}
	a.Cache.Invalidate()
	a.Logger.Info("document deleted", zap.String("kind", string(kind)), zap.String("id", id))
	a.removeMedia(ctx, doc.Media())
	return nil
}

// removeMedia deletes managed objects behind urls. URLs outside the managed
// store are skipped. Failures are logged and otherwise ignored.
func (a *App) removeMedia(ctx context.Context, urls []string) {
	ctx = context.WithoutCancel(ctx)
	for _, u := range urls {
		removed, err := a.Uploads.Remove(ctx, u)
		switch {
		case err != nil:
			a.Logger.Warn("media cleanup failed", zap.String("url", u), zap.Error(err))
		case !removed:
			a.Logger.Debug("media not managed, reference dropped only", zap.String("url", u))
		}
	}
}
