package starcms

import (
	"encoding/xml"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/eringen/starcms/content"
)

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemapSections lists the kinds that have public pages.
var sitemapSections = []struct {
	kind    content.Kind
	segment string
}{
	{content.KindCelebrity, "celebrities"},
	{content.KindNews, "news"},
}

func (a *App) renderSitemap(c echo.Context) error {
	base := a.Config.URL
	urls := []sitemapURL{
		{Loc: BuildURL(base)},
		{Loc: BuildURL(base, "celebrities")},
		{Loc: BuildURL(base, "movies", "upcoming")},
	}
	for _, s := range sitemapSections {
		docs, err := a.Cache.Published(c.Request().Context(), s.kind)
		if err != nil {
			return err
		}
		for _, d := range docs {
			m := d.Base()
			urls = append(urls, sitemapURL{
				Loc:     BuildURL(base, s.segment, m.Slug),
				LastMod: m.UpdatedAt.Format(content.DateLayout),
			})
		}
	}
	sitemap := sitemapURLSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  urls,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Write([]byte(xml.Header))
	return xml.NewEncoder(c.Response()).Encode(sitemap)
}
