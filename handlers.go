package starcms

import (
	"cmp"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/starcms/content"
)

const (
	celebritiesPerPage = 24
	homeListSize       = 6
	descriptionLength  = 160
)

func (a *App) handleHome(c echo.Context) error {
	ctx := c.Request().Context()
	celebs, err := a.Cache.Celebrities(ctx)
	if err != nil {
		return err
	}
	news, err := a.Cache.News(ctx)
	if err != nil {
		return err
	}
	movies, err := a.upcomingMovies(c)
	if err != nil {
		return err
	}
	var featured []*content.Celebrity
	for _, cel := range celebs {
		if cel.Featured {
			featured = append(featured, cel)
		}
	}
	data := HomeData{
		Meta: PageMeta{
			Title:       a.Config.Name,
			Description: a.Config.Description,
			URL:         BuildURL(a.Config.URL),
			OGType:      "website",
		},
		JsonLD:     WebsiteJsonLD(a.Config),
		Featured:   featured,
		Upcoming:   movies[:min(len(movies), homeListSize)],
		LatestNews: news[:min(len(news), homeListSize)],
	}
	return Render(c, a.Views.Home(a.Config, data))
}

func (a *App) handleCelebrities(c echo.Context) error {
	celebs, err := a.Cache.Celebrities(c.Request().Context())
	if err != nil {
		return err
	}
	if q := strings.ToLower(strings.TrimSpace(c.QueryParam("q"))); q != "" {
		celebs = slices.DeleteFunc(slices.Clone(celebs), func(cel *content.Celebrity) bool {
			return !strings.Contains(strings.ToLower(cel.Name), q)
		})
	}
	page, _ := strconv.Atoi(c.QueryParam("page"))
	totalPages := max(1, (len(celebs)+celebritiesPerPage-1)/celebritiesPerPage)
	page = min(max(page, 1), totalPages)
	start := (page - 1) * celebritiesPerPage
	end := min(start+celebritiesPerPage, len(celebs))
	return Render(c, a.Views.Celebrities(a.Config, CelebrityList{
		Meta: PageMeta{
			Title:       "Celebrities | " + a.Config.Name,
			Description: "Profiles of actors, musicians and personalities.",
			URL:         BuildURL(a.Config.URL, "celebrities"),
			OGType:      "website",
		},
		Items:      celebs[start:end],
		Page:       page,
		TotalPages: totalPages,
	}))
}

func (a *App) handleCelebrity(c echo.Context) error {
	ctx := c.Request().Context()
	doc, err := a.Cache.BySlug(ctx, content.KindCelebrity, c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	cel := doc.(*content.Celebrity)
	outfits, err := a.Cache.Outfits(ctx)
	if err != nil {
		return err
	}
	var worn []*content.Outfit
	for _, o := range outfits {
		if o.CelebrityID == cel.ID {
			worn = append(worn, o)
		}
	}
	pageURL := BuildURL(a.Config.URL, "celebrities", cel.Slug)
	return Render(c, a.Views.Celebrity(a.Config, CelebrityProfile{
		Meta:      MetaFor(cel, pageURL, "profile", cmp.Or(PlainText(cel.Bio, descriptionLength), cel.Profession)),
		JsonLD:    PersonJsonLD(cel, a.Config),
		Celebrity: cel,
		Bio:       SanitizeHTML(cel.Bio),
		Outfits:   worn,
	}))
}

// upcomingMovies returns published movies releasing after today, soonest
// first. Release status is evaluated per request, not taken from the stored
// flag, so a movie drops off the day after release without being re-saved.
func (a *App) upcomingMovies(c echo.Context) ([]*content.Movie, error) {
	movies, err := a.Cache.Movies(c.Request().Context())
	if err != nil {
		return nil, err
	}
	now := a.now()
	var upcoming []*content.Movie
	for _, m := range movies {
		if content.IsUpcoming(m.ReleaseDate, now) {
			upcoming = append(upcoming, m)
		}
	}
	slices.SortStableFunc(upcoming, func(x, y *content.Movie) int {
		return strings.Compare(x.ReleaseDate, y.ReleaseDate)
	})
	return upcoming, nil
}

func (a *App) handleUpcomingMovies(c echo.Context) error {
	movies, err := a.upcomingMovies(c)
	if err != nil {
		return err
	}
	return Render(c, a.Views.UpcomingMovies(a.Config, MoviesPage{
		Meta: PageMeta{
			Title:       "Upcoming Movies | " + a.Config.Name,
			Description: "Release dates for the films everyone is waiting for.",
			URL:         BuildURL(a.Config.URL, "movies", "upcoming"),
			OGType:      "website",
		},
		Movies: movies,
	}))
}

func (a *App) handleNewsArticle(c echo.Context) error {
	ctx := c.Request().Context()
	doc, err := a.Cache.BySlug(ctx, content.KindNews, c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		}
		return err
	}
	article := doc.(*content.News)
	all, err := a.Cache.News(ctx)
	if err != nil {
		return err
	}
	var related []*content.News
	for _, n := range all {
		if n.ID != article.ID && n.Category != "" && n.Category == article.Category {
			related = append(related, n)
		}
	}
	pageURL := BuildURL(a.Config.URL, "news", article.Slug)
	return Render(c, a.Views.NewsArticle(a.Config, NewsPage{
		Meta:    MetaFor(article, pageURL, "article", cmp.Or(article.Excerpt, PlainText(article.Content, descriptionLength))),
		JsonLD:  NewsArticleJsonLD(article, a.Config),
		Article: article,
		Body:    SanitizeHTML(article.Content),
		Related: related[:min(len(related), 3)],
	}))
}

func (a *App) handleSitemap(c echo.Context) error {
	return a.renderSitemap(c)
}

func (a *App) handleFeed(c echo.Context) error {
	news, err := a.Cache.News(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, news)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

// handleRobots keeps crawlers out of the dashboard and points them at the
// sitemap.
func (a *App) handleRobots(c echo.Context) error {
	body := fmt.Sprintf("User-agent: *\nAllow: /\nDisallow: /admin/\n\nSitemap: %s\n", strings.TrimSuffix(BuildURL(a.Config.URL, "sitemap.xml"), "/"))
	return c.String(http.StatusOK, body)
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error", zap.String("path", c.Request().URL.Path), zap.Error(err))
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}

func (a *App) now() time.Time {
	if a.clock != nil {
		return a.clock()
	}
	return time.Now()
}
