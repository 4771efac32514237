// Package views is the stock theme of starcms. Sites wanting their own look
// pass a different starcms.ViewFuncs to starcms.New.
package views

import (
	"context"
	"embed"
	"html/template"
	"io"

	"github.com/a-h/templ"

	"github.com/eringen/starcms"
)

//go:embed templates/*.html
var files embed.FS

var pages = template.Must(template.New("views").Funcs(funcs).ParseFS(files, "templates/*.html"))

// page is what every template receives. Data holds the handler's view model.
type page struct {
	Site      starcms.SiteConfig
	Meta      starcms.PageMeta
	JsonLD    template.JS
	HTML      template.HTML
	CSRF      string
	ShowError bool
	Data      any
}

func render(name string, p page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return pages.ExecuteTemplate(w, name, p)
	})
}

// Default returns the stock theme.
func Default() starcms.ViewFuncs {
	return starcms.ViewFuncs{
		Home:           Home,
		Celebrities:    Celebrities,
		Celebrity:      Celebrity,
		UpcomingMovies: UpcomingMovies,
		NewsArticle:    NewsArticle,
		AdminLogin:     AdminLogin,
		AdminDashboard: AdminDashboard,
		NotFound:       NotFound,
		ServerError:    ServerError,
	}
}

func Home(site starcms.SiteConfig, data starcms.HomeData) templ.Component {
	return render("home.html", page{Site: site, Meta: data.Meta, JsonLD: template.JS(data.JsonLD), Data: data})
}

func Celebrities(site starcms.SiteConfig, list starcms.CelebrityList) templ.Component {
	return render("celebrities.html", page{Site: site, Meta: list.Meta, Data: list})
}

// Celebrity renders a profile. The bio was sanitized by the handler.
func Celebrity(site starcms.SiteConfig, profile starcms.CelebrityProfile) templ.Component {
	return render("celebrity.html", page{
		Site:   site,
		Meta:   profile.Meta,
		JsonLD: template.JS(profile.JsonLD),
		HTML:   template.HTML(profile.Bio),
		Data:   profile,
	})
}

func UpcomingMovies(site starcms.SiteConfig, p starcms.MoviesPage) templ.Component {
	return render("movies.html", page{Site: site, Meta: p.Meta, Data: p})
}

// NewsArticle renders an article. The body was sanitized by the handler.
func NewsArticle(site starcms.SiteConfig, p starcms.NewsPage) templ.Component {
	return render("news.html", page{
		Site:   site,
		Meta:   p.Meta,
		JsonLD: template.JS(p.JsonLD),
		HTML:   template.HTML(p.Body),
		Data:   p,
	})
}

func AdminLogin(showError bool, csrfToken string) templ.Component {
	return render("login.html", page{
		Meta:      starcms.PageMeta{Title: "Sign in"},
		CSRF:      csrfToken,
		ShowError: showError,
	})
}

func AdminDashboard(site starcms.SiteConfig, stats []starcms.KindStats, csrfToken string) templ.Component {
	return render("dashboard.html", page{
		Site: site,
		Meta: starcms.PageMeta{Title: "Dashboard | " + site.Name},
		CSRF: csrfToken,
		Data: stats,
	})
}

func NotFound() templ.Component {
	return render("error.html", page{
		Meta: starcms.PageMeta{Title: "Not found"},
		Data: errorPage{Code: 404, Message: "We couldn't find that page."},
	})
}

func ServerError() templ.Component {
	return render("error.html", page{
		Meta: starcms.PageMeta{Title: "Something went wrong"},
		Data: errorPage{Code: 500, Message: "Something went wrong on our side. Please try again."},
	})
}

type errorPage struct {
	Code    int
	Message string
}
