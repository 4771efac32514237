package views

import (
	"html/template"
	"net/url"
	"strconv"
	"strings"

	"github.com/eringen/starcms/content"
)

var funcs = template.FuncMap{
	"pathEscape": url.PathEscape,
	"join":       strings.Join,
	"kindTitle":  kindTitle,
	"pages":      pageLinks,
	"rating":     Rating,
	"initials":   Initials,
	"achievement": func(a content.Achievement) string {
		return a.Label()
	},
}

// pageLink is one entry of a pagination bar.
type pageLink struct {
	Number  int
	Current bool
}

func pageLinks(current, total int) []pageLink {
	if total <= 1 {
		return nil
	}
	links := make([]pageLink, 0, total)
	for i := 1; i <= total; i++ {
		links = append(links, pageLink{Number: i, Current: i == current})
	}
	return links
}

// Rating formats a 0-10 review score as "7.5/10".
func Rating(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64) + "/10"
}

// Initials is the avatar fallback for profiles without a picture.
func Initials(name string) string {
	var b strings.Builder
	for _, f := range strings.Fields(name) {
		r := []rune(f)
		b.WriteString(strings.ToUpper(string(r[0])))
		if b.Len() >= 2 {
			break
		}
	}
	return b.String()
}

// kindTitle labels a kind on the dashboard.
func kindTitle(k content.Kind) string {
	p := k.Plural()
	if p == "" {
		p = string(k)
	}
	return strings.ToUpper(p[:1]) + p[1:]
}
