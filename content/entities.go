package content

import (
	"time"

	"github.com/eringen/starcms/units"
)

// Career is the working period of a celebrity. YearsActive is derived.
type Career struct {
	StartYear   string `json:"startYear"`
	EndYear     string `json:"endYear"`
	Present     bool   `json:"present"`
	YearsActive string `json:"yearsActive"`
}

// Social holds profile links.
type Social struct {
	Instagram string `json:"instagram"`
	Twitter   string `json:"twitter"`
	Facebook  string `json:"facebook"`
	YouTube   string `json:"youtube"`
	TikTok    string `json:"tiktok"`
	Website   string `json:"website"`
}

// Celebrity is a person profile. Height and Weight are display strings
// derived from the raw value and unit pairs.
type Celebrity struct {
	Meta
	Name             string        `json:"name"`
	Profession       string        `json:"profession"`
	Nationality      string        `json:"nationality"`
	BirthDate        string        `json:"birthDate"`
	BirthDateDisplay string        `json:"birthDateDisplay"`
	Birthplace       string        `json:"birthplace"`
	Bio              string        `json:"bio"`
	Height           string        `json:"height"`
	HeightValue      string        `json:"heightValue"`
	HeightUnit       units.Unit    `json:"heightUnit"`
	Weight           string        `json:"weight"`
	WeightValue      string        `json:"weightValue"`
	WeightUnit       units.Unit    `json:"weightUnit"`
	Career           Career        `json:"career"`
	Achievements     []Achievement `json:"achievements"`
	Social           Social        `json:"social"`
	ProfileImage     string        `json:"profileImage"`
	CoverImage       string        `json:"coverImage"`
	Gallery          []string      `json:"gallery"`
}

func (c *Celebrity) Heading() string { return c.Name }

func (c *Celebrity) Media() []string {
	return media(c.ProfileImage, c.CoverImage, c.Gallery, c.SEO.OGImage)
}

func (c *Celebrity) Prepare(now time.Time) {
	c.prepare(c.Name)
	c.BirthDateDisplay = FormatDate(c.BirthDate)
	if c.HeightValue != "" {
		c.Height = units.Format(c.HeightValue, c.HeightUnit)
	}
	if c.WeightValue != "" {
		c.Weight = units.Format(c.WeightValue, c.WeightUnit)
	}
	c.Career.YearsActive = YearsActive(c.Career.StartYear, c.Career.EndYear, c.Career.Present)
}

func (c *Celebrity) Validate() error { return c.validate("name", c.Name) }

// Movie is a film entry. Upcoming is derived from the release date.
type Movie struct {
	Meta
	Title              string   `json:"title"`
	ReleaseDate        string   `json:"releaseDate"`
	ReleaseDateDisplay string   `json:"releaseDateDisplay"`
	Genres             []string `json:"genres"`
	Director           string   `json:"director"`
	Cast               []string `json:"cast"`
	Synopsis           string   `json:"synopsis"`
	Runtime            int      `json:"runtime"`
	TrailerURL         string   `json:"trailerUrl"`
	Language           string   `json:"language"`
	Upcoming           bool     `json:"upcoming"`
	Poster             string   `json:"poster"`
	Backdrop           string   `json:"backdrop"`
	Gallery            []string `json:"gallery"`
}

func (m *Movie) Heading() string { return m.Title }

func (m *Movie) Media() []string {
	return media(m.Poster, m.Backdrop, m.Gallery, m.SEO.OGImage)
}

func (m *Movie) Prepare(now time.Time) {
	m.prepare(m.Title)
	m.ReleaseDateDisplay = FormatDate(m.ReleaseDate)
	m.Upcoming = IsUpcoming(m.ReleaseDate, now)
}

func (m *Movie) Validate() error {
	if m.Runtime < 0 {
		return &ValidationError{Field: "runtime", Message: "Runtime cannot be negative"}
	}
	return m.validate("title", m.Title)
}

// News is an article.
type News struct {
	Meta
	Title              string   `json:"title"`
	Excerpt            string   `json:"excerpt"`
	Content            string   `json:"content"`
	Author             string   `json:"author"`
	Category           string   `json:"category"`
	Tags               []string `json:"tags"`
	PublishDate        string   `json:"publishDate"`
	PublishDateDisplay string   `json:"publishDateDisplay"`
	RelatedCelebrities []string `json:"relatedCelebrities"`
	FeaturedImage      string   `json:"featuredImage"`
	Gallery            []string `json:"gallery"`
}

func (n *News) Heading() string { return n.Title }

func (n *News) Media() []string {
	return media(n.FeaturedImage, n.Gallery, n.SEO.OGImage)
}

func (n *News) Prepare(now time.Time) {
	n.prepare(n.Title)
	if n.PublishDate == "" && n.Status == StatusPublished {
		n.PublishDate = now.Format(DateLayout)
	}
	n.PublishDateDisplay = FormatDate(n.PublishDate)
}

func (n *News) Validate() error { return n.validate("title", n.Title) }

// Outfit is a look worn by a celebrity at an event.
type Outfit struct {
	Meta
	Title         string   `json:"title"`
	CelebrityID   string   `json:"celebrityId"`
	CelebritySlug string   `json:"celebritySlug"`
	Event         string   `json:"event"`
	Date          string   `json:"date"`
	DateDisplay   string   `json:"dateDisplay"`
	Designer      string   `json:"designer"`
	Description   string   `json:"description"`
	Brands        []string `json:"brands"`
	PurchaseLinks []string `json:"purchaseLinks"`
	Images        []string `json:"images"`
}

func (o *Outfit) Heading() string { return o.Title }

func (o *Outfit) Media() []string { return media(o.Images, o.SEO.OGImage) }

func (o *Outfit) Prepare(now time.Time) {
	o.prepare(o.Title)
	o.DateDisplay = FormatDate(o.Date)
}

func (o *Outfit) Validate() error {
	if o.CelebrityID == "" {
		return &ValidationError{Field: "celebrityId", Message: "Please select a celebrity"}
	}
	return o.validate("title", o.Title)
}

// Review is a critic's take on a movie. Rating runs from 0 to 10.
type Review struct {
	Meta
	Title              string   `json:"title"`
	MovieID            string   `json:"movieId"`
	MovieSlug          string   `json:"movieSlug"`
	Reviewer           string   `json:"reviewer"`
	Rating             float64  `json:"rating"`
	Verdict            string   `json:"verdict"`
	Content            string   `json:"content"`
	Pros               []string `json:"pros"`
	Cons               []string `json:"cons"`
	PublishDate        string   `json:"publishDate"`
	PublishDateDisplay string   `json:"publishDateDisplay"`
	CoverImage         string   `json:"coverImage"`
}

func (r *Review) Heading() string { return r.Title }

func (r *Review) Media() []string { return media(r.CoverImage, r.SEO.OGImage) }

func (r *Review) Prepare(now time.Time) {
	r.prepare(r.Title)
	if r.PublishDate == "" && r.Status == StatusPublished {
		r.PublishDate = now.Format(DateLayout)
	}
	r.PublishDateDisplay = FormatDate(r.PublishDate)
}

func (r *Review) Validate() error {
	if r.Rating < 0 || r.Rating > 10 {
		return &ValidationError{Field: "rating", Message: "Rating must be between 0 and 10"}
	}
	return r.validate("title", r.Title)
}

var (
	_ Document = (*Celebrity)(nil)
	_ Document = (*Movie)(nil)
	_ Document = (*News)(nil)
	_ Document = (*Outfit)(nil)
	_ Document = (*Review)(nil)
)
