package content

import (
	"time"

	"github.com/eringen/starcms/form"
	"github.com/eringen/starcms/units"
	"github.com/eringen/starcms/upload"
)

const (
	TabBasic   form.Tab = "basic"
	TabCareer  form.Tab = "career"
	TabContent form.Tab = "content"
	TabDetails form.Tab = "details"
	TabMedia   form.Tab = "media"
	TabSocial  form.Tab = "social"
	TabSEO     form.Tab = "seo"
	TabPublish form.Tab = "publish"
)

// Precondition messages shown when an upload is attempted too early.
const (
	MsgNeedName      = "Please enter a name before uploading images"
	MsgNeedTitle     = "Please enter a title before uploading images"
	MsgNeedCelebrity = "Please select a celebrity before uploading images"
)

var clock = time.Now

// metaReadOnly are the Meta paths only the store assigns.
var metaReadOnly = []string{"id", "createdAt", "updatedAt"}

func dateDisplay[T any](target, source string, get func(T) string) form.Synchronizer[T] {
	return form.Synchronizer[T]{
		Target:  target,
		Sources: []string{source},
		Compute: func(rec T) any { return FormatDate(get(rec)) },
	}
}

func folder(kind Kind, slug, missing string) (string, error) {
	if slug == "" {
		return "", &upload.PreconditionError{Message: missing}
	}
	return kind.Plural() + "/" + slug, nil
}

// CelebritySchema configures celebrity editor sessions.
func CelebritySchema() *form.Schema[Celebrity] {
	return &form.Schema[Celebrity]{
		Kind:     string(KindCelebrity),
		Tabs:     []form.Tab{TabBasic, TabCareer, TabMedia, TabSocial, TabSEO, TabPublish},
		NamePath: "name",
		SlugPath: "slug",
		Slugify:  Slugify,
		ReadOnly: metaReadOnly,
		Synchronizers: []form.Synchronizer[Celebrity]{
			dateDisplay("birthDateDisplay", "birthDate", func(c Celebrity) string { return c.BirthDate }),
			{
				Target:  "height",
				Sources: []string{"heightValue", "heightUnit"},
				Compute: func(c Celebrity) any { return units.Format(c.HeightValue, c.HeightUnit) },
			},
			{
				Target:  "weight",
				Sources: []string{"weightValue", "weightUnit"},
				Compute: func(c Celebrity) any { return units.Format(c.WeightValue, c.WeightUnit) },
			},
			{
				Target:  "career.yearsActive",
				Sources: []string{"career.startYear", "career.endYear", "career.present"},
				Compute: func(c Celebrity) any {
					return YearsActive(c.Career.StartYear, c.Career.EndYear, c.Career.Present)
				},
			},
		},
		New: func() Celebrity {
			return Celebrity{
				Meta:       Meta{Status: StatusDraft},
				HeightUnit: units.Centimeters,
				WeightUnit: units.Kilograms,
			}
		},
		Hydrate:      hydrateCelebrity,
		Discard:      upload.IsPreview,
		UploadFolder: func(c Celebrity) (string, error) { return folder(KindCelebrity, c.Slug, MsgNeedName) },
	}
}

// hydrateCelebrity recovers the raw measurement inputs of a stored profile
// from its display strings.
func hydrateCelebrity(c Celebrity) Celebrity {
	if c.HeightValue == "" {
		if v, u, ok := units.ParseHeight(c.Height); ok {
			c.HeightValue, c.HeightUnit = v, u
		}
	}
	if !c.HeightUnit.Valid() {
		c.HeightUnit = units.Centimeters
	}
	if c.WeightValue == "" {
		if v, u, ok := units.ParseWeight(c.Weight); ok {
			c.WeightValue, c.WeightUnit = v, u
		}
	}
	if !c.WeightUnit.Valid() {
		c.WeightUnit = units.Kilograms
	}
	return c
}

// MovieSchema configures movie editor sessions.
func MovieSchema() *form.Schema[Movie] {
	return &form.Schema[Movie]{
		Kind:     string(KindMovie),
		Tabs:     []form.Tab{TabBasic, TabContent, TabMedia, TabSEO, TabPublish},
		NamePath: "title",
		SlugPath: "slug",
		Slugify:  Slugify,
		ReadOnly: metaReadOnly,
		Synchronizers: []form.Synchronizer[Movie]{
			dateDisplay("releaseDateDisplay", "releaseDate", func(m Movie) string { return m.ReleaseDate }),
			{
				Target:  "upcoming",
				Sources: []string{"releaseDate"},
				Compute: func(m Movie) any { return IsUpcoming(m.ReleaseDate, clock()) },
			},
		},
		New:          func() Movie { return Movie{Meta: Meta{Status: StatusDraft}} },
		Discard:      upload.IsPreview,
		UploadFolder: func(m Movie) (string, error) { return folder(KindMovie, m.Slug, MsgNeedTitle) },
	}
}

// NewsSchema configures news editor sessions.
func NewsSchema() *form.Schema[News] {
	return &form.Schema[News]{
		Kind:     string(KindNews),
		Tabs:     []form.Tab{TabBasic, TabContent, TabMedia, TabSEO, TabPublish},
		NamePath: "title",
		SlugPath: "slug",
		Slugify:  Slugify,
		ReadOnly: metaReadOnly,
		Synchronizers: []form.Synchronizer[News]{
			dateDisplay("publishDateDisplay", "publishDate", func(n News) string { return n.PublishDate }),
		},
		New:          func() News { return News{Meta: Meta{Status: StatusDraft}} },
		Discard:      upload.IsPreview,
		UploadFolder: func(n News) (string, error) { return folder(KindNews, n.Slug, MsgNeedTitle) },
	}
}

// OutfitSchema configures outfit editor sessions. Outfit media is filed
// under the wearing celebrity.
func OutfitSchema() *form.Schema[Outfit] {
	return &form.Schema[Outfit]{
		Kind:     string(KindOutfit),
		Tabs:     []form.Tab{TabBasic, TabDetails, TabMedia, TabSEO, TabPublish},
		NamePath: "title",
		SlugPath: "slug",
		Slugify:  Slugify,
		ReadOnly: metaReadOnly,
		Synchronizers: []form.Synchronizer[Outfit]{
			dateDisplay("dateDisplay", "date", func(o Outfit) string { return o.Date }),
		},
		New:     func() Outfit { return Outfit{Meta: Meta{Status: StatusDraft}} },
		Discard: upload.IsPreview,
		UploadFolder: func(o Outfit) (string, error) {
			if o.CelebrityID == "" || o.CelebritySlug == "" {
				return "", &upload.PreconditionError{Message: MsgNeedCelebrity}
			}
			if o.Slug == "" {
				return "", &upload.PreconditionError{Message: MsgNeedTitle}
			}
			return KindOutfit.Plural() + "/" + o.CelebritySlug + "/" + o.Slug, nil
		},
	}
}

// ReviewSchema configures review editor sessions.
func ReviewSchema() *form.Schema[Review] {
	return &form.Schema[Review]{
		Kind:     string(KindReview),
		Tabs:     []form.Tab{TabBasic, TabContent, TabMedia, TabSEO, TabPublish},
		NamePath: "title",
		SlugPath: "slug",
		Slugify:  Slugify,
		ReadOnly: metaReadOnly,
		Synchronizers: []form.Synchronizer[Review]{
			dateDisplay("publishDateDisplay", "publishDate", func(r Review) string { return r.PublishDate }),
		},
		New:          func() Review { return Review{Meta: Meta{Status: StatusDraft}} },
		Discard:      upload.IsPreview,
		UploadFolder: func(r Review) (string, error) { return folder(KindReview, r.Slug, MsgNeedTitle) },
	}
}
