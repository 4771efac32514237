package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eringen/starcms/form"
)

// Reference links an id field to another record kind. When the id changes,
// the referenced record's slug is copied into SlugPath.
type Reference struct {
	Kind     Kind
	SlugPath string
}

// SessionHooks are the kind-independent collaborators of an editor session.
type SessionHooks struct {
	OnSave    func(ctx context.Context, doc Document) (Document, error)
	OnCancel  func(ctx context.Context)
	OnOrphans func(ctx context.Context, urls []string)
}

// Definition is the type-erased handle on one record kind, used by code that
// dispatches on the kind named in a request.
type Definition interface {
	Kind() Kind
	Tabs() []form.Tab
	New() Document
	Decode(data []byte) (Document, error)
	// Open starts an editor session. A nil existing document opens create mode.
	Open(id string, existing Document, hooks SessionHooks) (form.Controller, error)
	References() map[string]Reference
}

type definition[T any, P interface {
	*T
	Document
}] struct {
	schema *form.Schema[T]
	refs   map[string]Reference
}

func (d *definition[T, P]) Kind() Kind { return Kind(d.schema.Kind) }

func (d *definition[T, P]) Tabs() []form.Tab { return d.schema.Tabs }

func (d *definition[T, P]) References() map[string]Reference { return d.refs }

func (d *definition[T, P]) New() Document {
	rec := d.schema.New()
	return P(&rec)
}

func (d *definition[T, P]) Decode(data []byte) (Document, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("content: decode %s: %w", d.Kind(), err)
	}
	return P(&rec), nil
}

func (d *definition[T, P]) Open(id string, existing Document, hooks SessionHooks) (form.Controller, error) {
	var cur *T
	if existing != nil {
		p, ok := existing.(P)
		if !ok {
			return nil, fmt.Errorf("content: %T is not a %s", existing, d.Kind())
		}
		rec := *p
		cur = &rec
	}
	h := form.Hooks[T]{OnCancel: hooks.OnCancel, OnOrphans: hooks.OnOrphans}
	if hooks.OnSave != nil {
		h.OnSave = func(ctx context.Context, rec T) (T, error) {
			saved, err := hooks.OnSave(ctx, P(&rec))
			if err != nil {
				return rec, err
			}
			p, ok := saved.(P)
			if !ok {
				return rec, fmt.Errorf("content: save returned %T for %s", saved, d.Kind())
			}
			return *p, nil
		}
	}
	return form.NewSession(id, d.schema, cur, h), nil
}

var definitions = map[Kind]Definition{
	KindCelebrity: &definition[Celebrity, *Celebrity]{schema: CelebritySchema()},
	KindMovie:     &definition[Movie, *Movie]{schema: MovieSchema()},
	KindNews:      &definition[News, *News]{schema: NewsSchema()},
	KindOutfit: &definition[Outfit, *Outfit]{
		schema: OutfitSchema(),
		refs:   map[string]Reference{"celebrityId": {Kind: KindCelebrity, SlugPath: "celebritySlug"}},
	},
	KindReview: &definition[Review, *Review]{
		schema: ReviewSchema(),
		refs:   map[string]Reference{"movieId": {Kind: KindMovie, SlugPath: "movieSlug"}},
	},
}

// Lookup returns the definition of kind k.
func Lookup(k Kind) (Definition, bool) {
	d, ok := definitions[k]
	return d, ok
}
