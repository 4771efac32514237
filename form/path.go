package form

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

var (
	// ErrUnknownPath is returned when a path does not address a field of the record.
	ErrUnknownPath = errors.New("form: unknown field path")
	// ErrTypeMismatch is returned when a value cannot be stored in the addressed field.
	ErrTypeMismatch = errors.New("form: value does not fit field")
)

// Emptier is implemented by list items that can be blank placeholders, such
// as an achievement row the editor added but never filled in.
type Emptier interface {
	Empty() bool
}

// SetPath returns a copy of rec with the field addressed by path replaced by
// value. Path segments are JSON field names separated by dots; a numeric
// segment indexes a slice ("gallery.2"). Slices, maps and pointers along the
// path are cloned, everything else is shared with rec.
//
// value is assigned directly when its type fits, converted between string
// kinds, and otherwise decoded through its JSON form, so values arriving as
// float64, []any or map[string]any land in typed fields.
func SetPath[T any](rec T, path string, value any) (T, error) {
	segs, err := splitPath(path)
	if err != nil {
		return rec, err
	}
	out := rec
	if err := setIn(reflect.ValueOf(&out).Elem(), segs, value); err != nil {
		return rec, fmt.Errorf("set %q: %w", path, err)
	}
	return out, nil
}

// GetPath returns the value stored at path.
func GetPath[T any](rec T, path string) (any, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	v := reflect.ValueOf(&rec).Elem()
	for _, seg := range segs {
		v, err = child(v, seg)
		if err != nil {
			return nil, fmt.Errorf("get %q: %w", path, err)
		}
	}
	return v.Interface(), nil
}

// Compact returns a copy of rec with blank entries removed from every list
// field: whitespace-only strings, strings discard reports true for, and items
// implementing Emptier that are empty. Scalar string fields discard matches
// are cleared.
func Compact[T any](rec T, discard func(string) bool) T {
	if discard == nil {
		discard = func(string) bool { return false }
	}
	out := rec
	compactValue(reflect.ValueOf(&out).Elem(), discard)
	return out
}

func splitPath(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrUnknownPath
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPath, path)
		}
	}
	return segs, nil
}

func setIn(v reflect.Value, segs []string, value any) error {
	if len(segs) == 0 {
		return assign(v, value)
	}
	switch v.Kind() {
	case reflect.Struct:
		f, ok := field(v, segs[0])
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPath, segs[0])
		}
		return setIn(f, segs[1:], value)
	case reflect.Pointer:
		cp := reflect.New(v.Type().Elem())
		if !v.IsNil() {
			cp.Elem().Set(v.Elem())
		}
		if err := setIn(cp.Elem(), segs, value); err != nil {
			return err
		}
		v.Set(cp)
		return nil
	case reflect.Slice:
		i, err := strconv.Atoi(segs[0])
		if err != nil || i < 0 || i >= v.Len() {
			return fmt.Errorf("%w: index %s", ErrUnknownPath, segs[0])
		}
		cp := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		reflect.Copy(cp, v)
		if err := setIn(cp.Index(i), segs[1:], value); err != nil {
			return err
		}
		v.Set(cp)
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("%w: %s", ErrUnknownPath, segs[0])
		}
		cp := reflect.MakeMapWithSize(v.Type(), v.Len()+1)
		iter := v.MapRange()
		for iter.Next() {
			cp.SetMapIndex(iter.Key(), iter.Value())
		}
		key := reflect.ValueOf(segs[0]).Convert(v.Type().Key())
		elem := reflect.New(v.Type().Elem()).Elem()
		if existing := v.MapIndex(key); existing.IsValid() {
			elem.Set(existing)
		}
		if err := setIn(elem, segs[1:], value); err != nil {
			return err
		}
		cp.SetMapIndex(key, elem)
		v.Set(cp)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownPath, segs[0])
}

func child(v reflect.Value, seg string) (reflect.Value, error) {
	switch v.Kind() {
	case reflect.Struct:
		if f, ok := field(v, seg); ok {
			return f, nil
		}
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type().Elem()), nil
		}
		return child(v.Elem(), seg)
	case reflect.Slice:
		if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < v.Len() {
			return v.Index(i), nil
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			if e := v.MapIndex(reflect.ValueOf(seg).Convert(v.Type().Key())); e.IsValid() {
				return e, nil
			}
			return reflect.Zero(v.Type().Elem()), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnknownPath, seg)
}

// field finds the exported struct field whose JSON name is name, looking
// through untagged embedded structs.
func field(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() && !sf.Anonymous {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if sf.Anonymous && tag == "" && sf.Type.Kind() == reflect.Struct {
			if f, ok := field(v.Field(i), name); ok {
				return f, true
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if tag == name || (tag == "" && strings.EqualFold(sf.Name, name)) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assign(dst reflect.Value, value any) error {
	if value == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if raw, ok := value.(json.RawMessage); ok {
		return decodeInto(dst, raw)
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Kind() == reflect.String && dst.Kind() == reflect.String {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	if src.Kind() == reflect.Bool && dst.Kind() == reflect.Bool {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	return decodeInto(dst, b)
}

func decodeInto(dst reflect.Value, raw []byte) error {
	nv := reflect.New(dst.Type())
	if err := json.Unmarshal(raw, nv.Interface()); err != nil {
		return fmt.Errorf("%w: %v", ErrTypeMismatch, err)
	}
	dst.Set(nv.Elem())
	return nil
}

var emptierType = reflect.TypeOf((*Emptier)(nil)).Elem()

func compactValue(v reflect.Value, discard func(string) bool) {
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			f := v.Field(i)
			if f.CanSet() || (v.Type().Field(i).Anonymous && f.Kind() == reflect.Struct) {
				compactValue(f, discard)
			}
		}
	case reflect.String:
		if v.CanSet() && v.Len() > 0 && discard(v.String()) {
			v.SetString("")
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		cp := reflect.New(v.Type().Elem())
		cp.Elem().Set(v.Elem())
		compactValue(cp.Elem(), discard)
		v.Set(cp)
	case reflect.Slice:
		if v.IsNil() {
			return
		}
		out := reflect.MakeSlice(v.Type(), 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			e := v.Index(i)
			if blank(e, discard) {
				continue
			}
			ec := reflect.New(e.Type()).Elem()
			ec.Set(e)
			compactValue(ec, discard)
			out = reflect.Append(out, ec)
		}
		v.Set(out)
	}
}

func blank(e reflect.Value, discard func(string) bool) bool {
	if e.Kind() == reflect.String {
		s := e.String()
		return strings.TrimSpace(s) == "" || discard(s)
	}
	if e.Type().Implements(emptierType) {
		return e.Interface().(Emptier).Empty()
	}
	return false
}
