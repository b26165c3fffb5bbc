package typereg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/nspcc-dev/go-ordered-json"
)

// ErrLoad is matched (via errors.Is) by every LoadError.
var ErrLoad = errors.New("failed to load type fragment")

// LoadError is returned when a fragment can't be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", ErrLoad, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is makes LoadError match ErrLoad.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoad
}

// Collision describes a type defined in more than one fragment, the
// definition from Current wins.
type Collision struct {
	Name     string
	Previous string
	Current  string
}

// String implements the fmt.Stringer interface.
func (c Collision) String() string {
	return fmt.Sprintf("type %q from %s overrides %s", c.Name, c.Current, c.Previous)
}

// Fragment is a named partial schema.
type Fragment struct {
	Source string
	Types  Schema
}

// LoadFragment reads and parses a single fragment file.
func LoadFragment(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	s, err := parseSchema(data)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return s, nil
}

// LoadFile reads schema persisted with Save.
func LoadFile(path string) (Schema, error) {
	return LoadFragment(path)
}

// Load reads fragments in the given order and folds them into one schema,
// later fragments override earlier ones. All overrides are returned as
// collisions.
func Load(paths ...string) (Schema, []Collision, error) {
	frags := make([]Fragment, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFragment(p)
		if err != nil {
			return nil, nil, err
		}
		frags = append(frags, Fragment{Source: p, Types: s})
	}
	res, coll := Merge(frags...)
	return res, coll, nil
}

// Merge folds fragments left to right. It's pure: the result only depends on
// the ordered input.
func Merge(frags ...Fragment) (Schema, []Collision) {
	var (
		res    = make(Schema)
		origin = make(map[string]string)
		coll   []Collision
	)
	for _, f := range frags {
		for _, name := range f.Types.Names() {
			if prev, ok := origin[name]; ok {
				coll = append(coll, Collision{Name: name, Previous: prev, Current: f.Source})
			}
			res[name] = f.Types[name]
			origin[name] = f.Source
		}
	}
	return res, coll
}

// Save writes the schema to path atomically: data is written into a
// temporary file in the same directory which then replaces the target, so
// readers never observe partial content. Keys are sorted.
func Save(path string, s Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	err = os.Rename(tmp.Name(), path)
	return err
}
