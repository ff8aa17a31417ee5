package program

import (
	"io"
	"os"
	"slices"

	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/parser"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the YAML description of a program and the queries to run on it.
// Types, goals and clauses are written in the syntax read by ParseGoal.
type File struct {
	Structs []StructDecl `yaml:"structs"`
	Traits  []TraitDecl  `yaml:"traits"`
	Impls   []ImplDecl   `yaml:"impls"`
	// Clauses are added to the program as written
	Clauses []string `yaml:"clauses"`
	Queries []Query  `yaml:"queries"`
}

type StructDecl struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Fields []string `yaml:"fields"`
}

type TraitDecl struct {
	Name string `yaml:"name"`
	// Params exclude the self type
	Params        []string `yaml:"params"`
	Assoc         []string `yaml:"assoc"`
	Auto          bool     `yaml:"auto"`
	Marker        bool     `yaml:"marker"`
	Coinductive   bool     `yaml:"coinductive"`
	NonEnumerable bool     `yaml:"non_enumerable"`
}

type ImplDecl struct {
	Params []string `yaml:"params"`
	// Header is the implemented trait reference, like "Vec<T>: Clone"
	Header   string            `yaml:"header"`
	Negative bool              `yaml:"negative"`
	Where    []string          `yaml:"where"`
	Assoc    map[string]string `yaml:"assoc"`
}

type QueryMode string

const (
	// ModeSolve solves the query with the recursive solver
	ModeSolve QueryMode = "solve"
	// ModeFirst reports the answer with the shortest derivation
	ModeFirst QueryMode = "first"
	// ModeAll enumerates every answer
	ModeAll QueryMode = "all"
)

type Query struct {
	Name string    `yaml:"name"`
	Goal string    `yaml:"goal"`
	Mode QueryMode `yaml:"mode"`
	// Expect is the rendered solution expected in ModeSolve and ModeFirst
	Expect string `yaml:"expect"`
	// Answers are the rendered answers expected in ModeAll
	Answers []string `yaml:"answers"`

	Parsed ir.Goal `yaml:"-"`
}

func LoadFile(path string) (*Program, []Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "opening program %s", path)
	}
	defer f.Close()
	program, queries, err := Load(f)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "loading program %s", path)
	}
	return program, queries, nil
}

func Load(r io.Reader) (*Program, []Query, error) {
	var file File
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, errors.Wrap(err, "decoding yaml")
	}
	return file.Build()
}

// Build lowers the program described by f and parses its queries
func (f File) Build() (*Program, []Query, error) {
	b := NewBuilder()

	for _, decl := range f.Structs {
		s, err := decl.build()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "struct %s", decl.Name)
		}
		b.Struct(s)
	}
	for _, decl := range f.Traits {
		t, err := decl.build()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "trait %s", decl.Name)
		}
		b.Trait(t)
	}
	for i, decl := range f.Impls {
		impl, err := decl.build()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "impl #%d (%s)", i, decl.Header)
		}
		b.Impl(impl)
	}
	for _, src := range f.Clauses {
		clause, err := ParseClause(src)
		if err != nil {
			return nil, nil, err
		}
		b.Clause(clause)
	}

	program, err := b.Build()
	if err != nil {
		return nil, nil, errors.Wrap(err, "checking program")
	}

	queries := make([]Query, len(f.Queries))
	for i, q := range f.Queries {
		if q.Mode == "" {
			q.Mode = ModeSolve
		}
		if !slices.Contains([]QueryMode{ModeSolve, ModeFirst, ModeAll}, q.Mode) {
			return nil, nil, errors.Errorf("query %q: unknown mode %q", q.Goal, q.Mode)
		}
		if q.Name == "" {
			q.Name = q.Goal
		}
		q.Parsed, err = ParseGoal(q.Goal)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "query %q", q.Name)
		}
		queries[i] = q
	}
	return program, queries, nil
}

func parseParams(params []string) ([]parser.Binder, error) {
	binders := make([]parser.Binder, len(params))
	for i, src := range params {
		b, err := parser.ParseParam(src)
		if err != nil {
			return nil, err
		}
		binders[i] = b
	}
	return binders, nil
}

func (d StructDecl) build() (Struct, error) {
	binders, err := parseParams(d.Params)
	if err != nil {
		return Struct{}, err
	}
	s := Struct{Name: d.Name, Params: parser.Kinds(binders)}
	for _, src := range d.Fields {
		field, err := parser.ParseType(src, binders)
		if err != nil {
			return Struct{}, errors.Wrap(err, "field")
		}
		s.Fields = append(s.Fields, field)
	}
	return s, nil
}

func (d TraitDecl) build() (Trait, error) {
	binders, err := parseParams(d.Params)
	if err != nil {
		return Trait{}, err
	}
	return Trait{
		Name:       d.Name,
		Params:     append([]ir.VariableKind{ir.KindType}, parser.Kinds(binders)...),
		AssocTypes: d.Assoc,
		Flags: TraitFlags{
			Auto:          d.Auto,
			Marker:        d.Marker,
			Coinductive:   d.Coinductive,
			NonEnumerable: d.NonEnumerable,
		},
	}, nil
}

func (d ImplDecl) build() (Impl, error) {
	binders, err := parseParams(d.Params)
	if err != nil {
		return Impl{}, err
	}
	header, err := parser.ParseLeaf(d.Header, binders)
	if err != nil {
		return Impl{}, err
	}
	domain, ok := header.(ir.Domain)
	if !ok {
		return Impl{}, errors.Errorf("header %q is not a trait reference", d.Header)
	}
	implemented, ok := domain.Goal.(ir.Implemented)
	if !ok {
		return Impl{}, errors.Errorf("header %q is not a trait reference", d.Header)
	}

	impl := Impl{Params: parser.Kinds(binders), TraitRef: implemented.TraitRef, Negative: d.Negative}
	for _, src := range d.Where {
		goal, err := parser.ParseGoal(src, binders)
		if err != nil {
			return Impl{}, errors.Wrap(err, "where clause")
		}
		impl.WhereClauses = append(impl.WhereClauses, goal)
	}

	names := make([]string, 0, len(d.Assoc))
	for name := range d.Assoc {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value, err := parser.ParseType(d.Assoc[name], binders)
		if err != nil {
			return Impl{}, errors.Wrapf(err, "associated type %s", name)
		}
		impl.AssocValues = append(impl.AssocValues, AssocValue{Name: name, Value: value})
	}
	return impl, nil
}
