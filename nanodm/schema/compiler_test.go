package schema

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type testClass struct {
	name     string
	embedded bool
}

func (c *testClass) ClassName() string { return c.name }
func (c *testClass) IsEmbedded() bool  { return c.embedded }

type registry map[string]Class

func (r registry) Resolve(name string) (Class, bool) {
	c, ok := r[name]
	return c, ok
}

func (r registry) NativeIDType() string { return "uuid" }

var (
	userClass    = &testClass{name: "User"}
	addressClass = &testClass{name: "Address", embedded: true}
)

func noopToData(v any) (any, error)   { return v, nil }
func noopFromData(v any) (any, error) { return v, nil }
func alwaysValid(any) bool            { return true }

func TestCompileBasicSchema(t *testing.T) {
	s, err := Compile(&testClass{name: "Post"}, Decls{
		{Key: "title", Spec: String},
		{Key: "views", Spec: Opts{"type": Number, "min": 0, "max": 1000}},
		{Key: "tags", Spec: []any{String}},
		{Key: "author", Spec: userClass},
		{Key: "readers", Spec: ArrayOf(Named("User"))},
		{Key: "address", Spec: addressClass},
		{Key: "history", Spec: []any{addressClass}},
		{Key: "_cache", Spec: String},
	}, registry{"User": userClass})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	checks := []struct {
		name string
		got  []string
		want []string
	}{
		{"keys", s.Keys(), []string{"_id", "title", "views", "tags", "author", "readers", "address", "history"}},
		{"array keys", s.ArrayKeys(), []string{"tags", "readers", "history"}},
		{"ref keys", s.RefKeys(), []string{"author"}},
		{"ref array keys", s.RefArrayKeys(), []string{"readers"}},
		{"embedded keys", s.EmbeddedKeys(), []string{"address"}},
		{"embedded array keys", s.EmbeddedArrayKeys(), []string{"history"}},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if diff := cmp.Diff(c.want, c.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	id, _ := s.Entry("_id")
	if id.Type.String() != "ID<uuid>" {
		t.Errorf("expected id type ID<uuid>, got %s", id.Type)
	}
	views, _ := s.Entry("views")
	if views.Min != 0.0 || views.Max != 1000.0 {
		t.Errorf("expected normalized float bounds, got %v/%v", views.Min, views.Max)
	}
	if len(s.DataEntries()) != 7 {
		t.Errorf("expected 7 data entries, got %d", len(s.DataEntries()))
	}
	if s.Has("_cache") {
		t.Error("private declaration was compiled")
	}
}

func TestCompileAccessorsReturnCopies(t *testing.T) {
	s := MustCompile(&testClass{name: "Thing"}, Decls{{Key: "a", Spec: String}}, nil)
	keys := s.Keys()
	keys[0] = "mutated"
	entries := s.Entries()
	entries[1].Key = "mutated"
	if diff := cmp.Diff([]string{"_id", "a"}, s.Keys()); diff != "" {
		t.Errorf("schema was mutated through an accessor:\n%s", diff)
	}
	if e, _ := s.Entry("a"); e.Key != "a" {
		t.Error("entry was mutated through an accessor")
	}
}

func TestCompileEmbeddedClass(t *testing.T) {
	s, err := Compile(addressClass, Decls{{Key: "city", Spec: String}}, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if s.Has("_id") {
		t.Error("embedded schemas have no _id entry")
	}

	_, err = Compile(addressClass, Decls{{Key: "owner", Spec: userClass}}, nil)
	assertConfigError(t, err, "owner", "embedded documents cannot hold document references")

	_, err = Compile(addressClass, Decls{{Key: "owners", Spec: []any{userClass}}}, nil)
	assertConfigError(t, err, "owners", "embedded documents cannot hold document references")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name   string
		decl   Decl
		reason string
	}{
		{"unsupported token", Decl{"a", 42}, "unsupported type int"},
		{"unknown basic", Decl{"a", Basic(99)}, "unknown basic type"},
		{"unknown named class", Decl{"a", Named("Ghost")}, `unknown class "Ghost"`},
		{"multi element array", Decl{"a", []any{String, Number}}, "exactly one element type"},
		{"nested array", Decl{"a", []any{[]any{String}}}, "nested arrays"},
		{"array of wildcard", Decl{"a", []any{Object}}, "arrays of free-form elements"},
		{"array of empty array", Decl{"a", []any{[]any{}}}, "arrays of free-form elements"},
		{"unknown option", Decl{"a", Opts{"type": String, "lenght": 3}}, "allowed options are type, default"},
		{"missing type", Decl{"a", Opts{"required": true}}, "must include a type"},
		{"required not bool", Decl{"a", Opts{"type": String, "required": "yes"}}, "invalid options"},
		{"unique not bool", Decl{"a", Opts{"type": String, "unique": 1}}, "invalid options"},
		{"choices on boolean", Decl{"a", Opts{"type": Boolean, "choices": []any{true}}}, "choices are only allowed"},
		{"choices wrong element", Decl{"a", Opts{"type": String, "choices": []any{"a", 1}}}, "is not a string"},
		{"min on string", Decl{"a", Opts{"type": String, "min": 1}}, "min and max are only allowed"},
		{"min above max", Decl{"a", Opts{"type": Number, "min": 5, "max": 1}}, "min is greater than max"},
		{"match on number", Decl{"a", Opts{"type": Number, "match": "x"}}, "match is only allowed"},
		{"bad match pattern", Decl{"a", Opts{"type": String, "match": "("}}, "invalid match pattern"},
		{"custom without functions", Decl{"a", Object}, "require toData, fromData and validate"},
		{"custom missing fromData", Decl{"a", Opts{"type": Array, "toData": noopToData, "validate": alwaysValid}}, "require toData, fromData and validate"},
		{"toData on basic", Decl{"a", Opts{"type": String, "toData": noopToData}}, "only allowed on custom types"},
		{"date default of wrong kind", Decl{"a", Opts{"type": Date, "default": true}}, "cannot be converted to a date"},
		{"date default unparseable", Decl{"a", Opts{"type": Date, "default": "not a date"}}, "cannot be converted to a date"},
		{"dollar field", Decl{"$a", String}, "cannot start with '$'"},
		{"dotted field", Decl{"a.b", String}, "cannot contain '.'"},
		{"indexed embedded", Decl{"a", Opts{"type": addressClass, "unique": true}}, "cannot be indexed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(&testClass{name: "Broken"}, Decls{tt.decl}, registry{})
			assertConfigError(t, err, tt.decl.Key, tt.reason)
		})
	}

	t.Run("duplicate key", func(t *testing.T) {
		_, err := Compile(&testClass{name: "Broken"}, Decls{{"a", String}, {"a", Number}}, nil)
		assertConfigError(t, err, "a", "declared more than once")
	})
}

func assertConfigError(t *testing.T, err error, field, reason string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a configuration error containing %q", reason)
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("expected errors.Is(err, ErrConfig), got %v", err)
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Field != field {
		t.Errorf("expected field %q, got %q", field, cfgErr.Field)
	}
	if !strings.Contains(cfgErr.Reason, reason) {
		t.Errorf("expected reason containing %q, got %q", reason, cfgErr.Reason)
	}
}

func TestCompileCustomType(t *testing.T) {
	s, err := Compile(&testClass{name: "Blob"}, Decls{
		{Key: "meta", Spec: Opts{"type": Object, "toData": noopToData, "fromData": noopFromData, "validate": alwaysValid}},
		{Key: "raw", Spec: Opts{"type": []any{}, "toData": noopToData, "fromData": noopFromData, "validate": alwaysValid}},
	}, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	for _, key := range []string{"meta", "raw"} {
		e, _ := s.Entry(key)
		if e.Type.Kind != KindCustom || e.Type.Custom == nil {
			t.Errorf("%s: expected a custom type with functions, got %+v", key, e.Type)
		}
	}
}

func TestCompileDefaults(t *testing.T) {
	s, err := Compile(&testClass{name: "Defaults"}, Decls{
		{Key: "tags", Spec: Opts{"type": []any{String}, "default": []any{"a"}}},
		{Key: "meta", Spec: Opts{"type": Object, "default": map[string]any{"n": 1},
			"toData": noopToData, "fromData": noopFromData, "validate": alwaysValid}},
		{Key: "count", Spec: Opts{"type": Number, "default": func() int { return 7 }}},
		{Key: "fromMillis", Spec: Opts{"type": Date, "default": 86400000}},
		{Key: "fromString", Spec: Opts{"type": Date, "default": "2024-01-02T03:04:05Z"}},
		{Key: "fromFunc", Spec: Opts{"type": Date, "default": func() any { return "2024-01-02" }}},
	}, nil)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	t.Run("literal defaults are fresh", func(t *testing.T) {
		tags, _ := s.Entry("tags")
		a := tags.Default().([]any)
		b := tags.Default().([]any)
		a[0] = "mutated"
		if b[0] != "a" {
			t.Error("array default shared between calls")
		}

		meta, _ := s.Entry("meta")
		m1 := meta.Default().(map[string]any)
		m1["n"] = 2
		if meta.Default().(map[string]any)["n"] != 1 {
			t.Error("object default shared between calls")
		}
	})

	t.Run("typed factory", func(t *testing.T) {
		count, _ := s.Entry("count")
		if count.Default() != 7 {
			t.Errorf("expected factory result 7, got %v", count.Default())
		}
	})

	t.Run("date defaults become dates", func(t *testing.T) {
		for key, want := range map[string]time.Time{
			"fromMillis": time.UnixMilli(86400000),
			"fromString": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
			"fromFunc":   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		} {
			e, _ := s.Entry(key)
			got, ok := e.Default().(time.Time)
			if !ok {
				t.Errorf("%s: expected time.Time, got %T", key, e.Default())
				continue
			}
			if !got.Equal(want) {
				t.Errorf("%s: expected %v, got %v", key, want, got)
			}
		}
	})
}

func TestCompileConstraints(t *testing.T) {
	re := regexp.MustCompile("^[a-z]+$")
	s := MustCompile(&testClass{name: "Constraints"}, Decls{
		{Key: "slug", Spec: Opts{"type": String, "match": re, "unique": true}},
		{Key: "words", Spec: Opts{"type": []any{String}, "match": "^w"}},
		{Key: "size", Spec: Opts{"type": Number, "choices": []int{1, 2, 3}, "indexed": true}},
		{Key: "secret", Spec: Opts{"type": String, "private": true, "required": true}},
	}, nil)

	slug, _ := s.Entry("slug")
	if slug.Match != re || !slug.Unique {
		t.Errorf("unexpected slug entry %+v", slug)
	}
	words, _ := s.Entry("words")
	if words.Match == nil || !words.Match.MatchString("wow") {
		t.Error("expected compiled match on [String] field")
	}
	size, _ := s.Entry("size")
	if diff := cmp.Diff([]any{1.0, 2.0, 3.0}, size.Choices); diff != "" {
		t.Errorf("choices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"slug"}, s.UniqueKeys()); diff != "" {
		t.Errorf("unique keys mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"size"}, s.IndexedKeys()); diff != "" {
		t.Errorf("indexed keys mismatch:\n%s", diff)
	}

	var jsonKeys []string
	for _, e := range s.JSONEntries() {
		jsonKeys = append(jsonKeys, e.Key)
	}
	if diff := cmp.Diff([]string{"_id", "slug", "words", "size"}, jsonKeys); diff != "" {
		t.Errorf("json entries mismatch:\n%s", diff)
	}
}

func TestCompileIsUnaffectedByLaterDeclarationChanges(t *testing.T) {
	decls := Decls{{Key: "name", Spec: Opts{"type": String, "choices": []any{"a", "b"}}}}
	s := MustCompile(&testClass{name: "Frozen"}, decls, nil)

	decls[0].Spec.(Opts)["type"] = Number
	decls = append(decls, Decl{Key: "extra", Spec: String})

	e, _ := s.Entry("name")
	if !e.Type.IsBasic(String) || s.Has("extra") {
		t.Error("compiled schema changed after its declaration was mutated")
	}
}
