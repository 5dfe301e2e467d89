package nanodm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/testutil"
	"github.com/arthur-debert/nanodm/types"
)

func TestCreateDefaults(t *testing.T) {
	db := nanodm.New()
	calls := 0
	notes := db.Define("Note", schema.Decls{
		{Key: "title", Spec: schema.Opts{"type": schema.String, "default": "untitled"}},
		{Key: "tags", Spec: schema.Opts{"type": schema.ArrayOf(schema.String), "default": []any{"new"}}},
		{Key: "meta", Spec: schema.Opts{"type": schema.Object, "default": map[string]any{"v": 1},
			"toData": identity, "fromData": identity, "validate": accept}},
		{Key: "seq", Spec: schema.Opts{"type": schema.Number, "default": func() any { calls++; return calls }}},
		{Key: "links", Spec: schema.ArrayOf(schema.String)},
		{Key: "body", Spec: schema.String},
	})

	a := notes.MustCreate(nil)
	b := notes.MustCreate(nil)

	t.Run("literal defaults are fresh copies", func(t *testing.T) {
		a.Get("tags").([]any)[0] = "changed"
		a.Get("meta").(map[string]any)["v"] = 2

		if diff := cmp.Diff([]any{"new"}, b.Get("tags")); diff != "" {
			t.Errorf("tags shared between instances (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]any{"v": 1}, b.Get("meta")); diff != "" {
			t.Errorf("meta shared between instances (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]any{"new"}, notes.MustCreate(nil).Get("tags")); diff != "" {
			t.Errorf("later instance affected (-want +got):\n%s", diff)
		}
	})

	t.Run("factory defaults run per instance", func(t *testing.T) {
		if a.Get("seq") != float64(1) || b.Get("seq") != float64(2) {
			t.Errorf("unexpected sequence values %v, %v", a.Get("seq"), b.Get("seq"))
		}
	})

	t.Run("arrays without default start empty", func(t *testing.T) {
		if diff := cmp.Diff([]any{}, a.Get("links")); diff != "" {
			t.Errorf("links (-want +got):\n%s", diff)
		}
		if b.Has("body") {
			t.Error("fields without default should be unset")
		}
	})

	t.Run("data overrides defaults", func(t *testing.T) {
		n := notes.MustCreate(map[string]any{"title": "hello", "tags": []string{"x", "y"}})
		testutil.AssertField(t, n, "title", "hello")
		testutil.AssertField(t, n, "tags", []any{"x", "y"})
	})
}

func TestCreateSchemaIsImmutable(t *testing.T) {
	db := nanodm.New()
	tags := []any{"a"}
	opts := schema.Opts{"type": schema.ArrayOf(schema.String), "default": tags}
	decls := schema.Decls{
		{Key: "name", Spec: schema.String},
		{Key: "tags", Spec: opts},
	}
	items := db.Define("Item", decls)

	first := items.MustCreate(nil)

	decls[0] = schema.Decl{Key: "renamed", Spec: schema.Number}
	opts["required"] = true
	tags[0] = "mutated"

	s, err := items.Schema()
	if err != nil {
		t.Fatal(err)
	}
	if s.Has("renamed") || !s.Has("name") {
		t.Errorf("schema keys changed: %v", s.Keys())
	}
	if e, _ := s.Entry("tags"); e.Required {
		t.Error("tags became required")
	}

	second := items.MustCreate(map[string]any{"name": "x"})
	for _, doc := range []*nanodm.Document{first, second} {
		testutil.AssertField(t, doc, "tags", []any{"a"})
	}
}

func TestCreateCoercion(t *testing.T) {
	db := nanodm.New()
	address := db.DefineEmbedded("Address", schema.Decls{
		{Key: "city", Spec: schema.String},
	})
	people := db.Define("Person", schema.Decls{
		{Key: "age", Spec: schema.Number},
		{Key: "born", Spec: schema.Date},
		{Key: "seen", Spec: schema.ArrayOf(schema.Date)},
		{Key: "home", Spec: address},
		{Key: "previous", Spec: schema.ArrayOf(address)},
	})

	p, err := people.Create(map[string]any{
		"_id":      "fixed",
		"age":      int32(40),
		"born":     "1984-02-03",
		"seen":     []any{int64(0), "2020-01-01T10:00:00Z"},
		"home":     map[string]any{"city": "Lisbon"},
		"previous": []any{map[string]any{"city": "Porto"}, map[string]any{"city": "Braga"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if p.ID() != "fixed" {
		t.Errorf("id: got %v", p.ID())
	}
	if p.Get("age") != float64(40) {
		t.Errorf("age: got %#v", p.Get("age"))
	}
	if born, ok := p.Get("born").(time.Time); !ok || !born.Equal(time.Date(1984, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("born: got %#v", p.Get("born"))
	}
	seen := p.Get("seen").([]any)
	if !seen[0].(time.Time).Equal(time.UnixMilli(0)) {
		t.Errorf("seen[0]: got %v", seen[0])
	}

	home, ok := p.Get("home").(*nanodm.Document)
	if !ok || home.Model() != address {
		t.Fatalf("home: got %#v", p.Get("home"))
	}
	testutil.AssertField(t, home, "city", "Lisbon")

	previous := p.Get("previous").([]any)
	if len(previous) != 2 || previous[1].(*nanodm.Document).Get("city") != "Braga" {
		t.Errorf("previous: got %v", previous)
	}

	t.Run("unconvertible values are kept for validation", func(t *testing.T) {
		bad := people.MustCreate(map[string]any{"age": "old"})
		var verr *nanodm.ValidationError
		if err := bad.Validate(); !errors.As(err, &verr) || verr.Field != "age" {
			t.Errorf("expected a validation error on age, got %v", err)
		}
	})

	t.Run("set coerces like create", func(t *testing.T) {
		if err := p.Set("home", map[string]any{"city": "Faro"}); err != nil {
			t.Fatal(err)
		}
		testutil.AssertField(t, p.Get("home").(*nanodm.Document), "city", "Faro")
		if err := p.Set("age", 41); err != nil {
			t.Fatal(err)
		}
		testutil.AssertField(t, p, "age", float64(41))
	})

	t.Run("input maps are copied", func(t *testing.T) {
		raw := []any{"2020-01-01"}
		doc := people.MustCreate(map[string]any{"seen": raw})
		raw[0] = "2021-01-01"
		if !doc.Get("seen").([]any)[0].(time.Time).Equal(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Error("document shares the caller's slice")
		}
	})
}

func TestUnknownKeys(t *testing.T) {
	ctx := context.Background()
	decls := schema.Decls{{Key: "name", Spec: schema.String}}

	t.Run("rejected by default", func(t *testing.T) {
		db := nanodm.New()
		m := db.Define("Thing", decls)
		_, err := m.Create(map[string]any{"name": "a", "extra": 1})
		var uerr *nanodm.UnknownKeyError
		if !errors.As(err, &uerr) || uerr.Key != "extra" || uerr.Class != "Thing" {
			t.Fatalf("expected an UnknownKeyError, got %v", err)
		}
		if !errors.Is(err, nanodm.ErrUnknownKey) {
			t.Error("UnknownKeyError should wrap ErrUnknownKey")
		}
		if err := m.MustCreate(nil).Set("extra", 1); !errors.Is(err, nanodm.ErrUnknownKey) {
			t.Errorf("Set: expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("ignored keys are not persisted", func(t *testing.T) {
		db, _ := testutil.NewMemoryDB(t, nanodm.WithDefaultUnknownKeyPolicy(nanodm.UnknownIgnore))
		m := db.Define("Thing", decls)
		doc, err := m.Create(map[string]any{"name": "a", "extra": 1})
		if err != nil {
			t.Fatal(err)
		}
		if doc.Has("extra") {
			t.Error("ignored key present on the instance")
		}
		if err := doc.Save(ctx); err != nil {
			t.Fatal(err)
		}

		adapter, _ := db.Adapter()
		record, err := adapter.FindOne(ctx, m.Collection(), types.Query{"_id": doc.ID()})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := record["extra"]; ok {
			t.Errorf("ignored key persisted: %v", record)
		}
	})

	t.Run("accepted keys stay on the instance only", func(t *testing.T) {
		db, _ := testutil.NewMemoryDB(t)
		m := db.Define("Thing", decls, nanodm.WithUnknownKeyPolicy(nanodm.UnknownAccept))
		doc, err := m.Create(map[string]any{"name": "a", "extra": 1})
		if err != nil {
			t.Fatal(err)
		}
		if v, ok := doc.Extra("extra"); !ok || v != 1 {
			t.Errorf("extra: got %v, %v", v, ok)
		}
		if doc.Get("extra") != 1 {
			t.Error("Get should read extras")
		}
		if err := doc.Save(ctx); err != nil {
			t.Fatal(err)
		}
		found, err := m.FindOne(ctx, types.Query{"_id": doc.ID()})
		if err != nil {
			t.Fatal(err)
		}
		if found.Has("extra") {
			t.Error("extras must not be persisted")
		}
	})

	t.Run("class policy overrides the db policy", func(t *testing.T) {
		db := nanodm.New(nanodm.WithDefaultUnknownKeyPolicy(nanodm.UnknownAccept))
		m := db.Define("Thing", decls, nanodm.WithUnknownKeyPolicy(nanodm.UnknownReject))
		if _, err := m.Create(map[string]any{"extra": 1}); !errors.Is(err, nanodm.ErrUnknownKey) {
			t.Errorf("expected ErrUnknownKey, got %v", err)
		}
	})

	t.Run("logged policies warn", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		db := nanodm.New(nanodm.WithLogger(zap.New(core)))
		accept := db.Define("Accept", decls, nanodm.WithUnknownKeyPolicy(nanodm.UnknownAcceptLog))
		ignore := db.Define("Ignore", decls, nanodm.WithUnknownKeyPolicy(nanodm.UnknownIgnoreLog))

		a := accept.MustCreate(map[string]any{"extra": 1})
		i := ignore.MustCreate(map[string]any{"extra": 1})
		if !a.Has("extra") || i.Has("extra") {
			t.Errorf("accept has extra=%v, ignore has extra=%v", a.Has("extra"), i.Has("extra"))
		}
		if logs.Len() != 2 {
			t.Fatalf("expected 2 warnings, got %d", logs.Len())
		}
		entry := logs.All()[0]
		if entry.ContextMap()["key"] != "extra" || entry.ContextMap()["class"] != "Accept" {
			t.Errorf("unexpected log context %v", entry.ContextMap())
		}
	})

	t.Run("handler decides", func(t *testing.T) {
		db := nanodm.New()
		var seen []string
		m := db.Define("Thing", decls, nanodm.WithUnknownDataHandler(func(doc *nanodm.Document, key string, value any) error {
			seen = append(seen, key)
			if key == "bad" {
				return errors.New("no bad keys")
			}
			doc.SetExtra(key, value)
			return nil
		}))

		doc, err := m.Create(map[string]any{"good": 1, "other": 2})
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"good", "other"}, seen); diff != "" {
			t.Errorf("handler calls (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(map[string]any{"good": 1, "other": 2}, doc.Extras()); diff != "" {
			t.Errorf("extras (-want +got):\n%s", diff)
		}
		if _, err := m.Create(map[string]any{"bad": 1}); err == nil {
			t.Error("expected the handler error")
		}
	})

	t.Run("embedded documents follow their own policy", func(t *testing.T) {
		db := nanodm.New()
		inner := db.DefineEmbedded("Inner", decls)
		outer := db.Define("Outer", schema.Decls{{Key: "inner", Spec: inner}},
			nanodm.WithUnknownKeyPolicy(nanodm.UnknownIgnore))
		_, err := outer.Create(map[string]any{"inner": map[string]any{"name": "x", "extra": 1}})
		var uerr *nanodm.UnknownKeyError
		if !errors.As(err, &uerr) || uerr.Class != "Inner" {
			t.Errorf("expected an UnknownKeyError for Inner, got %v", err)
		}
	})
}

func identity(v any) (any, error) { return v, nil }

func accept(any) bool { return true }
