package nanodm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/nanodm/schema"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/testutil"
	"github.com/arthur-debert/nanodm/types"
)

type populateFixture struct {
	db       *nanodm.DB
	counting *testutil.CountingAdapter
	users    *nanodm.Model
	tags     *nanodm.Model
	posts    *nanodm.Model
}

func newPopulateFixture(t *testing.T) populateFixture {
	t.Helper()
	db, counting := testutil.NewMemoryDB(t)
	users := db.Define("User", schema.Decls{{Key: "name", Spec: schema.String}})
	tags := db.Define("Tag", schema.Decls{{Key: "label", Spec: schema.String}})
	posts := db.Define("Post", schema.Decls{
		{Key: "title", Spec: schema.String},
		{Key: "author", Spec: users},
		{Key: "editor", Spec: users},
		{Key: "readers", Spec: schema.ArrayOf(users)},
		{Key: "tags", Spec: schema.ArrayOf(tags)},
	})
	return populateFixture{db, counting, users, tags, posts}
}

func saved(t *testing.T, m *nanodm.Model, data map[string]any) *nanodm.Document {
	t.Helper()
	doc, err := m.Create(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	return doc
}

func refIDs(t *testing.T, v any) []any {
	t.Helper()
	elems, ok := v.([]any)
	if !ok {
		t.Fatalf("expected a slice, got %T", v)
	}
	ids := make([]any, len(elems))
	for i, e := range elems {
		doc, ok := e.(*nanodm.Document)
		if !ok {
			t.Fatalf("element %d is not populated: %#v", i, e)
		}
		ids[i] = doc.ID()
	}
	return ids
}

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	f := newPopulateFixture(t)

	alice := saved(t, f.users, map[string]any{"name": "alice"})
	bob := saved(t, f.users, map[string]any{"name": "bob"})
	golang := saved(t, f.tags, map[string]any{"label": "go"})

	saved(t, f.posts, map[string]any{
		"title":   "one",
		"author":  alice.ID(),
		"editor":  alice.ID(),
		"readers": []any{bob.ID(), alice.ID(), bob.ID()},
		"tags":    []any{golang.ID()},
	})
	saved(t, f.posts, map[string]any{
		"title":  "two",
		"author": alice.ID(),
	})

	f.counting.Reset()
	docs, err := f.posts.Find(ctx, types.Query{}, nanodm.Sort("title"))
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertDocumentCount(t, docs, 2)
	one, two := docs[0], docs[1]

	t.Run("one fetch per target class", func(t *testing.T) {
		if got := f.counting.Calls("Find", "users"); got != 1 {
			t.Errorf("expected 1 user fetch, got %d", got)
		}
		if got := f.counting.Calls("Find", "tags"); got != 1 {
			t.Errorf("expected 1 tag fetch, got %d", got)
		}
	})

	t.Run("shared ids resolve to one instance", func(t *testing.T) {
		testutil.AssertPopulated(t, one, "author", alice.ID())
		testutil.AssertPopulated(t, one, "editor", alice.ID())
		testutil.AssertPopulated(t, two, "author", alice.ID())
		if one.Get("author") != two.Get("author") || one.Get("author") != one.Get("editor") {
			t.Error("slots for the same id should share the fetched document")
		}
		testutil.AssertField(t, one.Get("author").(*nanodm.Document), "name", "alice")
	})

	t.Run("array order and duplicates are preserved", func(t *testing.T) {
		want := []any{bob.ID(), alice.ID(), bob.ID()}
		if diff := cmp.Diff(want, refIDs(t, one.Get("readers"))); diff != "" {
			t.Errorf("readers (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]any{golang.ID()}, refIDs(t, one.Get("tags"))); diff != "" {
			t.Errorf("tags (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]any{}, two.Get("readers")); diff != "" {
			t.Errorf("empty readers (-want +got):\n%s", diff)
		}
	})

	t.Run("only one level is resolved", func(t *testing.T) {
		self := f.db.Define("Node", schema.Decls{
			{Key: "name", Spec: schema.String},
			{Key: "next", Spec: schema.Named("Node")},
		})
		c := saved(t, self, map[string]any{"name": "c"})
		b := saved(t, self, map[string]any{"name": "b", "next": c.ID()})
		a := saved(t, self, map[string]any{"name": "a", "next": b.ID()})

		found, err := self.FindOne(ctx, types.Query{"_id": a.ID()})
		if err != nil {
			t.Fatal(err)
		}
		next := found.Get("next").(*nanodm.Document)
		if next.Get("next") != c.ID() {
			t.Errorf("second level should stay an id, got %#v", next.Get("next"))
		}
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		doc, err := f.posts.FindOne(ctx, types.Query{"title": "one"}, nanodm.Populate(false))
		if err != nil {
			t.Fatal(err)
		}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := doc.Populate(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}

		wantReaders := []any{bob.ID(), alice.ID(), bob.ID()}
		if doc.Get("author") != alice.ID() {
			t.Errorf("author should keep its id, got %#v", doc.Get("author"))
		}
		if diff := cmp.Diff(wantReaders, doc.Get("readers")); diff != "" {
			t.Errorf("readers should keep their ids (-want +got):\n%s", diff)
		}

		if err := doc.Save(ctx); err != nil {
			t.Fatal(err)
		}
		reloaded, err := f.posts.FindOne(ctx, types.Query{"title": "one"})
		if err != nil {
			t.Fatal(err)
		}
		testutil.AssertPopulated(t, reloaded, "author", alice.ID())
		if diff := cmp.Diff(wantReaders, refIDs(t, reloaded.Get("readers"))); diff != "" {
			t.Errorf("stored readers (-want +got):\n%s", diff)
		}
	})

	t.Run("repeated documents", func(t *testing.T) {
		doc, err := f.posts.FindOne(ctx, types.Query{"title": "one"}, nanodm.Populate(false))
		if err != nil {
			t.Fatal(err)
		}
		if err := f.posts.Populate(ctx, []*nanodm.Document{doc, doc}, "readers"); err != nil {
			t.Fatal(err)
		}
		want := []any{bob.ID(), alice.ID(), bob.ID()}
		if diff := cmp.Diff(want, refIDs(t, doc.Get("readers"))); diff != "" {
			t.Errorf("readers (-want +got):\n%s", diff)
		}
	})
}

func TestPopulateMissingTargets(t *testing.T) {
	ctx := context.Background()
	f := newPopulateFixture(t)

	alice := saved(t, f.users, map[string]any{"name": "alice"})
	gone := saved(t, f.users, map[string]any{"name": "gone"})
	post := saved(t, f.posts, map[string]any{
		"author":  gone.ID(),
		"readers": []any{gone.ID(), alice.ID(), gone.ID()},
	})
	if _, err := gone.Delete(ctx); err != nil {
		t.Fatal(err)
	}

	found, err := f.posts.FindOne(ctx, types.Query{"_id": post.ID()})
	if err != nil {
		t.Fatal(err)
	}
	if found.Get("author") != nil {
		t.Errorf("unresolved single reference should be nil, got %#v", found.Get("author"))
	}
	if diff := cmp.Diff([]any{alice.ID()}, refIDs(t, found.Get("readers"))); diff != "" {
		t.Errorf("readers (-want +got):\n%s", diff)
	}
}

func TestPopulateOptions(t *testing.T) {
	ctx := context.Background()
	f := newPopulateFixture(t)

	alice := saved(t, f.users, map[string]any{"name": "alice"})
	golang := saved(t, f.tags, map[string]any{"label": "go"})
	saved(t, f.posts, map[string]any{"author": alice.ID(), "tags": []any{golang.ID()}})

	t.Run("disabled", func(t *testing.T) {
		f.counting.Reset()
		doc, err := f.posts.FindOne(ctx, types.Query{}, nanodm.Populate(false))
		if err != nil {
			t.Fatal(err)
		}
		if doc.Get("author") != alice.ID() {
			t.Errorf("author should stay an id, got %#v", doc.Get("author"))
		}
		if f.counting.Calls("Find", "users") != 0 {
			t.Error("no population fetch expected")
		}
	})

	t.Run("selected fields", func(t *testing.T) {
		f.counting.Reset()
		doc, err := f.posts.FindOne(ctx, types.Query{}, nanodm.PopulateFields("tags"))
		if err != nil {
			t.Fatal(err)
		}
		if doc.Get("author") != alice.ID() {
			t.Errorf("author should stay an id, got %#v", doc.Get("author"))
		}
		if diff := cmp.Diff([]any{golang.ID()}, refIDs(t, doc.Get("tags"))); diff != "" {
			t.Errorf("tags (-want +got):\n%s", diff)
		}
		if f.counting.Calls("Find", "users") != 0 || f.counting.Calls("Find", "tags") != 1 {
			t.Error("only tags should be fetched")
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		if _, err := f.posts.Find(ctx, types.Query{}, nanodm.PopulateFields("title")); err == nil {
			t.Error("expected an error for a non reference field")
		}
	})

	t.Run("explicit populate is idempotent", func(t *testing.T) {
		doc, err := f.posts.FindOne(ctx, types.Query{}, nanodm.Populate(false))
		if err != nil {
			t.Fatal(err)
		}
		if err := doc.Populate(ctx, "author"); err != nil {
			t.Fatal(err)
		}
		first := doc.Get("author")
		f.counting.Reset()
		if err := doc.Populate(ctx); err != nil {
			t.Fatal(err)
		}
		if doc.Get("author") != first {
			t.Error("hydrated references should be kept")
		}
		if f.counting.Calls("Find", "users") != 0 {
			t.Error("hydrated references should not be fetched again")
		}
	})

	t.Run("documents of another class", func(t *testing.T) {
		err := f.posts.Populate(ctx, []*nanodm.Document{alice})
		if err == nil {
			t.Error("expected an error")
		}
	})

}

func TestPopulateTargetSetupFailure(t *testing.T) {
	ctx := context.Background()
	db, counting := testutil.NewMemoryDB(t)
	users := db.Define("User", schema.Decls{{Key: "name", Spec: schema.String}})
	badges := db.Define("Badge", schema.Decls{{Key: "name", Spec: schema.String}})
	strict := db.Define("StrictBadge", schema.Decls{
		{Key: "name", Spec: schema.Opts{"type": schema.String, "unique": true}},
	}, nanodm.WithCollection(badges.Collection()))
	posts := db.Define("Post", schema.Decls{
		{Key: "author", Spec: users},
		{Key: "badge", Spec: strict},
	})

	alice := saved(t, users, map[string]any{"name": "alice"})
	gold := saved(t, badges, map[string]any{"name": "gold"})
	saved(t, badges, map[string]any{"name": "gold"})
	saved(t, posts, map[string]any{"author": alice.ID(), "badge": gold.ID()})

	doc, err := posts.FindOne(ctx, types.Query{}, nanodm.Populate(false))
	if err != nil {
		t.Fatal(err)
	}
	counting.Reset()
	if err := doc.Populate(ctx); !errors.Is(err, storage.ErrUniqueViolation) {
		t.Fatalf("expected the index error, got %v", err)
	}
	if got := counting.Calls("Find", "users"); got != 0 {
		t.Errorf("no fetch should start before every target is ready, got %d", got)
	}
	if doc.Get("author") != alice.ID() || doc.Get("badge") != gold.ID() {
		t.Errorf("references should keep their ids, got %#v and %#v", doc.Get("author"), doc.Get("badge"))
	}
}
