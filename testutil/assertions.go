package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/arthur-debert/nanodm/nanodm"
)

// AssertDocumentCount checks that the slice contains the expected number of documents
func AssertDocumentCount(t *testing.T, docs []*nanodm.Document, expected int, context ...string) {
	t.Helper()
	if len(docs) != expected {
		ctx := ""
		if len(context) > 0 {
			ctx = " " + context[0]
		}
		t.Errorf("expected %d documents%s, got %d", expected, ctx, len(docs))
	}
}

// AssertDocumentExists verifies that a document with the given id exists in the slice
func AssertDocumentExists(t *testing.T, docs []*nanodm.Document, id any) {
	t.Helper()
	for _, doc := range docs {
		if doc.ID() == id {
			return
		}
	}
	t.Errorf("document %v not found in results", id)
}

// AssertDocumentNotExists verifies that a document with the given id does not exist in the slice
func AssertDocumentNotExists(t *testing.T, docs []*nanodm.Document, id any) {
	t.Helper()
	for _, doc := range docs {
		if doc.ID() == id {
			t.Errorf("document %v should not be in results", id)
			return
		}
	}
}

// AssertField compares a document field with the expected value
func AssertField(t *testing.T, doc *nanodm.Document, key string, want any) {
	t.Helper()
	if diff := cmp.Diff(want, doc.Get(key)); diff != "" {
		t.Errorf("%s.%s mismatch (-want +got):\n%s", doc.Model().ClassName(), key, diff)
	}
}

// AssertPopulated verifies that a reference field holds a hydrated document
// with the given id
func AssertPopulated(t *testing.T, doc *nanodm.Document, key string, id any) {
	t.Helper()
	ref, ok := doc.Get(key).(*nanodm.Document)
	if !ok {
		t.Errorf("%s.%s is not populated, holds %T", doc.Model().ClassName(), key, doc.Get(key))
		return
	}
	if ref.ID() != id {
		t.Errorf("%s.%s populated with %v, want %v", doc.Model().ClassName(), key, ref.ID(), id)
	}
}
