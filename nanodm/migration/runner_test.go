package migration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arthur-debert/nanodm/nanodm/migration"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/testutil"
	"github.com/arthur-debert/nanodm/types"
)

func TestRunnerWritesModifiedRecords(t *testing.T) {
	ctx := context.Background()
	lib := testutil.LoadLibrary(t)
	runner := migration.NewRunner(lib.Adapter)

	total, err := lib.Adapter.Count(ctx, "books", types.Query{})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("dry run writes nothing", func(t *testing.T) {
		lib.Adapter.Reset()
		result, err := runner.RenameField(ctx, "books", "genre", "category", migration.Options{DryRun: true})
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if result.Stats.ModifiedDocs != total {
			t.Errorf("expected %d modified, got %d", total, result.Stats.ModifiedDocs)
		}
		if n := lib.Adapter.Calls("Save", ""); n != 0 {
			t.Errorf("dry run saved %d records", n)
		}
		n, err := lib.Adapter.Count(ctx, "books", types.Query{"genre": map[string]any{"$exists": true}})
		if err != nil || n != total {
			t.Errorf("expected %d untouched records, got %d (%v)", total, n, err)
		}
	})

	t.Run("rename saves every changed record", func(t *testing.T) {
		lib.Adapter.Reset()
		result, err := runner.RenameField(ctx, "books", "genre", "category", migration.Options{})
		if err != nil || !result.Success {
			t.Fatalf("run failed: %v %+v", err, result)
		}
		if n := lib.Adapter.Calls("Save", "books"); n != total {
			t.Errorf("expected %d saves, got %d", total, n)
		}
		n, err := lib.Adapter.Count(ctx, "books", types.Query{"category": map[string]any{"$exists": true}})
		if err != nil || n != total {
			t.Errorf("expected %d renamed records, got %d (%v)", total, n, err)
		}
	})

	t.Run("stored records now fail validation", func(t *testing.T) {
		result, err := runner.ValidateSchema(ctx, lib.Book)
		if err != nil {
			t.Fatal(err)
		}
		if result.Success || result.Stats.SkippedDocs != total {
			t.Errorf("expected %d invalid records, got %+v", total, result.Stats)
		}
	})

	t.Run("renaming back restores validity", func(t *testing.T) {
		if _, err := runner.RenameField(ctx, "books", "category", "genre", migration.Options{}); err != nil {
			t.Fatal(err)
		}
		result, err := runner.ValidateSchema(ctx, lib.Book)
		if err != nil || !result.Success {
			t.Fatalf("expected valid records: %v %+v", err, result.Messages)
		}
	})
}

func TestValidateSchema(t *testing.T) {
	ctx := context.Background()
	lib := testutil.LoadLibrary(t)
	runner := migration.NewRunner(lib.Adapter)

	_, err := lib.Adapter.FindOneAndUpdate(ctx, "books",
		types.Query{"title": "The Dispossessed"},
		types.Record{"genre": "romance"},
		types.UpdateOptions{})
	if err != nil {
		t.Fatal(err)
	}

	result, err := runner.ValidateSchema(ctx, lib.Book)
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.Code != migration.CodeValidationError {
		t.Fatalf("expected a validation failure, got %+v", result)
	}
	if result.Stats.SkippedDocs != 1 {
		t.Errorf("expected 1 invalid record, got %d", result.Stats.SkippedDocs)
	}

	embedded, err := runner.ValidateSchema(ctx, lib.Address)
	if err != nil {
		t.Fatal(err)
	}
	if embedded.Code != migration.CodeValidationError {
		t.Errorf("embedded classes have no records to validate, got code %d", embedded.Code)
	}
}

type failingSave struct {
	storage.Adapter
}

var errDiskFull = errors.New("disk full")

func (failingSave) Save(context.Context, string, any, types.Record) (any, error) {
	return nil, errDiskFull
}

func TestRunnerSaveFailure(t *testing.T) {
	ctx := context.Background()
	lib := testutil.LoadLibrary(t)
	runner := migration.NewRunner(failingSave{lib.Adapter})

	result, err := runner.AddField(ctx, "authors", "active", true, migration.Options{})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected the storage error, got %v", err)
	}
	if result.Success || result.Code != migration.CodeExecutionError {
		t.Errorf("expected an execution error, got %+v", result)
	}
}
