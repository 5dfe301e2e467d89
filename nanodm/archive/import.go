package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// ImportOptions configures the import behavior
type ImportOptions struct {
	// Collections limits the import to the named collections
	Collections []string

	// Clear empties each target collection before importing into it
	Clear bool

	// DryRun reads and checks the archive without writing anything
	DryRun bool
}

// ImportResult contains the results of an import operation
type ImportResult struct {
	Manifest *Manifest
	Imported map[string]int // records written per collection
	Indexes  int
	Failed   []FailedRecord
}

// FailedRecord is a record the target adapter rejected
type FailedRecord struct {
	Collection string
	ID         any
	Err        error
}

func (f FailedRecord) Error() string {
	return fmt.Sprintf("%s %v: %v", f.Collection, f.ID, f.Err)
}

// Import reads the archive in r and writes its collections to dst. Indexes
// are created before records so unique constraints apply. Records the target
// rejects are reported in Failed and do not stop the import.
func Import(ctx context.Context, dst storage.Adapter, r io.ReaderAt, size int64, opts ImportOptions) (*ImportResult, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var manifest Manifest
	mf, ok := files[manifestName]
	if !ok {
		return nil, fmt.Errorf("archive has no %s", manifestName)
	}
	if err := readJSON(mf, &manifest); err != nil {
		return nil, err
	}
	if manifest.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported archive version %q", manifest.Version)
	}

	wanted := make(map[string]bool, len(opts.Collections))
	for _, name := range opts.Collections {
		wanted[name] = true
	}

	result := &ImportResult{Manifest: &manifest, Imported: make(map[string]int)}
	for _, info := range manifest.Collections {
		if len(wanted) > 0 && !wanted[info.Name] {
			continue
		}
		f, ok := files[collectionFile(info.Name)]
		if !ok {
			return result, fmt.Errorf("archive has no records for %s", info.Name)
		}
		var records []types.Record
		if err := readJSON(f, &records); err != nil {
			return result, err
		}
		if len(records) != info.Count {
			return result, fmt.Errorf("%s: manifest lists %d records, archive holds %d", info.Name, info.Count, len(records))
		}
		if opts.DryRun {
			result.Imported[info.Name] = len(records)
			result.Indexes += len(info.Indexes)
			continue
		}
		if err := importCollection(ctx, dst, info, records, opts, result); err != nil {
			return result, err
		}
	}
	return result, nil
}

func importCollection(ctx context.Context, dst storage.Adapter, info CollectionInfo, records []types.Record, opts ImportOptions, result *ImportResult) error {
	if opts.Clear {
		if err := dst.ClearCollection(ctx, info.Name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", info.Name, err)
		}
	}
	for _, idx := range info.Indexes {
		if err := dst.CreateIndex(ctx, info.Name, idx.Field, types.IndexOptions{Unique: idx.Unique}); err != nil {
			return fmt.Errorf("failed to create index %s.%s: %w", info.Name, idx.Field, err)
		}
		result.Indexes++
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := rec.ID()
		values := make(types.Record, len(rec))
		for k, v := range rec {
			if k != types.IDField {
				values[k] = v
			}
		}
		if _, err := dst.Save(ctx, info.Name, id, values); err != nil {
			result.Failed = append(result.Failed, FailedRecord{Collection: info.Name, ID: id, Err: err})
			continue
		}
		result.Imported[info.Name]++
	}
	return nil
}

// ImportFromPath imports the archive at path
func ImportFromPath(ctx context.Context, dst storage.Adapter, path string, opts ImportOptions) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}
	return Import(ctx, dst, file, info.Size(), opts)
}

func readJSON(f *zip.File, v any) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", f.Name, err)
	}
	return nil
}
