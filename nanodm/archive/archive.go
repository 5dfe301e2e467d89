// Package archive exports collections from a storage adapter into a zip
// archive and imports them back into any adapter.
//
// An archive holds a manifest, db.json, listing each collection with its
// record count and index definitions, plus one collections/<name>.json file
// per collection containing its records as a JSON array. Ids are kept, so an
// archive moves data between engines without breaking references.
package archive

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// FormatVersion is written to every manifest
const FormatVersion = "1"

const manifestName = "db.json"

// Source is an adapter that can enumerate its collections and indexes
type Source interface {
	storage.Adapter
	Collections(ctx context.Context) ([]string, error)
	Indexes(ctx context.Context, collection string) ([]storage.IndexDefinition, error)
}

// Manifest describes the contents of an archive
type Manifest struct {
	Version     string           `json:"version"`
	ExportedAt  time.Time        `json:"exported_at"`
	Collections []CollectionInfo `json:"collections"`
}

// CollectionInfo describes one exported collection
type CollectionInfo struct {
	Name    string                    `json:"name"`
	Count   int                       `json:"count"`
	Indexes []storage.IndexDefinition `json:"indexes,omitempty"`
}

// ExportOptions configures what data to export
type ExportOptions struct {
	// Collections limits the export to the named collections. Empty means
	// every collection of the source.
	Collections []string

	// Query selects the exported records of every collection
	Query types.Query
}

// Export writes an archive of src to w and returns its manifest
func Export(ctx context.Context, src Source, w io.Writer, opts ExportOptions) (*Manifest, error) {
	names := opts.Collections
	if len(names) == 0 {
		var err error
		if names, err = src.Collections(ctx); err != nil {
			return nil, fmt.Errorf("failed to list collections: %w", err)
		}
	}
	query := opts.Query
	if query == nil {
		query = types.Query{}
	}

	manifest := &Manifest{
		Version:     FormatVersion,
		ExportedAt:  time.Now().UTC(),
		Collections: make([]CollectionInfo, 0, len(names)),
	}

	zw := zip.NewWriter(w)
	for _, name := range names {
		records, err := src.Find(ctx, name, query, types.FindOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		indexes, err := src.Indexes(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read indexes of %s: %w", name, err)
		}
		if err := writeJSON(zw, collectionFile(name), manifest.ExportedAt, records); err != nil {
			return nil, err
		}
		manifest.Collections = append(manifest.Collections, CollectionInfo{
			Name:    name,
			Count:   len(records),
			Indexes: indexes,
		})
	}

	if err := writeJSON(zw, manifestName, manifest.ExportedAt, manifest); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	return manifest, nil
}

// ExportToPath creates an archive at path
func ExportToPath(ctx context.Context, src Source, path string, opts ExportOptions) (*Manifest, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	manifest, err := Export(ctx, src, file, opts)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close archive file: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return manifest, nil
}

func collectionFile(name string) string {
	return "collections/" + name + ".json"
}

func writeJSON(zw *zip.Writer, name string, modified time.Time, v any) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s in archive: %w", name, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
