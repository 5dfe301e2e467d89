package migration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/nanodm/storage"
	"github.com/arthur-debert/nanodm/types"
)

// Runner loads a collection, runs a command on copies of its records and
// writes back the records the command modified
type Runner struct {
	adapter storage.Adapter
	logger  *zap.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner returns a Runner over adapter
func NewRunner(adapter storage.Adapter, opts ...RunnerOption) *Runner {
	r := &Runner{adapter: adapter, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run applies cmd to every record of collection. Nothing is written when the
// command fails validation, in dry-run mode, or when no record changed. A
// partially failed transform still writes the values it converted.
//
// The returned error reports storage failures; command failures are
// described by the Result.
func (r *Runner) Run(ctx context.Context, collection string, cmd Command, opts Options) (*Result, error) {
	records, err := r.adapter.Find(ctx, collection, types.Query{}, types.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", collection, err)
	}

	copies := make([]types.Record, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		copies[i] = types.CopyRecord(rec)
		ids[i] = r.adapter.CanonicalID(rec.ID())
	}

	mctx := NewMigrationContext(collection, copies, ids, opts.DryRun)
	result := cmd.Execute(mctx)
	r.logger.Debug("migration executed",
		zap.String("command", cmd.Description()),
		zap.String("collection", collection),
		zap.Int("records", len(records)),
		zap.Int("modified", result.Stats.ModifiedDocs),
		zap.Bool("dry_run", opts.DryRun))

	if result.Code == CodeValidationError || opts.DryRun {
		return result, nil
	}

	for _, i := range mctx.Modified() {
		rec := mctx.Records[i]
		values := make(types.Record, len(rec))
		for k, v := range rec {
			if k != types.IDField {
				values[k] = v
			}
		}
		if _, err := r.adapter.Save(ctx, collection, rec.ID(), values); err != nil {
			result.Success = false
			result.Code = CodeExecutionError
			result.Messages = append(result.Messages, Message{
				Level: LevelError,
				Text:  fmt.Sprintf("Failed to save record %s: %v", ids[i], err),
			})
			return result, fmt.Errorf("failed to save record %s: %w", ids[i], err)
		}
	}
	return result, nil
}

// RenameField renames a field across a collection
func (r *Runner) RenameField(ctx context.Context, collection, oldName, newName string, opts Options) (*Result, error) {
	return r.Run(ctx, collection, &RenameField{OldName: oldName, NewName: newName}, opts)
}

// RemoveField removes a field from every record of a collection
func (r *Runner) RemoveField(ctx context.Context, collection, field string, opts Options) (*Result, error) {
	return r.Run(ctx, collection, &RemoveField{FieldName: field}, opts)
}

// AddField sets field to value on every record that lacks it
func (r *Runner) AddField(ctx context.Context, collection, field string, value any, opts Options) (*Result, error) {
	return r.Run(ctx, collection, &AddField{FieldName: field, DefaultValue: value}, opts)
}

// TransformField converts the values of field with a registered transformer
func (r *Runner) TransformField(ctx context.Context, collection, field, transformer string, opts Options) (*Result, error) {
	return r.Run(ctx, collection, &TransformField{FieldName: field, TransformerName: transformer}, opts)
}

// ValidateSchema checks the stored records of model against its schema
func (r *Runner) ValidateSchema(ctx context.Context, model *nanodm.Model) (*Result, error) {
	cmd := &ValidateSchema{Model: model}
	if model.IsEmbedded() {
		return cmd.Execute(NewMigrationContext("", nil, nil, true)), nil
	}
	return r.Run(ctx, model.Collection(), cmd, Options{DryRun: true})
}
