package migration

import (
	"fmt"
	"time"
)

// RemoveField removes a field from all records
type RemoveField struct {
	FieldName string
}

// Description returns a human-readable description of the command
func (r *RemoveField) Description() string {
	return fmt.Sprintf("Remove field '%s'", r.FieldName)
}

// Validate checks if the remove can be executed
func (r *RemoveField) Validate(ctx *MigrationContext) []Message {
	if msg := checkField(r.FieldName); msg != nil {
		return []Message{*msg}
	}

	found := holders(ctx, r.FieldName)
	if len(found) == 0 {
		return []Message{{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any record", r.FieldName),
		}}
	}
	return []Message{{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d records", r.FieldName, len(found)),
	}}
}

// Execute performs the remove operation
func (r *RemoveField) Execute(ctx *MigrationContext) *Result {
	result := newResult(ctx)
	start := time.Now()

	validationMessages := r.Validate(ctx)
	result.Messages = append(result.Messages, validationMessages...)
	if hasErrors(validationMessages) {
		result.Success = false
		result.Code = CodeValidationError
		return result
	}

	for i, rec := range ctx.Records {
		if _, ok := rec[r.FieldName]; !ok {
			continue
		}
		if !ctx.DryRun {
			delete(rec, r.FieldName)
		}
		ctx.markModified(i)
	}

	return finish(ctx, result, start,
		fmt.Sprintf("Removed field '%s' from %d records", r.FieldName, len(ctx.modified)))
}
