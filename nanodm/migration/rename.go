package migration

import (
	"fmt"
	"time"
)

// RenameField renames a field across all records
type RenameField struct {
	OldName string
	NewName string
}

// Description returns a human-readable description of the command
func (r *RenameField) Description() string {
	return fmt.Sprintf("Rename field '%s' to '%s'", r.OldName, r.NewName)
}

// Validate checks if the rename can be executed
func (r *RenameField) Validate(ctx *MigrationContext) []Message {
	var messages []Message

	for _, name := range []string{r.OldName, r.NewName} {
		if msg := checkField(name); msg != nil {
			messages = append(messages, *msg)
		}
	}
	if r.OldName == r.NewName {
		messages = append(messages, Message{
			Level: LevelError,
			Text:  "Old and new field names are the same",
		})
	}
	if hasErrors(messages) {
		return messages
	}

	found := holders(ctx, r.OldName)
	if len(found) == 0 {
		return append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any record", r.OldName),
		})
	}
	messages = append(messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d records", r.OldName, len(found)),
	})

	if conflicts := holders(ctx, r.NewName); len(conflicts) > 0 {
		messages = append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Field '%s' already exists in %d records", r.NewName, len(conflicts)),
			Details: map[string]any{
				"record_ids": firstIDs(conflicts),
				"total":      len(conflicts),
			},
		})
	}
	return messages
}

// Execute performs the rename operation
func (r *RenameField) Execute(ctx *MigrationContext) *Result {
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
		val, ok := rec[r.OldName]
		if !ok {
			continue
		}
		if !ctx.DryRun {
			rec[r.NewName] = val
			delete(rec, r.OldName)
		}
		ctx.markModified(i)
	}

	return finish(ctx, result, start,
		fmt.Sprintf("Renamed field '%s' to '%s' in %d records", r.OldName, r.NewName, len(ctx.modified)))
}
