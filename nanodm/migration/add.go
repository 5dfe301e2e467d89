package migration

import (
	"fmt"
	"time"

	"github.com/arthur-debert/nanodm/types"
)

// AddField sets a field to a default value on every record that lacks it.
// With Overwrite the value replaces existing ones as well.
type AddField struct {
	FieldName    string
	DefaultValue any
	Overwrite    bool
}

// Description returns a human-readable description of the command
func (a *AddField) Description() string {
	return fmt.Sprintf("Add field '%s' with default value", a.FieldName)
}

// Validate checks if the add can be executed
func (a *AddField) Validate(ctx *MigrationContext) []Message {
	if msg := checkField(a.FieldName); msg != nil {
		return []Message{*msg}
	}

	var messages []Message
	existing := holders(ctx, a.FieldName)
	if len(existing) > 0 {
		level, verb := LevelInfo, "will be kept"
		if a.Overwrite {
			level, verb = LevelWarning, "will be overwritten"
		}
		messages = append(messages, Message{
			Level: level,
			Text:  fmt.Sprintf("Field '%s' already exists in %d records and %s", a.FieldName, len(existing), verb),
			Details: map[string]any{
				"record_ids": firstIDs(existing),
				"total":      len(existing),
			},
		})
	}

	targets := len(ctx.Records)
	if !a.Overwrite {
		targets -= len(existing)
	}
	messages = append(messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Will add field '%s' to %d records", a.FieldName, targets),
		Details: map[string]any{
			"default_value": a.DefaultValue,
		},
	})
	return messages
}

// Execute performs the add operation
func (a *AddField) Execute(ctx *MigrationContext) *Result {
	result := newResult(ctx)
	start := time.Now()

	validationMessages := a.Validate(ctx)
	result.Messages = append(result.Messages, validationMessages...)
	if hasErrors(validationMessages) {
		result.Success = false
		result.Code = CodeValidationError
		return result
	}

	for i, rec := range ctx.Records {
		if _, ok := rec[a.FieldName]; ok && !a.Overwrite {
			result.Stats.SkippedDocs++
			continue
		}
		if !ctx.DryRun {
			rec[a.FieldName] = types.DeepCopy(a.DefaultValue)
		}
		ctx.markModified(i)
	}

	return finish(ctx, result, start,
		fmt.Sprintf("Added field '%s' with default value to %d records", a.FieldName, len(ctx.modified)))
}
