package migration

import (
	"fmt"
	"time"
)

// TransformField transforms field values across all records
type TransformField struct {
	FieldName       string
	TransformerName string
}

// Description returns a human-readable description of the command
func (t *TransformField) Description() string {
	return fmt.Sprintf("Transform field '%s' using '%s' transformer", t.FieldName, t.TransformerName)
}

// Validate checks if the transform can be executed. Values the transformer
// rejects are reported as a warning.
func (t *TransformField) Validate(ctx *MigrationContext) []Message {
	if msg := checkField(t.FieldName); msg != nil {
		return []Message{*msg}
	}

	transformer, ok := TransformerRegistry[t.TransformerName]
	if !ok {
		return []Message{{
			Level: LevelError,
			Text:  fmt.Sprintf("Unknown transformer '%s'", t.TransformerName),
			Details: map[string]any{
				"available_transformers": TransformerNames(),
			},
		}}
	}

	count := 0
	var sampleErrors []string
	failures := 0
	for i, rec := range ctx.Records {
		val, exists := rec[t.FieldName]
		if !exists {
			continue
		}
		count++
		if _, err := transformer(val); err != nil {
			failures++
			if len(sampleErrors) < 3 {
				sampleErrors = append(sampleErrors, fmt.Sprintf("record %s: %v", ctx.IDs[i], err))
			}
		}
	}

	if count == 0 {
		return []Message{{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any record", t.FieldName),
		}}
	}

	messages := []Message{{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d records", t.FieldName, count),
	}}
	if failures > 0 {
		messages = append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Transformation will fail for %d values", failures),
			Details: map[string]any{
				"sample_errors": sampleErrors,
				"total_errors":  failures,
			},
		})
	}
	return messages
}

// Execute performs the transform operation. Values that fail to transform
// are left unchanged and make the result a partial failure.
func (t *TransformField) Execute(ctx *MigrationContext) *Result {
	result := newResult(ctx)
	start := time.Now()

	validationMessages := t.Validate(ctx)
	result.Messages = append(result.Messages, validationMessages...)
	if hasErrors(validationMessages) {
		result.Success = false
		result.Code = CodeValidationError
		return result
	}

	transformer := TransformerRegistry[t.TransformerName]
	var errorDetails []map[string]any
	failures := 0

	for i, rec := range ctx.Records {
		val, exists := rec[t.FieldName]
		if !exists {
			continue
		}
		newVal, err := transformer(val)
		if err != nil {
			failures++
			if len(errorDetails) < 5 {
				errorDetails = append(errorDetails, map[string]any{
					"record_id": ctx.IDs[i],
					"old_value": val,
					"error":     err.Error(),
				})
			}
			continue
		}
		if !ctx.DryRun {
			rec[t.FieldName] = newVal
		}
		ctx.markModified(i)
	}

	if failures > 0 {
		result.Success = false
		result.Code = CodePartialFailure
		result.Stats.SkippedDocs = failures
		result.Messages = append(result.Messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Failed to transform %d values", failures),
			Details: map[string]any{
				"errors": errorDetails,
			},
		})
	}

	return finish(ctx, result, start,
		fmt.Sprintf("Transformed field '%s' in %d records using '%s' transformer",
			t.FieldName, len(ctx.modified), t.TransformerName))
}
