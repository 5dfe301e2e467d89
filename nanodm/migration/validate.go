package migration

import (
	"fmt"
	"sort"
	"time"

	"github.com/arthur-debert/nanodm/nanodm"
	"github.com/arthur-debert/nanodm/types"
)

// ValidateSchema checks every stored record against a model: keys the
// schema does not declare, records that cannot be loaded, and documents
// that fail validation. It never modifies records.
type ValidateSchema struct {
	Model *nanodm.Model
}

// Description returns a human-readable description of the command
func (v *ValidateSchema) Description() string {
	if v.Model == nil {
		return "Validate all records"
	}
	return fmt.Sprintf("Validate all records against the %s schema", v.Model.ClassName())
}

// Validate checks if validation can be executed
func (v *ValidateSchema) Validate(ctx *MigrationContext) []Message {
	if v.Model == nil {
		return []Message{{Level: LevelError, Text: "No model given"}}
	}
	if v.Model.IsEmbedded() {
		return []Message{{
			Level: LevelError,
			Text:  fmt.Sprintf("%s is embedded and has no collection", v.Model.ClassName()),
		}}
	}
	if _, err := v.Model.Schema(); err != nil {
		return []Message{{Level: LevelError, Text: fmt.Sprintf("Invalid schema: %v", err)}}
	}
	return []Message{{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Will validate %d records against the %s schema", len(ctx.Records), v.Model.ClassName()),
	}}
}

// Execute performs the validation
func (v *ValidateSchema) Execute(ctx *MigrationContext) *Result {
	result := newResult(ctx)
	start := time.Now()

	validationMessages := v.Validate(ctx)
	result.Messages = append(result.Messages, validationMessages...)
	if hasErrors(validationMessages) {
		result.Success = false
		result.Code = CodeValidationError
		return result
	}

	sch, _ := v.Model.Schema()
	totalErrors := 0
	var samples []map[string]any
	failed := 0

	for i, rec := range ctx.Records {
		var problems []string
		for _, key := range sortedKeys(rec) {
			if key != types.IDField && !sch.Has(key) {
				problems = append(problems, fmt.Sprintf("%s: unknown field", key))
			}
		}
		doc, err := v.Model.FromData(rec)
		if err != nil {
			problems = append(problems, err.Error())
		} else if err := doc.Validate(); err != nil {
			problems = append(problems, err.Error())
		}

		if len(problems) == 0 {
			continue
		}
		failed++
		totalErrors += len(problems)
		if len(samples) < 5 {
			samples = append(samples, map[string]any{
				"record_id": ctx.IDs[i],
				"errors":    problems,
			})
		}
	}

	result.Stats.SkippedDocs = failed
	result.Stats.Duration = time.Since(start)

	if totalErrors > 0 {
		result.Success = false
		result.Code = CodeValidationError
		result.Messages = append(result.Messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Found %d validation errors in %d records", totalErrors, failed),
			Details: map[string]any{
				"total_errors":  totalErrors,
				"failed_docs":   failed,
				"error_samples": samples,
			},
		})
		return result
	}

	result.Messages = append(result.Messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("All %d records passed validation", len(ctx.Records)),
	})
	return result
}

func sortedKeys(r types.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
