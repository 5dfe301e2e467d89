// Package migration applies field-level changes (rename, remove, add,
// transform) to every record of a collection and validates stored records
// against a model's schema. Commands run on in-memory copies; the Runner
// writes back only the records a successful command modified.
package migration

import (
	"sort"
	"time"

	"github.com/arthur-debert/nanodm/types"
)

// MessageLevel represents the severity of a message
type MessageLevel int

const (
	LevelDebug MessageLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l MessageLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Message represents a single output message from a migration
type Message struct {
	Level   MessageLevel
	Text    string
	Details map[string]any // Optional structured data
}

// Result encapsulates the outcome of a migration operation
type Result struct {
	Success      bool
	Code         int // 0 = success, >0 = specific error codes
	Messages     []Message
	ModifiedDocs []string // canonical ids of modified records
	Stats        Stats
}

// Stats provides migration statistics
type Stats struct {
	TotalDocs    int
	ModifiedDocs int
	SkippedDocs  int
	Duration     time.Duration
}

// Options configures migration behavior
type Options struct {
	DryRun bool
}

// Error codes
const (
	CodeSuccess = iota
	CodeValidationError
	CodeExecutionError
	CodePartialFailure
)

// Command is one migration step
type Command interface {
	Description() string
	Validate(ctx *MigrationContext) []Message
	Execute(ctx *MigrationContext) *Result
}

// MigrationContext holds the records a command works on. IDs[i] is the
// canonical id of Records[i].
type MigrationContext struct {
	Collection string
	Records    []types.Record
	IDs        []string
	DryRun     bool

	modified map[int]bool
}

// NewMigrationContext returns a context over records. ids must be parallel to
// records.
func NewMigrationContext(collection string, records []types.Record, ids []string, dryRun bool) *MigrationContext {
	return &MigrationContext{
		Collection: collection,
		Records:    records,
		IDs:        ids,
		DryRun:     dryRun,
		modified:   make(map[int]bool),
	}
}

func (c *MigrationContext) markModified(i int) {
	c.modified[i] = true
}

// Modified returns the positions of modified records in ascending order
func (c *MigrationContext) Modified() []int {
	out := make([]int, 0, len(c.modified))
	for i := range c.modified {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

func newResult(ctx *MigrationContext) *Result {
	return &Result{
		Success:  true,
		Code:     CodeSuccess,
		Messages: []Message{},
		Stats: Stats{
			TotalDocs: len(ctx.Records),
		},
	}
}

func hasErrors(messages []Message) bool {
	for _, msg := range messages {
		if msg.Level == LevelError {
			return true
		}
	}
	return false
}

// finish records modified ids and appends the summary messages
func finish(ctx *MigrationContext, result *Result, start time.Time, summary string) *Result {
	for _, i := range ctx.Modified() {
		result.ModifiedDocs = append(result.ModifiedDocs, ctx.IDs[i])
	}
	result.Stats.ModifiedDocs = len(result.ModifiedDocs)
	result.Stats.Duration = time.Since(start)

	if result.Stats.ModifiedDocs > 0 && summary != "" {
		result.Messages = append(result.Messages, Message{Level: LevelInfo, Text: summary})
	}
	if ctx.DryRun {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text:  "(DRY RUN - no changes applied)",
		})
	}
	return result
}

// firstIDs returns up to five ids for message details
func firstIDs(ids []string) []string {
	return ids[:min(5, len(ids))]
}
