package migration

import (
	"fmt"

	"github.com/arthur-debert/nanodm/internal/validation"
	"github.com/arthur-debert/nanodm/types"
)

// checkField validates a field name a command writes or removes
func checkField(name string) *Message {
	if name == types.IDField {
		return &Message{Level: LevelError, Text: fmt.Sprintf("Field '%s' cannot be migrated", types.IDField)}
	}
	if err := validation.ValidateFieldName(name); err != nil {
		return &Message{Level: LevelError, Text: fmt.Sprintf("Invalid field name: %v", err)}
	}
	return nil
}

// holders returns the ids of the records that have field
func holders(ctx *MigrationContext, field string) []string {
	var ids []string
	for i, r := range ctx.Records {
		if _, ok := r[field]; ok {
			ids = append(ids, ctx.IDs[i])
		}
	}
	return ids
}
