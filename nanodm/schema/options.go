package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// OptionKeys lists the keys accepted in an Opts declaration
var OptionKeys = []string{
	"type", "default", "required", "unique", "indexed", "private",
	"min", "max", "choices", "match", "validate", "toData", "fromData",
}

// fieldOptions is the decoded form of an Opts map
type fieldOptions struct {
	Type     any                    `mapstructure:"type"`
	Default  any                    `mapstructure:"default"`
	Required bool                   `mapstructure:"required"`
	Unique   bool                   `mapstructure:"unique"`
	Indexed  bool                   `mapstructure:"indexed"`
	Private  bool                   `mapstructure:"private"`
	Min      any                    `mapstructure:"min"`
	Max      any                    `mapstructure:"max"`
	Choices  []any                  `mapstructure:"choices"`
	Match    any                    `mapstructure:"match"`
	Validate func(any) bool         `mapstructure:"validate"`
	ToData   func(any) (any, error) `mapstructure:"toData"`
	FromData func(any) (any, error) `mapstructure:"fromData"`

	set map[string]bool
}

func (o *fieldOptions) has(key string) bool {
	return o.set[key]
}

// decodeOptions turns a field spec into fieldOptions. A bare token becomes
// {type: token}.
func decodeOptions(spec any) (*fieldOptions, error) {
	var raw map[string]any
	switch s := spec.(type) {
	case Opts:
		raw = map[string]any(s)
	case map[string]any:
		raw = s
	default:
		return &fieldOptions{Type: spec, set: map[string]bool{"type": true}}, nil
	}

	var unknown []string
	set := make(map[string]bool, len(raw))
	for key, value := range raw {
		if !isOptionKey(key) {
			unknown = append(unknown, key)
			continue
		}
		if value != nil {
			set[key] = true
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown option(s) %s, allowed options are %s",
			strings.Join(unknown, ", "), strings.Join(OptionKeys, ", "))
	}
	if !set["type"] {
		return nil, fmt.Errorf("options must include a type")
	}

	opts := &fieldOptions{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      opts,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(withoutNils(raw)); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	opts.set = set
	return opts, nil
}

func isOptionKey(key string) bool {
	for _, k := range OptionKeys {
		if k == key {
			return true
		}
	}
	return false
}

func withoutNils(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
