package nanodm

import (
	"context"
)

// Phase identifies a lifecycle hook
type Phase int

const (
	PhasePreValidate Phase = iota
	PhasePostValidate
	PhasePreSave
	PhasePostSave
	PhasePreDelete
	PhasePostDelete
)

// String returns the hook name
func (p Phase) String() string {
	switch p {
	case PhasePreValidate:
		return "preValidate"
	case PhasePostValidate:
		return "postValidate"
	case PhasePreSave:
		return "preSave"
	case PhasePostSave:
		return "postSave"
	case PhasePreDelete:
		return "preDelete"
	case PhasePostDelete:
		return "postDelete"
	}
	return "unknown"
}

// HookFunc is a lifecycle callback. A non-nil error aborts the operation.
type HookFunc func(ctx context.Context, doc *Document) error

// Hooks holds the optional lifecycle callbacks of a class. Nil members are
// no-ops.
type Hooks struct {
	PreValidate  HookFunc
	PostValidate HookFunc
	PreSave      HookFunc
	PostSave     HookFunc
	PreDelete    HookFunc
	PostDelete   HookFunc
}

func (h Hooks) get(p Phase) HookFunc {
	switch p {
	case PhasePreValidate:
		return h.PreValidate
	case PhasePostValidate:
		return h.PostValidate
	case PhasePreSave:
		return h.PreSave
	case PhasePostSave:
		return h.PostSave
	case PhasePreDelete:
		return h.PreDelete
	case PhasePostDelete:
		return h.PostDelete
	}
	return nil
}

// runHooks invokes the hook for phase on every embedded document reachable
// from d, depth first, and then on d itself.
func (d *Document) runHooks(ctx context.Context, phase Phase) error {
	for _, child := range d.embeddedChildren() {
		if err := child.runHooks(ctx, phase); err != nil {
			return err
		}
	}

	hook := d.model.hooks.get(phase)
	if hook == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := hook(ctx, d); err != nil {
		return &HookError{Phase: phase, Class: d.model.name, Err: err}
	}
	return nil
}
