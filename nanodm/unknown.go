package nanodm

import (
	"fmt"

	"go.uber.org/zap"
)

// UnknownKeyPolicy decides what happens to raw data keys a class does not
// declare
type UnknownKeyPolicy int

const (
	// UnknownReject fails with an *UnknownKeyError
	UnknownReject UnknownKeyPolicy = iota
	// UnknownAccept keeps the value as an extra on the document. Extras are
	// readable through Get and Extra but never persisted.
	UnknownAccept
	// UnknownIgnore drops the value
	UnknownIgnore
	// UnknownAcceptLog accepts and logs a warning
	UnknownAcceptLog
	// UnknownIgnoreLog drops and logs a warning
	UnknownIgnoreLog
)

// String returns the policy name
func (p UnknownKeyPolicy) String() string {
	switch p {
	case UnknownReject:
		return "reject"
	case UnknownAccept:
		return "accept"
	case UnknownIgnore:
		return "ignore"
	case UnknownAcceptLog:
		return "accept-log"
	case UnknownIgnoreLog:
		return "ignore-log"
	}
	return fmt.Sprintf("UnknownKeyPolicy(%d)", int(p))
}

// ParseUnknownKeyPolicy is the inverse of UnknownKeyPolicy.String
func ParseUnknownKeyPolicy(s string) (UnknownKeyPolicy, error) {
	for p := UnknownReject; p <= UnknownIgnoreLog; p++ {
		if p.String() == s {
			return p, nil
		}
	}
	return UnknownReject, fmt.Errorf("unknown key policy %q, expected reject, accept, ignore, accept-log or ignore-log", s)
}

// handleUnknown routes a key the schema does not declare
func (d *Document) handleUnknown(key string, value any) error {
	m := d.model
	if m.unknownHandler != nil {
		return m.unknownHandler(d, key, value)
	}

	policy := m.db.unknownPolicy
	if m.unknownPolicy != nil {
		policy = *m.unknownPolicy
	}

	switch policy {
	case UnknownAccept, UnknownAcceptLog:
		if policy == UnknownAcceptLog {
			m.db.logger.Warn("accepted unknown key",
				zap.String("class", m.name), zap.String("key", key))
		}
		d.SetExtra(key, value)
		return nil
	case UnknownIgnore, UnknownIgnoreLog:
		if policy == UnknownIgnoreLog {
			m.db.logger.Warn("ignored unknown key",
				zap.String("class", m.name), zap.String("key", key))
		}
		return nil
	}
	return &UnknownKeyError{Class: m.name, Key: key}
}
