package core

import (
	"fmt"
	"strings"
)

// ConfigError represents an invalid node or topology configuration.
// These are caller errors and are never retried.
type ConfigError struct {
	msg string
}

func (e ConfigError) Error() string {
	return e.msg
}

// ErrInvalidConfig creates a new configuration error
func ErrInvalidConfig(msg string) error {
	return ConfigError{msg: msg}
}

// ErrInvalidConfigf creates a new formatted configuration error
func ErrInvalidConfigf(format string, args ...interface{}) error {
	return ConfigError{msg: fmt.Sprintf(format, args...)}
}

// DuplicateNodeError reports a name or address collision inside one topology.
type DuplicateNodeError struct {
	Field string // "name" or "address"
	Value string
}

func (e DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node %s: %s", e.Field, e.Value)
}

// GenesisError reports a failure of the external genesis tool, or the tool
// reporting success without producing the expected output.
type GenesisError struct {
	Msg    string
	Stderr string
	Err    error
}

func (e GenesisError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("genesis: %s: %s", e.Msg, strings.TrimSpace(e.Stderr))
	}
	if e.Err != nil {
		return fmt.Sprintf("genesis: %s: %v", e.Msg, e.Err)
	}
	return "genesis: " + e.Msg
}

func (e GenesisError) Unwrap() error {
	return e.Err
}

// CompileError reports a template that cannot be turned into a runtime config.
type CompileError struct {
	Node string
	Msg  string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("compile %s: %s", e.Node, e.Msg)
}

// ProvisionError reports a copy, start, or confirmation failure for one node.
// LogTail carries the last lines of the node's process log when a process was
// involved; it is the primary diagnostic signal for an opaque node binary.
type ProvisionError struct {
	Node    string
	Stage   string
	Msg     string
	LogTail string
	Err     error
}

func (e ProvisionError) Error() string {
	s := fmt.Sprintf("provision %s (%s): %s", e.Node, e.Stage, e.Msg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.LogTail != "" {
		s += "\nlast log lines:\n" + e.LogTail
	}
	return s
}

func (e ProvisionError) Unwrap() error {
	return e.Err
}

// ClientConfigError reports client wiring called out of order or with a
// missing keystore.
type ClientConfigError struct {
	Msg string
}

func (e ClientConfigError) Error() string {
	return "client config: " + e.Msg
}
