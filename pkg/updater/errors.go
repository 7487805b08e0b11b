package updater

import (
	"errors"
	"fmt"
)

// Failure classes for an update run. Schema violations are reported as
// *appconfig.SchemaError by the validator and pass through unchanged.
var (
	ErrMediaNotFound   = errors.New("no removable media found")
	ErrPackageNotFound = errors.New("no update package found on media")
)

// AssetMissingError means the package config references an asset file that is
// physically absent from the package's asset tree.
type AssetMissingError struct {
	Path string
}

func (e *AssetMissingError) Error() string {
	return fmt.Sprintf("asset referenced by config is missing from package: %s", e.Path)
}

// IOError wraps a failed filesystem operation with enough context to find it.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// CommitError means the promotion of staged content to live failed partway;
// rollback has been attempted.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit failed: %v", e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// RollbackError is the terminal double-fault: the update failed and the
// pre-update state could not be restored. No automatic recovery follows.
type RollbackError struct {
	Cause error
	Err   error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed after %v: %v", e.Cause, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }
