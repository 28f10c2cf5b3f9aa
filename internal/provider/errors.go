package provider

import (
	"errors"
	"fmt"

	"github.com/everstacklabs/orgsync/internal/model"
)

// AuthError means the provider rejected our credentials. It is fatal for the
// whole run: every subsequent call would fail the same way.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

// OperationError is a single failed create/update/delete call. It is
// recorded per patch and never aborts independent patches.
type OperationError struct {
	Kind    model.Kind
	Scope   Scope
	Key     string
	Status  int
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %q in %s: status %d: %s", e.Kind, e.Key, e.Scope, e.Status, e.Message)
}

func (e *OperationError) Unwrap() error { return e.Err }

// FetchError is a failed current-state read for one collection. Depending on
// configuration it is either tolerated (empty current state, warning) or
// fatal for that subtree.
type FetchError struct {
	Kind   model.Kind
	Scope  Scope
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s in %s: status %d: %v", e.Kind, e.Scope, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsAuth reports whether err is (or wraps) an authentication failure.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
