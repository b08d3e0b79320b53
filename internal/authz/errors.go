// errors.go defines the sentinel error values of the authorization engine.
// Every precondition failure is returned as one of these typed values so that
// callers (chat, admin UI, roster sync) can branch on the specific reason with
// errors.Is rather than parsing messages.
package authz

import (
	"errors"

	"github.com/chravel/chravel-backend/internal/db/repositories"
)

var (
	// ErrForbidden means the actor lacks the capability the operation
	// requires and is not the trip creator.
	ErrForbidden = errors.New("actor lacks the required capability")

	// ErrNotAMember means the target user is not an active member of the
	// trip. Deployments that enable auto-provisioning never see this from
	// AssignRole.
	ErrNotAMember = errors.New("user is not an active member of the trip")

	// ErrCrossTripRole means a role, channel, and trip do not all belong to
	// the same trip. This is an integrity violation and never mutates state.
	ErrCrossTripRole = errors.New("role and channel scope mismatch")

	// ErrNotFound means the referenced trip, role, channel, or assignment
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyPrimaryConflict surfaces the storage-level single-primary
	// guard. The assignment transaction's locking makes this structurally
	// unreachable; it exists so a missing-lock bug is loud instead of
	// silently corrupting the ledger.
	ErrAlreadyPrimaryConflict = repositories.ErrPrimaryConflict
)
