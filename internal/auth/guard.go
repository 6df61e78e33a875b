package auth

import (
	"fmt"
	"strings"

	"github.com/and161185/inkwell/internal/errs"
	"github.com/and161185/inkwell/internal/model"
)

// Operation names an owner-scoped mutation.
type Operation string

const (
	OpUpdateArticle  Operation = "update"
	OpDeleteArticle  Operation = "delete"
	OpPublishArticle Operation = "publish"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonOwner           Reason = "Owner"
	ReasonAdminOverride   Reason = "AdminOverride"
	ReasonUnauthenticated Reason = "Unauthenticated"
	ReasonForbidden       Reason = "Forbidden"
)

// Decision is the outcome of an ownership check.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Err converts a denial into the matching sentinel; allowed decisions return nil.
func (d Decision) Err() error {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonUnauthenticated:
		return errs.ErrUnauthenticated
	default:
		return errs.ErrForbidden
	}
}

// Guard compares principals with resource owners.
//
// Administrators are treated like any other principal unless the operation is listed
// in the override set, in which case ADMIN may act on resources it does not own.
type Guard struct {
	adminOverride map[Operation]bool
}

// NewGuard builds a guard with the given admin override operations.
func NewGuard(adminOverride ...Operation) *Guard {
	g := &Guard{adminOverride: make(map[Operation]bool, len(adminOverride))}
	for _, op := range adminOverride {
		g.adminOverride[op] = true
	}
	return g
}

// ParseOperations parses a list such as ["delete", "publish"].
func ParseOperations(names []string) ([]Operation, error) {
	out := make([]Operation, 0, len(names))
	for _, n := range names {
		switch op := Operation(strings.ToLower(strings.TrimSpace(n))); op {
		case OpUpdateArticle, OpDeleteArticle, OpPublishArticle:
			out = append(out, op)
		case "":
		default:
			return nil, fmt.Errorf("unknown operation %q", n)
		}
	}
	return out, nil
}

// AdminOverrides reports whether ADMIN may bypass ownership for op.
func (g *Guard) AdminOverrides(op Operation) bool { return g.adminOverride[op] }

// CheckOwnership decides whether p may perform op on a resource owned by ownerID.
func (g *Guard) CheckOwnership(p *model.Principal, op Operation, ownerID int64) Decision {
	if p == nil {
		return Decision{Reason: ReasonUnauthenticated}
	}
	if p.UserID == ownerID {
		return Decision{Allowed: true, Reason: ReasonOwner}
	}
	if p.IsAdmin() && g.adminOverride[op] {
		return Decision{Allowed: true, Reason: ReasonAdminOverride}
	}
	return Decision{Reason: ReasonForbidden}
}

// CheckOwnership is the guard without any administrative override.
func CheckOwnership(p *model.Principal, ownerID int64) Decision {
	return (&Guard{}).CheckOwnership(p, "", ownerID)
}
