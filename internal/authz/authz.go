// Package authz implements the access-control decision function. Every check
// is a flat predicate over the actor's role, staff, trust and blocked fields
// and the target's current state; decisions are never cached across calls.
package authz

import (
	"github.com/edulib/edulib-api/internal/models"
	appErrors "github.com/edulib/edulib-api/pkg/errors"
)

// Action identifies an operation subject to access control.
type Action string

const (
	ActionCreateResource   Action = "resource.create"
	ActionViewResource     Action = "resource.view"
	ActionModerateResource Action = "resource.moderate"
	ActionDeleteResource   Action = "resource.delete"
	ActionRate             Action = "engage.rate"
	ActionComment          Action = "engage.comment"
	ActionSave             Action = "engage.save"
	ActionDeleteComment    Action = "comment.delete"
	ActionModerateUser     Action = "user.moderate"
)

// Target carries the entity a decision is evaluated against. Nil fields are
// simply not consulted; ActionCreateResource, for example, has no target.
type Target struct {
	Resource *models.Resource
	Comment  *models.Comment
}

// Decision is the outcome of an access check.
type Decision struct {
	Allowed bool
	Reason  string
	err     *appErrors.Error
}

// Err maps a denial to the corresponding typed error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return appErrors.Clone(d.err, d.Reason)
}

func allow() Decision {
	return Decision{Allowed: true}
}

func unauthorized(reason string) Decision {
	return Decision{Reason: reason, err: appErrors.ErrUnauthorized}
}

func forbidden(reason string) Decision {
	return Decision{Reason: reason, err: appErrors.ErrForbidden}
}

// Can decides whether actor may perform action against target. actor is nil
// for anonymous callers.
func Can(actor *models.User, action Action, target Target) Decision {
	// Blocked overrides every other allow for mutating actions.
	if action != ActionViewResource {
		if actor == nil {
			return unauthorized("authentication required")
		}
		if actor.Blocked {
			return unauthorized("account is blocked")
		}
	}

	switch action {
	case ActionCreateResource:
		// Pending teachers may publish; their resources stay non-public
		// until approved, which is a resource-status concern, not an
		// actor one.
		return allow()

	case ActionViewResource:
		res := target.Resource
		if res == nil {
			return forbidden("no resource target")
		}
		if res.PubliclyListable() {
			return allow()
		}
		if actor == nil {
			return unauthorized("authentication required")
		}
		if actor.Staff || actor.ID == res.OwnerID {
			return allow()
		}
		return forbidden("resource is not visible")

	case ActionModerateResource, ActionModerateUser:
		if !actor.Staff {
			return forbidden("staff role required")
		}
		return allow()

	case ActionDeleteResource:
		res := target.Resource
		if res == nil {
			return forbidden("no resource target")
		}
		if actor.Staff || actor.ID == res.OwnerID {
			return allow()
		}
		return forbidden("only the owner or staff may delete a resource")

	case ActionRate, ActionComment, ActionSave:
		res := target.Resource
		if res == nil {
			return forbidden("no resource target")
		}
		if !res.PubliclyListable() {
			return forbidden("resource is not open for engagement")
		}
		return allow()

	case ActionDeleteComment:
		cmt := target.Comment
		if cmt == nil {
			return forbidden("no comment target")
		}
		if actor.Staff || actor.ID == cmt.AuthorID {
			return allow()
		}
		return forbidden("only the author or staff may delete a comment")
	}

	return forbidden("unknown action")
}
