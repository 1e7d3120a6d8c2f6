// Package authz is the single place role decisions are made. Services
// consult it before every state-changing call; a denial must leave zero
// side effects behind.
package authz

import (
	"github.com/hedeshawqiomer/my-app-backend/internal/apperr"
	"github.com/hedeshawqiomer/my-app-backend/internal/auth"
)

type Operation int

const (
	OpCreatePost Operation = iota + 1
	OpListPosts
	OpListPublic
	OpAcceptPost
	OpUpdatePost
	OpDeletePost
	OpMutateImages
)

// Resource carries the state the decision depends on. PostStatus gates
// delete/image mutation for moderators; ListStatus gates which status filter
// a lister may request.
type Resource struct {
	PostStatus string
	ListStatus string
}

var (
	errUnauthenticated = apperr.New(apperr.KindUnauthenticated, "unauthorized")
	errForbidden       = apperr.New(apperr.KindForbidden, "forbidden")
)

// Authorize returns nil when the identity may perform op against the given
// resource state.
func Authorize(id auth.Identity, op Operation, res Resource) error {
	switch op {
	case OpCreatePost, OpListPublic:
		// open to everyone, including anonymous submitters
		return nil
	}

	if id.IsAnonymous() {
		return errUnauthenticated
	}

	switch op {
	case OpListPosts:
		switch id.Role {
		case auth.RoleSuper:
			return nil
		case auth.RoleModerator:
			if res.ListStatus == "accepted" {
				return errForbidden
			}
			return nil
		}
	case OpAcceptPost:
		if id.Role == auth.RoleSuper || id.Role == auth.RoleModerator {
			return nil
		}
	case OpUpdatePost:
		if id.Role == auth.RoleSuper {
			return nil
		}
	case OpDeletePost, OpMutateImages:
		switch id.Role {
		case auth.RoleSuper:
			return nil
		case auth.RoleModerator:
			if res.PostStatus == "pending" {
				return nil
			}
			return errForbidden
		}
	}
	return errForbidden
}
