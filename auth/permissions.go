package auth

import (
	"github.com/openpolls/api.openpolls.dev/model"
)

// Permission is one key of the closed permission set. Keys are independent of
// each other, "poll.modify" does not imply "poll.modify.all".
type Permission string

const (
	PermUserListAll   Permission = "user.list.all"
	PermUserViewAll   Permission = "user.view.all"
	PermUserModify    Permission = "user.modify"
	PermUserModifyAll Permission = "user.modify.all"
	PermUserUpdate    Permission = "user.update"
	PermUserUpdateAll Permission = "user.update.all"
	PermUserDelete    Permission = "user.delete"

	PermPollListAll   Permission = "poll.list.all"
	PermPollViewAll   Permission = "poll.view.all"
	PermPollModify    Permission = "poll.modify"
	PermPollModifyAll Permission = "poll.modify.all"
	PermPollUpdate    Permission = "poll.update"
	PermPollUpdateAll Permission = "poll.update.all"
	PermPollDelete    Permission = "poll.delete"

	PermCommentModify Permission = "poll.comment.modify"
	PermCommentDelete Permission = "poll.comment.delete"
)

// Table is the immutable role → granted permissions lookup. It is built once
// at startup from the configured role grants and passed into every caller,
// nothing reads it ambiently.
type Table struct {
	roles map[string]map[Permission]struct{}
}

// NewTable builds a permission table from configured role grants.
func NewTable(grants map[string][]string) *Table {
	roles := make(map[string]map[Permission]struct{}, len(grants))
	for role, perms := range grants {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[Permission(p)] = struct{}{}
		}
		roles[role] = set
	}
	return &Table{roles: roles}
}

// Has reports whether the user's role grants the permission. Anonymous
// callers and unknown roles never hold any permission.
func (t *Table) Has(u *model.User, p Permission) bool {
	if u == nil {
		return false
	}
	set, ok := t.roles[u.Role]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// Can is the single authorization decision every handler routes through: the
// operation is allowed when the caller owns the resource or their role grants
// the permission.
func (t *Table) Can(u *model.User, p Permission, owner bool) bool {
	return owner || t.Has(u, p)
}
