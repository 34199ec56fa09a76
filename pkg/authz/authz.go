// Package authz decides which identities may delete articles.
package authz

import "github.com/samber/lo"

// DefaultAdmin is the identity that has always been allowed to delete
// articles. It applies when no admins are configured.
const DefaultAdmin = "xpODpmRnWBZ2ELnvxHzYeq5BtKy2"

// Policy reports whether identity may delete articles.
type Policy interface {
	CanDelete(identity string) bool
}

// AllowList permits exactly the listed identities.
type AllowList []string

// NewAllowList returns an allow list of admins, or of DefaultAdmin alone
// when admins is empty. Empty entries are dropped.
func NewAllowList(admins []string) AllowList {
	admins = lo.Compact(admins)
	if len(admins) == 0 {
		return AllowList{DefaultAdmin}
	}
	return AllowList(lo.Uniq(admins))
}

// CanDelete implements Policy. Identities are compared for exact equality;
// the empty identity is never allowed.
func (a AllowList) CanDelete(identity string) bool {
	return identity != "" && lo.Contains(a, identity)
}

// Func adapts a function to Policy.
type Func func(identity string) bool

// CanDelete implements Policy.
func (f Func) CanDelete(identity string) bool { return f(identity) }
