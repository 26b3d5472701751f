package approval

import (
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/orgunit"
)

// Authorize reports whether actor may advance or reject a record sitting at
// stage whose owner is placed at owner. Roles never cascade: a faculty
// admin cannot act at department review and vice versa.
func Authorize(actor identity.Actor, stage orgunit.Stage, owner orgunit.Assignment) bool {
	for _, role := range actor.Roles {
		if !role.IsActive {
			continue
		}
		switch role.ScopeKind {
		case identity.ScopeUniversity:
			return true
		case identity.ScopeFaculty:
			if stage == orgunit.StageFacultyReview && sameID(role.ScopeID, owner.FacultyID) {
				return true
			}
		case identity.ScopeDepartment:
			if stage == orgunit.StageDepartmentReview && sameID(role.ScopeID, owner.DepartmentID) {
				return true
			}
		}
	}
	return false
}

// CanView is Authorize without the stage restriction: reviewers may read any
// record owned by someone inside their scope.
func CanView(actor identity.Actor, owner orgunit.Assignment) bool {
	for _, role := range actor.Roles {
		if !role.IsActive {
			continue
		}
		switch role.ScopeKind {
		case identity.ScopeUniversity:
			return true
		case identity.ScopeFaculty:
			if sameID(role.ScopeID, owner.FacultyID) {
				return true
			}
		case identity.ScopeDepartment:
			if sameID(role.ScopeID, owner.DepartmentID) {
				return true
			}
		}
	}
	return false
}

func sameID(a, b *int64) bool {
	return a != nil && b != nil && *a == *b
}
