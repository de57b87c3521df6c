package auth

import "github.com/sakif/listings-portal/internal/model"

// Action is something a caller may attempt on an existing listing.
type Action int

const (
	ActionUpdate Action = iota
	ActionSetStatus
	ActionManageImages
	ActionClose
	ActionDelete
)

// CanModify is the one place listing ownership rules live.
//
//	update, status, images, close  → owner or manager
//	delete                         → owner only
func CanModify(id *model.Identity, l *model.Listing, action Action) bool {
	if id == nil || l == nil {
		return false
	}

	owner := l.UserID == id.UserID
	if action == ActionDelete {
		return owner
	}
	return owner || id.Role == model.RoleManager
}
