package rbac

type Role string
type Action string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionPreview Action = "preview"
	ActionWrite   Action = "write"
	ActionPublish Action = "publish"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleEditor:
		return action == ActionRead || action == ActionPreview || action == ActionWrite || action == ActionPublish
	case RoleUser:
		return action == ActionRead
	default:
		return false
	}
}

// CanPreview gates draft content: exactly editor and admin. Anything
// else, including an absent role, sees published content only.
func CanPreview(role Role) bool {
	return role == RoleEditor || role == RoleAdmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleEditor, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
