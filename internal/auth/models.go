package auth

const (
	RoleSuper     = "super"
	RoleModerator = "moderator"
)

// Identity is the resolved session user. The zero value is the anonymous
// visitor.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (i Identity) IsAnonymous() bool { return i.ID == "" }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
