package backend

// Session identifies the signed-in user for backend calls. It is passed
// explicitly to every call; the client never looks a token up on its own.
type Session struct {
	Token string `json:"-"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

const (
	RolePatient    = "patient"
	RoleDoctor     = "doctor"
	RolePharmacist = "pharmacist"
	RoleAdmin      = "admin"
)

// Authenticated reports whether the session carries a bearer token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// HasRole reports whether the session role is one of roles.
func (s Session) HasRole(roles ...string) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}
