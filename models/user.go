package models

// UserRole: роль пользователя, приходит в JWT claims.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleOrganizer UserRole = "organizer"
	RolePlayer    UserRole = "player"
)

type User struct {
	ID        int      `json:"id"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Email     string   `json:"email"`
	Phone     *string  `json:"phone,omitempty"`
	Role      UserRole `json:"role"`
}

// DisplayName returns "First Last" or the email when no name is stored.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// Actor is the already-authenticated caller of a privileged operation,
// together with the origin metadata recorded in audit entries.
type Actor struct {
	UserID    int
	Role      UserRole
	IPAddress string
	UserAgent string
}

func (a Actor) IsAdmin() bool     { return a.Role == RoleAdmin }
func (a Actor) IsOrganizer() bool { return a.Role == RoleOrganizer }
