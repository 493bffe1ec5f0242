package model

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/contentforge/forge/constraint"
	"github.com/contentforge/forge/pkg/apierror"
)

// Role is a user's access level.
type Role string

const (
	RoleRoot   Role = "ROOT"
	RoleAdmin  Role = "ADMIN"
	RoleAuthor Role = "AUTHOR"
)

// ParseRole maps a role text to a Role; unknown texts become AUTHOR.
func ParseRole(s string) Role {
	switch strings.ToUpper(s) {
	case string(RoleRoot):
		return RoleRoot
	case string(RoleAdmin):
		return RoleAdmin
	default:
		return RoleAuthor
	}
}

// User is an operator account. Only the bcrypt hash of the password is
// ever stored.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
}

// CreateUser builds a user through validated setters and appends it to
// the live list only when every setter succeeded.
func CreateUser(list *[]User, id, firstName, lastName, username, email, password string, role Role) error {
	if UserExists(*list, id) {
		return apierror.Conflictf("Error: user with id %s already exists", id)
	}
	for i := range *list {
		if strings.EqualFold((*list)[i].Username, username) {
			return apierror.Conflictf("Error: username %s is taken", username)
		}
	}

	var u User
	if err := u.setID(id); err != nil {
		return err
	}
	if err := u.SetFirstName(firstName); err != nil {
		return err
	}
	if err := u.SetLastName(lastName); err != nil {
		return err
	}
	if err := u.SetUsername(username); err != nil {
		return err
	}
	if err := u.SetEmail(email); err != nil {
		return err
	}
	if err := u.SetPassword(password); err != nil {
		return err
	}
	u.Role = role
	*list = append(*list, u)
	return nil
}

// UserExists reports whether a user id is taken.
func UserExists(list []User, id string) bool {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return true
		}
	}
	return false
}

// GetUser finds a user by id, case-insensitively.
func GetUser(list []User, id string) (*User, error) {
	for i := range list {
		if strings.EqualFold(list[i].ID, id) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: user %s not found", id)
}

// GetUserByUsername finds a user by username.
func GetUserByUsername(list []User, username string) (*User, error) {
	for i := range list {
		if strings.EqualFold(list[i].Username, username) {
			return &list[i], nil
		}
	}
	return nil, apierror.NotFoundf("Error: user %s not found", username)
}

func (u *User) setID(id string) error {
	v, err := constraint.Validate("user", "id", id)
	if err != nil {
		return err
	}
	u.ID = v
	return nil
}

// SetFirstName validates and sets the first name.
func (u *User) SetFirstName(name string) error {
	v, err := constraint.Validate("user", "first_name", name)
	if err != nil {
		return err
	}
	u.FirstName = v
	return nil
}

// SetLastName validates and sets the last name.
func (u *User) SetLastName(name string) error {
	v, err := constraint.Validate("user", "last_name", name)
	if err != nil {
		return err
	}
	u.LastName = v
	return nil
}

// SetUsername validates and sets the username.
func (u *User) SetUsername(username string) error {
	v, err := constraint.Validate("user", "username", username)
	if err != nil {
		return err
	}
	u.Username = v
	return nil
}

// SetEmail validates and sets the email address.
func (u *User) SetEmail(email string) error {
	v, err := constraint.Validate("user", "email", email)
	if err != nil {
		return err
	}
	u.Email = v
	return nil
}

// SetPassword validates the plaintext and stores its bcrypt hash.
func (u *User) SetPassword(password string) error {
	if _, err := constraint.Validate("user", "password", password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apierror.Internalf("user: hash password: %v", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// VerifyPassword checks a plaintext against the stored hash.
func (u *User) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// DeleteUser removes a user from the list.
func DeleteUser(list *[]User, id string) error {
	for i := range *list {
		if strings.EqualFold((*list)[i].ID, id) {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return nil
		}
	}
	return apierror.NotFoundf("Error: user %s not found", id)
}

// String serialises the user line:
// id;first_name;last_name;username;email;password_hash;role
func (u User) String() string {
	return strings.Join([]string{
		u.ID, u.FirstName, u.LastName, u.Username, u.Email, u.PasswordHash, string(u.Role),
	}, ";")
}

// ParseUser parses a user line.
func ParseUser(line string) (User, error) {
	fields := strings.Split(line, ";")
	if len(fields) != 7 {
		return User{}, apierror.Internalf("user: malformed line %q", line)
	}
	return User{
		ID:           fields[0],
		FirstName:    fields[1],
		LastName:     fields[2],
		Username:     fields[3],
		Email:        fields[4],
		PasswordHash: fields[5],
		Role:         ParseRole(fields[6]),
	}, nil
}

// UsersToText serialises a user list, one per line.
func UsersToText(list []User) string {
	lines := make([]string, 0, len(list))
	for _, u := range list {
		lines = append(lines, u.String())
	}
	return strings.Join(lines, "\n")
}

// ParseUsers parses a users file.
func ParseUsers(text string) ([]User, error) {
	var out []User
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		u, err := ParseUser(line)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}
