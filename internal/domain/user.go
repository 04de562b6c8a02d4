package domain

import "time"

// Role grants capabilities beyond the baseline confirmed-user set.
type Role string

const (
	RoleUser          Role = "USER"
	RoleModerator     Role = "MODERATOR"
	RoleAdministrator Role = "ADMINISTRATOR"
)

// User is the persisted account record.
type User struct {
	ID           string
	Name         string
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	Confirmed    bool
	Locked       bool
	Blocked      bool
	FailedLogins int
	Bio          string
	Website      string
	Location     string
	MemberSince  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AccountState is the derived view the permission guard evaluates.
// It is never stored.
type AccountState struct {
	Active    bool
	Confirmed bool
	Locked    bool
}

// State derives the account state. An account counts as locked when an
// administrator locked it or when consecutive failed logins reached the
// lockout threshold.
func (u *User) State(lockoutThreshold int) AccountState {
	if u == nil {
		return AccountState{}
	}
	return AccountState{
		Active:    !u.Blocked,
		Confirmed: u.Confirmed,
		Locked:    u.Locked || u.LockedOut(lockoutThreshold),
	}
}

// LockedOut reports whether failed logins reached the threshold.
// A non-positive threshold disables lockout.
func (u *User) LockedOut(lockoutThreshold int) bool {
	return lockoutThreshold > 0 && u.FailedLogins >= lockoutThreshold
}
