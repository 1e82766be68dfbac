package membership

import (
	"context"
	"errors"
	"strings"
)

// GlobalRole is the platform-wide role of an authenticated user.
type GlobalRole string

const (
	GlobalBorrower GlobalRole = "borrower"
	GlobalLender   GlobalRole = "lender"
	GlobalAdmin    GlobalRole = "admin"
)

func ParseGlobalRole(s string) (GlobalRole, error) {
	switch r := GlobalRole(strings.ToLower(strings.TrimSpace(s))); r {
	case GlobalBorrower, GlobalLender, GlobalAdmin:
		return r, nil
	case "":
		return GlobalBorrower, nil
	}
	return "", errors.New("unknown role " + s)
}

// Role is a user's role inside one community.
type Role string

const (
	RoleNone      Role = "none"
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

func (r Role) IsMember() bool { return r == RoleMember || r == RoleModerator || r == RoleAdmin }

func (r Role) CanModerate() bool { return r == RoleModerator || r == RoleAdmin }

// Actor is the authenticated caller of an engine operation.
type Actor struct {
	ID   string
	Role GlobalRole
}

func (a Actor) IsAdmin() bool { return a.Role == GlobalAdmin }

// Authorizer answers community role lookups. Implementations must return
// RoleNone, not an error, for users outside the community.
type Authorizer interface {
	RoleOf(ctx context.Context, communityID, userID string) (Role, error)
}

// Member is a row of the community membership table owned by the community service.
type Member struct {
	ID          uint64 `gorm:"primaryKey;column:id"`
	CommunityID string `gorm:"column:community_id;size:32;uniqueIndex:ux_members_community_user"`
	UserID      string `gorm:"column:user_id;size:32;uniqueIndex:ux_members_community_user"`
	Role        Role   `gorm:"column:role;size:16"`
}

func (Member) TableName() string { return "community_members" }
