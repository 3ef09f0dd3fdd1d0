// internal/models/user.go
package models

type Role string

const (
	RoleApplicant   Role = "applicant"
	RoleBoardMember Role = "board_member"
	RoleAdmin       Role = "admin"
	RoleSponsor     Role = "sponsor"
)

// User is the directory entry the review core needs for routing notifications
// and snapshotting the board roster.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
	IsActive bool   `json:"isActive"`
	SMSOptIn bool   `json:"smsOptIn"`
}
