package model

import (
	"crypto/rand"
	"strings"
	"time"

	"gorm.io/gorm"
)

type Organization struct {
	gorm.Model
	Name string `gorm:"type:varchar(200);not null"`
	// Code is generated once at creation and never changes. Members
	// join by typing it, so it is short and case-normalized.
	Code        string `gorm:"uniqueIndex;type:varchar(16);not null"`
	CreatedByID uint
	CreatedBy   User `gorm:"foreignKey:CreatedByID"`

	Memberships []OrgMembership `gorm:"foreignKey:OrganizationID"`
}

// OrgMembership links a user to an organization with a role. No soft
// delete: leaving and re-joining must not trip the unique index.
type OrgMembership struct {
	ID             uint      `gorm:"primarykey"`
	OrganizationID uint      `gorm:"uniqueIndex:idx_org_membership;not null"`
	UserID         uint      `gorm:"uniqueIndex:idx_org_membership;not null"`
	Role           OrgRole   `gorm:"type:varchar(20);not null;default:member"`
	JoinedAt       time.Time `gorm:"autoCreateTime"`

	Organization Organization `gorm:"foreignKey:OrganizationID"`
	User         User         `gorm:"foreignKey:UserID"`
}

const orgCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrganizationCode returns a human-typable code like "ORG-AB12C3".
func NewOrganizationCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	for i, b := range buf {
		buf[i] = orgCodeAlphabet[int(b)%len(orgCodeAlphabet)]
	}
	return "ORG-" + string(buf)
}

// NormalizeOrganizationCode maps human input onto the stored form.
func NormalizeOrganizationCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
