package model

import (
	"gorm.io/gorm"
)

// User is the basic entity of the system
type User struct {
	gorm.Model
	Username string  `gorm:"uniqueIndex;type:varchar(32);not null;comment:login name"`
	Email    string  `gorm:"uniqueIndex;type:varchar(128);not null;comment:globally unique email"`
	Password string  `gorm:"type:varchar(128);not null;comment:bcrypt hash"`
	Phone    *string `gorm:"type:varchar(20);comment:phone number for SMS notifications"`

	// CurrentOrganizationID is a weak reference: it is reassigned or
	// cleared when the membership it points at goes away.
	CurrentOrganizationID *uint
	CurrentOrganization   *Organization `gorm:"foreignKey:CurrentOrganizationID"`

	OrgMemberships       []OrgMembership       `gorm:"foreignKey:UserID"`
	WorkspaceMemberships []WorkspaceMembership `gorm:"foreignKey:UserID"`
}
