package model

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"gorm.io/gorm"
)

type Workspace struct {
	gorm.Model
	Name        string `gorm:"type:varchar(200);not null"`
	Description string `gorm:"type:text"`
	CreatedByID uint
	CreatedBy   User `gorm:"foreignKey:CreatedByID"`

	Members     []WorkspaceMembership `gorm:"foreignKey:WorkspaceID"`
	Invitations []WorkspaceInvitation `gorm:"foreignKey:WorkspaceID"`
}

// WorkspaceMembership links a user to a workspace with a role.
// Invariant enforced at mutation time: every workspace keeps at least
// one admin. No soft delete, see OrgMembership.
type WorkspaceMembership struct {
	ID          uint          `gorm:"primarykey"`
	WorkspaceID uint          `gorm:"uniqueIndex:idx_workspace_membership;not null"`
	UserID      uint          `gorm:"uniqueIndex:idx_workspace_membership;not null"`
	Role        WorkspaceRole `gorm:"type:varchar(20);not null;default:member"`
	JoinedAt    time.Time     `gorm:"autoCreateTime"`

	Workspace Workspace `gorm:"foreignKey:WorkspaceID"`
	User      User      `gorm:"foreignKey:UserID"`
}

// InvitationTTL is how long a fresh invitation stays redeemable.
const InvitationTTL = 7 * 24 * time.Hour

// WorkspaceInvitation is a single-use, time-limited token inviting an
// email address into a workspace. The role is snapshotted at creation;
// later role edits in the workspace do not affect pending invitations.
// Revoking deletes the row, so a revoked token reads as not found.
type WorkspaceInvitation struct {
	ID             uint          `gorm:"primarykey"`
	WorkspaceID    uint          `gorm:"index;not null"`
	RecipientName  string        `gorm:"type:varchar(200);default:Guest"`
	Email          string        `gorm:"type:varchar(128);not null"`
	RecipientPhone string        `gorm:"type:varchar(20)"`
	Role           WorkspaceRole `gorm:"type:varchar(20);not null;default:member"`
	Token          string        `gorm:"uniqueIndex;type:varchar(64);not null"`
	CreatedByID    uint
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"not null"`
	Used           bool      `gorm:"not null;default:false"`
	UsedByID       *uint
	UsedAt         *time.Time

	Workspace Workspace `gorm:"foreignKey:WorkspaceID"`
	CreatedBy User      `gorm:"foreignKey:CreatedByID"`
	UsedBy    *User     `gorm:"foreignKey:UsedByID"`
}

// IsValid is the pure redeemability check: not used and not expired.
// Expiry is exclusive: a token expiring exactly now is no longer valid.
func (inv *WorkspaceInvitation) IsValid(now time.Time) bool {
	return !inv.Used && now.Before(inv.ExpiresAt)
}

// NewInvitationToken returns an unguessable fixed-length token
// (32 random bytes, URL-safe base64, 43 characters).
func NewInvitationToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// WorkspaceFile is an uploaded file or an external link shared in a
// workspace. Uploads are stored under a generated object name so that
// user-supplied names never touch the filesystem.
type WorkspaceFile struct {
	gorm.Model
	WorkspaceID  uint     `gorm:"index;not null"`
	Name         string   `gorm:"type:varchar(200);not null"`
	Kind         FileKind `gorm:"type:varchar(10);not null"`
	ObjectName   string   `gorm:"type:varchar(64);comment:stored object name for uploads"`
	URL          string   `gorm:"type:varchar(500);comment:target for links"`
	Size         int64
	UploadedByID uint

	Workspace  Workspace `gorm:"foreignKey:WorkspaceID"`
	UploadedBy User      `gorm:"foreignKey:UploadedByID"`
}
