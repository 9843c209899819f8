package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Profile is an employee record as seen by the authorization layer.
type Profile struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CompanyID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	UserID       *uuid.UUID `gorm:"type:uuid;index"`
	FirstName    string     `gorm:"type:varchar(100);not null"`
	LastName     string     `gorm:"type:varchar(100)"`
	DisplayName  string     `gorm:"type:varchar(150)"`
	AvatarURL    string     `gorm:"type:text"`
	OrgUnitCode  string     `gorm:"type:varchar(30)"`
	Role         string     `gorm:"type:varchar(20);not null;default:'employee'"`
	DepartmentID *uuid.UUID `gorm:"type:uuid"`
	LocationID   *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Profile) TableName() string {
	return "employees"
}

// LegalName is first and last name joined by a single space.
func (p Profile) LegalName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Name prefers the display name and falls back to the legal name.
func (p Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.LegalName()
}

// DisplayNameExpr is the SQL for Name over the employees table aliased as alias.
func DisplayNameExpr(alias string) string {
	return "COALESCE(NULLIF(" + alias + ".display_name, ''), " + LegalNameExpr(alias) + ")"
}

// LegalNameExpr is the SQL for LegalName over the employees table aliased as alias.
func LegalNameExpr(alias string) string {
	return "TRIM(" + alias + ".first_name || ' ' || COALESCE(" + alias + ".last_name, ''))"
}
