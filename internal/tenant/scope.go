package tenant

import (
	"fmt"

	"gorm.io/gorm"
)

// Scope restricts a query to one company.
func Scope(companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("company_id = ?", companyID)
	}
}

// TableScope is Scope with a qualified column, for queries that join tables
// which all carry company_id.
func TableScope(table, companyID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s.company_id = ?", table), companyID)
	}
}
