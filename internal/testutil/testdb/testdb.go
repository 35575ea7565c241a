// Package testdb opens migrated in-memory databases for use case and handler tests.
package testdb

import (
	"testing"

	"yield-agreement-backend/internal/adapter/repository/mysql"
	"yield-agreement-backend/internal/domain/agreement"
	"yield-agreement-backend/internal/domain/compliance"
	"yield-agreement-backend/internal/domain/funds"
	"yield-agreement-backend/internal/domain/share"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a sqlite :memory: database with the full schema and a unit of
// work over it with the KYC registry enabled. A single connection keeps every
// statement on the same database.
func Open(t testing.TB) (*gorm.DB, *mysql.GormUoW) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db, mysql.NewGormUoW(db, mysql.WithKYCRegistry())
}

// Agreement inserts a as-is and returns its id.
func Agreement(t testing.TB, db *gorm.DB, a *agreement.YieldAgreement) uint64 {
	t.Helper()
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("create agreement: %v", err)
	}
	return a.ID
}

// Shares sets holder balances for an agreement.
func Shares(t testing.TB, db *gorm.DB, agreementID uint64, balances map[string]uint64) {
	t.Helper()
	for holder, amount := range balances {
		if err := db.Create(&share.Balance{AgreementID: agreementID, Holder: holder, Amount: amount}).Error; err != nil {
			t.Fatalf("create share balance: %v", err)
		}
	}
}

// Compliant whitelists addresses in the KYC table.
func Compliant(t testing.TB, db *gorm.DB, addresses ...string) {
	t.Helper()
	for _, addr := range addresses {
		if err := db.Save(&compliance.Record{Address: addr, Whitelisted: true}).Error; err != nil {
			t.Fatalf("whitelist %s: %v", addr, err)
		}
	}
}

// Blacklisted marks addresses as whitelisted but blacklisted.
func Blacklisted(t testing.TB, db *gorm.DB, addresses ...string) {
	t.Helper()
	for _, addr := range addresses {
		if err := db.Save(&compliance.Record{Address: addr, Whitelisted: true, Blacklisted: true}).Error; err != nil {
			t.Fatalf("blacklist %s: %v", addr, err)
		}
	}
}

// Freeze makes account reject incoming transfers.
func Freeze(t testing.TB, db *gorm.DB, account string) {
	t.Helper()
	if err := db.Save(&funds.Account{Account: account, Frozen: true}).Error; err != nil {
		t.Fatalf("freeze %s: %v", account, err)
	}
}

// Unfreeze lets account receive transfers again.
func Unfreeze(t testing.TB, db *gorm.DB, account string) {
	t.Helper()
	if err := db.Model(&funds.Account{}).Where("account = ?", account).Update("frozen", false).Error; err != nil {
		t.Fatalf("unfreeze %s: %v", account, err)
	}
}

// FundBalance reads an account balance, 0 when missing.
func FundBalance(t testing.TB, db *gorm.DB, account string) uint64 {
	t.Helper()
	var acc funds.Account
	err := db.Where("account = ?", account).Limit(1).Find(&acc).Error
	if err != nil {
		t.Fatalf("read %s: %v", account, err)
	}
	return acc.Balance
}

// Reload reads the agreement row back.
func Reload(t testing.TB, db *gorm.DB, id uint64) *agreement.YieldAgreement {
	t.Helper()
	var a agreement.YieldAgreement
	if err := db.First(&a, id).Error; err != nil {
		t.Fatalf("reload agreement %d: %v", id, err)
	}
	return &a
}
