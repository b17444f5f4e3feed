package tenant_test

import (
	"context"

	"github.com/jmoiron/sqlx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/tenant"
)

var _ = Describe("ScopeGuard", func() {
	var (
		db     *gorm.DB
		sqlxDB *sqlx.DB
		guard  *tenant.ScopeGuard
		ctx    context.Context
	)

	createAccount := func(id string, schoolID int64, grade int, isSuper bool) {
		acc := &account.Account{
			ID:           id,
			Name:         id,
			PasswordHash: "x",
			LegacyRole:   "Teacher",
			Grade:        grade,
			SchoolID:     schoolID,
			IsSuperAdmin: isSuper,
		}
		Expect(db.Create(acc).Error).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)

		Expect(db.AutoMigrate(&account.Account{})).To(Succeed())

		sqlxDB = sqlx.NewDb(sqlDB, "sqlite3")
		guard = tenant.NewScopeGuard(sqlxDB)

		createAccount("teacher9", 1, 9, false)
		createAccount("head", 1, 0, false)
		createAccount("superadmin", 2, 0, true)
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("ResolveScope", func() {
		It("pins an ordinary caller to their own school even when another is requested", func() {
			scope, err := guard.ResolveScope(ctx, "teacher9", 2)

			Expect(err).NotTo(HaveOccurred())
			Expect(scope.SchoolID).To(Equal(int64(1)))
			Expect(scope.Grade).To(Equal(9))
			Expect(scope.IsSuperAdmin).To(BeFalse())
		})

		It("keeps an ordinary caller on their own school when nothing is requested", func() {
			scope, err := guard.ResolveScope(ctx, "head", 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(scope.SchoolID).To(Equal(int64(1)))
			Expect(scope.Grade).To(BeZero())
		})

		It("honors a super admin's requested school", func() {
			scope, err := guard.ResolveScope(ctx, "superadmin", 3)

			Expect(err).NotTo(HaveOccurred())
			Expect(scope.SchoolID).To(Equal(int64(3)))
			Expect(scope.IsSuperAdmin).To(BeTrue())
		})

		It("keeps a super admin on their own school without an override", func() {
			scope, err := guard.ResolveScope(ctx, "superadmin", 0)

			Expect(err).NotTo(HaveOccurred())
			Expect(scope.SchoolID).To(Equal(int64(2)))
		})

		It("defaults an unknown caller to the default tenant with no elevation", func() {
			scope, err := guard.ResolveScope(ctx, "nobody", 2)

			Expect(err).NotTo(HaveOccurred())
			Expect(scope.SchoolID).To(Equal(tenant.DefaultSchoolID))
			Expect(scope.IsSuperAdmin).To(BeFalse())
		})
	})

	Describe("IsSuperAdmin", func() {
		It("reports the flag for a known caller", func() {
			isSuper, err := guard.IsSuperAdmin(ctx, "superadmin")
			Expect(err).NotTo(HaveOccurred())
			Expect(isSuper).To(BeTrue())

			isSuper, err = guard.IsSuperAdmin(ctx, "teacher9")
			Expect(err).NotTo(HaveOccurred())
			Expect(isSuper).To(BeFalse())
		})

		It("treats an unknown caller as not super admin", func() {
			isSuper, err := guard.IsSuperAdmin(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(isSuper).To(BeFalse())
		})
	})
})
