package postgres

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/frahmantamala/school-management/internal/auth"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/rbac"
	"github.com/frahmantamala/school-management/internal/tenant"
)

func TestAuthRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AuthRepository Suite")
}

type SQLiteGuardian struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	ParentEmail string `gorm:"column:parent_email"`
	StudentID   string `gorm:"column:student_id"`
}

func (SQLiteGuardian) TableName() string {
	return "guardians"
}

var _ = Describe("AuthRepository", func() {
	var (
		db   *gorm.DB
		repo auth.RepositoryAPI
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&account.Account{}, &account.BackupCode{}, &account.Invitation{},
			&account.PasswordReset{}, &account.UserRole{},
			&rbac.Role{}, &rbac.Permission{}, &rbac.RolePermission{},
			&tenant.School{}, &SQLiteGuardian{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = NewAuthRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	createAccount := func(id string) *account.Account {
		acc := &account.Account{
			ID:           id,
			Name:         "Test User",
			PasswordHash: "hash",
			LegacyRole:   "Student",
			SchoolID:     1,
		}
		Expect(db.Create(acc).Error).To(Succeed())
		return acc
	}

	Describe("account lookup", func() {
		It("finds an account by id", func() {
			createAccount("S001")

			acc, err := repo.GetAccount(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.Name).To(Equal("Test User"))
		})

		It("reports a missing account", func() {
			_, err := repo.GetAccount(ctx, "ghost")
			Expect(err).To(MatchError(gorm.ErrRecordNotFound))
		})
	})

	Describe("lockout state", func() {
		It("increments the failure counter atomically", func() {
			createAccount("S001")

			attempts, err := repo.IncrementFailedAttempts(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(attempts).To(Equal(1))

			attempts, err = repo.IncrementFailedAttempts(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(attempts).To(Equal(2))
		})

		It("locks and clears an account", func() {
			createAccount("S001")
			until := time.Now().Add(15 * time.Minute)

			Expect(repo.LockAccount(ctx, "S001", until)).To(Succeed())
			acc, err := repo.GetAccount(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.LockedUntil).NotTo(BeNil())

			Expect(repo.ClearLockout(ctx, "S001")).To(Succeed())
			acc, err = repo.GetAccount(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.LockedUntil).To(BeNil())
			Expect(acc.FailedLoginAttempts).To(Equal(0))
		})

		It("clears lockout state when the password changes", func() {
			createAccount("S001")
			_, err := repo.IncrementFailedAttempts(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.LockAccount(ctx, "S001", time.Now().Add(time.Hour))).To(Succeed())

			Expect(repo.UpdatePassword(ctx, "S001", "newhash")).To(Succeed())

			acc, err := repo.GetAccount(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(acc.PasswordHash).To(Equal("newhash"))
			Expect(acc.FailedLoginAttempts).To(Equal(0))
			Expect(acc.LockedUntil).To(BeNil())
		})
	})

	Describe("backup codes", func() {
		BeforeEach(func() {
			createAccount("S001")
		})

		It("consumes a code exactly once", func() {
			Expect(repo.ReplaceBackupCodes(ctx, "S001", []string{"123456"})).To(Succeed())

			ok, err := repo.ConsumeBackupCode(ctx, "S001", "123456")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = repo.ConsumeBackupCode(ctx, "S001", "123456")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("rejects a code belonging to another user", func() {
			createAccount("S002")
			Expect(repo.ReplaceBackupCodes(ctx, "S001", []string{"123456"})).To(Succeed())

			ok, err := repo.ConsumeBackupCode(ctx, "S002", "123456")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("replaces the whole set", func() {
			Expect(repo.ReplaceBackupCodes(ctx, "S001", []string{"111111", "222222"})).To(Succeed())
			Expect(repo.ReplaceBackupCodes(ctx, "S001", []string{"333333"})).To(Succeed())

			codes, err := repo.ListBackupCodes(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(codes).To(Equal([]string{"333333"}))
		})

		It("reports enrollment", func() {
			enrolled, err := repo.HasBackupCodes(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(enrolled).To(BeFalse())

			Expect(repo.ReplaceBackupCodes(ctx, "S001", []string{"123456"})).To(Succeed())

			enrolled, err = repo.HasBackupCodes(ctx, "S001")
			Expect(err).NotTo(HaveOccurred())
			Expect(enrolled).To(BeTrue())
		})
	})

	Describe("role bindings", func() {
		var teacherRole rbac.Role

		BeforeEach(func() {
			createAccount("T001")

			teacherRole = rbac.Role{Name: "Teacher", Status: "Active", IsSystem: true}
			Expect(db.Create(&teacherRole).Error).To(Succeed())

			perms := []rbac.Permission{
				{Code: "class.view", GroupName: "Academics"},
				{Code: "class.edit", GroupName: "Academics"},
			}
			for i := range perms {
				Expect(db.Create(&perms[i]).Error).To(Succeed())
				Expect(db.Create(&rbac.RolePermission{RoleID: teacherRole.ID, PermissionID: perms[i].ID}).Error).To(Succeed())
			}
		})

		It("binds a role by name and stays idempotent", func() {
			Expect(repo.BindRoleByName(ctx, "T001", "Teacher")).To(Succeed())
			Expect(repo.BindRoleByName(ctx, "T001", "Teacher")).To(Succeed())

			names, err := repo.RoleNamesForUser(ctx, "T001")
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"Teacher"}))
		})

		It("reports a missing role name", func() {
			err := repo.BindRoleByName(ctx, "T001", "Nonexistent")
			Expect(err).To(MatchError(auth.ErrRoleMissing))
		})

		It("resolves permission codes through the chain", func() {
			Expect(repo.BindRoleByName(ctx, "T001", "Teacher")).To(Succeed())

			codes, err := repo.PermissionCodesForUser(ctx, "T001")
			Expect(err).NotTo(HaveOccurred())
			Expect(codes).To(Equal([]string{"class.edit", "class.view"}))
		})

		It("answers single grants including the wildcard", func() {
			Expect(repo.BindRoleByName(ctx, "T001", "Teacher")).To(Succeed())

			ok, err := repo.HasGrant(ctx, "T001", "class.view")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = repo.HasGrant(ctx, "T001", "finance.payroll")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			wildcard := rbac.Permission{Code: "*", GroupName: "System"}
			Expect(db.Create(&wildcard).Error).To(Succeed())
			Expect(db.Create(&rbac.RolePermission{RoleID: teacherRole.ID, PermissionID: wildcard.ID}).Error).To(Succeed())

			ok, err = repo.HasGrant(ctx, "T001", "finance.payroll")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})
	})

	Describe("registration", func() {
		It("creates the account with its initial backup code", func() {
			acc := &account.Account{ID: "S010", Name: "New", PasswordHash: "hash", LegacyRole: "Student", SchoolID: 1}

			Expect(repo.CreateAccount(ctx, acc, "", "654321")).To(Succeed())

			codes, err := repo.ListBackupCodes(ctx, "S010")
			Expect(err).NotTo(HaveOccurred())
			Expect(codes).To(Equal([]string{"654321"}))
		})

		It("consumes the invitation in the same transaction", func() {
			inv := &account.Invitation{Token: "abc12345", Role: "Teacher", SchoolID: 1, ExpiresAt: time.Now().Add(time.Hour)}
			Expect(repo.CreateInvitation(ctx, inv)).To(Succeed())

			acc := &account.Account{ID: "T010", Name: "New", PasswordHash: "hash", LegacyRole: "Teacher", SchoolID: 1}
			Expect(repo.CreateAccount(ctx, acc, "abc12345", "654321")).To(Succeed())

			stored, err := repo.GetInvitation(ctx, "abc12345")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.IsUsed).To(BeTrue())
		})

		It("rolls the account back when the invitation is spent", func() {
			inv := &account.Invitation{Token: "spent123", Role: "Teacher", SchoolID: 1, ExpiresAt: time.Now().Add(time.Hour), IsUsed: true}
			Expect(db.Create(inv).Error).To(Succeed())

			acc := &account.Account{ID: "T010", Name: "New", PasswordHash: "hash", LegacyRole: "Teacher", SchoolID: 1}
			err := repo.CreateAccount(ctx, acc, "spent123", "654321")
			Expect(err).To(MatchError(auth.ErrInvitationSpent))

			_, err = repo.GetAccount(ctx, "T010")
			Expect(err).To(MatchError(gorm.ErrRecordNotFound))
		})
	})

	Describe("tenant and guardian lookups", func() {
		It("checks and names schools", func() {
			school := tenant.School{Name: "Noble Nexus Academy", CreatedAt: time.Now()}
			Expect(db.Create(&school).Error).To(Succeed())

			exists, err := repo.TenantExists(ctx, school.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			name, err := repo.TenantName(ctx, school.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("Noble Nexus Academy"))

			exists, err = repo.TenantExists(ctx, 99)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("resolves a guardian's linked student", func() {
			Expect(db.Create(&SQLiteGuardian{ParentEmail: "parent@example.com", StudentID: "S001"}).Error).To(Succeed())

			studentID, err := repo.GuardianStudentID(ctx, "parent@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(studentID).To(Equal("S001"))
		})
	})

	Describe("password resets", func() {
		It("round-trips and deletes a token", func() {
			createAccount("S001")
			reset := &account.PasswordReset{Token: "tok-1", UserID: "S001", ExpiresAt: time.Now().Add(15 * time.Minute)}

			Expect(repo.CreatePasswordReset(ctx, reset)).To(Succeed())

			stored, err := repo.GetPasswordReset(ctx, "tok-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.UserID).To(Equal("S001"))

			Expect(repo.DeletePasswordReset(ctx, "tok-1")).To(Succeed())
			_, err = repo.GetPasswordReset(ctx, "tok-1")
			Expect(err).To(MatchError(gorm.ErrRecordNotFound))
		})
	})
})
