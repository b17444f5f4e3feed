package auth_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/auth"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
)

var _ = Describe("Resolver", func() {
	var (
		mockRepo  *mockAuthRepository
		publisher *mockPublisher
		resolver  *auth.Resolver
		ctx       context.Context
	)

	BeforeEach(func() {
		mockRepo = newMockAuthRepository()
		publisher = &mockPublisher{}
		ctx = context.Background()

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		resolver = auth.NewResolver(mockRepo, publisher, logger)
	})

	Describe("HasPermission", func() {
		It("rejects an empty caller id", func() {
			err := resolver.HasPermission(ctx, "", "manage_users")

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(401))
		})

		It("rejects an unknown caller", func() {
			err := resolver.HasPermission(ctx, "ghost", "manage_users")

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(401))
		})

		It("grants everything to a flagged super admin", func() {
			mockRepo.accounts["root"] = &account.Account{ID: "root", IsSuperAdmin: true}

			Expect(resolver.HasPermission(ctx, "root", "anything.at.all")).To(Succeed())
		})

		It("grants everything to the root legacy roles", func() {
			mockRepo.accounts["r1"] = &account.Account{ID: "r1", LegacyRole: auth.RoleRootSuper}
			mockRepo.accounts["r2"] = &account.Account{ID: "r2", LegacyRole: auth.RoleSuperAdmin}

			Expect(resolver.HasPermission(ctx, "r1", "compliance.manage")).To(Succeed())
			Expect(resolver.HasPermission(ctx, "r2", "compliance.manage")).To(Succeed())
		})

		It("grants through a database role binding", func() {
			mockRepo.accounts["T001"] = &account.Account{ID: "T001", LegacyRole: "Clerk"}
			mockRepo.permissions["T001"] = []string{"view_all_grades"}

			Expect(resolver.HasPermission(ctx, "T001", "view_all_grades")).To(Succeed())
		})

		It("honours the wildcard grant", func() {
			mockRepo.accounts["T001"] = &account.Account{ID: "T001", LegacyRole: "Clerk"}
			mockRepo.permissions["T001"] = []string{"*"}

			Expect(resolver.HasPermission(ctx, "T001", "finance.payroll")).To(Succeed())
		})

		It("falls back to the legacy role table", func() {
			mockRepo.accounts["T001"] = &account.Account{ID: "T001", LegacyRole: auth.RoleTeacher}

			Expect(resolver.HasPermission(ctx, "T001", "view_all_grades")).To(Succeed())
		})

		It("denies and audits when no provider grants", func() {
			mockRepo.accounts["S001"] = &account.Account{ID: "S001", LegacyRole: auth.RoleStudent}

			err := resolver.HasPermission(ctx, "S001", "manage_users")

			var appErr *internal.AppError
			Expect(errors.As(err, &appErr)).To(BeTrue())
			Expect(appErr.Code).To(Equal(internal.ErrCodePermissionDenied))
			Expect(appErr.StatusCode).To(Equal(403))

			Expect(publisher.events).To(HaveLen(1))
			Expect(publisher.events[0].EventName).To(Equal("Unauthorized Access"))
			Expect(publisher.events[0].Details).To(Equal("Missing permission: manage_users"))
		})

		It("does not let a student use the legacy teacher grants", func() {
			mockRepo.accounts["S001"] = &account.Account{ID: "S001", LegacyRole: auth.RoleStudent}

			Expect(resolver.HasPermission(ctx, "S001", "edit_all_grades")).NotTo(Succeed())
			Expect(resolver.HasPermission(ctx, "S001", "view_own_grades")).To(Succeed())
		})
	})

	Describe("EffectivePermissions", func() {
		It("returns bound roles with their union of permissions", func() {
			mockRepo.accounts["T001"] = &account.Account{ID: "T001", LegacyRole: auth.RoleTeacher}
			mockRepo.roleBindings["T001"] = []string{"Teacher", "HR_Admin"}
			mockRepo.permissions["T001"] = []string{"view_all_grades", "staff.manage"}

			roles, perms, err := resolver.EffectivePermissions(ctx, "T001")

			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(ConsistOf("Teacher", "HR_Admin"))
			Expect(perms).To(ConsistOf("view_all_grades", "staff.manage"))
		})

		It("stands in the legacy role when no bindings exist", func() {
			mockRepo.accounts["S001"] = &account.Account{ID: "S001", LegacyRole: auth.RoleStudent}

			roles, perms, err := resolver.EffectivePermissions(ctx, "S001")

			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(Equal([]string{auth.RoleStudent}))
			Expect(perms).To(BeEmpty())
		})
	})
})

var _ = Describe("LegacyRolePermissions", func() {
	It("returns a defensive copy", func() {
		table := auth.LegacyRolePermissions()
		table["Teacher"][0] = "tampered"

		fresh := auth.LegacyRolePermissions()
		Expect(fresh["Teacher"][0]).NotTo(Equal("tampered"))
	})

	It("keeps audit log access away from teachers", func() {
		table := auth.LegacyRolePermissions()
		Expect(table["Admin"]).To(ContainElement("view_audit_logs"))
		Expect(table["Teacher"]).NotTo(ContainElement("view_audit_logs"))
	})
})
