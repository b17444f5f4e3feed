package rbac_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	internal "github.com/frahmantamala/school-management/internal"
	"github.com/frahmantamala/school-management/internal/core/datamodel/account"
	"github.com/frahmantamala/school-management/internal/rbac"
	rbacPostgres "github.com/frahmantamala/school-management/internal/rbac/postgres"
)

var _ = Describe("RBAC Handler Integration", func() {
	var (
		db      *gorm.DB
		repo    rbac.RepositoryAPI
		service *rbac.Service
		handler *rbac.Handler
		router  *chi.Mux

		rootRoleID    int64
		teacherRoleID int64
		permViewID    int64
	)

	serve := func(method, target, callerRole string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		if callerRole != "" {
			req = req.WithContext(internal.ContextWithRole(req.Context(), callerRole))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormLogger.Default.LogMode(gormLogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&rbac.Role{}, &rbac.Permission{}, &rbac.RolePermission{}, &account.UserRole{})
		Expect(err).NotTo(HaveOccurred())

		perms := []rbac.Permission{
			{Code: "class.view", Description: "View classes", GroupName: "Academics"},
			{Code: "class.edit", Description: "Edit classes", GroupName: "Academics"},
			{Code: "manage_users", Description: "Manage users", GroupName: "Administration"},
		}
		for i := range perms {
			Expect(db.Create(&perms[i]).Error).NotTo(HaveOccurred())
		}
		permViewID = perms[0].ID

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		repo = rbacPostgres.NewRBACRepository(db)
		service = rbac.NewService(repo, logger)
		handler = rbac.NewHandler(service)

		rootRole := rbac.Role{Name: "Root_Super_Admin", Status: "Active", IsSystem: true}
		Expect(db.Create(&rootRole).Error).NotTo(HaveOccurred())
		rootRoleID = rootRole.ID

		teacherRole := rbac.Role{Name: "Teacher", Description: "Teaching staff", Status: "Active", IsSystem: true}
		Expect(repo.CreateRole(context.Background(), &teacherRole, []string{"class.view", "class.edit"})).To(Succeed())
		teacherRoleID = teacherRole.ID

		router = chi.NewRouter()
		router.Route("/admin", func(r chi.Router) {
			r.Get("/roles", handler.ListRoles)
			r.Get("/roles/{roleID}", handler.GetRole)
			r.Post("/roles", handler.CreateRole)
			r.Put("/roles/{roleID}", handler.UpdateRole)
			r.Delete("/roles/{roleID}", handler.DeleteRole)
			r.Post("/roles/assign", handler.AssignRole)
			r.Put("/permissions/{permID}", handler.UpdatePermission)
		})
	})

	It("hides the root role from an ordinary caller on GET /admin/roles", func() {
		w := serve(http.MethodGet, "/admin/roles", "Teacher", nil)

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))

		var summaries []rbac.RoleSummary
		Expect(json.NewDecoder(w.Body).Decode(&summaries)).To(Succeed())
		Expect(summaries).To(HaveLen(1))
		Expect(summaries[0].Name).To(Equal("Teacher"))
		Expect(summaries[0].PermissionCount).To(Equal(2))
	})

	It("shows the root role to a root caller", func() {
		w := serve(http.MethodGet, "/admin/roles", "Root_Super_Admin", nil)

		var summaries []rbac.RoleSummary
		Expect(json.NewDecoder(w.Body).Decode(&summaries)).To(Succeed())

		names := make([]string, len(summaries))
		for i, s := range summaries {
			names[i] = s.Name
		}
		Expect(names).To(ConsistOf("Root_Super_Admin", "Teacher"))
	})

	It("returns role detail with its permissions", func() {
		w := serve(http.MethodGet, "/admin/roles/"+itoa(teacherRoleID), "Teacher", nil)

		Expect(w.Code).To(Equal(http.StatusOK))

		var detail rbac.RoleDetail
		Expect(json.NewDecoder(w.Body).Decode(&detail)).To(Succeed())
		Expect(detail.Name).To(Equal("Teacher"))
		Expect(detail.Permissions).To(HaveLen(2))
	})

	It("returns 404 for an unknown role", func() {
		w := serve(http.MethodGet, "/admin/roles/9999", "Teacher", nil)
		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("returns 400 for a non-numeric role id", func() {
		w := serve(http.MethodGet, "/admin/roles/not-a-number", "Teacher", nil)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("creates a custom role over POST /admin/roles", func() {
		w := serve(http.MethodPost, "/admin/roles", "Teacher", rbac.RoleMutationDTO{
			Name:        "Librarian",
			Description: "Library staff",
			Permissions: []string{"class.view"},
		})

		Expect(w.Code).To(Equal(http.StatusCreated))

		var resp struct {
			Success bool  `json:"success"`
			RoleID  int64 `json:"role_id"`
		}
		Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
		Expect(resp.Success).To(BeTrue())
		Expect(resp.RoleID).NotTo(BeZero())
	})

	It("rejects renaming a system role with 403", func() {
		w := serve(http.MethodPut, "/admin/roles/"+itoa(teacherRoleID), "Teacher", rbac.RoleMutationDTO{
			Name: "Renamed Teacher",
		})
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("rejects deleting a system role with 403", func() {
		w := serve(http.MethodDelete, "/admin/roles/"+itoa(rootRoleID), "Root_Super_Admin", nil)
		Expect(w.Code).To(Equal(http.StatusForbidden))
	})

	It("assigns a role to an account", func() {
		w := serve(http.MethodPost, "/admin/roles/assign", "Teacher", rbac.AssignRoleDTO{
			UserID: "S001",
			RoleID: teacherRoleID,
		})

		Expect(w.Code).To(Equal(http.StatusOK))

		var count int64
		err := db.Model(&account.UserRole{}).
			Where("user_id = ? AND role_id = ?", "S001", teacherRoleID).
			Count(&count).Error
		Expect(err).NotTo(HaveOccurred())
		Expect(count).To(Equal(int64(1)))
	})

	It("updates a permission description", func() {
		w := serve(http.MethodPut, "/admin/permissions/"+itoa(permViewID), "Teacher", map[string]string{
			"description": "View class rosters",
		})

		Expect(w.Code).To(Equal(http.StatusOK))

		var p rbac.Permission
		Expect(db.First(&p, permViewID).Error).NotTo(HaveOccurred())
		Expect(p.Description).To(Equal("View class rosters"))
	})

	It("returns 400 for malformed request bodies", func() {
		req := httptest.NewRequest(http.MethodPost, "/admin/roles", bytes.NewBufferString("{not json"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})
})

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
