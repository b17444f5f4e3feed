package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/school-management/internal/audit"
	"github.com/frahmantamala/school-management/internal/auth"
	"github.com/frahmantamala/school-management/internal/rbac"
	"github.com/frahmantamala/school-management/internal/roster"
	"github.com/frahmantamala/school-management/internal/tenant"
	"github.com/frahmantamala/school-management/internal/transport/middleware"
	"github.com/frahmantamala/school-management/internal/transport/swagger"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

func RegisterAllRoutes(
	router *chi.Mux,
	db *sql.DB,
	authHandler *auth.Handler,
	resolver auth.PermissionResolver,
	auditHandler *audit.Handler,
	auditService *audit.Service,
	rbacHandler *rbac.Handler,
	tenantHandler *tenant.Handler,
	rosterHandler *roster.Handler,
	logger *slog.Logger,
) {
	healthHandler := NewHealthHandler(db, auditService)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.Identity)

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/api", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		// Credential flows need no identity headers
		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", authHandler.Login)
			sr.Post("/verify-2fa", authHandler.Verify2FA)
			sr.Post("/register", authHandler.Register)
			sr.Post("/forgot-password", authHandler.ForgotPassword)
			sr.Post("/reset-password", authHandler.ResetPassword)
			sr.Get("/permissions", authHandler.LegacyPermissions)

			sr.Group(func(pr chi.Router) {
				pr.Use(middleware.RequireIdentity)
				pr.Post("/logout", authHandler.Logout)
			})
		})

		r.Group(func(ir chi.Router) {
			ir.Use(middleware.RequireIdentity)
			ir.Use(middleware.RequirePermission(resolver, "manage_invitations"))
			ir.Post("/invitations/generate", authHandler.GenerateInvitation)
		})

		// Protected routes that require gateway identity
		r.Group(func(pr chi.Router) {
			pr.Use(middleware.RequireIdentity)

			pr.Group(func(tr chi.Router) {
				tr.Use(middleware.RequirePermission(resolver, "view_all_grades"))
				tr.Get("/teacher/overview", rosterHandler.TeacherOverview)
			})

			pr.Group(func(br chi.Router) {
				br.Use(middleware.RequirePermission(resolver, "manage_users"))
				br.Get("/teacher/students/{studentID}/codes", authHandler.ListBackupCodes)
				br.Post("/teacher/students/{studentID}/regenerate-code", authHandler.RegenerateBackupCode)
			})
		})

		r.Route("/admin", func(ar chi.Router) {
			// The school list feeds the registration form, so it is served
			// without identity headers; mutations still require them.
			ar.Route("/schools", func(tr chi.Router) {
				tr.Get("/", tenantHandler.ListSchools)

				tr.Group(func(mr chi.Router) {
					mr.Use(middleware.RequireIdentity)
					mr.Post("/", tenantHandler.CreateSchool)
					mr.Put("/{schoolID}", tenantHandler.UpdateSchool)
					mr.Delete("/{schoolID}", tenantHandler.DeleteSchool)
				})
			})

			ar.Group(func(gr chi.Router) {
				gr.Use(middleware.RequireIdentity)

				gr.Route("/roles", func(rr chi.Router) {
					rr.Get("/", rbacHandler.ListRoles)
					rr.Get("/{roleID}", rbacHandler.GetRole)

					rr.Group(func(mr chi.Router) {
						mr.Use(middleware.RequirePermission(resolver, "role_management"))
						mr.Post("/", rbacHandler.CreateRole)
						mr.Put("/{roleID}", rbacHandler.UpdateRole)
						mr.Delete("/{roleID}", rbacHandler.DeleteRole)
						mr.Post("/assign", rbacHandler.AssignRole)
						mr.Post("/revoke", rbacHandler.RevokeRole)
					})
				})

				gr.Route("/permissions", func(prr chi.Router) {
					prr.Use(middleware.RequirePermission(resolver, "permission_management"))
					prr.Get("/", rbacHandler.GroupedPermissions)
					prr.Get("/list", rbacHandler.ListPermissions)
					prr.Put("/{permID}", rbacHandler.UpdatePermission)
				})

				gr.Group(func(lr chi.Router) {
					lr.Use(middleware.RequirePermission(resolver, "view_audit_logs"))
					lr.Get("/audit-logs", auditHandler.RecentLogs)
				})

				gr.Route("/compliance", func(cr chi.Router) {
					cr.Use(middleware.RequirePermission(resolver, "compliance.view"))
					cr.Get("/audit-logs", auditHandler.ComplianceAuditLogs)
					cr.Get("/access-logs", auditHandler.ComplianceAccessLogs)
					cr.Get("/retention", auditHandler.RetentionPolicies)
				})
			})
		})
	})
}
