package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with schools, the RBAC catalogue and demo accounts for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlxDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		db, err := gorm.Open(gormPostgres.New(gormPostgres.Config{Conn: sqlxDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"user_roles", "role_permissions", "backup_codes", "guardians", "activities", "auth_logs", "accounts"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		seedSchools(db)
		seedPermissionCatalogue(db)
		seedSystemRoles(db)
		seedAccounts(db, cfg.Security.BCryptCost)
		seedRoleBindings(db)

		fmt.Println("Seeding complete")
	},
}

func seedSchools(db *gorm.DB) {
	var count int64
	db.Table("schools").Count(&count)
	if count > 0 {
		fmt.Println("schools already seeded")
		return
	}

	now := time.Now()
	schools := []struct {
		Name    string
		Address string
		Email   string
	}{
		{"Independent", "", ""},
		{"Noble Nexus Academy", "123 Main St", "contact@noblenexus.com"},
		{"Global Tech High", "456 Tech Ave", "admin@globaltech.edu"},
	}
	for _, s := range schools {
		if err := db.Exec(
			"INSERT INTO schools (name, address, contact_email, created_at) VALUES (?, ?, ?, ?)",
			s.Name, s.Address, s.Email, now,
		).Error; err != nil {
			log.Fatalf("failed to seed school %s: %v", s.Name, err)
		}
	}
	fmt.Println("Seeded schools")
}

func seedPermissionCatalogue(db *gorm.DB) {
	perms := []struct {
		Code  string
		Desc  string
		Group string
	}{
		{"*", "All Permissions", "System"},
		{"user_management", "Manage Users (Create/Edit/Delete)", "User Management"},
		{"role_management", "Manage Roles & Permissions", "Role Management"},
		{"permission_management", "View Platform Permissions", "Permission Management"},
		{"school.manage", "Manage Institutions", "System"},
		{"class.view", "View Classes", "Academics"},
		{"class.create", "Create/Schedule Classes", "Academics"},
		{"class.edit", "Edit Classes", "Academics"},
		{"assignment.view", "View Assignments", "Academics"},
		{"assignment.create", "Create Assignments", "Academics"},
		{"assignment.grade", "Grade Assignments", "Academics"},
		{"reports.view", "View Reports/Analytics", "Analytics"},
		{"finance.view", "View Finance", "Administration"},
		{"communication.view", "View Communication", "Communication"},
		{"communication.announce", "Post Announcements", "Communication"},
		{"communication.events", "Manage Calendar Events", "Communication"},
		{"compliance.view", "View Compliance & Security", "Compliance"},
		{"compliance.manage", "Manage Compliance Settings", "Compliance"},
		{"finance.manage", "Manage Finance Settings", "Finance"},
		{"finance.invoices", "Manage Invoices", "Finance"},
		{"finance.payroll", "Manage Payroll", "Finance"},
		{"staff.view", "View Staff & Faculty", "HR"},
		{"staff.manage", "Manage Staff & Faculty", "HR"},
		{"staff.assets", "Manage Assets & Lending", "HR"},
		{"student.info.view", "View Student Information", "Student Info"},
		{"student.info.manage", "Manage Student Information", "Student Info"},
		{"student.progress.view", "View Student Progress", "Student Info"},
		{"view_audit_logs", "View Security Audit Logs", "Compliance"},
		{"view_all_grades", "View Class Rosters", "Academics"},
		{"manage_users", "Manage Student Accounts", "User Management"},
		{"manage_invitations", "Issue Registration Invitations", "User Management"},
	}

	for _, p := range perms {
		if err := db.Exec(
			"INSERT INTO permissions (code, description, group_name) VALUES (?, ?, ?) ON CONFLICT (code) DO NOTHING",
			p.Code, p.Desc, p.Group,
		).Error; err != nil {
			log.Fatalf("failed to seed permission %s: %v", p.Code, err)
		}
	}
	fmt.Println("Seeded permission catalogue")
}

func seedSystemRoles(db *gorm.DB) {
	roles := []struct {
		Name string
		Desc string
	}{
		{"Root_Super_Admin", "Root Access - Full System Control"},
		{"Super Admin", "Legacy Admin Accounts"},
		{"Tenant_Admin", "School Administrator (Principal)"},
		{"Academic_Admin", "Academic Coordinator"},
		{"Teacher", "Faculty Member"},
		{"Student", "Learner"},
		{"Parent_Guardian", "Parent/Guardian"},
		{"Finance_Officer", "Finance Manager"},
		{"HR_Admin", "Human Resources Admin"},
	}

	for _, r := range roles {
		var exists int64
		db.Table("roles").Where("name = ?", r.Name).Count(&exists)
		if exists == 0 {
			if err := db.Exec(
				"INSERT INTO roles (name, description, status, is_system) VALUES (?, ?, 'Active', TRUE)",
				r.Name, r.Desc,
			).Error; err != nil {
				log.Fatalf("failed to seed role %s: %v", r.Name, err)
			}
		}
	}

	// The wildcard permission expands to everything at resolution time
	assignments := map[string][]string{
		"Root_Super_Admin": {"*"},
		"Super Admin":      {"*"},
		"Tenant_Admin": {
			"user_management", "role_management", "permission_management",
			"class.view", "reports.view",
			"finance.view", "finance.manage", "finance.invoices", "finance.payroll",
			"communication.view", "communication.announce", "communication.events",
			"compliance.view", "compliance.manage",
			"staff.view", "staff.manage",
			"student.info.view", "student.info.manage", "student.progress.view",
			"view_audit_logs", "view_all_grades", "manage_users", "manage_invitations",
		},
		"Academic_Admin": {
			"class.view", "class.create", "class.edit",
			"assignment.view", "assignment.create",
			"student.info.view", "student.progress.view",
			"reports.view",
		},
		"Teacher": {
			"class.view", "class.create", "class.edit",
			"assignment.view", "assignment.create", "assignment.grade",
			"communication.view", "communication.announce", "communication.events",
			"student.info.view", "student.progress.view",
			"view_all_grades", "manage_users", "manage_invitations",
		},
		"Student": {
			"class.view", "assignment.view", "student.progress.view", "communication.view",
		},
		"Parent_Guardian": {
			"student.progress.view", "finance.invoices", "communication.view",
		},
		"Finance_Officer": {
			"finance.view", "finance.manage", "finance.invoices", "finance.payroll",
		},
		"HR_Admin": {
			"staff.view", "staff.manage", "staff.assets",
		},
	}

	for roleName, codes := range assignments {
		var roleID int64
		if err := db.Raw("SELECT id FROM roles WHERE name = ?", roleName).Scan(&roleID).Error; err != nil || roleID == 0 {
			log.Fatalf("role %s missing after seed", roleName)
		}

		// System role grants are rewritten on every seed run
		if err := db.Exec("DELETE FROM role_permissions WHERE role_id = ?", roleID).Error; err != nil {
			log.Fatalf("failed to reset grants for %s: %v", roleName, err)
		}
		for _, code := range codes {
			if err := db.Exec(
				`INSERT INTO role_permissions (role_id, permission_id)
				 SELECT ?, id FROM permissions WHERE code = ?
				 ON CONFLICT DO NOTHING`,
				roleID, code,
			).Error; err != nil {
				log.Fatalf("failed to grant %s to %s: %v", code, roleName, err)
			}
		}
	}
	fmt.Println("Seeded system roles and grants")
}

func seedAccounts(db *gorm.DB, bcryptCost int) {
	var count int64
	db.Table("accounts").Count(&count)
	if count > 0 {
		fmt.Println("accounts already seeded")
		return
	}

	type demo struct {
		ID         string
		Name       string
		Grade      int
		Subject    string
		Attendance float64
		Language   string
		Password   string
		Math       float64
		Science    float64
		English    float64
		Role       string
		SchoolID   int64
		SuperAdmin bool
	}
	demos := []demo{
		{"S001", "Alice Smith", 9, "Maths", 92.5, "English", "123", 85.0, 78.5, 90.0, "Student", 1, false},
		{"S002", "Bob Johnson", 10, "Science", 85.0, "Spanish", "123", 60.0, 95.0, 75.0, "Student", 1, false},
		{"SURJEET", "Surjeet J", 11, "Science", 77.0, "Punjabi", "123", 70.0, 65.0, 80.0, "Student", 1, false},
		{"DEVA", "Deva Krishnan", 11, "Tamil", 90.0, "Tamil", "123", 95.0, 88.0, 92.0, "Student", 1, false},
		{"HARISH", "Harish Boy", 5, "English", 7.0, "Hindi", "123", 50.0, 50.0, 45.0, "Student", 1, false},
		{"teacher", "Teacher Admin", 0, "All", 100.0, "English", "teacher", 100.0, 100.0, 100.0, "Teacher", 1, false},
		{"superadmin", "Super Admin", 0, "All", 100.0, "English", "superadmin", 100.0, 100.0, 100.0, "Admin", 1, true},
		{"admin", "System Admin", 0, "All", 100.0, "English", "admin", 100.0, 100.0, 100.0, "Admin", 1, true},
	}

	now := time.Now()
	for _, d := range demos {
		hash, err := bcrypt.GenerateFromPassword([]byte(d.Password), bcryptCost)
		if err != nil {
			log.Fatalf("failed to hash password for %s: %v", d.ID, err)
		}
		if err := db.Exec(
			`INSERT INTO accounts
			 (id, name, password_hash, legacy_role, grade, preferred_subject, attendance_rate, home_language,
			  math_score, science_score, english_language_score, school_id, is_super_admin,
			  failed_login_attempts, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
			d.ID, d.Name, string(hash), d.Role, d.Grade, d.Subject, d.Attendance, d.Language,
			d.Math, d.Science, d.English, d.SchoolID, d.SuperAdmin, now, now,
		).Error; err != nil {
			log.Fatalf("failed to seed account %s: %v", d.ID, err)
		}

		// Every student ships with one backup code so the 2FA flow is
		// exercisable out of the box
		if d.Role == "Student" {
			if err := db.Exec(
				"INSERT INTO backup_codes (user_id, code, created_at) VALUES (?, '123456', ?)",
				d.ID, now,
			).Error; err != nil {
				log.Fatalf("failed to seed backup code for %s: %v", d.ID, err)
			}
		}
	}

	// Demo guardian linkage for the parent portal
	if err := db.Exec(
		"INSERT INTO guardians (parent_email, student_id) VALUES ('parent@example.com', 'S001') ON CONFLICT DO NOTHING",
	).Error; err != nil {
		log.Fatalf("failed to seed guardian link: %v", err)
	}

	fmt.Println("Seeded demo accounts")
}

func seedRoleBindings(db *gorm.DB) {
	bindings := map[string]string{
		"teacher":    "Teacher",
		"superadmin": "Super Admin",
		"admin":      "Super Admin",
		"S001":       "Student",
		"S002":       "Student",
		"SURJEET":    "Student",
		"DEVA":       "Student",
		"HARISH":     "Student",
	}

	for userID, roleName := range bindings {
		if err := db.Exec(
			`INSERT INTO user_roles (user_id, role_id)
			 SELECT ?, id FROM roles WHERE name = ?
			 ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, roleName,
		).Error; err != nil {
			log.Fatalf("failed to bind %s to %s: %v", userID, roleName, err)
		}
	}
	fmt.Println("Seeded role bindings")
}
