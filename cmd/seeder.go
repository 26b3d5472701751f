package cmd

import (
	"fmt"
	"log"

	"github.com/frahmantamala/research-hours/internal/auth"
	orgDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/orgunit"
	userDatamodel "github.com/frahmantamala/research-hours/internal/core/datamodel/user"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const seedPassword = "password"

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed a sample faculty, department, office, researchers and reviewers for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		hash, err := auth.HashPassword(seedPassword, cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash seed password: %v", err)
		}

		if err := db.Transaction(func(tx *gorm.DB) error {
			if clearData {
				if err := clearSeedData(tx); err != nil {
					return err
				}
			}
			return seed(tx, hash)
		}); err != nil {
			log.Fatalf("seeding failed: %v", err)
		}

		fmt.Println("Sample data seeded; every user logs in with password:", seedPassword)
	},
}

func clearSeedData(tx *gorm.DB) error {
	for _, table := range []string{"audit_entries", "records", "admin_roles", "users", "departments", "org_units"} {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	fmt.Println("Cleared existing data")
	return nil
}

func seed(tx *gorm.DB, hash string) error {
	engineering := orgDatamodel.OrgUnit{Name: "Faculty of Engineering", Code: "ENG", Kind: "faculty", IsActive: true}
	if err := tx.Where("name = ?", engineering.Name).FirstOrCreate(&engineering).Error; err != nil {
		return fmt.Errorf("seed faculty: %w", err)
	}

	office := orgDatamodel.OrgUnit{Name: "Research Office", Code: "RO", Kind: "office", IsActive: true}
	if err := tx.Where("name = ?", office.Name).FirstOrCreate(&office).Error; err != nil {
		return fmt.Errorf("seed office: %w", err)
	}

	cs := orgDatamodel.Department{Name: "Computer Science", Code: "CS", FacultyID: engineering.ID, IsActive: true}
	if err := tx.Where("name = ? AND faculty_id = ?", cs.Name, cs.FacultyID).FirstOrCreate(&cs).Error; err != nil {
		return fmt.Errorf("seed department: %w", err)
	}
	fmt.Printf("Seeded org: faculty %d, department %d, office %d\n", engineering.ID, cs.ID, office.ID)

	people := []struct {
		Email        string
		Name         string
		DepartmentID *int64
		OrgUnitID    *int64
		Scope        identity.ScopeKind
		ScopeID      *int64
	}{
		{Email: "researcher@example.edu", Name: "Dana Researcher", DepartmentID: &cs.ID},
		{Email: "staff@example.edu", Name: "Omar Office", OrgUnitID: &office.ID},
		{Email: "head.cs@example.edu", Name: "Hana Head", DepartmentID: &cs.ID, Scope: identity.ScopeDepartment, ScopeID: &cs.ID},
		{Email: "dean.eng@example.edu", Name: "Dean Engineering", DepartmentID: &cs.ID, Scope: identity.ScopeFaculty, ScopeID: &engineering.ID},
		{Email: "registrar@example.edu", Name: "Uma Registrar", OrgUnitID: &office.ID, Scope: identity.ScopeUniversity},
	}

	for _, p := range people {
		u := userDatamodel.User{
			Email:        p.Email,
			Name:         p.Name,
			PasswordHash: hash,
			DepartmentID: p.DepartmentID,
			OrgUnitID:    p.OrgUnitID,
			IsActive:     true,
		}
		if err := tx.Where("email = ?", u.Email).FirstOrCreate(&u).Error; err != nil {
			return fmt.Errorf("seed user %s: %w", p.Email, err)
		}

		if p.Scope == "" {
			fmt.Println("Seeded user:", p.Email)
			continue
		}

		role := orgDatamodel.AdminRole{UserID: u.ID, ScopeKind: string(p.Scope), ScopeID: p.ScopeID, IsActive: true}
		q := tx.Where("user_id = ? AND scope_kind = ?", role.UserID, role.ScopeKind)
		if role.ScopeID != nil {
			q = q.Where("scope_id = ?", *role.ScopeID)
		}
		if err := q.FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role for %s: %w", p.Email, err)
		}
		fmt.Printf("Seeded user: %s (%s admin)\n", p.Email, p.Scope)
	}

	return nil
}
