package query

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/flowboard-labs/flowboard/dao/model"
)

// allModels is the migration target set. Order matters for foreign
// keys: referenced tables first.
func allModels() []any {
	return []any{
		&model.User{},
		&model.Organization{},
		&model.OrgMembership{},
		&model.Workspace{},
		&model.WorkspaceMembership{},
		&model.WorkspaceInvitation{},
		&model.WorkspaceFile{},
		&model.Project{},
		&model.Sprint{},
		&model.Task{},
		&model.Subtask{},
		&model.Comment{},
	}
}

// Migrate brings the schema up to date. New schema changes get their
// own migration entry; the initial entry stays frozen.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250815_init",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(allModels()...)
			},
			Rollback: func(tx *gorm.DB) error {
				for _, mdl := range allModels() {
					if err := tx.Migrator().DropTable(mdl); err != nil {
						return err
					}
				}
				return nil
			},
		},
	})
	return m.Migrate()
}

// MigrateForTest applies the full schema directly. Tests run against
// an in-memory database where migration history is pointless.
func MigrateForTest(db *gorm.DB) error {
	return db.AutoMigrate(allModels()...)
}
