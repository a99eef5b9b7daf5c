package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
)

func Migrate(gormDB *gorm.DB) error {
	m := gormigrate.New(gormDB, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "202608010001_event_indexes",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&db.Event{})
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
		{
			ID: "202608290001_user_id_columns",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&db.Node{}, &db.Event{})
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
	})

	m.InitSchema(func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&db.Account{},
			&db.User{},
			&db.Node{},
			&db.Notification{},
			&db.Event{},
		)
	})

	return m.Migrate()
}
