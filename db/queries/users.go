package queries

import (
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
)

func CreateAccount(tx *gorm.DB, account *db.Account) error {
	return tx.Create(account).Error
}

func CreateUser(tx *gorm.DB, user *db.User) error {
	return tx.Create(user).Error
}

func GetUserByUsername(tx *gorm.DB, username string) (*db.User, error) {
	var user db.User
	err := tx.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(tx *gorm.DB, userId uint) (*db.User, error) {
	var user db.User
	err := tx.First(&user, userId).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}
