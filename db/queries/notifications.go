package queries

import (
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
)

func CreateNotification(tx *gorm.DB, notification *db.Notification) error {
	return tx.Create(notification).Error
}

// GetActiveNotificationsByAccountID returns the endpoints events should
// fan out to.
func GetActiveNotificationsByAccountID(tx *gorm.DB, accountId uint) ([]db.Notification, error) {
	var notifications []db.Notification
	err := tx.
		Where("account_id = ? AND is_active = ?", accountId, true).
		Find(&notifications).Error
	return notifications, err
}

func ListNotifications(tx *gorm.DB, accountId uint) ([]db.Notification, error) {
	var notifications []db.Notification
	err := tx.Where("account_id = ?", accountId).Find(&notifications).Error
	return notifications, err
}

func GetNotification(tx *gorm.DB, accountId uint, notificationId uint) (*db.Notification, error) {
	var notification db.Notification
	err := tx.Where("account_id = ?", accountId).First(&notification, notificationId).Error
	if err != nil {
		return nil, err
	}
	return &notification, nil
}

func UpdateNotification(tx *gorm.DB, notification *db.Notification) error {
	return tx.Save(notification).Error
}

func DeleteNotification(tx *gorm.DB, accountId uint, notificationId uint) error {
	return tx.Where("account_id = ?", accountId).Delete(&db.Notification{}, notificationId).Error
}
