package queries

import (
	"gorm.io/gorm"

	"github.com/GideonBature/nodegaze-sub000/db"
)

func CreateNode(tx *gorm.DB, node *db.Node) error {
	return tx.Create(node).Error
}

func GetNode(tx *gorm.DB, accountId uint, nodeId uint) (*db.Node, error) {
	var node db.Node
	err := tx.Where("account_id = ?", accountId).First(&node, nodeId).Error
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func ListNodes(tx *gorm.DB, accountId uint) ([]db.Node, error) {
	var nodes []db.Node
	err := tx.Where("account_id = ?", accountId).Find(&nodes).Error
	return nodes, err
}

func ListActiveNodes(tx *gorm.DB) ([]db.Node, error) {
	var nodes []db.Node
	err := tx.Where("is_active = ?", true).Find(&nodes).Error
	return nodes, err
}

func DeleteNode(tx *gorm.DB, accountId uint, nodeId uint) error {
	return tx.Where("account_id = ?", accountId).Delete(&db.Node{}, nodeId).Error
}
