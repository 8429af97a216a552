package models

import (
	"gorm.io/gorm"
)

// PlatformConfig 代表平台層級的可變設定
// 僅有一列（ID 固定為 1），於服務初始化時建立
// AdminWallet 只能透過管理者的更新操作修改
type PlatformConfig struct {
	gorm.Model

	ID          uint32 `gorm:"primaryKey;<-:create"`
	AdminWallet string `gorm:"type:varchar(128);not null"`
	TaxBps      uint32 `gorm:"not null"`
}
