package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vickroy/models"
)

// AdminWallet 回傳目前的平台管理錢包地址
func (e *Engine) AdminWallet(ctx context.Context) (string, error) {
	const op = "AdminWallet"
	config, err := platformConfig(e.db.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("[%s] %w", op, err)
	}
	return config.AdminWallet, nil
}

// UpdateAdminWallet 更新平台收款錢包，僅管理者可呼叫
// 之後的結算會將得標金額與稅金匯入新地址
func (e *Engine) UpdateAdminWallet(ctx context.Context, caller, wallet string) error {
	const op = "UpdateAdminWallet"
	if !e.gate.HasRole(ctx, caller, RoleAdmin) {
		return fmt.Errorf("[%s] %w: %s", op, ErrNotAuthorized, caller)
	}
	if wallet == "" {
		return fmt.Errorf("[%s] %w", op, ErrInvalidWallet)
	}
	if result := e.db.WithContext(ctx).
		Model(&models.PlatformConfig{ID: 1}).
		Update("admin_wallet", wallet); result.Error != nil {
		return fmt.Errorf("[%s] Fail to update admin wallet, err=%w", op, result.Error)
	}

	e.logger.Info("Admin wallet updated", slog.String("wallet", wallet))
	e.publish(Event{
		Type:   EventAdminWalletUpdated,
		Wallet: wallet,
		Time:   time.Now(),
	})
	return nil
}
