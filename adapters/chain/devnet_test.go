package chain_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vickroy/adapters/chain"
)

func TestDevnetCustody(t *testing.T) {
	ctx := context.Background()
	dev := chain.NewDevnet(100)
	ref := chain.AssetRef{Contract: "0xnft", TokenID: "42"}
	dev.RegisterAsset(ref, "alice")

	// 非擁有者無法轉入託管
	err := dev.PullAsset(ctx, "bob", ref)
	assert.ErrorIs(t, err, chain.ErrNotAssetOwner)

	// 擁有者轉入託管後，資產不再屬於原擁有者
	require.NoError(t, dev.PullAsset(ctx, "alice", ref))
	err = dev.PullAsset(ctx, "alice", ref)
	assert.ErrorIs(t, err, chain.ErrNotAssetOwner)

	// 自託管釋出給得標者
	require.NoError(t, dev.ReleaseAsset(ctx, ref, "bob"))
	assert.Equal(t, "bob", dev.AssetOwner(ref))

	// 不在託管中的資產無法釋出
	err = dev.ReleaseAsset(ctx, ref, "carol")
	assert.ErrorIs(t, err, chain.ErrAssetNotInCustody)
}

func TestDevnetVault(t *testing.T) {
	ctx := context.Background()
	dev := chain.NewDevnet(0)
	dev.Fund("alice", 500)

	// 餘額不足時託管失敗且不產生副作用
	err := dev.Escrow(ctx, "alice", 600)
	assert.ErrorIs(t, err, chain.ErrInsufficientFunds)
	assert.Equal(t, uint64(500), dev.Balance("alice"))
	assert.Equal(t, uint64(0), dev.VaultBalance())

	require.NoError(t, dev.Escrow(ctx, "alice", 300))
	assert.Equal(t, uint64(200), dev.Balance("alice"))
	assert.Equal(t, uint64(300), dev.VaultBalance())

	// 金庫餘額不足時支付失敗
	err = dev.Payout(ctx, "bob", 400)
	assert.ErrorIs(t, err, chain.ErrInsufficientVault)

	require.NoError(t, dev.Payout(ctx, "bob", 300))
	assert.Equal(t, uint64(300), dev.Balance("bob"))
	assert.Equal(t, uint64(0), dev.VaultBalance())
}

func TestDevnetMintOncePerAuction(t *testing.T) {
	ctx := context.Background()
	dev := chain.NewDevnet(0)

	tokenID, err := dev.Mint(ctx, "alice", 7)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tokenID)
	assert.Equal(t, tokenID, dev.MintedToken(7))

	// 同一拍賣不可重複鑄造
	_, err = dev.Mint(ctx, "bob", 7)
	assert.ErrorIs(t, err, chain.ErrAlreadyMinted)
}

func TestDevnetHeight(t *testing.T) {
	ctx := context.Background()
	dev := chain.NewDevnet(100)

	h, err := dev.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), h)

	dev.Advance(50)
	h, err = dev.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), h)
}
