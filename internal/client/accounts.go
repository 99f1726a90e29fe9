package client

import (
	"context"
	"fmt"
	"time"

	"github.com/blocto/solana-go-sdk/client"

	"wallet-tax-sol/internal/consts"
	"wallet-tax-sol/internal/pkg/types"
	"wallet-tax-sol/pkg/logger"
)

// AccountClient 通过 Solana RPC 做衍生子账户发现与子账户属主反查。
type AccountClient struct {
	rpc *client.Client
}

func NewAccountClient(endpoint string) *AccountClient {
	return &AccountClient{rpc: client.NewClient(endpoint)}
}

// AccountsOwnedBy 返回 owner 名下全部 SPL Token 子账户地址（含 Token-2022）。
func (c *AccountClient) AccountsOwnedBy(ctx context.Context, owner string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out []string
	for _, program := range []string{consts.TokenProgramStr, consts.TokenProgram2022Str} {
		accounts, err := c.rpc.GetTokenAccountsByOwnerByProgram(ctx, owner, program)
		if err != nil {
			return nil, fmt.Errorf("getTokenAccountsByOwner(%s, %s): %w", owner, program, err)
		}
		for _, a := range accounts {
			out = append(out, a.PublicKey.ToBase58())
		}
	}
	logger.Infof("[accounts] owner=%s derived=%d", types.ShortAddress(owner), len(out))
	return out, nil
}

// OwnersOf 批量反查 token 子账户的真实属主（SPL 账户布局 32..64 字节）。
// 单个账户解析失败只跳过，不影响其余结果。
func (c *AccountClient) OwnersOf(ctx context.Context, accounts []string) (map[string]string, error) {
	out := make(map[string]string, len(accounts))
	if len(accounts) == 0 {
		return out, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// getMultipleAccounts 单次上限 100
	const batch = 100
	for start := 0; start < len(accounts); start += batch {
		end := start + batch
		if end > len(accounts) {
			end = len(accounts)
		}
		chunk := accounts[start:end]
		infos, err := c.rpc.GetMultipleAccounts(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("getMultipleAccounts: %w", err)
		}
		if len(infos) != len(chunk) {
			return nil, fmt.Errorf("getMultipleAccounts: got %d accounts, want %d", len(infos), len(chunk))
		}
		for i, info := range infos {
			owner, err := types.OwnerFromTokenAccountData(info.Data)
			if err != nil {
				logger.Warnf("[accounts] not a token account: %s: %v", types.ShortAddress(chunk[i]), err)
				continue
			}
			out[chunk[i]] = owner
		}
	}
	return out, nil
}
