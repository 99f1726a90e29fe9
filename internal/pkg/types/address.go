package types

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Address 表示一个 base58 形式的 Solana 地址（钱包、Token 子账户或 mint）。
// 扫描管线的输入是增强交易 JSON，地址始终以字符串形式流转；
// 该类型只负责合法性校验与展示裁剪，不做 32 字节二进制比较。
type Address = string

// ValidateAddress 校验 base58 地址是否为合法的 32 字节公钥。
// 用于不信任输入路径（配置、HTTP 参数）。
func ValidateAddress(s string) error {
	data, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("failed to decode base58 address %q: %w", s, err)
	}
	if len(data) != 32 {
		return fmt.Errorf("invalid address length: got %d, want 32, input=%q", len(data), s)
	}
	return nil
}

// OwnerFromTokenAccountData 从 SPL TokenAccount 的原始账户数据中提取 owner 地址。
// SPL Token 账户布局：mint [0:32]、owner [32:64]。
func OwnerFromTokenAccountData(data []byte) (Address, error) {
	if len(data) < 64 {
		return "", fmt.Errorf("token account data too short: got %d, want >=64", len(data))
	}
	return base58.Encode(data[32:64]), nil
}

// ShortAddress 返回地址的缩略形式（前 4 + 后 4），用于日志与聚合行备注。
func ShortAddress(s string) string {
	if len(s) <= 10 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
