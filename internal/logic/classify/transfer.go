package classify

import (
	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/tools"
)

// NativeFlows 表示一笔交易中地址两个方向的原生币流量汇总（SOL）。
type NativeFlows struct {
	In      decimal.Decimal
	Out     decimal.Decimal
	InLegs  []domain.NativeTransfer
	OutLegs []domain.NativeTransfer
}

// NativeFlows 汇总 owner 两个方向的原生转账。
// lamports → SOL 使用固定原生精度转换。
func (c *Context) NativeFlows(tx *domain.Transaction) NativeFlows {
	var nf NativeFlows
	for _, nt := range tx.Native {
		amt := tools.LamportsToSol(nt.Amount)
		if nt.ToUserAccount == c.Owner {
			nf.In = nf.In.Add(amt)
			nf.InLegs = append(nf.InLegs, nt)
		}
		if nt.FromUserAccount == c.Owner {
			nf.Out = nf.Out.Add(amt)
			nf.OutLegs = append(nf.OutLegs, nt)
		}
	}
	return nf
}

// OwnsAsSource 判断 token 转账是否由该地址发出：
// 用户级字段直接匹配，或来源 Token 子账户属于衍生账户集合。
// Token 流水记录在每币种子账户上而非钱包本身，必须经过这一层间接匹配。
func (c *Context) OwnsAsSource(t *domain.TokenTransfer) bool {
	if t.FromUserAccount == c.Owner {
		return true
	}
	return t.FromTokenAccount != "" && c.Derived[t.FromTokenAccount]
}

// OwnsAsDestination 判断 token 转账是否流入该地址（同上，方向相反）。
func (c *Context) OwnsAsDestination(t *domain.TokenTransfer) bool {
	if t.ToUserAccount == c.Owner {
		return true
	}
	return t.ToTokenAccount != "" && c.Derived[t.ToTokenAccount]
}

// inbound / outbound 返回严格方向的 token 转账（剔除自转）。
func (c *Context) inbound(t *domain.TokenTransfer) bool {
	return c.OwnsAsDestination(t) && !c.OwnsAsSource(t)
}

func (c *Context) outbound(t *domain.TokenTransfer) bool {
	return c.OwnsAsSource(t) && !c.OwnsAsDestination(t)
}

// BestCounterparty 为备注/路由挑选最可能的对手方地址：
// 优先取金额最大的流出腿的接收方，否则取金额最大的流入腿的发送方；
// 金额相同时优先用户级地址而非裸子账户地址。找不到返回空串。
func (c *Context) BestCounterparty(tx *domain.Transaction) string {
	type candidate struct {
		addr      string
		amount    decimal.Decimal
		userLevel bool
	}

	pick := func(cands []candidate) string {
		best := -1
		for i, cd := range cands {
			if cd.addr == "" || cd.addr == c.Owner {
				continue
			}
			if best < 0 {
				best = i
				continue
			}
			cmp := cd.amount.Cmp(cands[best].amount)
			if cmp > 0 || (cmp == 0 && cd.userLevel && !cands[best].userLevel) {
				best = i
			}
		}
		if best < 0 {
			return ""
		}
		return cands[best].addr
	}

	var out, in []candidate
	for _, nt := range tx.Native {
		amt := tools.LamportsToSol(nt.Amount)
		if nt.FromUserAccount == c.Owner {
			out = append(out, candidate{addr: nt.ToUserAccount, amount: amt, userLevel: true})
		}
		if nt.ToUserAccount == c.Owner {
			in = append(in, candidate{addr: nt.FromUserAccount, amount: amt, userLevel: true})
		}
	}
	for i := range tx.Tokens {
		t := &tx.Tokens[i]
		amt := t.Value()
		if c.outbound(t) {
			if t.ToUserAccount != "" {
				out = append(out, candidate{addr: t.ToUserAccount, amount: amt, userLevel: true})
			} else {
				out = append(out, candidate{addr: t.ToTokenAccount, amount: amt})
			}
		}
		if c.inbound(t) {
			if t.FromUserAccount != "" {
				in = append(in, candidate{addr: t.FromUserAccount, amount: amt, userLevel: true})
			} else {
				in = append(in, candidate{addr: t.FromTokenAccount, amount: amt})
			}
		}
	}

	if addr := pick(out); addr != "" {
		return addr
	}
	return pick(in)
}
