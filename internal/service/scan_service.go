package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"wallet-tax-sol/internal/export"
	"wallet-tax-sol/internal/logic/classify"
	"wallet-tax-sol/internal/logic/consolidate"
	"wallet-tax-sol/internal/logic/domain"
	"wallet-tax-sol/internal/logic/dust"
	"wallet-tax-sol/internal/logic/scan"
	"wallet-tax-sol/internal/svc"
	"wallet-tax-sol/pkg/logger"
)

// ScanService 驱动一次完整的钱包扫描管线：
// 拉取 → 分类 → dust → 归并 → 改名 → CSV 输出（可选 Kafka 发布）。
type ScanService struct {
	svcCtx *svc.ServiceContext
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScanService(svcCtx *svc.ServiceContext) *ScanService {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanService{svcCtx: svcCtx, ctx: ctx, cancel: cancel}
}

func (s *ScanService) Start() {
	if err := s.run(); err != nil {
		logger.Errorf("[scan_service] scan failed: %v", err)
	}
}

func (s *ScanService) Stop() {
	s.cancel()
	if s.svcCtx.Publisher != nil {
		s.svcCtx.Publisher.Close()
	}
	logger.Sync()
}

func (s *ScanService) run() error {
	cfg := s.svcCtx.Config
	owner := cfg.ScanConf.Owner

	// Step 1: 游标恢复（上次被配额打断的扫描从断点继续）
	var cursor *scan.Cursor
	if s.svcCtx.CursorStore != nil {
		c, err := s.svcCtx.CursorStore.Load(s.ctx, owner)
		if err != nil {
			logger.Warnf("[scan_service] cursor load failed, starting fresh: %v", err)
		} else if c != nil {
			logger.Infof("[scan_service] resuming from cursor, addressIndex=%d", c.NextAddressIndex)
			cursor = c
		}
	}

	// Step 2: 衍生子账户发现 + 分页拉取
	derived, err := s.svcCtx.Accounts.AccountsOwnedBy(s.ctx, owner)
	if err != nil {
		return fmt.Errorf("discover derived accounts: %w", err)
	}
	scanner := scan.NewScanner(s.svcCtx.Fetcher, s.svcCtx.Accounts, cfg.FetcherConf.PageSize, cfg.FetcherConf.PageCap)
	res, scanErr := scanner.ScanFrom(s.ctx, owner, derived, cursor)
	if res == nil {
		return scanErr
	}
	if res.Partial {
		logger.Warnf("[scan_service] partial scan (%v), result still processed", scanErr)
	}

	// Step 3: 游标持久化（部分结果存断点，完整结果清游标）
	if s.svcCtx.CursorStore != nil {
		if res.Partial {
			if err := s.svcCtx.CursorStore.Save(s.ctx, owner, res.Cursor); err != nil {
				logger.Warnf("[scan_service] cursor save failed: %v", err)
			}
		} else if err := s.svcCtx.CursorStore.Clear(s.ctx, owner); err != nil {
			logger.Warnf("[scan_service] cursor clear failed: %v", err)
		}
	}

	// Step 4: 元数据预取（并发主备源，失败静默降级到占位符）
	s.svcCtx.Resolver.Prefetch(s.ctx, collectMints(res))

	// Step 5: 分类
	txs := make([]*domain.Transaction, 0, len(res.Order))
	for _, sig := range res.Order {
		txs = append(txs, res.TxMap[sig])
	}
	rows := classify.Classify(txs, owner, res.Derived, s.svcCtx.Resolver, classify.Options{
		IncludeNFTs: cfg.ScanConf.IncludeNFTs,
		Location:    s.svcCtx.Location,
	})
	logger.Infof("[scan_service] classified %d txs into %d rows", len(txs), len(rows))

	// Step 6: dust 处理
	threshold := decimal.Zero
	if cfg.DustConf.Threshold != "" {
		t, err := decimal.NewFromString(cfg.DustConf.Threshold)
		if err != nil {
			return fmt.Errorf("parse dust threshold %q: %w", cfg.DustConf.Threshold, err)
		}
		threshold = t
	}
	rows = dust.ApplyDustPolicy(rows, res.TxMap, dust.Options{
		Mode:      dust.Mode(cfg.DustConf.Mode),
		Threshold: threshold,
		Interval:  dust.Interval(cfg.DustConf.Interval),
		Owner:     owner,
		Location:  s.svcCtx.Location,
	})

	// Step 7: 按签名归并
	rows = consolidate.ConsolidateBySignature(rows, res.TxMap, owner, threshold)

	// Step 8: 改名映射 + 按时间排序
	ov := &export.Overrides{
		Currency: cfg.ScanConf.Overrides.Currency,
		Market:   cfg.ScanConf.Overrides.Market,
	}
	rows = ov.Apply(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp < rows[j].Timestamp })

	// Step 9: 收益行的汇率预热（失败不影响出行，只少缓存）
	s.warmRates(rows)

	// Step 10: 输出
	if cfg.ScanConf.OutputCSV != "" {
		if err := export.WriteCSVFile(cfg.ScanConf.OutputCSV, rows); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		logger.Infof("[scan_service] wrote %d rows to %s", len(rows), cfg.ScanConf.OutputCSV)
	}
	if s.svcCtx.Publisher != nil {
		if err := s.svcCtx.Publisher.Publish(s.ctx, owner, rows, res.Partial); err != nil {
			return fmt.Errorf("publish rows: %w", err)
		}
	}

	if res.Partial {
		logger.Warnf("[scan_service] scan incomplete, rerun to continue from saved cursor")
	}
	return nil
}

// warmRates 为收益行预取当日汇率，填充按日缓存供下游估值使用。
func (s *ScanService) warmRates(rows []domain.Row) {
	ref := s.svcCtx.Config.RatesConf.ReferenceSymbol
	if ref == "" {
		ref = "USD"
	}
	for i := range rows {
		if rows[i].Kind != domain.KindIncome || rows[i].CurrencyIn == "" {
			continue
		}
		date := rows[i].Timestamp
		if len(date) >= 10 {
			date = date[:10]
		}
		if _, err := s.svcCtx.Rates.RateFor(s.ctx, rows[i].CurrencyIn, ref, date); err != nil {
			logger.Debugf("[scan_service] rate warmup failed for %s@%s: %v", rows[i].CurrencyIn, date, err)
		}
	}
}

func collectMints(res *scan.Result) []string {
	seen := make(map[string]bool)
	var mints []string
	for _, tx := range res.TxMap {
		for i := range tx.Tokens {
			m := tx.Tokens[i].Mint
			if m != "" && !seen[m] {
				seen[m] = true
				mints = append(mints, m)
			}
		}
	}
	return mints
}
