package svc

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"wallet-tax-sol/internal/cache"
	"wallet-tax-sol/internal/client"
	"wallet-tax-sol/internal/config"
	"wallet-tax-sol/internal/logic/scan"
	"wallet-tax-sol/internal/logic/token"
	"wallet-tax-sol/internal/mq"
	"wallet-tax-sol/internal/pkg/types"
)

// ServiceContext 汇集扫描服务的全部外部依赖，启动时一次性构建。
type ServiceContext struct {
	Config      *config.Config
	Fetcher     *client.TxFetcher
	Accounts    *client.AccountClient
	Resolver    *token.Resolver
	Rates       *client.RateResolver
	CursorStore *scan.CursorStore // Redis 未配置时为 nil，游标不持久化
	Publisher   *mq.Publisher     // Kafka 未配置时为 nil，不发布
	Location    *time.Location
}

func NewServiceContext(c *config.Config) (*ServiceContext, error) {
	if err := types.ValidateAddress(c.ScanConf.Owner); err != nil {
		return nil, fmt.Errorf("invalid owner address %q: %w", c.ScanConf.Owner, err)
	}

	loc := time.UTC
	if c.ScanConf.Timezone != "" {
		l, err := time.LoadLocation(c.ScanConf.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", c.ScanConf.Timezone, err)
		}
		loc = l
	}

	var rdb *redis.Client
	if c.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	}

	primary := client.NewMetadataSource("primary", c.MetadataConf.PrimaryEndpoint, c.MetadataConf.APIKey, c.MetadataConf.TimeoutMs)
	secondary := client.NewMetadataSource("secondary", c.MetadataConf.SecondaryEndpoint, c.MetadataConf.APIKey, c.MetadataConf.TimeoutMs)

	rateCache := cache.NewRateCache(time.Duration(c.RatesConf.CacheTTLHours)*time.Hour, nil, rdb)
	rates := client.NewRateResolver(
		client.NewRateSource("primary", c.RatesConf.PrimaryEndpoint, c.RatesConf.TimeoutMs),
		client.NewRateSource("reference", c.RatesConf.ReferenceEndpoint, c.RatesConf.TimeoutMs),
		c.RatesConf.ReferenceSymbol,
		rateCache,
	)

	ctx := &ServiceContext{
		Config:   c,
		Fetcher:  client.NewTxFetcher(&c.FetcherConf),
		Accounts: client.NewAccountClient(c.ScanConf.RPCEndpoint),
		Resolver: token.NewResolver(primary, secondary),
		Rates:    rates,
		Location: loc,
	}

	if rdb != nil {
		ctx.CursorStore = scan.NewCursorStore(rdb, 0)
	}

	if c.KafkaProducerConf.Brokers != "" && c.KafkaProducerConf.Topic != "" {
		producer, err := mq.NewKafkaProducer(&c.KafkaProducerConf)
		if err != nil {
			return nil, fmt.Errorf("init kafka producer: %w", err)
		}
		ctx.Publisher = mq.NewPublisher(producer, c.KafkaProducerConf.Topic,
			time.Duration(c.KafkaProducerConf.TimeoutMs)*time.Millisecond)
	}

	return ctx, nil
}
