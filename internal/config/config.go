package config

import (
	"wallet-tax-sol/pkg/logger"
)

type LogConfig struct {
	Format   string `yaml:"format"`   // 日志格式，支持 "console" 或 "json"
	LogDir   string `yaml:"log_dir"`  // 日志目录（可为相对路径或绝对路径）
	Level    string `yaml:"level"`    // 日志级别：debug / info / warn / error
	Compress bool   `yaml:"compress"` // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
	}
}

// FetcherConfig 表示增强交易服务的拉取配置
type FetcherConfig struct {
	Endpoint       string `yaml:"endpoint"`         // 增强交易服务地址
	APIKey         string `yaml:"api_key"`          // 接口密钥
	PageSize       int    `yaml:"page_size"`        // 每页交易数
	PageCap        int    `yaml:"page_cap"`         // 每地址最大页数
	MaxRetries     int    `yaml:"max_retries"`      // 限流 / 5xx 重试上限
	RetryBackoffMs int    `yaml:"retry_backoff_ms"` // 重试初始退避（毫秒）
	TimeoutMs      int    `yaml:"timeout_ms"`       // 单次请求超时（毫秒）
}

// MetadataConfig 表示主备 token 元数据源配置
type MetadataConfig struct {
	PrimaryEndpoint   string `yaml:"primary_endpoint"`
	SecondaryEndpoint string `yaml:"secondary_endpoint"`
	APIKey            string `yaml:"api_key"`
	TimeoutMs         int    `yaml:"timeout_ms"`
}

// RatesConfig 表示历史汇率源与缓存配置
type RatesConfig struct {
	PrimaryEndpoint   string `yaml:"primary_endpoint"`
	ReferenceEndpoint string `yaml:"reference_endpoint"` // 合成交叉汇率的第二数据源
	ReferenceSymbol   string `yaml:"reference_symbol"`   // 参照币种，默认 USD
	TimeoutMs         int    `yaml:"timeout_ms"`
	CacheTTLHours     int    `yaml:"cache_ttl_hours"`
}

// KafkaProducerConfig 表示 Kafka 生产者相关配置（可选，留空则不发布）
type KafkaProducerConfig struct {
	Brokers    string `yaml:"brokers"`    // Kafka broker 地址，多个用英文逗号分隔
	Topic      string `yaml:"topic"`      // 记账行批次的 topic
	Partitions int    `yaml:"partitions"` // topic 分区数
	BatchSize  int    `yaml:"batch_size"` // 批处理大小（单位字节）
	LingerMs   int    `yaml:"linger_ms"`  // 批处理最大延迟（毫秒）
	TimeoutMs  int    `yaml:"timeout_ms"` // 单批投递确认超时（毫秒）
}

// DustConfig 表示 dust 处理配置
type DustConfig struct {
	Mode      string `yaml:"mode"`      // off / remove / aggregate-by-signer / aggregate-by-period
	Threshold string `yaml:"threshold"` // 阈值（十进制串，原生单位）
	Interval  string `yaml:"interval"`  // day / week / month / year
}

// ScanConfig 表示单次扫描任务配置
type ScanConfig struct {
	Owner       string `yaml:"owner"`        // 待扫钱包地址
	RPCEndpoint string `yaml:"rpc_endpoint"` // Solana RPC 地址（衍生账户发现）
	Timezone    string `yaml:"timezone"`     // 行时间戳时区，默认 UTC
	IncludeNFTs bool   `yaml:"include_nfts"` // 是否为 NFT 转账生成行
	OutputCSV   string `yaml:"output_csv"`   // CSV 输出路径

	Overrides struct {
		Currency map[string]string `yaml:"currency"` // 币种改名映射（精确匹配）
		Market   map[string]string `yaml:"market"`   // 市场标签改名映射
	} `yaml:"overrides"`
}

// Config 是主配置结构体，驱动扫描服务
type Config struct {
	LogConf           LogConfig           `yaml:"logger"`
	FetcherConf       FetcherConfig       `yaml:"fetcher"`
	MetadataConf      MetadataConfig      `yaml:"metadata"`
	RatesConf         RatesConfig         `yaml:"rates"`
	KafkaProducerConf KafkaProducerConfig `yaml:"kafka_producer"`
	DustConf          DustConfig          `yaml:"dust"`
	ScanConf          ScanConfig          `yaml:"scan"`

	RedisAddr string `yaml:"redis_addr"` // Redis 地址（游标与汇率缓存；留空则不持久化）
}
