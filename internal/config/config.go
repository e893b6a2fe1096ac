package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// DatabaseConfig 定义数据库连接配置（支持 PostgreSQL 和 MySQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "postgres" 或 "mysql"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，留空禁用 Redis 协作能力
	Password string // Redis 认证密码
	DB       int    // Redis 数据库编号
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "sandeshaa"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 24 小时
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 彩色输出和详细堆栈
}

// RetentionConfig 定义保留清理配置
//
// 消息与文件各有独立的保留窗口和清扫周期，文件窗口刻意更短。
type RetentionConfig struct {
	MessageMaxAge        time.Duration // 消息保留窗口，默认 168h（7 天）
	FileMaxAge           time.Duration // 文件保留窗口，默认 24h
	MessageSweepInterval time.Duration // 消息清扫周期，默认 1h
	FileSweepInterval    time.Duration // 文件清扫周期，默认 30m
}

// UploadConfig 定义文件上传配置
type UploadConfig struct {
	Dir     string // Blob 存储目录，默认 "./data/uploads"
	MaxSize int64  // 单文件最大字节数，默认 10MB
}

// DeliveryConfig 定义投递引擎配置
type DeliveryConfig struct {
	SendRate  int // 单连接每秒 send_message 上限，默认 20
	SendBurst int // 突发额度，默认 40
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Retention RetentionConfig
	Upload    UploadConfig
	Delivery  DeliveryConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: SANDESHAA_
// 例如: SANDESHAA_SERVER_PORT, SANDESHAA_JWT_SECRET
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("sandeshaa")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "sandeshaa")
	viper.SetDefault("jwt.access_expiry", "24h")
	viper.SetDefault("jwt.refresh_expiry", "168h")
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("retention.message_max_age", "168h")
	viper.SetDefault("retention.file_max_age", "24h")
	viper.SetDefault("retention.message_sweep_interval", "1h")
	viper.SetDefault("retention.file_sweep_interval", "30m")
	viper.SetDefault("upload.dir", "./data/uploads")
	viper.SetDefault("upload.max_size", 10*1024*1024)
	viper.SetDefault("delivery.send_rate", 20)
	viper.SetDefault("delivery.send_burst", 40)

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 24 * time.Hour
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set SANDESHAA_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	retention, err := loadRetention()
	if err != nil {
		return nil, err
	}

	maxSize := viper.GetInt64("upload.max_size")
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}

	sendRate := viper.GetInt("delivery.send_rate")
	if sendRate <= 0 {
		sendRate = 20
	}
	sendBurst := viper.GetInt("delivery.send_burst")
	if sendBurst < sendRate {
		sendBurst = sendRate * 2
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
		},
		Retention: retention,
		Upload: UploadConfig{
			Dir:     viper.GetString("upload.dir"),
			MaxSize: maxSize,
		},
		Delivery: DeliveryConfig{
			SendRate:  sendRate,
			SendBurst: sendBurst,
		},
	}

	return cfg, nil
}

// loadRetention 加载并校验保留清理配置
func loadRetention() (RetentionConfig, error) {
	messageMaxAge, err := time.ParseDuration(viper.GetString("retention.message_max_age"))
	if err != nil || messageMaxAge <= 0 {
		return RetentionConfig{}, fmt.Errorf("invalid retention.message_max_age: %q", viper.GetString("retention.message_max_age"))
	}

	fileMaxAge, err := time.ParseDuration(viper.GetString("retention.file_max_age"))
	if err != nil || fileMaxAge <= 0 {
		return RetentionConfig{}, fmt.Errorf("invalid retention.file_max_age: %q", viper.GetString("retention.file_max_age"))
	}

	messageSweepInterval, err := time.ParseDuration(viper.GetString("retention.message_sweep_interval"))
	if err != nil || messageSweepInterval <= 0 {
		messageSweepInterval = time.Hour
	}

	fileSweepInterval, err := time.ParseDuration(viper.GetString("retention.file_sweep_interval"))
	if err != nil || fileSweepInterval <= 0 {
		fileSweepInterval = 30 * time.Minute
	}

	return RetentionConfig{
		MessageMaxAge:        messageMaxAge,
		FileMaxAge:           fileMaxAge,
		MessageSweepInterval: messageSweepInterval,
		FileSweepInterval:    fileSweepInterval,
	}, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 先尝试当前目录，再尝试父目录（从 backend/ 子目录运行时）。
// 文件不存在时静默跳过；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
