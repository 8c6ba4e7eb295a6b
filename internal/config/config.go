package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Content ContentConfig `yaml:"content"`
	Pool    PoolConfig    `yaml:"pool"`
	Admin   AdminConfig   `yaml:"admin"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号
	Name string `yaml:"name"` // Serverヘッダーの値

	// タイムアウト設定（0で無効）
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 接続ごとの読み込み期限
	WriteTimeout time.Duration `yaml:"write_timeout"` // 接続ごとの書き込み期限

	MaxBodyBytes int64 `yaml:"max_body_bytes"` // 受け付けるContent-Lengthの上限
}

// ContentConfig は配信ディレクトリの設定
type ContentConfig struct {
	Root  string `yaml:"root"`  // 配信ルートディレクトリ
	Index string `yaml:"index"` // "/" に対応するファイル名
}

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	CoreSize    int           `yaml:"core_size"`    // 常駐ワーカー数
	MaxSize     int           `yaml:"max_size"`     // 最大ワーカー数
	QueueSize   int           `yaml:"queue_size"`   // 待ち行列の容量
	IdleTimeout time.Duration `yaml:"idle_timeout"` // coreを超えたワーカーのアイドル上限
}

// AdminConfig は管理用HTTPエンドポイントの設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // console, json
}

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         80,
			Name:         "Another Web Server",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Content: ContentConfig{
			Root:  "./www",
			Index: "index.html",
		},
		Pool: PoolConfig{
			CoreSize:    4,
			MaxSize:     16,
			QueueSize:   64,
			IdleTimeout: 60 * time.Second,
		},
		Admin: AdminConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8081,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load は設定を読み込む
// WEBSERVER_CONFIG が指定されていればYAMLファイルを読み込み、その後環境変数で上書きする
func Load() (*Config, error) {
	return LoadFile(os.Getenv("WEBSERVER_CONFIG"))
}

// LoadFile は指定されたYAMLファイルから設定を読み込む
// path が空の場合はデフォルト値から開始する
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
		}
	}

	cfg.applyEnv()

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Content.Root = getEnvOrDefault("CONTENT_ROOT", c.Content.Root)
	c.Log.Level = getEnvOrDefault("LOG_LEVEL", c.Log.Level)
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("タイムアウトに負の値は指定できません")
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("無効なボディ上限: %d", c.Server.MaxBodyBytes)
	}

	// 配信ディレクトリ
	if c.Content.Root == "" {
		return errors.New("配信ルートが設定されていません")
	}
	if c.Content.Index == "" {
		return errors.New("インデックスファイル名が設定されていません")
	}

	// ワーカープール
	if c.Pool.CoreSize < 1 {
		return fmt.Errorf("無効なcore_size: %d", c.Pool.CoreSize)
	}
	if c.Pool.MaxSize < c.Pool.CoreSize {
		return fmt.Errorf("max_size (%d) は core_size (%d) 以上である必要があります", c.Pool.MaxSize, c.Pool.CoreSize)
	}
	if c.Pool.QueueSize < 0 {
		return fmt.Errorf("無効なqueue_size: %d", c.Pool.QueueSize)
	}
	if c.Pool.IdleTimeout < 0 {
		return errors.New("idle_timeout に負の値は指定できません")
	}

	if c.Admin.Enabled && (c.Admin.Port < 1 || c.Admin.Port > 65535) {
		return fmt.Errorf("無効な管理ポート番号: %d", c.Admin.Port)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("無効なログレベル: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("無効なログ形式: %q", c.Log.Format)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminAddress は管理用エンドポイントのリッスンアドレスを返す
func (c *Config) AdminAddress() string {
	return fmt.Sprintf("%s:%d", c.Admin.Host, c.Admin.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}
