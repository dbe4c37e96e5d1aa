// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ディレクトリ設定
	UploadDir     string // アップロード音声の保存先
	TranscribeDir string // 文字起こし結果の保存先
	LogDir        string // ログファイルの出力先

	// ファイル制限
	MaxFileSize int64 // 単一ファイルの最大サイズ（バイト）

	// 外部ツール設定
	FFmpegPath  string // ffmpeg実行ファイルのパス
	FFprobePath string // ffprobe実行ファイルのパス

	// 音声認識設定
	WhisperPath      string // whisper.cpp CLI実行ファイルのパス
	WhisperModelPath string // whisperモデルファイルのパス
	Language         string // 文字起こし言語ヒント

	// ジョブ設定
	MaxConcurrentJobs   int // 同時実行ジョブ数の上限（0は無制限）
	JobRetentionMinutes int // 終了ジョブの保持期間（分、0で掃除無効）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "5030"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		// ディレクトリ設定
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		TranscribeDir: getEnv("TRANSCRIBE_DIR", "transcribes"),
		LogDir:        getEnv("LOG_DIR", "log"),

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB

		// 外部ツール設定
		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		// 音声認識設定
		WhisperPath:      getEnv("WHISPER_PATH", "whisper-cli"),
		WhisperModelPath: getEnv("WHISPER_MODEL_PATH", ""),
		Language:         getEnv("TRANSCRIBE_LANGUAGE", "ja"),

		// ジョブ設定
		MaxConcurrentJobs:   getEnvAsInt("MAX_CONCURRENT_JOBS", 0),
		JobRetentionMinutes: getEnvAsInt("JOB_RETENTION_MINUTES", 0),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	// ローカル開発ではモデルパス未設定を許容する
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.WhisperModelPath == "" {
			return fmt.Errorf("WHISPER_MODEL_PATH is required in release mode")
		}
		if c.WhisperPath == "" {
			return fmt.Errorf("WHISPER_PATH is required in release mode")
		}
		if c.FFmpegPath == "" {
			return fmt.Errorf("FFMPEG_PATH is required in release mode")
		}
	}
	if c.MaxConcurrentJobs < 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must not be negative")
	}
	if c.JobRetentionMinutes < 0 {
		return fmt.Errorf("JOB_RETENTION_MINUTES must not be negative")
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
