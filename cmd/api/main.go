// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/voice-scribe/internal/config"
	"github.com/yourusername/voice-scribe/internal/jobs"
	"github.com/yourusername/voice-scribe/internal/media"
	"github.com/yourusername/voice-scribe/internal/storage"
	"github.com/yourusername/voice-scribe/internal/whisper"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// ログの出力先を標準出力とタイムスタンプ付きファイルの両方にする
	logger, closeLog, err := setupLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	router.Use(cors.New(corsConfig))

	// 依存コンポーネントの組み立て
	uploads, err := storage.NewUploads(cfg.UploadDir, cfg.MaxFileSize)
	if err != nil {
		log.Fatalf("Failed to set up upload storage: %v", err)
	}
	if err := os.MkdirAll(cfg.TranscribeDir, 0o755); err != nil {
		log.Fatalf("Failed to create transcribe dir: %v", err)
	}

	manager, err := jobs.NewManager(jobs.ManagerOptions{
		Engine:        whisper.NewCLIEngine(cfg.WhisperPath, cfg.WhisperModelPath),
		Transcoder:    media.NewTranscoder(cfg.FFmpegPath),
		Durations:     media.NewResolver(cfg.FFprobePath),
		OutputDir:     cfg.TranscribeDir,
		Language:      cfg.Language,
		MaxConcurrent: cfg.MaxConcurrentJobs,
		Logger:        logger,
	})
	if err != nil {
		log.Fatalf("Failed to set up job manager: %v", err)
	}

	// 終了ジョブの定期掃除（保持期間が設定されている場合のみ）
	if cfg.JobRetentionMinutes > 0 {
		retention := time.Duration(cfg.JobRetentionMinutes) * time.Minute
		manager.StartReaper(context.Background(), time.Minute, retention)
	}

	// ルーティングの設定
	setupRoutes(router, uploads, manager)

	// サーバーの起動
	addr := ":" + cfg.Port
	logger.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupLogger は標準出力とログファイルへ同時に書き出すロガーを作成します。
func setupLogger(logDir string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
	}

	name := time.Now().Format("200601021504") + ".log"
	file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.New(io.MultiWriter(os.Stdout, file), "", log.LstdFlags)
	return logger, func() { _ = file.Close() }, nil
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "voice-scribe-api",
		"version": "0.1.0",
	})
}

// setupRoutes はAPIルートの配線を行います。
func setupRoutes(router *gin.Engine, uploads *storage.Uploads, manager *jobs.Manager) {
	router.GET("/health", handleHealth)

	router.POST("/upload", uploadHandler(uploads))
	router.POST("/transcribe", transcribeHandler(uploads, manager))
	router.GET("/progress/:id", progressHandler(manager))
	router.POST("/cancel/:id", cancelHandler(manager))
	router.GET("/download/:id", downloadHandler(manager))
}
