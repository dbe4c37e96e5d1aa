package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Transcoder は入力音声をモノラル 16kHz PCM WAV に正規化します。
type Transcoder struct {
	ffmpegPath string
	runner     commandRunner
}

// NewTranscoder は Transcoder を作成します。
func NewTranscoder(ffmpegPath string) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
	}
}

// Normalize は音声を認識エンジン向けの WAV に変換し、変換後パスと
// 中間ファイルを片付けるクリーンアップ関数を返します。
// 入力が既に WAV の場合は変換せずそのまま返します。
func (t *Transcoder) Normalize(ctx context.Context, sourcePath string) (string, func(), error) {
	if strings.EqualFold(filepath.Ext(sourcePath), ".wav") {
		return sourcePath, func() {}, nil
	}

	tempDir, err := os.MkdirTemp("", "voice-scribe-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temporary workspace: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(tempDir) }

	outPath := filepath.Join(tempDir, uuid.NewString()+".wav")
	args := buildFFmpegArgs(sourcePath, outPath)

	result, err := t.runner.Run(ctx, t.ffmpegPath, args...)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("ffmpeg audio conversion failed (exit=%d): %w", result.ExitCode, err)
	}
	if _, err := os.Stat(outPath); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("ffmpeg completed but output file is missing: %w", err)
	}

	return outPath, cleanup, nil
}

// buildFFmpegArgs はモノラル 16kHz PCM WAV 出力用の引数を組み立てます。
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}
