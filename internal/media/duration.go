package media

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Resolver は音声ファイルの総再生時間（秒）を取得します。
// WAV はヘッダから直接計算し、それ以外は ffprobe に問い合わせます。
type Resolver struct {
	ffprobePath string
	runner      commandRunner
}

// NewResolver は Resolver を作成します。
func NewResolver(ffprobePath string) *Resolver {
	return &Resolver{
		ffprobePath: ffprobePath,
		runner:      &execRunner{},
	}
}

// Resolve は総再生時間を返します。取得できない場合はエラーを返しますが、
// 呼び出し側は 0 秒として扱って処理を継続できます（進捗表示にのみ使われるため）。
func (r *Resolver) Resolve(ctx context.Context, audioPath string) (float64, error) {
	if strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		if dur, err := wavDuration(audioPath); err == nil {
			return dur, nil
		}
		// ヘッダが読めない WAV は ffprobe にフォールバックする
	}
	return r.probeDuration(ctx, audioPath)
}

func (r *Resolver) probeDuration(ctx context.Context, audioPath string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	}
	result, err := r.runner.Run(ctx, r.ffprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed (exit=%d): %w", result.ExitCode, err)
	}

	raw := strings.TrimSpace(result.Stdout)
	dur, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe returned unexpected duration %q: %w", raw, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("ffprobe returned negative duration %f", dur)
	}
	return dur, nil
}

// wavDuration は RIFF ヘッダの fmt チャンクと data チャンクから再生時間を計算します。
func wavDuration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, fmt.Errorf("failed to read RIFF header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return 0, fmt.Errorf("not a RIFF/WAVE file")
	}

	var byteRate uint32
	chunk := make([]byte, 8)
	for {
		if _, err := io.ReadFull(f, chunk); err != nil {
			return 0, fmt.Errorf("data chunk not found: %w", err)
		}
		chunkID := string(chunk[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunk[4:8])

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return 0, fmt.Errorf("fmt chunk too short: %d", chunkSize)
			}
			body := make([]byte, chunkSize)
			if _, err := io.ReadFull(f, body); err != nil {
				return 0, fmt.Errorf("failed to read fmt chunk: %w", err)
			}
			byteRate = binary.LittleEndian.Uint32(body[8:12])
		case "data":
			if byteRate == 0 {
				return 0, fmt.Errorf("data chunk appeared before fmt chunk")
			}
			return float64(chunkSize) / float64(byteRate), nil
		default:
			// 不要なチャンク（LIST等）は読み飛ばす
			if _, err := f.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return 0, err
			}
		}
	}
}
