package whisper

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// segmentLine は whisper.cpp が標準出力へ逐次書き出すセグメント行にマッチします。
// 例: [00:01:23.450 --> 00:01:27.800]   こんにちは
var segmentLine = regexp.MustCompile(
	`^\[(\d{2}):(\d{2}):(\d{2})\.(\d{3}) --> (\d{2}):(\d{2}):(\d{2})\.(\d{3})\]\s*(.*)$`,
)

// CLIEngine は whisper.cpp のコマンドラインを起動し、
// 標準出力のセグメント行を逐次読み取るエンジン実装です。
type CLIEngine struct {
	binPath   string
	modelPath string
}

// NewCLIEngine は CLIEngine を作成します。
func NewCLIEngine(binPath, modelPath string) *CLIEngine {
	return &CLIEngine{
		binPath:   binPath,
		modelPath: modelPath,
	}
}

// Transcribe は認識プロセスを起動し、セグメントストリームを返します。
// プロセスはストリームの読み切りまたは Close まで動き続けます。
func (e *CLIEngine) Transcribe(ctx context.Context, audioPath, language string) (SegmentStream, error) {
	args := buildArgs(e.modelPath, audioPath, language)
	cmd := exec.CommandContext(ctx, e.binPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", e.binPath, err)
	}

	return &cliStream{
		cmd:     cmd,
		scanner: bufio.NewScanner(stdout),
		stderr:  &stderr,
	}, nil
}

// buildArgs は whisper.cpp のコマンドライン引数を組み立てます。
func buildArgs(modelPath, audioPath, language string) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
	}
	if lang := normalizeLanguage(language); lang != "" {
		args = append(args, "-l", lang)
	}
	return args
}

// normalizeLanguage は "auto" と空文字を言語指定なしに読み替えます。
func normalizeLanguage(raw string) string {
	lang := strings.TrimSpace(raw)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return lang
}

// cliStream は起動済みプロセスの標準出力を読み進める SegmentStream 実装です。
type cliStream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	done    bool
}

// Next は次のセグメント行を返します。出力が尽きた場合はプロセスの終了を待ち、
// 正常終了なら io.EOF、異常終了ならエンジン障害として報告します。
func (s *cliStream) Next() (Segment, error) {
	if s.done {
		return Segment{}, io.EOF
	}

	for s.scanner.Scan() {
		seg, ok := parseSegmentLine(s.scanner.Text())
		if ok {
			return seg, nil
		}
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		_ = s.cmd.Wait()
		return Segment{}, fmt.Errorf("failed to read recognizer output: %w", err)
	}
	if err := s.cmd.Wait(); err != nil {
		return Segment{}, fmt.Errorf("recognizer exited abnormally: %w (%s)", err, firstLine(s.stderr.String()))
	}
	return Segment{}, io.EOF
}

// Close は読み切る前にプロセスを停止します。読み切り後の呼び出しは無害です。
func (s *cliStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}

// parseSegmentLine はセグメント行を解析します。該当しない行は無視されます。
func parseSegmentLine(line string) (Segment, bool) {
	m := segmentLine.FindStringSubmatch(line)
	if m == nil {
		return Segment{}, false
	}
	return Segment{
		Start: timestampSeconds(m[1], m[2], m[3], m[4]),
		End:   timestampSeconds(m[5], m[6], m[7], m[8]),
		Text:  strings.TrimSpace(m[9]),
	}, true
}

func timestampSeconds(hh, mm, ss, ms string) float64 {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	milli, _ := strconv.Atoi(ms)
	return float64(h*3600+m*60+s) + float64(milli)/1000
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
