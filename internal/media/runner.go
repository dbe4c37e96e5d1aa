// Package media は ffmpeg / ffprobe による音声の正規化と長さ取得を提供します。
package media

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// commandResult は外部コマンド実行の結果です。
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner はテスト差し替えのための外部コマンド実行の抽象化です。
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

// execRunner は os/exec でコマンドを実行します。
type execRunner struct{}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}
