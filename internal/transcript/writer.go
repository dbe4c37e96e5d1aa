// Package transcript は文字起こし結果ファイルへの逐次書き込みを提供します。
package transcript

import (
	"fmt"
	"os"
)

// Writer はセグメント1件につき1行を追記するライターです。
// 1行ごとにディスクへ反映するため、途中でキャンセルや異常終了が起きても
// それまでの行は読める状態で残ります。
type Writer struct {
	file *os.File
}

// NewWriter は出力ファイルを新規作成して Writer を返します。
func NewWriter(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file: %w", err)
	}
	return &Writer{file: file}, nil
}

// Append はセグメントのテキストを改行付きで追記し、即座にフラッシュします。
func (w *Writer) Append(text string) error {
	if _, err := w.file.WriteString(text + "\n"); err != nil {
		return fmt.Errorf("failed to write segment: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to flush segment: %w", err)
	}
	return nil
}

// Close はファイルを閉じます。
func (w *Writer) Close() error {
	return w.file.Close()
}
