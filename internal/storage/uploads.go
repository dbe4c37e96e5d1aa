// Package storage はアップロード音声ファイルの保存と参照を提供します。
package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrFileNotFound は指定されたファイルが存在しない場合に返されます。
var ErrFileNotFound = errors.New("file not found")

// allowedExtensions は受け付ける音声形式の拡張子です。
var allowedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".ogg":  true,
}

// Error はアップロード検証エラーを表します。
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Uploads はアップロードディレクトリへのファイル保存と解決を担います。
type Uploads struct {
	dir         string
	maxFileSize int64
}

// NewUploads は保存先ディレクトリを作成して Uploads を返します。
func NewUploads(dir string, maxFileSize int64) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Uploads{
		dir:         dir,
		maxFileSize: maxFileSize,
	}, nil
}

// Save はアップロードされた音声を検証して保存し、保存名を返します。
// 拡張子と内容（MIME型）の両方を確認します。
func (u *Uploads) Save(header *multipart.FileHeader) (string, error) {
	if header == nil || header.Filename == "" {
		return "", &Error{Code: "INVALID_INPUT", Message: "音声ファイルを選択してください。"}
	}
	if u.maxFileSize > 0 && header.Size > u.maxFileSize {
		return "", &Error{Code: "LIMIT_EXCEEDED", Message: "ファイルサイズが上限を超えています。"}
	}

	filename := sanitizeFilename(header.Filename)
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", &Error{Code: "UNSUPPORTED_TYPE", Message: "対応していないファイル形式です。"}
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		return "", fmt.Errorf("failed to inspect uploaded file: %w", err)
	}
	if !isAudioMIME(mtype) {
		return "", &Error{Code: "UNSUPPORTED_TYPE", Message: "音声ファイルではありません。"}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to rewind uploaded file: %w", err)
	}

	dstPath := filepath.Join(u.dir, filename)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create stored file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		_ = os.Remove(dstPath)
		return "", fmt.Errorf("failed to store uploaded file: %w", err)
	}

	return filename, nil
}

// Resolve は保存済みファイル名から絶対パスを返します。
// ディレクトリ外への参照は存在しないものとして扱います。
func (u *Uploads) Resolve(filename string) (string, error) {
	clean := sanitizeFilename(filename)
	if clean == "" || clean != filename {
		return "", ErrFileNotFound
	}

	path := filepath.Join(u.dir, clean)
	if _, err := os.Stat(path); err != nil {
		return "", ErrFileNotFound
	}
	return path, nil
}

// sanitizeFilename はパス区切りを除去した安全なファイル名を返します。
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// isAudioMIME は検出されたMIME型が音声系かどうかを判定します。
// ogg は application/ogg、m4a は video/mp4 として検出されるため個別に許可します。
func isAudioMIME(mtype *mimetype.MIME) bool {
	if strings.HasPrefix(mtype.String(), "audio/") {
		return true
	}
	return mtype.Is("application/ogg") || mtype.Is("video/mp4")
}
