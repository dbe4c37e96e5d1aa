package storage

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
)

// wavBytes は mimetype が audio として検出する最小のWAVヘッダです。
func wavBytes() []byte {
	return append([]byte("RIFF\x24\x00\x00\x00WAVEfmt "), make([]byte, 32)...)
}

func makeFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("failed to parse form: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })

	files := form.File["file"]
	if len(files) == 0 {
		t.Fatal("no file in parsed form")
	}
	return files[0]
}

func newUploads(t *testing.T, maxSize int64) *Uploads {
	t.Helper()
	u, err := NewUploads(t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("NewUploads returned error: %v", err)
	}
	return u
}

func TestSaveWAV(t *testing.T) {
	u := newUploads(t, 0)
	header := makeFileHeader(t, "meeting.wav", wavBytes())

	filename, err := u.Save(header)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if filename != "meeting.wav" {
		t.Fatalf("unexpected stored name: %s", filename)
	}

	path, err := u.Resolve(filename)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read stored file: %v", err)
	}
	if !bytes.Equal(data, wavBytes()) {
		t.Fatal("stored content does not match upload")
	}
}

func TestSaveSanitizesFilename(t *testing.T) {
	u := newUploads(t, 0)
	header := makeFileHeader(t, "../../evil.wav", wavBytes())

	filename, err := u.Save(header)
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if filename != "evil.wav" {
		t.Fatalf("unexpected stored name: %s", filename)
	}
}

func TestSaveRejectsUnsupportedExtension(t *testing.T) {
	u := newUploads(t, 0)
	header := makeFileHeader(t, "notes.txt", []byte("hello"))

	_, err := u.Save(header)
	var storageErr *Error
	if !errors.As(err, &storageErr) || storageErr.Code != "UNSUPPORTED_TYPE" {
		t.Fatalf("expected UNSUPPORTED_TYPE, got %v", err)
	}
}

// 拡張子が正しくても中身が音声でなければ拒否する。
func TestSaveRejectsNonAudioContent(t *testing.T) {
	u := newUploads(t, 0)
	header := makeFileHeader(t, "fake.wav", []byte("this is just plain text, not audio"))

	_, err := u.Save(header)
	var storageErr *Error
	if !errors.As(err, &storageErr) || storageErr.Code != "UNSUPPORTED_TYPE" {
		t.Fatalf("expected UNSUPPORTED_TYPE, got %v", err)
	}
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	u := newUploads(t, 10)
	header := makeFileHeader(t, "big.wav", wavBytes())

	_, err := u.Save(header)
	var storageErr *Error
	if !errors.As(err, &storageErr) || storageErr.Code != "LIMIT_EXCEEDED" {
		t.Fatalf("expected LIMIT_EXCEEDED, got %v", err)
	}
}

func TestResolveMissingFile(t *testing.T) {
	u := newUploads(t, 0)

	if _, err := u.Resolve("nothing.wav"); !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestResolveRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "secret.wav")
	if err := os.WriteFile(outside, wavBytes(), 0o640); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	u, err := NewUploads(filepath.Join(dir, "uploads"), 0)
	if err != nil {
		t.Fatalf("NewUploads returned error: %v", err)
	}

	for _, name := range []string{"../secret.wav", "sub/secret.wav", ""} {
		if _, err := u.Resolve(name); !errors.Is(err, ErrFileNotFound) {
			t.Fatalf("Resolve(%q) should fail, got %v", name, err)
		}
	}
}
