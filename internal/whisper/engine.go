// Package whisper は whisper.cpp による音声認識エンジンの抽象化を提供します。
package whisper

import "context"

// Segment は認識された発話の1区間を表します。時刻は音声先頭からの秒です。
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// SegmentStream は時刻順のセグメント列を1件ずつ返す読み切りストリームです。
// 巻き戻しや再スキャンはできません。末尾に達すると Next は io.EOF を返します。
type SegmentStream interface {
	Next() (Segment, error)
	Close() error
}

// Engine は正規化済み音声から文字起こしストリームを開きます。
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (SegmentStream, error)
}
