package jobs

import "fmt"

// progressPercent は最新セグメントの終了秒と総再生時間から進捗率を計算します。
// リサンプリングの誤差でセグメントの終了時刻が総時間を超えることがあるため
// 100 に切り詰めます。総時間が不明（0以下）の場合は常に 0 を返します。
func progressPercent(segmentEnd, totalDuration float64) int {
	if totalDuration <= 0 {
		return 0
	}
	percent := int(segmentEnd / totalDuration * 100)
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return percent
}

// progressMessage は進捗率を埋め込んだ表示用メッセージを生成します。
func progressMessage(percent int) string {
	return fmt.Sprintf("文字起こし中...（%d%%）", percent)
}
