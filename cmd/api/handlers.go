package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/voice-scribe/internal/jobs"
	"github.com/yourusername/voice-scribe/internal/storage"
)

// uploadHandler は POST /upload のハンドラーを返します。
func uploadHandler(uploads *storage.Uploads) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "音声ファイルを選択してください。",
			})
			return
		}

		filename, err := uploads.Save(header)
		if err != nil {
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"filename": filename})
	}
}

// transcribeRequest は POST /transcribe のリクエストボディです。
type transcribeRequest struct {
	Filename string `json:"filename"`
}

// transcribeHandler は POST /transcribe のハンドラーを返します。
// 受付後すぐにジョブIDを返し、文字起こしはバックグラウンドで進みます。
func transcribeHandler(uploads *storage.Uploads, manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transcribeRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Filename) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "filename を指定してください。",
			})
			return
		}

		sourcePath, err := uploads.Resolve(req.Filename)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "指定されたファイルは存在しません。",
			})
			return
		}

		jobID, err := manager.Submit(sourcePath)
		if err != nil {
			if errors.Is(err, jobs.ErrDuplicateJob) {
				c.JSON(http.StatusConflict, gin.H{
					"code":    "DUPLICATE_JOB",
					"message": "同じジョブが既に受け付けられています。",
				})
				return
			}
			respondWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"jobId": jobID})
	}
}

// progressHandler は GET /progress/:id のハンドラーを返します。
func progressHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		job, err := manager.GetJob(jobID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"jobId":     job.ID,
			"status":    job.Status,
			"progress":  job.Progress,
			"message":   job.Message,
			"updatedAt": job.UpdatedAt,
		})
	}
}

// cancelHandler は POST /cancel/:id のハンドラーを返します。
// 処理中でないジョブへの要求は成功とは区別して報告します。
func cancelHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		if err := manager.Cancel(jobID); err != nil {
			switch {
			case errors.Is(err, jobs.ErrJobNotFound):
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_NOT_FOUND",
					"message": "指定されたジョブは存在しません。",
				})
			case errors.Is(err, jobs.ErrJobNotProcessing):
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "JOB_NOT_PROCESSING",
					"message": "処理中のジョブではありません。",
				})
			default:
				respondWithError(c, err)
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{"result": "cancelling"})
	}
}

// downloadHandler は GET /download/:id のハンドラーを返します。
func downloadHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")

		job, file, err := manager.OpenResult(jobID)
		if err != nil {
			switch {
			case errors.Is(err, jobs.ErrJobNotFound):
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "JOB_NOT_FOUND",
					"message": "指定されたジョブは存在しません。",
				})
			case errors.Is(err, jobs.ErrResultNotReady):
				c.JSON(http.StatusNotFound, gin.H{
					"code":    "RESULT_NOT_READY",
					"message": "ジョブの成果物はまだ取得できません。",
				})
			default:
				respondWithError(c, err)
			}
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "ジョブの成果物取得に失敗しました。",
			})
			return
		}

		outputName := job.ID + ".txt"
		encodedName := url.PathEscape(outputName)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", outputName, encodedName))
		c.Header("Cache-Control", "no-store")
		c.Header("X-Job-Id", job.ID)
		c.DataFromReader(http.StatusOK, info.Size(), "text/plain; charset=utf-8", file, nil)
	}
}

// respondWithError は検証エラーとそれ以外を振り分けてJSONで返します。
func respondWithError(c *gin.Context, err error) {
	var storageErr *storage.Error
	if errors.As(err, &storageErr) {
		status := http.StatusBadRequest
		if storageErr.Code == "LIMIT_EXCEEDED" {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{
			"code":    storageErr.Code,
			"message": storageErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "INTERNAL_ERROR",
		"message": "サーバー内部でエラーが発生しました。",
	})
}
