package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/amrrdev/docflow/internal/middleware"
	"github.com/amrrdev/docflow/internal/service"
)

type FileHandler struct {
	ingestor       *service.Ingestor
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewFileHandler(ingestor *service.Ingestor, maxUploadBytes int64, logger *zap.Logger) *FileHandler {
	return &FileHandler{
		ingestor:       ingestor,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Upload accepts a multipart upload in the "file" field.
func (h *FileHandler) Upload(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(c, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		respondError(c, http.StatusBadRequest, "A file is required in the 'file' form field")
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("failed to open uploaded file", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	res, err := h.ingestor.Ingest(c.Request.Context(), service.IngestRequest{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("upload accepted",
		zap.String("task_id", res.TaskID.String()),
		zap.String("client_id", middleware.GetClientID(c)),
	)

	c.JSON(http.StatusCreated, gin.H{
		"message":  "File upload accepted and is being processed.",
		"taskId":   res.TaskID,
		"fileId":   res.FileID,
		"filename": res.Filename,
		"status":   res.Status,
	})
}
