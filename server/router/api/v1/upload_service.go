package v1

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/plugin/fileparse"
	"github.com/J12003LPZ/Chatbot/server/internal/observability"
	"github.com/J12003LPZ/Chatbot/store"
)

type uploadResponse struct {
	Success   bool   `json:"success"`
	Filename  string `json:"filename"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// ImageData is returned for image uploads so the client can send it
	// with the next chat turn.
	ImageData string `json:"image_data,omitempty"`
	ImageSize int    `json:"image_size,omitempty"`
}

// Upload handles POST /api/upload: validate the file, extract its textual
// excerpt and persist it as a system row in the session.
func (s *APIV1Service) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return respondError(c, http.StatusBadRequest, errKindClient, "no file provided")
	}
	if fileHeader.Filename == "" {
		return respondError(c, http.StatusBadRequest, errKindClient, "no file selected")
	}
	sessionID := c.FormValue("session_id")

	// Validation happens before anything reaches the persistence layer.
	if _, err := s.Parser.Validate(fileHeader.Filename, fileHeader.Size); err != nil {
		return respondError(c, http.StatusBadRequest, errKindClient, uploadErrorMessage(err))
	}

	file, err := fileHeader.Open()
	if err != nil {
		return respondError(c, http.StatusBadRequest, errKindClient, "failed to read file")
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.Profile.MaxUploadBytes+1))
	if err != nil {
		return respondError(c, http.StatusBadRequest, errKindClient, "failed to read file")
	}
	if int64(len(data)) > s.Profile.MaxUploadBytes {
		return respondError(c, http.StatusBadRequest, errKindClient, "file too large")
	}

	ctx := c.Request().Context()
	reqCtx := observability.NewRequestContext(s.logger, sessionID)

	// Extraction is CPU and memory heavy for large files; bound it.
	if err := s.uploadSemaphore.Acquire(ctx, 1); err != nil {
		return respondError(c, http.StatusServiceUnavailable, errKindClient, "server busy")
	}
	result, err := s.Parser.Parse(ctx, fileHeader.Filename, data)
	s.uploadSemaphore.Release(1)
	if err != nil {
		reqCtx.Error("failed to process upload", err)
		if errors.Is(err, fileparse.ErrUnsupportedType) || errors.Is(err, fileparse.ErrTooLarge) {
			return respondError(c, http.StatusBadRequest, errKindClient, uploadErrorMessage(err))
		}
		return respondError(c, http.StatusInternalServerError, errKindClient, "failed to process file")
	}

	session, err := s.Store.CreateOrGetSession(ctx, sessionID)
	if err != nil {
		reqCtx.Error("failed to resolve session", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to resolve session")
	}
	reqCtx.SessionID = session.ID

	// Only the excerpt is stored, in the attachment field of a system row;
	// the raw bytes are dropped here.
	if _, err := s.Store.AppendMessage(ctx, session.ID, store.MessageRoleSystem, "", result.Excerpt); err != nil {
		reqCtx.Error("failed to persist upload excerpt", err)
		return respondError(c, http.StatusInternalServerError, errKindPersistence, "failed to save file content")
	}

	reqCtx.Info("upload processed")

	resp := uploadResponse{
		Success:   true,
		Filename:  fileHeader.Filename,
		SessionID: session.ID,
		Message:   "File \"" + fileHeader.Filename + "\" uploaded and processed successfully",
	}
	if result.Kind == fileparse.FileKindImage {
		resp.Message = "Image \"" + fileHeader.Filename + "\" uploaded and processed successfully"
		resp.ImageData = result.ImageData
		resp.ImageSize = result.ImageSize
	}
	return c.JSON(http.StatusOK, resp)
}

func uploadErrorMessage(err error) string {
	switch {
	case errors.Is(err, fileparse.ErrTooLarge):
		return "file too large"
	case errors.Is(err, fileparse.ErrUnsupportedType):
		return "file type not allowed"
	}
	return "invalid file"
}
