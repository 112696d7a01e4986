package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campuslife/campus-events-api/pkg/errors"
	"github.com/campuslife/campus-events-api/pkg/response"
	"github.com/campuslife/campus-events-api/pkg/storage"
)

// UploadHandler serves stored assets through signed tokens.
type UploadHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *UploadHandler {
	return &UploadHandler{storage: store, signer: signer}
}

// Download godoc
// @Summary Download stored asset via signed token
// @Tags Uploads
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /uploads/{token} [get]
func (h *UploadHandler) Download(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired link"))
		return
	}

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "asset not found"))
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "asset not found"))
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}
