package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/petermazzocco/go-order-wizard/internal/imaging"
)

var errNotAnImage = errors.New("only image files can be attached")

// AddImagesHandler appends the multipart "images" files to the wizard's
// selection. Files are held in memory until submit.
func (h *Handler) AddImagesHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeMessage(w, http.StatusBadRequest, "Could not read uploaded files")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		writeMessage(w, http.StatusBadRequest, "No images attached")
		return
	}

	files := make([]imaging.File, 0, len(headers))
	for _, header := range headers {
		f, err := readImage(header)
		if err != nil {
			if errors.Is(err, errNotAnImage) {
				writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
					"error": err.Error(),
					"file":  header.Filename,
				})
				return
			}
			h.log.Warn("reading uploaded file", zap.String("file", header.Filename), zap.Error(err))
			writeMessage(w, http.StatusBadRequest, "Could not read "+header.Filename)
			return
		}
		files = append(files, f)
	}

	wiz := h.currentWizard(r, u)
	if err := wiz.AddImages(files...); err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}

func readImage(header *multipart.FileHeader) (imaging.File, error) {
	file, err := header.Open()
	if err != nil {
		return imaging.File{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return imaging.File{}, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return imaging.File{}, fmt.Errorf("%w: %s", errNotAnImage, header.Filename)
	}

	return imaging.File{Name: header.Filename, ContentType: contentType, Data: data}, nil
}

func (h *Handler) RemoveImageHandler(w http.ResponseWriter, r *http.Request) {
	u, ok := requireUser(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid image index")
		return
	}

	wiz := h.currentWizard(r, u)
	if err := wiz.RemoveImage(index); err != nil {
		h.writeWizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wiz.Snapshot())
}
