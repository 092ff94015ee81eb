package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/example/artifact-api/internal/usecase"
)

// MaxUploadSize is the default limit for uploaded images.
const MaxUploadSize = 5 << 20

// multipartOverhead leaves room for boundaries and text fields around the file.
const multipartOverhead = 1 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png"}

var errNoFile = errors.New("no image file uploaded")

type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

// limitBody caps the request body before multipart parsing starts.
func limitBody(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)
		c.Next()
	}
}

// readImage reads the "image" form file. It returns errNoFile when the field
// is absent so callers can treat the image as optional.
func readImage(c *gin.Context, maxSize int64) (*usecase.Upload, error) {
	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: tooLarge(maxSize)}
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errNoFile
		}
		return nil, &uploadError{status: http.StatusBadRequest, message: "invalid multipart form"}
	}
	if file.Size > maxSize {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: tooLarge(maxSize)}
	}

	src, err := file.Open()
	if err != nil {
		return nil, &uploadError{status: http.StatusBadRequest, message: "unable to open image"}
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, &uploadError{status: http.StatusInternalServerError, message: "failed to read image"}
	}
	if int64(len(data)) > maxSize {
		return nil, &uploadError{status: http.StatusRequestEntityTooLarge, message: tooLarge(maxSize)}
	}

	detected := mimetype.Detect(data)
	if !mimetype.EqualsAny(detected.String(), allowedImageTypes...) {
		return nil, &uploadError{status: http.StatusUnsupportedMediaType, message: "only .jpg, .jpeg, and .png files are allowed"}
	}

	return &usecase.Upload{
		Filename:    file.Filename,
		ContentType: detected.String(),
		Data:        data,
	}, nil
}

func tooLarge(maxSize int64) string {
	return fmt.Sprintf("image exceeds the %d byte limit", maxSize)
}
