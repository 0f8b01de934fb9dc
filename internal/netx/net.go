package netx

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// MultipartFile encodes content as a single-file multipart/form-data body
// under field. The returned content type carries the boundary and must be
// sent unchanged.
func MultipartFile(field, filename string, content []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return body, w.FormDataContentType(), nil
}
