package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/certhub/internal/client/gateway"
)

// Get fetches endpoint through the gateway and pretty-prints the JSON body.
func (a *App) Get(ctx context.Context, endpoint string) error {
	var raw json.RawMessage
	if err := a.gw.Send(ctx, endpoint, &gateway.Request{}, &raw); err != nil {
		a.reportAPI(ctx, "get", err)
		return err
	}
	printlnFn(prettyJSON(raw))
	return nil
}

// Upload sends the file at path to endpoint under field.
func (a *App) Upload(ctx context.Context, endpoint, field, path string) error {
	content, err := a.readFile(path)
	if err != nil {
		printlnFn("Cannot read file:", err.Error())
		return err
	}

	var raw json.RawMessage
	if err := a.gw.UploadFile(ctx, endpoint, field, filepath.Base(path), content, &raw); err != nil {
		a.reportAPI(ctx, "upload", err)
		return err
	}
	printlnFn(fmt.Sprintf("Uploaded %s (%d bytes)", filepath.Base(path), len(content)))
	if len(raw) > 0 {
		printlnFn(prettyJSON(raw))
	}
	return nil
}

func (a *App) reportAPI(ctx context.Context, op string, err error) {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) {
		a.log.Debug(ctx, op+" failed", "status", apiErr.Status, "error", err)
		printlnFn(fmt.Sprintf("Request failed: %d %s", apiErr.Status, apiErr.Message))
		return
	}
	a.report(ctx, op, err)
}

func prettyJSON(raw []byte) string {
	if len(raw) == 0 {
		return "(empty)"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
