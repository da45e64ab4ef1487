package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxArtifactBytes caps a single downloaded artifact.
const maxArtifactBytes = 512 << 20

// Errors returned by Mirror.
var (
	ErrDownloadFailed   = errors.New("storage: artifact download failed")
	ErrArtifactTooLarge = errors.New("storage: artifact too large")
)

// Mirror copies remote artifacts into a Storage.
type Mirror struct {
	store      Storage
	httpClient *http.Client
}

// NewMirror creates a Mirror writing to store.
// A nil httpClient gets a client with a 5 minute timeout.
func NewMirror(store Storage, httpClient *http.Client) *Mirror {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Mirror{store: store, httpClient: httpClient}
}

// Archive downloads sourceURL and saves it under kind/<uuid><ext>.
// It returns the stored object's URL.
func (m *Mirror) Archive(ctx context.Context, sourceURL, kind string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	// S3 needs a seekable body to sign the upload.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if len(data) > maxArtifactBytes {
		return "", ErrArtifactTooLarge
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	key := kind + "/" + uuid.NewString() + extension(sourceURL, contentType, kind)
	return m.store.Save(ctx, key, contentType, bytes.NewReader(data))
}

// extension picks a file extension from the source URL, then the content
// type, then the artifact kind.
func extension(sourceURL, contentType, kind string) string {
	if u, err := url.Parse(sourceURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 6 {
			return strings.ToLower(ext)
		}
	}

	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mediaType {
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		case "image/webp":
			return ".webp"
		case "video/mp4":
			return ".mp4"
		}
		if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}

	if kind == "video" {
		return ".mp4"
	}
	return ".png"
}
