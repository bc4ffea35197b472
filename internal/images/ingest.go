// Package images uploads product photos to object storage. Uploads run
// concurrently and individual failures never abort the surviving files.
package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrAllUploadsFailed indicates every attached file failed to upload.
var ErrAllUploadsFailed = errors.New("images: all uploads failed")

// PartialFailure reports that some files uploaded and some did not.
type PartialFailure struct {
	Failed []string
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("images: %d upload(s) failed", len(e.Failed))
}

// Upload is one stored file.
type Upload struct {
	URL  string
	Path string
}

// Store abstracts the object storage backend.
type Store interface {
	Put(ctx context.Context, key, contentType string, body multipart.File, size int64) (publicURL string, err error)
}

// Recorder counts upload outcomes. Satisfied by observability.Metrics.
type Recorder interface {
	ImageUpload(outcome string)
}

// Ingestor validates, names and uploads attached files.
type Ingestor struct {
	store    Store
	logger   *slog.Logger
	recorder Recorder
}

// NewIngestor constructs an Ingestor. recorder may be nil.
func NewIngestor(store Store, logger *slog.Logger, recorder Recorder) *Ingestor {
	return &Ingestor{store: store, logger: logger, recorder: recorder}
}

// Ingest uploads the given files under the tenant's prefix. Junk entries
// (zero bytes, no name, the literal "undefined" browsers send for empty
// file inputs) are skipped before any network call. Successful uploads are
// always returned; the error is ErrAllUploadsFailed when nothing survived
// or a *PartialFailure when only some files did.
func (ing *Ingestor) Ingest(ctx context.Context, tenantSlug string, files []*multipart.FileHeader) ([]Upload, error) {
	attempted := make([]*multipart.FileHeader, 0, len(files))
	for _, fh := range files {
		if fh == nil || fh.Size == 0 || fh.Filename == "" || fh.Filename == "undefined" {
			continue
		}
		attempted = append(attempted, fh)
	}
	if len(attempted) == 0 {
		return nil, nil
	}

	var (
		mu       sync.Mutex
		uploads  = make([]Upload, 0, len(attempted))
		failures []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, fh := range attempted {
		fh := fh
		g.Go(func() error {
			upload, err := ing.uploadOne(gctx, tenantSlug, fh)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ing.logger.Warn("image upload failed",
					slog.String("tenant", tenantSlug),
					slog.String("file", fh.Filename),
					slog.String("error", err.Error()))
				ing.record("failed")
				failures = append(failures, fh.Filename)
				return nil
			}
			ing.record("ok")
			uploads = append(uploads, upload)
			return nil
		})
	}
	_ = g.Wait()

	switch {
	case len(uploads) == 0:
		return nil, ErrAllUploadsFailed
	case len(failures) > 0:
		return uploads, &PartialFailure{Failed: failures}
	default:
		return uploads, nil
	}
}

func (ing *Ingestor) uploadOne(ctx context.Context, tenantSlug string, fh *multipart.FileHeader) (Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	key := objectKey(tenantSlug, fh.Filename)
	contentType := fh.Header.Get("Content-Type")
	url, err := ing.store.Put(ctx, key, contentType, f, fh.Size)
	if err != nil {
		return Upload{}, err
	}
	return Upload{URL: url, Path: key}, nil
}

func (ing *Ingestor) record(outcome string) {
	if ing.recorder != nil {
		ing.recorder.ImageUpload(outcome)
	}
}

// objectKey builds "<tenantSlug>/<uuid>-<filename>". The random prefix
// keeps same-named files from colliding within a store.
func objectKey(tenantSlug, filename string) string {
	name := sanitizeFilename(filename)
	return tenantSlug + "/" + uuid.NewString() + "-" + name
}

func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
