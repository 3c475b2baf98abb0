package files

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/redact"
)

// Options limits downloads.
type Options struct {
	MaxFileSize     int64
	MaxFiles        int
	DownloadTimeout time.Duration
	AllowedHosts    []string
}

// OptionsFromConfig maps the files configuration section to Options.
func OptionsFromConfig(cfg config.FilesConfig) Options {
	return Options{
		MaxFileSize:     cfg.MaxFileSize,
		MaxFiles:        cfg.MaxFiles,
		DownloadTimeout: cfg.DownloadTimeout,
		AllowedHosts:    cfg.AllowedHosts,
	}
}

// Document is a downloaded file.
type Document struct {
	URL       string
	MediaType string
	Data      []byte
}

// Resolver downloads referenced files and extracts their text.
type Resolver struct {
	client *http.Client
	opts   Options
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil client uses http.DefaultClient.
func NewResolver(client *http.Client, opts Options, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if len(opts.AllowedHosts) == 0 {
		opts.AllowedHosts = DefaultAllowedHosts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client: client,
		opts:   opts,
		logger: logger.With("component", "file_resolver"),
	}
}

// ExtractReferences returns the valid references in content. Invalid ones
// are logged and skipped.
func (r *Resolver) ExtractReferences(content string) []string {
	var refs []string
	for _, ref := range ExtractReferences(content) {
		if err := ValidateReference(ref, r.opts.AllowedHosts); err != nil {
			r.logger.Warn("skipping invalid file reference",
				"url", redact.URL(ref),
				"error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// ValidateReferences checks explicit references at ingestion: every one must
// be allowed and there may be at most MaxFiles of them.
func (r *Resolver) ValidateReferences(refs []string) error {
	if r.opts.MaxFiles > 0 && len(refs) > r.opts.MaxFiles {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyFiles, len(refs), r.opts.MaxFiles)
	}
	for _, ref := range refs {
		if err := ValidateReference(ref, r.opts.AllowedHosts); err != nil {
			return err
		}
	}
	return nil
}

// Fetch downloads a single file within the configured timeout and size cap.
func (r *Resolver) Fetch(ctx context.Context, ref string) (Document, error) {
	if err := ValidateReference(ref, r.opts.AllowedHosts); err != nil {
		return Document{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: build request: %v", ErrInvalidReference, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrFetch, redact.Error(err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Document{}, fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}
	if resp.ContentLength > r.opts.MaxFileSize {
		return Document{}, fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, resp.ContentLength, r.opts.MaxFileSize)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.opts.MaxFileSize+1))
	if err != nil {
		return Document{}, fmt.Errorf("%w: read body: %s", ErrFetch, redact.Error(err))
	}
	if int64(len(data)) > r.opts.MaxFileSize {
		return Document{}, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, r.opts.MaxFileSize)
	}

	doc := Document{
		URL:       ref,
		MediaType: DetectMediaType(ref, resp.Header.Get("Content-Type")),
		Data:      data,
	}
	r.logger.Debug("downloaded file",
		"url", redact.URL(ref),
		"bytes", len(data),
		"media_type", doc.MediaType)
	return doc, nil
}

// ResolveText downloads every file of a file-bearing request concurrently
// and returns the request's accompanying text followed by each file's text
// under a header, in reference order. Any failure fails the whole request.
func (r *Resolver) ResolveText(ctx context.Context, req domain.AnalysisRequest) (string, error) {
	if !req.IsFile() {
		return req.Content, nil
	}
	if len(req.FileRefs) == 0 {
		return "", fmt.Errorf("%w: no file references", ErrInvalidReference)
	}
	if len(req.FileRefs) > r.opts.MaxFiles {
		return "", fmt.Errorf("%w: %d (max %d)", ErrTooManyFiles, len(req.FileRefs), r.opts.MaxFiles)
	}

	texts := make([]string, len(req.FileRefs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range req.FileRefs {
		g.Go(func() error {
			doc, err := r.Fetch(gctx, ref)
			if err != nil {
				return fmt.Errorf("file %d: %w", i+1, err)
			}
			text, err := ExtractText(doc.Data, doc.MediaType)
			if err != nil {
				return fmt.Errorf("file %d: %w", i+1, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var parts []string
	if accompanying := strings.TrimSpace(StripReferences(req.Content)); accompanying != "" {
		parts = append(parts, accompanying)
	}
	for i, text := range texts {
		parts = append(parts, fmt.Sprintf("--- File %d: %s ---\n%s", i+1, fileName(req.FileRefs[i]), text))
	}

	r.logger.Info("resolved file request",
		"record_id", req.RecordID,
		"files", len(req.FileRefs))
	return strings.Join(parts, "\n\n"), nil
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func fileName(raw string) string {
	name := path.Base(urlPath(raw))
	if name == "." || name == "/" {
		return "file"
	}
	return name
}
