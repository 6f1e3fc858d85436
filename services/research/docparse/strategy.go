// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docparse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Strategy extracts markdown-ish text from a PDF. Strategies are tried
// in order by the Parser; Available lets a strategy opt out when its
// external tool or backing model is missing.
type Strategy interface {
	Name() string
	Available() bool
	ExtractMarkdown(ctx context.Context, path string) (string, error)
}

// PDFTextStrategy shells out to poppler's pdftotext. Fast and accurate
// for text-layer PDFs, useless for scanned filings.
type PDFTextStrategy struct{}

func NewPDFTextStrategy() *PDFTextStrategy {
	return &PDFTextStrategy{}
}

func (s *PDFTextStrategy) Name() string {
	return "pdftext"
}

func (s *PDFTextStrategy) Available() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}

func (s *PDFTextStrategy) ExtractMarkdown(ctx context.Context, path string) (string, error) {
	out, err := runCommand(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	// pdftotext separates pages with form feeds.
	pages := strings.Split(out, "\f")
	parts := make([]string, 0, len(pages))
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("## Page %d\n\n%s", i+1, page))
	}
	return strings.Join(parts, "\n\n"), nil
}

// OCRStrategy rasterizes pages with pdftoppm and runs tesseract over
// each image. Slow, but it reads scanned filings the text layer misses.
type OCRStrategy struct {
	dpi      int
	maxPages int
	lang     string
}

type OCROption func(*OCRStrategy)

func WithOCRMaxPages(n int) OCROption {
	return func(o *OCRStrategy) {
		if n > 0 {
			o.maxPages = n
		}
	}
}

func WithOCRLanguages(lang string) OCROption {
	return func(o *OCRStrategy) {
		if lang != "" {
			o.lang = lang
		}
	}
}

func NewOCRStrategy(opts ...OCROption) *OCRStrategy {
	o := &OCRStrategy{dpi: 300, maxPages: 0, lang: "jpn+eng"}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OCRStrategy) Name() string {
	return "ocr"
}

func (o *OCRStrategy) Available() bool {
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return false
	}
	_, err := exec.LookPath("tesseract")
	return err == nil
}

func (o *OCRStrategy) ExtractMarkdown(ctx context.Context, path string) (string, error) {
	images, cleanup, err := renderPageImages(ctx, path, o.dpi, o.maxPages)
	if err != nil {
		return "", err
	}
	defer cleanup()

	parts := make([]string, 0, len(images))
	for i, image := range images {
		text, err := runCommand(ctx, "tesseract", image, "stdout", "-l", o.lang)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i+1, err)
		}
		parts = append(parts, fmt.Sprintf("## Page %d\n\n%s", i+1, strings.TrimSpace(text)))
	}
	return strings.Join(parts, "\n\n"), nil
}

// renderPageImages rasterizes a PDF into per-page PNGs under a temp
// dir. The returned cleanup removes the directory.
func renderPageImages(ctx context.Context, pdfPath string, dpi, maxPages int) ([]string, func(), error) {
	tmpDir, err := os.MkdirTemp("", "filinglens-pages-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating page directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(tmpDir) }

	args := []string{"-png", "-r", strconv.Itoa(dpi)}
	if maxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, filepath.Join(tmpDir, "page"))
	if _, err := runCommand(ctx, "pdftoppm", args...); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("rendering pages: %w", err)
	}

	images, err := filepath.Glob(filepath.Join(tmpDir, "page-*.png"))
	if err != nil || len(images) == 0 {
		cleanup()
		return nil, nil, errors.New("no pages rendered")
	}
	// pdftoppm zero-pads page numbers, so lexicographic order is page order.
	sort.Strings(images)
	return images, cleanup, nil
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, detail)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}
