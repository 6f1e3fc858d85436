// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborline/filinglens/services/llm"
	"github.com/harborline/filinglens/services/research/docparse"
)

type stubModel struct {
	prompts []string
	fill    func(prompt string, out any) error
}

func (m *stubModel) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	return "", nil
}

func (m *stubModel) GenerateStructured(ctx context.Context, prompt string, out any, params llm.GenerationParams) error {
	m.prompts = append(m.prompts, prompt)
	if m.fill == nil {
		return nil
	}
	return m.fill(prompt, out)
}

func (m *stubModel) GenerateFromImage(ctx context.Context, prompt string, image []byte, params llm.GenerationParams) (string, error) {
	return "", nil
}

func (m *stubModel) Provider() string     { return "stub" }
func (m *stubModel) SupportsVision() bool { return false }

type stubPDFParser struct{}

func (stubPDFParser) Parse(ctx context.Context, path string) (*docparse.Document, error) {
	return &docparse.Document{Markdown: "# 決算資料\n増収増益。", Strategy: "text", Pages: 1}, nil
}

// irSite serves a small IR site: robots.txt, a listing page with PDF
// links, and the PDFs themselves.
func irSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/ir/library/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
<h2>IRライブラリ</h2>
<ul>
<li><a href="/ir/library/tanshin_q1.pdf">2026年8月7日 第1四半期決算短信</a></li>
<li><a href="/ir/library/oshirase.pdf">2026年7月1日 業務提携のお知らせ</a></li>
<li><a href="/ir/library/old.pdf">2020年5月1日 決算補足資料</a></li>
<li><a href="/ir/news/">一覧へ</a></li>
</ul>
</body></html>`)
	})
	mux.HandleFunc("/ir/library/tanshin_q1.pdf", servePDF)
	mux.HandleFunc("/ir/library/oshirase.pdf", servePDF)
	mux.HandleFunc("/ir/library/old.pdf", servePDF)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func servePDF(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/pdf")
	fmt.Fprint(w, "%PDF-1.4 stub")
}

func fastScraper(srv *httptest.Server) *Scraper {
	return NewScraper(WithScraperHTTPClient(srv.Client()), WithScraperRateLimit(1000, 100))
}

func newTestService(t *testing.T, srv *httptest.Server, model llm.Client) (*Service, string) {
	t.Helper()
	templatesDir := t.TempDir()
	dataDir := t.TempDir()
	svc, err := NewService(model, stubPDFParser{},
		WithTemplatesDir(templatesDir),
		WithDataDir(dataDir),
		WithScraper(fastScraper(srv)),
	)
	require.NoError(t, err)
	return svc, dataDir
}

func saveTestTemplate(t *testing.T, svc *Service, baseURL string) {
	t.Helper()
	tpl := &Template{}
	tpl.Company.SecCode = "72030"
	tpl.Company.Name = "テスト自動車株式会社"
	tpl.IRPage.BaseURL = baseURL + "/ir/"
	tpl.IRPage.Sections = map[Category]Section{
		CategoryEarnings: {URL: baseURL + "/ir/library/", LinkPattern: "/ir/library/"},
	}
	_, err := svc.Templates().Save(tpl, false)
	require.NoError(t, err)
}

func TestScraper_RobotsDisallow(t *testing.T) {
	srv := irSite(t)
	scraper := fastScraper(srv)

	_, err := scraper.FetchPage(context.Background(), srv.URL+"/private/secret.html")
	assert.ErrorIs(t, err, ErrDisallowed)

	_, err = scraper.FetchPage(context.Background(), srv.URL+"/ir/library/")
	assert.NoError(t, err)
}

func TestScraper_DownloadPDF_ReusesExisting(t *testing.T) {
	srv := irSite(t)
	scraper := fastScraper(srv)

	savePath := filepath.Join(t.TempDir(), "a.pdf")
	require.NoError(t, os.WriteFile(savePath, []byte("cached"), 0o644))

	got, err := scraper.DownloadPDF(context.Background(), srv.URL+"/ir/library/tanshin_q1.pdf", "", savePath, false)
	require.NoError(t, err)
	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data), "existing file must be reused")

	got, err = scraper.DownloadPDF(context.Background(), srv.URL+"/ir/library/tanshin_q1.pdf", "", savePath, true)
	require.NoError(t, err)
	data, err = os.ReadFile(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), "%PDF", "force must re-download")
}

func TestService_FetchDocuments_FromTemplate(t *testing.T) {
	srv := irSite(t)
	svc, _ := newTestService(t, srv, &stubModel{})
	saveTestTemplate(t, svc, srv.URL)

	docs, err := svc.FetchDocuments(context.Background(), "72030", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 3, "only PDF links qualify")

	// Newest first, dates pulled from the link titles.
	assert.Equal(t, "2026年8月7日 第1四半期決算短信", docs[0].Title)
	assert.Equal(t, CategoryEarnings, docs[0].Category)
	assert.Equal(t, time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC), docs[0].PublishedDate)

	// Title keywords override the section category.
	assert.Equal(t, CategoryDisclosures, docs[1].Category, "業務提携 belongs to disclosures")
}

func TestService_FetchDocuments_SinceFilter(t *testing.T) {
	srv := irSite(t)
	svc, _ := newTestService(t, srv, &stubModel{})
	saveTestTemplate(t, svc, srv.URL)

	docs, err := svc.FetchDocuments(context.Background(), "72030", FetchOptions{
		Since: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	for _, doc := range docs {
		assert.NotContains(t, doc.Title, "2020年", "old documents filtered out")
	}
}

func TestService_FetchDocuments_DownloadAndSummarize(t *testing.T) {
	srv := irSite(t)
	model := &stubModel{fill: func(prompt string, out any) error {
		if summary, ok := out.(*Summary); ok {
			summary.Overview = "増収増益の決算。"
			summary.ImpactPoints = []ImpactPoint{{Label: "業績", Content: "増収増益"}}
		}
		return nil
	}}
	svc, dataDir := newTestService(t, srv, model)
	saveTestTemplate(t, svc, srv.URL)

	docs, err := svc.FetchDocuments(context.Background(), "72030", FetchOptions{
		MaxDocuments: 1,
		Summarize:    true,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)

	require.NotEmpty(t, docs[0].FilePath)
	assert.Contains(t, docs[0].FilePath, dataDir)
	if _, err := os.Stat(docs[0].FilePath); err != nil {
		t.Fatalf("downloaded PDF missing: %v", err)
	}
	require.NotNil(t, docs[0].Summary)
	assert.Equal(t, "増収増益の決算。", docs[0].Summary.Overview)
}

func TestService_FetchDocuments_NoTemplate(t *testing.T) {
	srv := irSite(t)
	svc, _ := newTestService(t, srv, &stubModel{})

	_, err := svc.FetchDocuments(context.Background(), "99990", FetchOptions{})
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestService_ExplorePage_DropsInventedLinks(t *testing.T) {
	srv := irSite(t)
	model := &stubModel{fill: func(prompt string, out any) error {
		links, ok := out.(*extractedLinks)
		if !ok {
			return nil
		}
		links.Links = []extractedLink{
			{Title: "第1四半期決算短信", URL: srv.URL + "/ir/library/tanshin_q1.pdf", Category: "earnings", PublishedDate: "2026-08-07"},
			{Title: "存在しない資料", URL: srv.URL + "/ir/library/ghost.pdf", Category: "news"},
		}
		return nil
	}}
	svc, _ := newTestService(t, srv, model)

	docs, err := svc.ExplorePage(context.Background(), "", srv.URL+"/ir/library/", FetchOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 1, "links absent from the page are dropped")
	assert.Equal(t, srv.URL+"/ir/library/tanshin_q1.pdf", docs[0].URL)
	assert.Equal(t, time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC), docs[0].PublishedDate)
}

func TestService_GenerateTemplate(t *testing.T) {
	srv := irSite(t)
	model := &stubModel{fill: func(prompt string, out any) error {
		analysis, ok := out.(*pageAnalysis)
		if !ok {
			return nil
		}
		analysis.Sections = []sectionProposal{
			{Category: "earnings", URL: srv.URL + "/ir/library/", LinkPattern: "/ir/library/", Confidence: 0.9},
			{Category: "earnings", URL: srv.URL + "/wrong/", Confidence: 0.2},
		}
		return nil
	}}
	svc, _ := newTestService(t, srv, model)

	path, err := svc.GenerateTemplate(context.Background(), "65010", "テスト電機株式会社", srv.URL+"/ir/library/", false)
	require.NoError(t, err)

	loaded, err := svc.Templates().Load("65010")
	require.NoError(t, err)
	assert.Contains(t, path, "65010_")
	section, ok := loaded.IRPage.Sections[CategoryEarnings]
	require.True(t, ok)
	assert.Equal(t, srv.URL+"/ir/library/", section.URL, "the high-confidence proposal wins")
}
