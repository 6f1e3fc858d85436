// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTitle(t *testing.T) {
	cases := []struct {
		title    string
		fallback Category
		want     Category
	}{
		{"2026年3月期 第1四半期決算短信", CategoryNews, CategoryEarnings},
		{"決算説明会資料", "", CategoryEarnings},
		{"自己株式の取得状況に関するお知らせ", CategoryNews, CategoryDisclosures},
		{"新製品発表のお知らせ", CategoryNews, CategoryNews},
		{"新製品発表のお知らせ", "", CategoryNews},
		{"配当予想の修正について", CategoryEarnings, CategoryDisclosures},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyTitle(tc.title, tc.fallback), tc.title)
	}
}

func TestParseCategory(t *testing.T) {
	got, ok := ParseCategory(" Earnings ")
	require.True(t, ok)
	assert.Equal(t, CategoryEarnings, got)

	got, ok = ParseCategory("")
	require.True(t, ok)
	assert.Equal(t, Category(""), got)

	_, ok = ParseCategory("quarterly")
	assert.False(t, ok)
}

func TestDedupeByURL(t *testing.T) {
	docs := []Document{
		{Title: "a", URL: "https://x.co/a.pdf"},
		{Title: "a again", URL: "https://x.co/a.pdf"},
		{Title: "b", URL: "https://x.co/b.pdf"},
		{Title: "no url"},
	}
	got := dedupeByURL(docs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Title)
	assert.Equal(t, "b", got[1].Title)
}

func TestFilterSince_KeepsUndated(t *testing.T) {
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{Title: "old", URL: "u1", PublishedDate: cutoff.AddDate(0, -3, 0)},
		{Title: "new", URL: "u2", PublishedDate: cutoff.AddDate(0, 1, 0)},
		{Title: "undated", URL: "u3"},
	}
	got := filterSince(docs, cutoff)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, "undated", got[1].Title)
}

func TestSortByDate_NewestFirstUndatedLast(t *testing.T) {
	docs := []Document{
		{Title: "undated", URL: "u0"},
		{Title: "may", URL: "u1", PublishedDate: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{Title: "july", URL: "u2", PublishedDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
	}
	sortByDate(docs)
	assert.Equal(t, "july", docs[0].Title)
	assert.Equal(t, "may", docs[1].Title)
	assert.Equal(t, "undated", docs[2].Title)
}

func TestDateInText(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026年8月7日 決算短信", time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)},
		{"2026/8/7 お知らせ", time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)},
		{"2026.08.07", time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)},
		{"IR情報 2026-08-07", time.Date(2026, 8, 7, 0, 0, 0, 0, time.UTC)},
		{"日付なし", time.Time{}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, dateInText(tc.in), tc.in)
	}
}

const samplePage = `<!DOCTYPE html>
<html><head><title>IR</title><script>var x = 1;</script></head>
<body>
<nav><a href="/">ホーム</a></nav>
<h2>IRライブラリ</h2>
<p>最新の開示資料です。</p>
<ul>
<li><a href="/ir/library/tanshin_q1.pdf">2026年8月7日 第1四半期決算短信</a></li>
<li><a href="/ir/library/setsumei.pdf">決算説明会資料</a></li>
<li><a href="/ir/news/">ニュース一覧</a></li>
</ul>
<footer><a href="/privacy">プライバシー</a></footer>
</body></html>`

func TestFlattenPage(t *testing.T) {
	got := flattenPage(samplePage, "https://example.co.jp/ir/")

	assert.Contains(t, got, "## IRライブラリ")
	assert.Contains(t, got, "[PDF] [2026年8月7日 第1四半期決算短信](https://example.co.jp/ir/library/tanshin_q1.pdf)")
	assert.Contains(t, got, "[ニュース一覧](https://example.co.jp/ir/news/)")
	assert.NotContains(t, got, "var x", "script content must not leak")
	assert.NotContains(t, got, "プライバシー", "footer chrome must not leak")
}

func TestPageLinks_ResolvesRelative(t *testing.T) {
	links := pageLinks(samplePage, "https://example.co.jp/ir/")

	var urls []string
	for _, l := range links {
		urls = append(urls, l.URL)
	}
	assert.Contains(t, urls, "https://example.co.jp/ir/library/tanshin_q1.pdf")
	assert.Contains(t, urls, "https://example.co.jp/ir/news/")
}

func TestFindIRLink(t *testing.T) {
	home := `<html><body>
<a href="/products/">製品情報</a>
<a href="/ir/">投資家情報</a>
</body></html>`
	got := findIRLink(home, "https://example.co.jp/")
	assert.Equal(t, "https://example.co.jp/ir/", got)

	noIR := `<html><body><a href="/products/">製品情報</a></body></html>`
	assert.Empty(t, findIRLink(noIR, "https://example.co.jp/"))
}

func TestParseRobots(t *testing.T) {
	body := `User-agent: BadBot
Disallow: /

User-agent: *
Disallow: /private/
Disallow: /tmp/ # scratch space
Allow: /ir/
`
	got := parseRobots(body)
	assert.Equal(t, []string{"/private/", "/tmp/"}, got)
}

func TestTemplateStore_SaveLoadList(t *testing.T) {
	store := NewTemplateStore(t.TempDir())

	tpl := &Template{}
	tpl.Company.SecCode = "72030"
	tpl.Company.Name = "トヨタ自動車株式会社"
	tpl.IRPage.BaseURL = "https://example.co.jp/ir/"
	tpl.IRPage.Sections = map[Category]Section{
		CategoryEarnings: {URL: "https://example.co.jp/ir/library/", LinkPattern: "/ir/library/"},
	}

	path, err := store.Save(tpl, false)
	require.NoError(t, err)
	assert.Contains(t, path, "72030_")

	// A second save without overwrite must refuse.
	_, err = store.Save(tpl, false)
	require.Error(t, err)
	_, err = store.Save(tpl, true)
	require.NoError(t, err)

	loaded, err := store.Load("72030")
	require.NoError(t, err)
	assert.Equal(t, tpl.IRPage.BaseURL, loaded.IRPage.BaseURL)
	assert.Equal(t, "/ir/library/", loaded.IRPage.Sections[CategoryEarnings].LinkPattern)

	names, err := store.List()
	require.NoError(t, err)
	require.Len(t, names, 1)

	_, err = store.Load("99990")
	assert.ErrorIs(t, err, ErrNoTemplate)
}
