// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const sampleCodeListCSV = `ダウンロード実行日,2026-08-24,,,,,
ＥＤＩＮＥＴコード,提出者種別,上場区分,連結の有無,資本金,決算日,提出者名,提出者名（英字）,提出者名（カナ）,所在地,提出者業種,証券コード,提出者法人番号
E02144,内国法人・組合,上場,有,397050,3月31日,トヨタ自動車株式会社,TOYOTA MOTOR CORPORATION,トヨタジドウシャ,愛知県豊田市,輸送用機器,72030,1180301018771
E01777,内国法人・組合,上場,有,100000,3月31日,株式会社日立製作所,"Hitachi, Ltd.",ヒタチセイサクショ,東京都千代田区,電気機器,65010,7010001008844
E99999,内国法人・組合,非上場,無,10,3月31日,トヨタ商事株式会社,,トヨタショウジ,東京都港区,卸売業,,9999999999999
`

// codeListZip builds the FSA archive shape: one Shift-JIS CSV inside a
// zip.
func codeListZip(t *testing.T) []byte {
	t.Helper()
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(sampleCodeListCSV))
	if err != nil {
		t.Fatalf("encoding sample CSV: %v", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(codeListCSVName)
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := w.Write(encoded); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}

func newTestCodeList(t *testing.T, hits *int64) *CodeList {
	t.Helper()
	archive := codeListZip(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt64(hits, 1)
		}
		w.Write(archive)
	}))
	t.Cleanup(srv.Close)
	return NewCodeList(t.TempDir(), WithCodeListURL(srv.URL), WithCodeListHTTPClient(srv.Client()))
}

func TestCodeList_SearchByName(t *testing.T) {
	cl := newTestCodeList(t, nil)

	matches, err := cl.Search(context.Background(), "トヨタ", 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	// The listed automaker outranks the unlisted trading company.
	if matches[0].Company.EDINETCode != "E02144" {
		t.Errorf("best match = %s, want E02144", matches[0].Company.EDINETCode)
	}
	if matches[0].Company.SecCode != "72030" {
		t.Errorf("sec code = %s, want 72030", matches[0].Company.SecCode)
	}
}

func TestCodeList_SearchStripsLegalForm(t *testing.T) {
	cl := newTestCodeList(t, nil)

	matches, err := cl.Search(context.Background(), "日立製作所", 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(matches) == 0 || matches[0].Company.EDINETCode != "E01777" {
		t.Fatalf("matches = %+v, want E01777 first", matches)
	}
	if matches[0].Score != 100 {
		t.Errorf("score = %d, want 100 for an exact match after stripping 株式会社", matches[0].Score)
	}
}

func TestCodeList_SearchByEDINETCode(t *testing.T) {
	cl := newTestCodeList(t, nil)

	matches, err := cl.Search(context.Background(), "E02144", 5)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(matches) != 1 || matches[0].MatchField != "edinet_code" {
		t.Fatalf("matches = %+v, want one edinet_code match", matches)
	}
	if matches[0].Company.Name != "トヨタ自動車株式会社" {
		t.Errorf("name = %s", matches[0].Company.Name)
	}
}

func TestCodeList_BySecCodeNormalizesFourDigits(t *testing.T) {
	cl := newTestCodeList(t, nil)

	company, err := cl.BySecCode(context.Background(), "7203")
	if err != nil {
		t.Fatalf("BySecCode returned error: %v", err)
	}
	if company == nil || company.EDINETCode != "E02144" {
		t.Fatalf("company = %+v, want E02144", company)
	}

	if _, err := cl.BySecCode(context.Background(), "abc"); err == nil {
		t.Error("expected error for non-numeric code")
	}
}

func TestCodeList_CacheAvoidsRedownload(t *testing.T) {
	var hits int64
	cl := newTestCodeList(t, &hits)

	if _, err := cl.Search(context.Background(), "トヨタ", 5); err != nil {
		t.Fatalf("first Search returned error: %v", err)
	}
	if _, err := cl.Search(context.Background(), "日立", 5); err != nil {
		t.Fatalf("second Search returned error: %v", err)
	}
	if got := atomic.LoadInt64(&hits); got != 1 {
		t.Errorf("download hits = %d, want 1", got)
	}
}

func TestCodeList_StaleCacheServedWhenRefreshFails(t *testing.T) {
	var hits int64
	cl := newTestCodeList(t, &hits)

	if _, err := cl.Search(context.Background(), "トヨタ", 5); err != nil {
		t.Fatalf("initial Search returned error: %v", err)
	}

	// Age the cache past its validity and kill the source.
	stale := time.Now().Add(-30 * 24 * time.Hour).Format(time.RFC3339)
	if err := os.WriteFile(cl.stampPath(), []byte(stale), 0o644); err != nil {
		t.Fatalf("writing stamp: %v", err)
	}
	cl.sourceURL = "http://127.0.0.1:1/nowhere.zip"

	matches, err := cl.Search(context.Background(), "トヨタ", 5)
	if err != nil {
		t.Fatalf("Search with stale cache returned error: %v", err)
	}
	if len(matches) == 0 {
		t.Error("stale cache should still resolve companies")
	}
}

func TestNormalizeSecCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"7203", "72030", true},
		{"72030", "72030", true},
		{"720", "", false},
		{"トヨタ", "", false},
	}
	for _, tc := range cases {
		got, ok := normalizeSecCode(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("normalizeSecCode(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
