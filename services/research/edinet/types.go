// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package edinet

import (
	"fmt"
	"strings"
)

// DownloadType selects the format of a document download.
type DownloadType int

const (
	DownloadXBRL        DownloadType = 1
	DownloadPDF         DownloadType = 2
	DownloadAttachments DownloadType = 3
	DownloadEnglish     DownloadType = 4
	DownloadCSV         DownloadType = 5
)

// Document type codes commonly used in filters.
const (
	DocTypeAnnualReport        = "120" // 有価証券報告書
	DocTypeQuarterlyReport     = "140" // 四半期報告書
	DocTypeExtraordinaryReport = "180" // 臨時報告書
)

// Flag decodes EDINET's "0"/"1" string flags into a bool. The API also
// omits flags entirely for some document classes.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	switch s {
	case "1", "true":
		*f = true
	case "", "0", "null", "false":
		*f = false
	default:
		return fmt.Errorf("invalid flag value %q", s)
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if f {
		return []byte(`"1"`), nil
	}
	return []byte(`"0"`), nil
}

type RequestParameter struct {
	Date string `json:"date"`
	Type string `json:"type"`
}

type ResultSet struct {
	Count int `json:"count"`
}

// ResponseMetadata carries EDINET's internal status alongside the
// request echo. Status is a string ("200", "404") per the API format.
type ResponseMetadata struct {
	Title           string           `json:"title"`
	Parameter       RequestParameter `json:"parameter"`
	Resultset       ResultSet        `json:"resultset"`
	ProcessDateTime string           `json:"processDateTime"`
	Status          string           `json:"status"`
	Message         string           `json:"message"`
}

// DocumentMetadata is one row of the document list response. Field
// names mirror the API's camelCase keys.
type DocumentMetadata struct {
	SeqNumber            int    `json:"seqNumber"`
	DocID                string `json:"docID"`
	EDINETCode           string `json:"edinetCode,omitempty"`
	SecCode              string `json:"secCode,omitempty"`
	JCN                  string `json:"JCN,omitempty"`
	FilerName            string `json:"filerName,omitempty"`
	FundCode             string `json:"fundCode,omitempty"`
	OrdinanceCode        string `json:"ordinanceCode,omitempty"`
	FormCode             string `json:"formCode,omitempty"`
	DocTypeCode          string `json:"docTypeCode,omitempty"`
	PeriodStart          string `json:"periodStart,omitempty"`
	PeriodEnd            string `json:"periodEnd,omitempty"`
	SubmitDateTime       string `json:"submitDateTime,omitempty"`
	DocDescription       string `json:"docDescription,omitempty"`
	IssuerEDINETCode     string `json:"issuerEdinetCode,omitempty"`
	SubjectEDINETCode    string `json:"subjectEdinetCode,omitempty"`
	SubsidiaryEDINETCode string `json:"subsidiaryEdinetCode,omitempty"`
	CurrentReportReason  string `json:"currentReportReason,omitempty"`
	ParentDocID          string `json:"parentDocID,omitempty"`
	OpeDateTime          string `json:"opeDateTime,omitempty"`
	WithdrawalStatus     string `json:"withdrawalStatus,omitempty"`
	DocInfoEditStatus    string `json:"docInfoEditStatus,omitempty"`
	DisclosureStatus     string `json:"disclosureStatus,omitempty"`
	XBRLFlag             Flag   `json:"xbrlFlag,omitempty"`
	PDFFlag              Flag   `json:"pdfFlag,omitempty"`
	AttachDocFlag        Flag   `json:"attachDocFlag,omitempty"`
	EnglishDocFlag       Flag   `json:"englishDocFlag,omitempty"`
	CSVFlag              Flag   `json:"csvFlag,omitempty"`
	LegalStatus          string `json:"legalStatus,omitempty"`
}

// DocumentListResponse is the full /documents.json payload. Results is
// nil for metadata-only (type=1) requests.
type DocumentListResponse struct {
	Metadata ResponseMetadata   `json:"metadata"`
	Results  []DocumentMetadata `json:"results,omitempty"`
}
