// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided identifiers that are used
// in upstream API URLs and local file paths. Using these validators prevents
// path traversal and request smuggling through crafted identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// docIDPattern matches EDINET document IDs: the letter S followed by
// seven uppercase alphanumerics, e.g. S100TR7I.
var docIDPattern = regexp.MustCompile(`^S[0-9A-Z]{7}$`)

// secCodePattern matches securities codes: the four-digit exchange
// code or the five-digit EDINET form.
var secCodePattern = regexp.MustCompile(`^[0-9]{4,5}$`)

// edinetCodePattern matches EDINET filer codes, e.g. E02144.
var edinetCodePattern = regexp.MustCompile(`^E[0-9]{5}$`)

// ValidateDocumentID validates an EDINET document ID.
//
// Document IDs are embedded in download URLs and joined into save
// paths, so anything outside the fixed 8-character form is rejected.
//
// Example:
//
//	if err := validation.ValidateDocumentID(docID); err != nil {
//	    return fmt.Errorf("invalid document ID: %w", err)
//	}
//	// Safe to use in a request path or file name
func ValidateDocumentID(docID string) error {
	if docID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}

	if !docIDPattern.MatchString(docID) {
		return fmt.Errorf("invalid document ID format: %q (must be S followed by 7 uppercase alphanumeric chars, e.g. S100TR7I)", docID)
	}

	return nil
}

// SanitizeDocumentID normalizes and validates a document ID.
// Returns the uppercase ID if valid, or an error if invalid.
//
// Use this on user input, where pasted IDs often arrive lowercase or
// padded with whitespace:
//
//	docID, err := validation.SanitizeDocumentID(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeDocumentID(docID string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(docID))
	if err := ValidateDocumentID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateSecCode validates a securities code. Both the four-digit
// exchange listing code (7203) and the five-digit EDINET form (72030)
// are accepted.
func ValidateSecCode(code string) error {
	if code == "" {
		return fmt.Errorf("securities code cannot be empty")
	}

	if !secCodePattern.MatchString(code) {
		return fmt.Errorf("invalid securities code: %q (must be 4 or 5 digits)", code)
	}

	return nil
}

// SanitizeSecCode normalizes a securities code to the five-digit form
// EDINET reports, appending the trailing zero to four-digit exchange
// codes. Returns an error if the code is not 4 or 5 digits.
func SanitizeSecCode(code string) (string, error) {
	normalized := strings.TrimSpace(code)
	if err := ValidateSecCode(normalized); err != nil {
		return "", err
	}
	if len(normalized) == 4 {
		normalized += "0"
	}
	return normalized, nil
}

// ValidateEDINETCode validates an EDINET filer code (E followed by
// five digits).
func ValidateEDINETCode(code string) error {
	if code == "" {
		return fmt.Errorf("EDINET code cannot be empty")
	}

	if !edinetCodePattern.MatchString(code) {
		return fmt.Errorf("invalid EDINET code: %q (must be E followed by 5 digits, e.g. E02144)", code)
	}

	return nil
}
