// Copyright (C) 2026 Harborline Research (dev@harborline.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package workflow

import (
	"errors"
	"sort"
	"testing"
)

func TestNewState(t *testing.T) {
	st := NewState("S100ABC1")

	if st.SubjectID != "S100ABC1" {
		t.Errorf("SubjectID = %q, want %q", st.SubjectID, "S100ABC1")
	}
	if st.PriorSubjectID != "" {
		t.Errorf("PriorSubjectID = %q, want empty", st.PriorSubjectID)
	}
	if len(st.Errors) != 0 || len(st.Completed) != 0 {
		t.Error("new state should have empty diagnostics")
	}

	st = NewState("S100ABC1").WithPrior("S100XYZ9")
	if st.PriorSubjectID != "S100XYZ9" {
		t.Errorf("PriorSubjectID = %q, want %q", st.PriorSubjectID, "S100XYZ9")
	}
}

func TestState_Apply(t *testing.T) {
	st := NewState("S1")

	err := st.Apply(Update{
		Fields:    map[string]any{"artifact": "a.pdf"},
		Completed: []string{"fetch"},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	value, ok := st.Value("artifact")
	if !ok || value != "a.pdf" {
		t.Errorf("Value(artifact) = %v, %v; want %q, true", value, ok, "a.pdf")
	}
	if !st.HasCompleted("fetch") {
		t.Error("HasCompleted(fetch) = false after apply")
	}

	err = st.Apply(Update{
		Errors:    []StageError{{Stage: "risk_extraction", Message: "timeout"}},
		Completed: []string{"fetch", "normalize"},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Completed stays deduplicated
	if len(st.Completed) != 2 {
		t.Errorf("Completed = %v, want 2 entries", st.Completed)
	}

	se, ok := st.FailureFor("risk_extraction")
	if !ok || se.Message != "timeout" {
		t.Errorf("FailureFor(risk_extraction) = %v, %v", se, ok)
	}
	if _, ok := st.FailureFor("fetch"); ok {
		t.Error("FailureFor(fetch) should be absent")
	}
}

func TestState_Apply_FieldConflict(t *testing.T) {
	st := NewState("S1")

	if err := st.Apply(Update{Fields: map[string]any{"text": "first"}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	err := st.Apply(Update{Fields: map[string]any{"text": "second"}})
	if err == nil {
		t.Fatal("Apply() should fail on second write to same field")
	}
	if !errors.Is(err, ErrFieldConflict) {
		t.Errorf("error = %v, want ErrFieldConflict", err)
	}

	// The conflicting apply must not partially land
	value, _ := st.Value("text")
	if value != "first" {
		t.Errorf("Value(text) = %v, want %q", value, "first")
	}
}

func TestMerge_DisjointFields(t *testing.T) {
	a := Update{
		Fields:    map[string]any{"summary": "s"},
		Completed: []string{"business_summary"},
	}
	b := Update{
		Fields:    map[string]any{"risks": "r"},
		Completed: []string{"risk_extraction"},
	}

	merged, err := Merge(a, b)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if merged.Fields["summary"] != "s" || merged.Fields["risks"] != "r" {
		t.Errorf("Fields = %v, want both stage values", merged.Fields)
	}
	if len(merged.Completed) != 2 {
		t.Errorf("Completed = %v, want 2 entries", merged.Completed)
	}
}

func TestMerge_FieldConflict(t *testing.T) {
	a := Update{Fields: map[string]any{"risks": "one"}}
	b := Update{Fields: map[string]any{"risks": "two"}}

	_, err := Merge(a, b)
	if err == nil {
		t.Fatal("Merge() should fail on double-written field")
	}
	if !errors.Is(err, ErrFieldConflict) {
		t.Errorf("error = %v, want ErrFieldConflict", err)
	}

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error should be ConflictError, got %T", err)
	}
	if conflict.Field != "risks" {
		t.Errorf("Field = %q, want %q", conflict.Field, "risks")
	}
}

func TestMerge_OrderInsensitive(t *testing.T) {
	a := Update{
		Fields:    map[string]any{"summary": 1},
		Errors:    []StageError{{Stage: "x", Message: "boom"}},
		Completed: []string{"a", "shared"},
	}
	b := Update{
		Fields:    map[string]any{"risks": 2},
		Errors:    []StageError{{Stage: "y", Message: "bang"}},
		Completed: []string{"b", "shared"},
	}

	ab, err := Merge(a, b)
	if err != nil {
		t.Fatalf("Merge(a, b) error = %v", err)
	}
	ba, err := Merge(b, a)
	if err != nil {
		t.Fatalf("Merge(b, a) error = %v", err)
	}

	for _, field := range []string{"summary", "risks"} {
		if ab.Fields[field] != ba.Fields[field] {
			t.Errorf("field %q differs between merge orders", field)
		}
	}

	sortStages := func(errs []StageError) []string {
		names := make([]string, len(errs))
		for i, e := range errs {
			names[i] = e.Stage
		}
		sort.Strings(names)
		return names
	}
	abErrs, baErrs := sortStages(ab.Errors), sortStages(ba.Errors)
	if len(abErrs) != 2 || len(baErrs) != 2 || abErrs[0] != baErrs[0] || abErrs[1] != baErrs[1] {
		t.Errorf("error sets differ between merge orders: %v vs %v", ab.Errors, ba.Errors)
	}

	sort.Strings(ab.Completed)
	sort.Strings(ba.Completed)
	if len(ab.Completed) != 3 || len(ba.Completed) != 3 {
		t.Errorf("completed sets should dedupe shared entry: %v vs %v", ab.Completed, ba.Completed)
	}
	for i := range ab.Completed {
		if ab.Completed[i] != ba.Completed[i] {
			t.Errorf("completed sets differ between merge orders: %v vs %v", ab.Completed, ba.Completed)
		}
	}
}

func TestMergeAll(t *testing.T) {
	updates := []Update{
		{Fields: map[string]any{"summary": "s"}, Completed: []string{"business_summary"}},
		{Errors: []StageError{{Stage: "risk_extraction", Message: "timeout"}}},
		{Fields: map[string]any{"financials": "f"}, Completed: []string{"financial_analysis"}},
		{Fields: map[string]any{"comparison": "c"}, Completed: []string{"comparison"}},
	}

	merged, err := MergeAll(updates...)
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}

	if len(merged.Fields) != 3 {
		t.Errorf("Fields = %v, want 3 entries", merged.Fields)
	}
	if len(merged.Errors) != 1 || merged.Errors[0].Stage != "risk_extraction" {
		t.Errorf("Errors = %v, want single risk_extraction failure", merged.Errors)
	}
	if len(merged.Completed) != 3 {
		t.Errorf("Completed = %v, want 3 entries", merged.Completed)
	}
}

func TestMergeAll_Empty(t *testing.T) {
	merged, err := MergeAll()
	if err != nil {
		t.Fatalf("MergeAll() error = %v", err)
	}
	if len(merged.Fields) != 0 || len(merged.Errors) != 0 || len(merged.Completed) != 0 {
		t.Errorf("MergeAll() of nothing = %+v, want zero update", merged)
	}
}

func TestStateView_Require(t *testing.T) {
	st := NewState("S1").WithPrior("S0")
	if err := st.Apply(Update{
		Fields:    map[string]any{"text": "normalized content"},
		Completed: []string{"normalize"},
	}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	stage := NewFuncStage("risk_extraction", "risks", []string{"normalize"}, nil)
	fieldOf := func(name string) string {
		if name == "normalize" {
			return "text"
		}
		return ""
	}
	view := NewStateView(st, stage, fieldOf)

	if view.SubjectID() != "S1" {
		t.Errorf("SubjectID() = %q, want %q", view.SubjectID(), "S1")
	}
	if view.PriorSubjectID() != "S0" {
		t.Errorf("PriorSubjectID() = %q, want %q", view.PriorSubjectID(), "S0")
	}

	value, err := view.Require("normalize")
	if err != nil {
		t.Fatalf("Require(normalize) error = %v", err)
	}
	if value != "normalized content" {
		t.Errorf("Require(normalize) = %v", value)
	}

	value, ok := view.Output("normalize")
	if !ok || value != "normalized content" {
		t.Errorf("Output(normalize) = %v, %v", value, ok)
	}
}

func TestStateView_Require_MissingUpstream(t *testing.T) {
	// normalize never produced its field (it failed)
	st := NewState("S1")
	st.Errors = append(st.Errors, StageError{Stage: "normalize", Message: "parse failure"})

	stage := NewFuncStage("risk_extraction", "risks", []string{"normalize"}, nil)
	view := NewStateView(st, stage, func(string) string { return "text" })

	_, err := view.Require("normalize")
	if err == nil {
		t.Fatal("Require() should fail for missing upstream value")
	}
	want := "upstream dependency unavailable: normalize"
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	if _, ok := view.Output("normalize"); ok {
		t.Error("Output() should report absence for failed upstream")
	}

	// Diagnostics recorded before this wave are visible
	errs := view.Errors()
	if len(errs) != 1 || errs[0].Stage != "normalize" {
		t.Errorf("Errors() = %v, want the normalize failure", errs)
	}
}

func TestStateView_Require_Undeclared(t *testing.T) {
	st := NewState("S1")
	if err := st.Apply(Update{Fields: map[string]any{"summary": "s"}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// Stage declares only normalize; business_summary's field is invisible
	stage := NewFuncStage("comparison", "comparison", []string{"normalize"}, nil)
	view := NewStateView(st, stage, func(name string) string {
		if name == "business_summary" {
			return "summary"
		}
		return ""
	})

	_, err := view.Require("business_summary")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Require(undeclared) error = %v, want ErrInvalidInput", err)
	}

	if _, ok := view.Output("business_summary"); ok {
		t.Error("Output(undeclared) should report absence")
	}
}

func TestStageError(t *testing.T) {
	se := NewStageError("risk_extraction", "timeout")

	if se.Error() != `stage "risk_extraction": timeout` {
		t.Errorf("Error() = %q", se.Error())
	}
}

func TestCycleError(t *testing.T) {
	err := NewCycleError([]string{"a", "b", "c", "a"})

	if err.Error() != "cycle detected: [a b c a]" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrCycleDetected) {
		t.Error("CycleError should match ErrCycleDetected")
	}
}

func TestConflictError(t *testing.T) {
	err := &ConflictError{Field: "risks"}

	if !errors.Is(err, ErrFieldConflict) {
		t.Error("ConflictError should match ErrFieldConflict")
	}
}
