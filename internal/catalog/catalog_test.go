package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"shlrec/internal/errors"
	"shlrec/internal/types"
)

func sampleAssessments() []types.Assessment {
	return []types.Assessment{
		{
			ID:            "verify-numerical",
			Name:          "Verify Numerical Reasoning",
			URL:           "https://www.shl.com/products/verify-numerical/",
			RemoteTesting: true,
			Duration:      "25 minutes",
			TestType:      "Cognitive",
		},
		{
			ID:            "opq32",
			Name:          "OPQ32 Personality Questionnaire",
			URL:           "https://www.shl.com/products/opq32/",
			RemoteTesting: true,
			Duration:      "Not specified",
			TestType:      "Personality",
		},
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.json")
	if err := Save(path, sampleAssessments()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Len() != 2 {
		t.Errorf("Expected 2 assessments, got %d", cat.Len())
	}

	a, ok := cat.Get("opq32")
	if !ok {
		t.Fatal("Expected to find assessment 'opq32'")
	}
	if a.TestType != "Personality" {
		t.Errorf("Unexpected test type: %s", a.TestType)
	}
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}

	appErr, ok := errors.IsAppError(err)
	if !ok {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeFileNotFound {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeFileNotFound, appErr.Code)
	}
}

func TestLoadCatalogInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assessments.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := Load(path)
	appErr, ok := errors.IsAppError(err)
	if !ok {
		t.Fatalf("Expected AppError, got %v", err)
	}
	if appErr.Code != errors.ErrCodeInvalidFormat {
		t.Errorf("Expected code %s, got %s", errors.ErrCodeInvalidFormat, appErr.Code)
	}
}

func TestFromAssessmentsValidation(t *testing.T) {
	tests := []struct {
		name        string
		assessments []types.Assessment
	}{
		{
			name:        "empty catalog",
			assessments: nil,
		},
		{
			name: "missing id",
			assessments: []types.Assessment{
				{Name: "No ID"},
			},
		},
		{
			name: "missing name",
			assessments: []types.Assessment{
				{ID: "no-name"},
			},
		},
		{
			name: "duplicate id",
			assessments: []types.Assessment{
				{ID: "dup", Name: "First"},
				{ID: "dup", Name: "Second"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromAssessments(tt.assessments); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestAssessmentsReturnsCopy(t *testing.T) {
	cat, err := FromAssessments(sampleAssessments())
	if err != nil {
		t.Fatalf("FromAssessments failed: %v", err)
	}

	list := cat.Assessments()
	list[0].Name = "mutated"

	again := cat.Assessments()
	if again[0].Name == "mutated" {
		t.Error("Assessments() must not expose internal state")
	}
}

func TestDocumentText(t *testing.T) {
	a := types.Assessment{
		Name:     "Verify Numerical Reasoning",
		TestType: "Cognitive",
		Duration: "25 minutes",
	}

	got := DocumentText(a)
	expected := "Verify Numerical Reasoning Cognitive assessment. Duration: 25 minutes"
	if got != expected {
		t.Errorf("DocumentText() = %q, expected %q", got, expected)
	}
}

func TestParseDurationMinutes(t *testing.T) {
	tests := []struct {
		duration string
		minutes  int
		ok       bool
	}{
		{"25 minutes", 25, true},
		{"Approximately 45 mins", 45, true},
		{"60min", 60, true},
		{"Not specified", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.duration, func(t *testing.T) {
			minutes, ok := ParseDurationMinutes(tt.duration)
			if ok != tt.ok || minutes != tt.minutes {
				t.Errorf("ParseDurationMinutes(%q) = (%d, %v), expected (%d, %v)",
					tt.duration, minutes, ok, tt.minutes, tt.ok)
			}
		})
	}
}

func TestSlugID(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"Verify Numerical Reasoning", "verify-numerical-reasoning"},
		{"OPQ32 Personality Questionnaire", "opq32-personality-questionnaire"},
		{"  C++ Programming (Advanced)  ", "c-programming-advanced"},
		{"---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlugID(tt.name); got != tt.expected {
				t.Errorf("SlugID(%q) = %q, expected %q", tt.name, got, tt.expected)
			}
		})
	}
}
