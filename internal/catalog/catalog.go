package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"shlrec/internal/errors"
	"shlrec/internal/types"
)

// Catalog is an immutable set of assessments loaded from the dataset file
type Catalog struct {
	assessments []types.Assessment
	byID        map[string]types.Assessment
}

// Load reads and validates the assessment dataset
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("Catalog data file not found: %s", path), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read catalog data file: %s", path), err)
	}

	var assessments []types.Assessment
	if err := json.Unmarshal(data, &assessments); err != nil {
		return nil, errors.NewIOError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Catalog data file is not valid JSON: %s", path), err)
	}

	return FromAssessments(assessments)
}

// FromAssessments builds a catalog from an in-memory assessment list
func FromAssessments(assessments []types.Assessment) (*Catalog, error) {
	if len(assessments) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeCatalogUnavailable,
			"Catalog contains no assessments", nil)
	}

	byID := make(map[string]types.Assessment, len(assessments))
	for i, a := range assessments {
		if a.ID == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Assessment at index %d has no id", i), nil)
		}
		if a.Name == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Assessment %q has no name", a.ID), nil)
		}
		if _, dup := byID[a.ID]; dup {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("Duplicate assessment id %q", a.ID), nil)
		}
		byID[a.ID] = a
	}

	copied := make([]types.Assessment, len(assessments))
	copy(copied, assessments)

	return &Catalog{
		assessments: copied,
		byID:        byID,
	}, nil
}

// Assessments returns all assessments in dataset order
func (c *Catalog) Assessments() []types.Assessment {
	out := make([]types.Assessment, len(c.assessments))
	copy(out, c.assessments)
	return out
}

// Get returns the assessment with the given id
func (c *Catalog) Get(id string) (types.Assessment, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Len returns the number of assessments
func (c *Catalog) Len() int {
	return len(c.assessments)
}

// DocumentText builds the text that gets embedded for an assessment
func DocumentText(a types.Assessment) string {
	return fmt.Sprintf("%s %s assessment. Duration: %s", a.Name, a.TestType, a.Duration)
}

var durationDigits = regexp.MustCompile(`\d+`)

// ParseDurationMinutes extracts the numeric duration from a free-form
// duration string like "30 minutes". Returns false when the string holds
// no number ("Not specified").
func ParseDurationMinutes(duration string) (int, bool) {
	match := durationDigits.FindString(duration)
	if match == "" {
		return 0, false
	}
	minutes, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return minutes, true
}

// Save writes an assessment list to the dataset file
func Save(path string, assessments []types.Assessment) error {
	data, err := json.MarshalIndent(assessments, "", "  ")
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInvalidFormat,
			"Failed to marshal catalog", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to write catalog data file: %s", path), err)
	}
	return nil
}

// SlugID derives a stable identifier from an assessment name
func SlugID(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
