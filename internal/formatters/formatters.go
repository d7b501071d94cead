package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"shlrec/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "RecommendOutput", &RecommendTextFormatter{})
	registry.RegisterFormatter("markdown", "RecommendOutput", &RecommendMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.RecommendOutput:
		return "RecommendOutput"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// RecommendTextFormatter handles text formatting for recommendation results
type RecommendTextFormatter struct{}

func (rtf *RecommendTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RecommendOutput)
	if !ok {
		return "", fmt.Errorf("expected RecommendOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== RECOMMENDED ASSESSMENTS ===\n\n")
	for i, rec := range result.Recommendations {
		output.WriteString(fmt.Sprintf("%d. %s (score %.3f)\n", i+1, rec.Name, rec.Score))
		output.WriteString(fmt.Sprintf("   URL: %s\n", rec.URL))
		output.WriteString(fmt.Sprintf("   Test type: %s\n", rec.TestType))
		output.WriteString(fmt.Sprintf("   Duration: %s\n", rec.Duration))
		output.WriteString(fmt.Sprintf("   Remote testing: %s\n", yesNo(rec.RemoteTesting)))
		output.WriteString(fmt.Sprintf("   Adaptive support: %s\n", yesNo(rec.AdaptiveSupport)))
		output.WriteString("\n")
	}
	output.WriteString(fmt.Sprintf("Total: %d assessment(s)\n", len(result.Recommendations)))

	return output.String(), nil
}

func (rtf *RecommendTextFormatter) SupportedType() string {
	return "RecommendOutput"
}

// RecommendMarkdownFormatter handles markdown formatting for recommendation results
type RecommendMarkdownFormatter struct{}

func (rmf *RecommendMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RecommendOutput)
	if !ok {
		return "", fmt.Errorf("expected RecommendOutput, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Recommended Assessments\n\n")
	output.WriteString("| # | Assessment | Test Type | Duration | Remote | Adaptive | Score |\n")
	output.WriteString("|---|------------|-----------|----------|--------|----------|-------|\n")
	for i, rec := range result.Recommendations {
		output.WriteString(fmt.Sprintf("| %d | [%s](%s) | %s | %s | %s | %s | %.3f |\n",
			i+1, rec.Name, rec.URL, rec.TestType, rec.Duration,
			yesNo(rec.RemoteTesting), yesNo(rec.AdaptiveSupport), rec.Score))
	}
	output.WriteString(fmt.Sprintf("\n**Total:** %d assessment(s)\n", len(result.Recommendations)))

	return output.String(), nil
}

func (rmf *RecommendMarkdownFormatter) SupportedType() string {
	return "RecommendOutput"
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
