package pii

import (
	"regexp"
	"sort"
)

// Category represents a class of sensitive content the scanner recognizes.
type Category string

const (
	CategoryIdentifierNumber Category = "identifier_number" // SSN and similar government ids
	CategoryMedicalRecord    Category = "medical_record"    // MRN-style record numbers
	CategoryDateOfBirth      Category = "date_of_birth"
	CategoryContact          Category = "contact" // phone, email
	CategoryClinicalCode     Category = "clinical_code"
	CategoryFinancialNumber  Category = "financial_number"
)

// Severity is the fixed sensitivity level assigned to a category's findings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Finding is one matched span of sensitive content.
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Snippet  string   `json:"snippet"`
	StartPos int      `json:"startPos"`
	EndPos   int      `json:"endPos"`
}

// ScanResult is the ordered sequence of findings for one input. Not
// persisted; scanning is a pure computation.
type ScanResult struct {
	Findings []Finding `json:"findings"`
}

// HasCritical reports whether any finding carries critical severity.
func (r ScanResult) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// pattern binds one compiled expression to its category and severity. The
// set is fixed and ordered: scanning the same input always yields the same
// findings in the same sequence.
type pattern struct {
	category Category
	severity Severity
	re       *regexp.Regexp
}

var patterns = []pattern{
	// Government identifier numbers are always critical.
	{CategoryIdentifierNumber, SeverityCritical, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{CategoryMedicalRecord, SeverityCritical, regexp.MustCompile(`(?i)\bMRN[:#\s]*\d{6,10}\b`)},
	{CategoryDateOfBirth, SeverityHigh, regexp.MustCompile(`(?i)\b(?:dob|date of birth|born)[:\s]+\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`)},
	{CategoryClinicalCode, SeverityHigh, regexp.MustCompile(`(?i)\b(?:icd|dx)[-:\s]*[A-TV-Z]\d{2}(?:\.\d{1,4})?\b`)},
	{CategoryFinancialNumber, SeverityHigh, regexp.MustCompile(`\b\d{4}[- ]\d{4}[- ]\d{4}[- ]\d{4}\b`)},
	{CategoryContact, SeverityMedium, regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`)},
	{CategoryContact, SeverityLow, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
}

// redactionMarker replaces every matched span in Mask output. Fixed width so
// masked text leaks nothing about the original span length.
const redactionMarker = "[REDACTED]"

// Scan classifies free text against the fixed pattern set. For each category
// every non-overlapping match produces one finding. Absence of matches is a
// valid, common result; the returned ScanResult simply has no findings.
// The input is never mutated.
func Scan(text string) ScanResult {
	var findings []Finding
	for _, p := range patterns {
		for _, match := range p.re.FindAllStringIndex(text, -1) {
			if covered(findings, match[0], match[1]) {
				continue
			}
			findings = append(findings, Finding{
				Category: p.category,
				Severity: p.severity,
				Snippet:  text[match[0]:match[1]],
				StartPos: match[0],
				EndPos:   match[1],
			})
		}
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].StartPos < findings[j].StartPos
	})
	return ScanResult{Findings: findings}
}

// Mask replaces every matched span with the fixed-width redaction marker,
// preserving the rest of the text verbatim. Safe for logging payloads that
// may carry sensitive content.
func Mask(text string) string {
	result := Scan(text)
	if len(result.Findings) == 0 {
		return text
	}

	// Replace back-to-front so positions stay valid.
	masked := text
	for i := len(result.Findings) - 1; i >= 0; i-- {
		f := result.Findings[i]
		masked = masked[:f.StartPos] + redactionMarker + masked[f.EndPos:]
	}
	return masked
}

// covered reports whether the span overlaps an earlier finding. Categories
// are applied in order, so the first (most sensitive) classification of a
// span wins.
func covered(findings []Finding, start, end int) bool {
	for _, f := range findings {
		if start < f.EndPos && end > f.StartPos {
			return true
		}
	}
	return false
}
