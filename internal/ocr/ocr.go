// Package ocr provides heuristics over raw OCR text: document-type
// detection and date/name fragment extraction for manual-review context.
package ocr

import (
	"regexp"
	"strings"
)

// Document types recognized by keyword detection.
const (
	TypePassport           = "passport"
	TypeResidencePermit    = "residence_permit"
	TypeDivorceCertificate = "divorce_certificate"
	TypeDiploma            = "diploma"
	TypeEmploymentProof    = "employment_proof"
)

// keyword sets are multilingual: the platform's primary region uses English,
// Russian, and Uzbek documents.
var typeKeywords = []struct {
	docType  string
	keywords []string
}{
	{TypePassport, []string{
		"passport", "pasport", "паспорт",
		"nationality", "гражданство",
		"date of birth", "дата рождения",
		"mrz", "p<",
	}},
	{TypeResidencePermit, []string{
		"residence permit", "вид на жительство",
		"permanent resident", "временное проживание",
		"разрешение на проживание",
	}},
	{TypeDivorceCertificate, []string{
		"divorce", "развод", "расторжение брака",
		"свидетельство о расторжении", "dissolution of marriage",
	}},
	{TypeDiploma, []string{
		"diploma", "диплом", "degree", "степень",
		"university", "университет",
		"bachelor", "master", "бакалавр", "магистр",
	}},
	{TypeEmploymentProof, []string{
		"employment", "трудовой", "справка с места работы",
		"certificate of employment", "работодатель", "employer",
	}},
}

// DetectDocumentType guesses the document type from extracted text.
// Returns "" when no keyword set matches.
func DetectDocumentType(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.docType
			}
		}
	}
	return ""
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d{2}[./]\d{2}[./]\d{4}`),
	regexp.MustCompile(`\d{4}[./]\d{2}[./]\d{2}`),
	regexp.MustCompile(`\d{1,2}\s+\pL+\s+\d{4}`),
}

// ExtractDates collects date-like fragments from text.
func ExtractDates(text string) []string {
	var dates []string
	seen := make(map[string]bool)
	for _, pattern := range datePatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			if !seen[m] {
				seen[m] = true
				dates = append(dates, m)
			}
		}
	}
	return dates
}

// Names holds candidate name fragments found in OCR text.
type Names struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// The leading non-letter guard keeps "surname" from satisfying the "name"
// alternative.
var (
	surnamePattern   = regexp.MustCompile(`(?i)(?:surname|фамилия|фамилияси)[:\s]+([\pL]+)`)
	givenNamePattern = regexp.MustCompile(`(?i)(?:^|[^\pL])(?:given name|name|имя|исм)[:\s]+([\pL]+)`)
)

// ExtractNames pattern-matches labelled name fields out of OCR text.
func ExtractNames(text string) Names {
	var names Names
	if m := surnamePattern.FindStringSubmatch(text); m != nil {
		names.LastName = m[1]
	}
	if m := givenNamePattern.FindStringSubmatch(text); m != nil {
		names.FirstName = m[1]
	}
	return names
}

// Truncate limits raw OCR text for persistence.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit]
}
