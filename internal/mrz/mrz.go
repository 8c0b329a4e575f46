// Package mrz decodes the machine-readable zone of TD3 (passport) documents
// from OCR output.
package mrz

import (
	"strings"
	"time"
	"unicode"
)

const (
	// LineLength is the TD3 line width.
	LineLength = 44
	filler     = '<'
)

// Record is the structured identity data decoded from an MRZ. Valid reports
// whether the check digits verified; callers must treat Valid=false as
// "needs review", not as data to discard.
type Record struct {
	Valid          bool
	FirstName      string
	LastName       string
	BirthDate      *time.Time
	ExpiryDate     *time.Time
	Nationality    string
	DocumentNumber string
	Sex            string
	IssuingCountry string
	RawMRZ         string
}

// ExtractFromText scans OCR output for a TD3 machine-readable zone and
// decodes it. Returns nil when no plausible MRZ lines are present.
func ExtractFromText(text string) *Record {
	line1, line2, ok := FindLines(strings.Split(text, "\n"))
	if !ok {
		return nil
	}
	return Parse(line1, line2)
}

// FindLines locates the two TD3 lines among OCR lines: a line anchored on
// the P< passport marker followed by the next filler-bearing candidate.
func FindLines(lines []string) (string, string, bool) {
	normalized := make([]string, 0, len(lines))
	for _, line := range lines {
		n := normalizeLine(line)
		if isCandidate(n) {
			normalized = append(normalized, n)
		}
	}
	for i, line := range normalized {
		if strings.HasPrefix(line, "P<") && i+1 < len(normalized) {
			return pad(line), pad(normalized[i+1]), true
		}
	}
	return "", "", false
}

// normalizeLine strips whitespace and keeps only the MRZ character set,
// uppercased. OCR engines commonly inject spaces between glyphs.
func normalizeLine(line string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(line) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == filler {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isCandidate accepts lines close to the TD3 width that carry fillers.
func isCandidate(line string) bool {
	if len(line) < 30 || len(line) > LineLength+4 {
		return false
	}
	return strings.ContainsRune(line, filler)
}

func pad(line string) string {
	if len(line) >= LineLength {
		return line[:LineLength]
	}
	return line + strings.Repeat(string(filler), LineLength-len(line))
}

// Parse decodes two normalized TD3 lines. The result is best-effort: when
// check digits fail but plausible name data was decoded, the record is
// returned with Valid=false.
func Parse(line1, line2 string) *Record {
	line1, line2 = pad(normalizeLine(line1)), pad(normalizeLine(line2))
	if line1[0] != 'P' {
		return nil
	}

	surname, givenNames := splitNames(line1[5:44])
	rec := &Record{
		FirstName:      CleanName(givenNames),
		LastName:       CleanName(surname),
		IssuingCountry: trimFiller(line1[2:5]),
		DocumentNumber: trimFiller(line2[0:9]),
		Nationality:    trimFiller(line2[10:13]),
		BirthDate:      DecodeDate(line2[13:19]),
		Sex:            decodeSex(line2[20]),
		ExpiryDate:     DecodeDate(line2[21:27]),
		RawMRZ:         line1 + "\n" + line2,
	}
	rec.Valid = validateChecksums(line2)

	if rec.LastName == "" && rec.FirstName == "" {
		return nil
	}
	return rec
}

// splitNames separates surname from given names on the double filler.
func splitNames(field string) (string, string) {
	parts := strings.SplitN(field, "<<", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// CleanName converts an MRZ name fragment to display form: fillers become
// spaces, repeats collapse, words are title-cased.
func CleanName(name string) string {
	cleaned := strings.ReplaceAll(name, string(filler), " ")
	fields := strings.Fields(cleaned)
	for i, w := range fields {
		lower := strings.ToLower(w)
		r := []rune(lower)
		r[0] = unicode.ToUpper(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}

func trimFiller(s string) string {
	return strings.Trim(s, string(filler))
}

func decodeSex(c byte) string {
	switch c {
	case 'M':
		return "M"
	case 'F':
		return "F"
	case 'X':
		return "X"
	}
	return ""
}

// DecodeDate parses an MRZ YYMMDD date. Two-digit years at or below 30 map
// to 2000+YY, the rest to 1900+YY; the pivot is fixed policy, not a sliding
// window.
func DecodeDate(s string) *time.Time {
	digits := make([]byte, 0, 6)
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) < 6 {
		return nil
	}
	yy := int(digits[0]-'0')*10 + int(digits[1]-'0')
	month := int(digits[2]-'0')*10 + int(digits[3]-'0')
	day := int(digits[4]-'0')*10 + int(digits[5]-'0')
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	year := 1900 + yy
	if yy <= 30 {
		year = 2000 + yy
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return nil
	}
	return &t
}

// validateChecksums verifies the document number, birth date, expiry date,
// and composite check digits of a TD3 second line.
func validateChecksums(line2 string) bool {
	if len(line2) != LineLength {
		return false
	}
	if !checkDigit(line2[0:9], line2[9]) {
		return false
	}
	if !checkDigit(line2[13:19], line2[19]) {
		return false
	}
	if !checkDigit(line2[21:27], line2[27]) {
		return false
	}
	composite := line2[0:10] + line2[13:20] + line2[21:43]
	return checkDigit(composite, line2[43])
}

// checkDigit verifies a field against its check character using the ICAO
// 7-3-1 weighting. Fillers count as zero.
func checkDigit(field string, check byte) bool {
	if check < '0' || check > '9' {
		return false
	}
	weights := [3]int{7, 3, 1}
	sum := 0
	for i := 0; i < len(field); i++ {
		sum += charValue(field[i]) * weights[i%3]
	}
	return sum%10 == int(check-'0')
}

func charValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}
