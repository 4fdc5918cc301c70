// Package document extracts structured fields from raw OCR text of a
// Russian internal passport. Every rule scans the full line list
// independently from the top, so no line is consumed twice and rule
// order never changes what an individual rule sees.
package document

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// RecognizedDocumentData holds the fields recognized on a document.
// Absent fields stay empty; Extra carries open-ended additional keys
// contributed by upstream services.
type RecognizedDocumentData struct {
	FullName            string
	Birthday            string
	Sex                 string
	PassportNumber      string
	PassportSeries      string
	PassportIssueDate   string
	PassportIssuedBy    string
	RegistrationAddress string
	Extra               map[string]string
}

// HasAny reports whether at least one field was recognized.
func (d RecognizedDocumentData) HasAny() bool {
	return d.FullName != "" || d.Birthday != "" || d.Sex != "" ||
		d.PassportNumber != "" || d.PassportSeries != "" ||
		d.PassportIssueDate != "" || d.PassportIssuedBy != "" ||
		d.RegistrationAddress != "" || len(d.Extra) > 0
}

// Fields returns the recognized named fields as a key-value map, suitable
// for merging into a profile's extension data. Empty fields are omitted.
func (d RecognizedDocumentData) Fields() map[string]string {
	out := make(map[string]string)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put("fullName", d.FullName)
	put("birthday", d.Birthday)
	put("sex", d.Sex)
	put("passportNumber", d.PassportNumber)
	put("passportSeries", d.PassportSeries)
	put("passportIssueDate", d.PassportIssueDate)
	put("passportIssuedBy", d.PassportIssuedBy)
	put("registrationAddress", d.RegistrationAddress)
	for k, v := range d.Extra {
		put(k, v)
	}
	return out
}

// fullNameScanLines bounds the name search: the holder's name is printed
// in the top block of the document, so only the first lines are scanned.
const fullNameScanLines = 5

var (
	nameTokenRe    = regexp.MustCompile(`^[А-ЯЁ][А-Яа-яЁё-]+$`)
	dateRe         = regexp.MustCompile(`\b\d{2}\.\d{2}\.\d{4}\b`)
	seriesNumberRe = regexp.MustCompile(`\b(\d{4})[ ]+(\d{6})\b`)
)

// issuedByKeywords mark a line as the issuing-authority line. The whole
// line is stored verbatim when any keyword occurs.
var issuedByKeywords = []string{"УФМС", "ФМС", "МВД", "ОВД", "УВД", "ГУВМ"}

// Parse extracts structured fields from raw multi-line OCR text.
// It is deterministic, never fails, and degrades to partial or empty
// results when patterns are absent.
func Parse(rawText string) RecognizedDocumentData {
	lines := splitLines(norm.NFC.String(rawText))

	data := RecognizedDocumentData{}
	data.FullName = extractFullName(lines)
	data.Birthday, data.PassportIssueDate = extractDates(lines)
	data.PassportSeries, data.PassportNumber = extractSeriesNumber(lines)
	data.Sex = extractSex(lines)
	data.PassportIssuedBy = extractIssuedBy(lines)
	return data
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// extractFullName looks for three consecutive capitalized Cyrillic word
// tokens within the first fullNameScanLines lines. First match wins.
func extractFullName(lines []string) string {
	limit := len(lines)
	if limit > fullNameScanLines {
		limit = fullNameScanLines
	}
	for _, line := range lines[:limit] {
		tokens := strings.Fields(line)
		for i := 0; i+3 <= len(tokens); i++ {
			if nameTokenRe.MatchString(tokens[i]) &&
				nameTokenRe.MatchString(tokens[i+1]) &&
				nameTokenRe.MatchString(tokens[i+2]) {
				return tokens[i] + " " + tokens[i+1] + " " + tokens[i+2]
			}
		}
	}
	return ""
}

// extractDates collects DD.MM.YYYY tokens across all lines in reading
// order. The first date is the birthday, the second the issue date.
// This is a positional heuristic: the fields are not labeled on the
// scan, and a non-standard layout may swap them.
func extractDates(lines []string) (birthday, issueDate string) {
	var dates []string
	for _, line := range lines {
		dates = append(dates, dateRe.FindAllString(line, -1)...)
	}
	if len(dates) > 0 {
		birthday = dates[0]
	}
	if len(dates) > 1 {
		issueDate = dates[1]
	}
	return birthday, issueDate
}

// extractSeriesNumber finds the first NNNN NNNNNN digit pair.
func extractSeriesNumber(lines []string) (series, number string) {
	for _, line := range lines {
		if m := seriesNumberRe.FindStringSubmatch(line); m != nil {
			return m[1], m[2]
		}
	}
	return "", ""
}

// extractSex finds the first sex token and normalizes it to "M"/"F".
func extractSex(lines []string) string {
	for _, line := range lines {
		tokens := strings.FieldsFunc(line, func(r rune) bool {
			return !unicode.IsLetter(r)
		})
		for _, token := range tokens {
			switch strings.ToUpper(token) {
			case "МУЖ", "М", "MALE":
				return "M"
			case "ЖЕН", "Ж", "FEMALE":
				return "F"
			}
		}
	}
	return ""
}

// extractIssuedBy stores the first line containing an issuing-authority
// keyword, verbatim.
func extractIssuedBy(lines []string) string {
	for _, line := range lines {
		upper := strings.ToUpper(line)
		for _, keyword := range issuedByKeywords {
			if strings.Contains(upper, keyword) {
				return line
			}
		}
	}
	return ""
}
