package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"legaljudge-backend/models"
)

// DefaultIssue is used when no question presented can be found in the brief
const DefaultIssue = "Whether the lower court erred in its application of established legal principles."

var (
	petitionerLine = regexp.MustCompile(`(?im)^[ \t]*(?:PLAINTIFF|PETITIONER|APPELLANT)S?[ \t]*:[ \t]*(.+)$`)
	respondentLine = regexp.MustCompile(`(?im)^[ \t]*(?:DEFENDANT|RESPONDENT|APPELLEE)S?[ \t]*:[ \t]*(.+)$`)
	caseNumberRef  = regexp.MustCompile(`(?i)\b(?:Case|Docket)\s+No\.?\s*:?\s*([A-Za-z0-9][A-Za-z0-9\-/:]*)`)
	courtLine      = regexp.MustCompile(`(?im)^[ \t]*(IN THE [^\n]*COURT[^\n]*)$`)
	issueHeading   = regexp.MustCompile(`(?im)^[ \t]*(?:LEGAL ISSUES?|ISSUES? PRESENTED|QUESTIONS? PRESENTED|ISSUES?)[ \t]*:`)
	historyHeading = regexp.MustCompile(`(?im)^[ \t]*PROCEDURAL HISTORY[ \t]*:`)
	whetherClause  = regexp.MustCompile(`\bWhether\b[^.?]*[.?]`)
	blankLine      = regexp.MustCompile(`\n[ \t]*\n`)
	whitespaceRun  = regexp.MustCompile(`\s+`)
)

// DeriveCaseContext pulls the structured case fields out of extracted brief
// text. Fields that cannot be found are left empty, except the issue, which
// falls back to DefaultIssue.
func DeriveCaseContext(text string) models.CaseContext {
	clean := stripControl(text)

	cc := models.CaseContext{
		Petitioner: firstGroup(petitionerLine, clean),
		Respondent: firstGroup(respondentLine, clean),
		LowerCourt: firstGroup(courtLine, clean),
		Facts:      truncateRunes(strings.TrimSpace(clean), models.MaxFactsLength),
		Issue:      deriveIssue(clean),
	}
	if n := firstGroup(caseNumberRef, clean); n != "" {
		cc.CaseNumber = "No. " + strings.TrimRight(n, ".:")
	}
	if h := paragraphAfter(historyHeading, clean); h != "" {
		cc.ProceduralHistory = &h
	}
	return cc
}

// SearchQuery turns extracted text into a retrieval query: control
// characters removed, whitespace collapsed and capped at the backend limit.
func SearchQuery(text string) string {
	return truncateRunes(collapse(stripControl(text)), models.MaxQueryLength)
}

// PredictionRequestFor builds the facts/issue pair for outcome prediction
func PredictionRequestFor(cc models.CaseContext) models.PredictionRequest {
	return models.PredictionRequest{Facts: cc.Facts, Issue: cc.Issue}
}

func deriveIssue(text string) string {
	issue := paragraphAfter(issueHeading, text)
	if issue == "" {
		issue = collapse(whetherClause.FindString(text))
	}
	if issue == "" {
		return DefaultIssue
	}
	return truncateRunes(issue, models.MaxIssueLength)
}

// paragraphAfter returns the paragraph following the first heading match,
// whitespace collapsed. The paragraph ends at the first blank line.
func paragraphAfter(heading *regexp.Regexp, text string) string {
	loc := heading.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	rest := strings.TrimLeft(text[loc[1]:], " \t\r\n")
	if end := blankLine.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return collapse(rest)
}

func firstGroup(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// stripControl removes control characters other than line breaks and tabs
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r == '\r' || unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// truncateRunes cuts s to at most n characters
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
