package analysis

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TitleCase renders a sector name for headings. A Caser keeps state
// between calls, so each call builds its own.
func TitleCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

func reportTitle(sector, country string) string {
	return fmt.Sprintf("# %s Sector - Trade Opportunities Analysis (%s)", TitleCase(sector), country)
}

// FallbackReport is used when the generator produced nothing.
func FallbackReport(sector, country string) string {
	return reportTitle(sector, country) + `

## Analysis Unavailable

Technical difficulties prevented analysis generation. Please retry or verify the language model configuration.

---
` + fmt.Sprintf("*Sector: %s | Market: %s | Status: Service Issue*\n", TitleCase(sector), country)
}

// ErrorReport replaces the report when the run itself was aborted.
func ErrorReport(sector, country, detail string) string {
	var b strings.Builder
	b.WriteString(reportTitle(sector, country))
	b.WriteString("\n\n## Workflow Error\n\n")
	b.WriteString("The analysis workflow encountered a critical error and could not complete.\n\n")
	b.WriteString("**Error Details:**\n```\n")
	b.WriteString(detail)
	b.WriteString("\n```\n\n## Recommended Actions\n\n")
	b.WriteString("1. Verify API configuration\n")
	b.WriteString("2. Check internet connection\n")
	b.WriteString("3. Review application logs\n")
	b.WriteString("4. Try again or contact support\n\n")
	fmt.Fprintf(&b, "*Sector: %s | Market: %s | Status: Error*\n", TitleCase(sector), country)
	return b.String()
}
