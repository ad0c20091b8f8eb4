package analysis

import (
	"fmt"
	"time"
)

const (
	analystSystemPrompt = "You are a senior market analyst with 15 years of experience in trade opportunities analysis and strategic market intelligence. You provide data-driven, actionable insights."
	criticSystemPrompt  = "You are a quality assurance reviewer for market analysis reports. You MUST output valid JSON only. Judge fairly against realistic expectations for news-derived data and PASS reports that show reasonable extraction effort and meet the baseline."
	refinerSystemPrompt = "You are a senior market analyst revising your report to meet strict editorial standards. Address every critique point and add specific data."
	formatSystemPrompt  = "You are a data extraction specialist. You extract structured information from documents accurately and only return valid JSON."
)

func analysisPrompt(sector, country, grounding string, now time.Time) string {
	title := TitleCase(sector)
	return fmt.Sprintf(`ROLE: You are an expert %[2]s market analyst with deep knowledge of the %[1]s sector.

CONSTRAINT: Output a structured Markdown report ONLY. No preamble and no conversational text.

MARKET INTELLIGENCE (articles are delimited by ---Article N--- markers, each with SOURCE, TITLE and URL):
%[3]s

TASK: Produce a professional report focused on actionable trade opportunities in the %[1]s sector.

REQUIRED STRUCTURE:
# %[4]s Sector - Trade Opportunities Analysis (%[2]s)
## Executive Summary
3-4 sentences citing specific figures, percentages or timeframes from the articles.
## Market Overview
Market size, growth rate, key players and recent policy changes. Cite the source for every number.
## Trade Opportunities
### Export Opportunities
### Import Opportunities
### Domestic Trade Opportunities
## Sector Analysis
### Strengths
### Challenges
### Emerging Trends
## Investment Considerations
## Regulatory Framework
## Actionable Recommendations
5-7 specific steps for businesses entering the sector.
## Market Outlook (Next 12-24 Months)

---
*Report generated on: %[5]s*
*Sector: %[4]s*
*Market: %[2]s*

RULES:
1. Extract and cite every quantitative data point present in the articles, with attribution (e.g. "According to Economic Times...").
2. Reference developments from %[6]d where the articles allow it.
3. Opportunities must be specific (product, market, partner), never generic.
4. Every section must be substantial. No placeholders.
5. Do not invent data that is not in the articles. If the context says no external data is available, label figures as estimates.
`, sector, country, grounding, title, now.UTC().Format("January 02, 2006"), now.Year())
}

func critiquePrompt(sector, report string) string {
	return fmt.Sprintf(`ROLE: Senior editorial reviewer of %s sector market analysis for institutional readers.

REPORT TO REVIEW:
%s

CRITERIA:
1. DATA SPECIFICITY: at least 2-3 specific numbers, percentages, market sizes or growth rates with attribution.
2. TRADE OPPORTUNITY PRECISION: export/import opportunities name products, target markets or partners.
3. CURRENT RELEVANCE: references recent events, policies or data.
4. ACTIONABILITY: recommendations have concrete steps, timeframes and requirements.
5. COMPLETENESS: every section has substance.
6. NO HALLUCINATION: claims stay grounded in the source data.

Web-sourced news has inherent data limits. PASS when the report shows reasonable extraction effort and meets the minimum thresholds. FAIL only for critical deficiencies such as zero quantitative data, generic opportunities or missing sections.

RESPONSE: a JSON object with exactly two keys:
- "decision": "PASS" or "FAIL"
- "reason": one sentence for PASS, the failing criteria for FAIL

Example: {"decision": "FAIL", "reason": "Criterion 1: only one number cited. Criterion 2: export opportunities too generic."}
`, sector, report)
}

func refinePrompt(sector, country, report string, critique Critique, grounding string) string {
	return fmt.Sprintf(`ROLE: You are revising your own %[1]s sector report for %[2]s after it was rejected by an editor.

YOUR PREVIOUS REPORT:
%[3]s

EDITORIAL FEEDBACK:
%[4]s

SOURCE DATA (re-read carefully):
%[5]s

TASK: Rewrite the report and fix every point in the feedback.
- Pull missing numbers from the source data with attribution.
- Replace vague statements with specifics (rates, timeframes, products, markets).
- Every recommendation needs an action, a target, a timeframe and an expected outcome.
- Keep the same Markdown structure and section headers.

OUTPUT: the complete Markdown report starting with the title line.
`, sector, country, report, critique.Reason, grounding)
}

func formatPrompt(report string) string {
	return fmt.Sprintf(`TASK: Extract key data points from this market analysis report.

REPORT:
%s

EXTRACT:
1. The current or projected market size (e.g. "USD 400 billion").
2. The growth rate or CAGR (e.g. "12%% CAGR (2023-2028)").
3. The three most actionable recommendations, one full sentence each.

OUTPUT (JSON only):
{"market_size": "...", "growth_cagr": "...", "top_recommendations": ["...", "...", "..."]}

Use null for values that are not present. Copy text from the report, do not paraphrase.
`, report)
}
