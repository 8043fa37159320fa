// Package transfer identifies internal transfers and pairs their
// debit/credit halves across accounts.
package transfer

import "regexp"

// candidatePatterns is the fixed set of transfer-indicating expressions
// used for Phase 1 candidacy. Matching one of these only nominates a
// transaction; confirmation comes from a cross-account counterpart or a
// keyword-confident fallback.
var candidatePatterns = []*regexp.Regexp{
	// Transfer verbs and internet banking phrasing.
	regexp.MustCompile(`(?i)\btransfer\b`),
	regexp.MustCompile(`(?i)\btfr\b`),
	regexp.MustCompile(`(?i)internet\s+(tfr|transfer)`),
	regexp.MustCompile(`(?i)netbank`),
	// Payment rails used between own accounts.
	regexp.MustCompile(`(?i)\bbpay\b`),
	regexp.MustCompile(`(?i)\bosko\b`),
	regexp.MustCompile(`(?i)\bpayid\b`),
	regexp.MustCompile(`(?i)fast\s+payment`),
	// Loan and mortgage vocabulary.
	regexp.MustCompile(`(?i)\bloan\b`),
	regexp.MustCompile(`(?i)\bmortgage\b`),
	regexp.MustCompile(`(?i)home\s*loan`),
	regexp.MustCompile(`(?i)\brefinanc`),
	regexp.MustCompile(`(?i)\bsettlement\b`),
	regexp.MustCompile(`(?i)\bdischarge\b`),
	regexp.MustCompile(`(?i)\bpayout\b`),
	regexp.MustCompile(`(?i)\bredraw\b`),
	regexp.MustCompile(`(?i)\brepayment\b`),
	// Named savings products.
	regexp.MustCompile(`(?i)\bnetsaver\b`),
	regexp.MustCompile(`(?i)\bgoal\s*saver\b`),
	regexp.MustCompile(`(?i)\bisaver\b`),
	regexp.MustCompile(`(?i)\bsaver\b`),
	regexp.MustCompile(`(?i)\bsavings\b`),
}

// isCandidate reports whether a description matches any
// transfer-indicating pattern.
func isCandidate(description string) bool {
	for _, pattern := range candidatePatterns {
		if pattern.MatchString(description) {
			return true
		}
	}
	return false
}
