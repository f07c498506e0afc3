package gitutil

import "regexp"

const redacted = "***REDACTED_TOKEN***"

// tokenPatterns match the credential shapes that must never reach a log
// line, error message, or generated artifact: provider personal-access
// tokens and basic-auth userinfo embedded in a URL.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`gho_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`ghs_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`ghu_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`ghr_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	regexp.MustCompile(`://[^/@\s:]+:[^/@\s]+@`),
}

// Sanitize redacts every recognized credential pattern in s. All subprocess
// and library output surfaced to logs, error messages, or artifacts must be
// passed through this before it leaves the pipeline.
func Sanitize(s string) string {
	for _, p := range tokenPatterns {
		if p.MatchString(s) {
			if matchesURLUserinfo(p) {
				s = p.ReplaceAllString(s, "://"+redacted+"@")
				continue
			}
			s = p.ReplaceAllString(s, redacted)
		}
	}
	return s
}

func matchesURLUserinfo(p *regexp.Regexp) bool {
	return p.String() == `://[^/@\s:]+:[^/@\s]+@`
}
