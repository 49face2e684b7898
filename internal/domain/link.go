package domain

import "time"

// VerdictState is the tri-state outcome of link validation.
type VerdictState string

const (
	LinkValid   VerdictState = "VALID"
	LinkInvalid VerdictState = "INVALID"
	LinkUnknown VerdictState = "UNKNOWN"
)

// Verdict reason tags, recorded so callers can see which stage decided.
const (
	ReasonBadURLShape        = "bad_url_shape"
	ReasonFetchFailed        = "fetch_failed"
	ReasonUnavailablePattern = "unavailable_pattern"
	ReasonProductSignals     = "product_signals"
	ReasonVisionJudge        = "vision_judge"
	ReasonTextJudge          = "text_judge"
	ReasonInconclusive       = "inconclusive"
	ReasonDomainBackoff      = "domain_backoff"
)

// LinkVerdict is the cached result of validating one product URL.
type LinkVerdict struct {
	URL       string        `json:"url"`
	State     VerdictState  `json:"state"`
	Reason    string        `json:"reason"`
	CheckedAt time.Time     `json:"checked_at"`
	TTL       time.Duration `json:"ttl"`
	Cached    bool          `json:"cached"`
}

// JudgeAnswer is the strict yes/no contract an external judge satisfies.
type JudgeAnswer string

const (
	JudgeYes JudgeAnswer = "YES"
	JudgeNo  JudgeAnswer = "NO"
)
