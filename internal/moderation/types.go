package moderation

// CheckRequest is published to moderation.check when a discussion
// message needs out-of-band review.
type CheckRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Ts        int64  `json:"ts"`
}

// CheckResult is published back on moderation.result.<session_id> with
// the verdict.
type CheckResult struct {
	SessionID string  `json:"session_id"`
	Verdict   Verdict `json:"verdict"`
}
