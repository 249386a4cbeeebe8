package gen

import "fmt"

// ValidationError rejects a request locally; no remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}

// RateLimitError maps HTTP 429 from the gateway.
type RateLimitError struct {
	Capability Capability
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded, please retry in a moment", e.Capability)
}

// QuotaError maps HTTP 402: the workspace is out of credits.
type QuotaError struct {
	Capability Capability
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: insufficient credits, add credits to your workspace", e.Capability)
}

// ContractError reports a well-formed response that violates the agreed
// shape, most often a wrong item count. The client never truncates or
// pads to repair it.
type ContractError struct {
	Capability Capability
	Detail     string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: response violates contract: %s", e.Capability, e.Detail)
}

// TimeoutError is raised only by solve when the 55s bound elapses.
type TimeoutError struct {
	Capability Capability
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out, retry with shorter input", e.Capability)
}

// UpstreamError covers every other non-2xx gateway response.
type UpstreamError struct {
	Capability Capability
	Status     int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: gateway error (status %d): %s", e.Capability, e.Status, e.Message)
}
