package agent

import "fmt"

// BudgetError is returned by the runner's pre-flight budget check when the
// budget manager's decision is deny or defer. It is thrown before execution;
// the run ledger records status=failed.
type BudgetError struct {
	Decision string // "deny" | "defer"
	Reason   string
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("⚠️ budget %s: %s", e.Decision, e.Reason)
}

// PolicyError describes a policy denial (ledger status=failed). Nothing in
// this tree constructs it: there is no send-policy check, and the
// shared-memory write guard (tools.SharedMemoryGuard) reports a denied
// write as a tool error result, not as a PolicyError.
type PolicyError struct {
	Rule    string
	Message string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("⚠️ policy denied (%s): %s", e.Rule, e.Message)
}

// ValidationError marks a ledger record rejected for missing required
// fields. The producer logs and drops it; it never corrupts the stream.
type ValidationError struct {
	Kind   string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s record: missing %s (%s)", e.Kind, e.Field, e.Detail)
}

// ToolError wraps a tool execution failure surfaced back to the agent as an
// isError=true tool result. It is not run-fatal unless a strict tool-result
// policy escalates it to a user-visible block.
type ToolError struct {
	ToolName string
	Message  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.ToolName, e.Message)
}

// FatalError wraps any unhandled error caught in the runner's finally
// clause; status=failed is recorded and the original error is preserved.
type FatalError struct {
	Cause error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("⚠️ run failed: %s. Retry the command or inspect the run ledger for details.", e.Cause.Error())
}

func (e *FatalError) Unwrap() error { return e.Cause }
