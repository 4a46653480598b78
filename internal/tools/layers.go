package tools

import (
	"path/filepath"
	"strings"
)

// Layer is one stage of the tool-policy pipeline: Apply keeps a tool name
// iff (allow unset or name in allow) and (deny unset or name not in deny).
// Layers are intersective — composing [A, B] is the same as composing
// [B, A] (§8 testable property: layering is associative-with-intersection).
type Layer struct {
	Name  string
	Allow []string // nil/empty = unset (no restriction)
	Deny  []string // nil/empty = unset (no restriction)
}

// Apply filters `current` against the layer's allow/deny sets, expanding
// any "group:xxx" entries via toolGroups.
func (l Layer) Apply(current []string) []string {
	out := current
	if len(l.Allow) > 0 {
		out = intersectWithSpec(out, l.Allow)
	}
	if len(l.Deny) > 0 {
		out = subtractSpec(out, l.Deny)
	}
	return out
}

// FoldLayers applies each layer in order (left fold), starting from
// allTools. FilterToolsLayered uses it for the last two stages of
// spec.md §4.3's 8-layer pipeline (sandboxPolicy, subagentPolicy); the
// first six run in evaluate() (policy.go).
func FoldLayers(allTools []string, layers []Layer) []string {
	current := copySlice(allTools)
	for _, layer := range layers {
		current = layer.Apply(current)
	}
	return current
}

// SandboxLayer builds the sandboxPolicy layer from a sandbox access mode:
// "none" denies every filesystem/runtime tool group, "ro" denies writes,
// "rw" imposes no restriction.
func SandboxLayer(access string) Layer {
	switch access {
	case "none":
		return Layer{Name: "sandboxPolicy", Deny: []string{"group:fs", "group:runtime"}}
	case "ro":
		return Layer{Name: "sandboxPolicy", Deny: []string{"write_file", "edit_file", "apply_patch", "exec"}}
	default:
		return Layer{Name: "sandboxPolicy"}
	}
}

// SubagentLayer builds the subagentPolicy layer, denying tools subagents
// must never use and — at the leaf of the spawn tree — the additional
// session-management tools a leaf subagent has no use for.
func SubagentLayer(isSubagent, isLeaf bool) Layer {
	if !isSubagent {
		return Layer{Name: "subagentPolicy"}
	}
	deny := append([]string{}, subagentDenyList...)
	if isLeaf {
		deny = append(deny, leafSubagentDenyList...)
	}
	return Layer{Name: "subagentPolicy", Deny: deny}
}

// SharedMemoryGuard wraps write/edit/apply-patch tools: a write whose
// resolved path equals the shared-memory file (or its symlink target)
// fails unless the current agent is in the allow-write list.
type SharedMemoryGuard struct {
	SharedPath     string
	AllowedAgents  map[string]bool
}

func NewSharedMemoryGuard(sharedPath string, allowedAgents []string) *SharedMemoryGuard {
	allowed := make(map[string]bool, len(allowedAgents))
	for _, a := range allowedAgents {
		allowed[a] = true
	}
	return &SharedMemoryGuard{SharedPath: sharedPath, AllowedAgents: allowed}
}

var writeGuardedTools = map[string]bool{
	"write_file":  true,
	"edit_file":   true,
	"apply_patch": true,
}

// Check returns a non-empty error message if agentID is not permitted to
// write to resolvedPath because it is the shared-memory file.
func (g *SharedMemoryGuard) Check(toolName, agentID, resolvedPath string) string {
	if g == nil || g.SharedPath == "" || !writeGuardedTools[toolName] {
		return ""
	}
	if !samePath(resolvedPath, g.SharedPath) {
		target, err := filepath.EvalSymlinks(g.SharedPath)
		if err != nil || !samePath(resolvedPath, target) {
			return ""
		}
	}
	if g.AllowedAgents[agentID] {
		return ""
	}
	return "writes to the shared memory file are restricted to its allow-write agents"
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
