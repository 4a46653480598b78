package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/surprisebot/internal/skills"
)

// SkillSearchTool lets the agent look up a skill by keyword instead of
// having every skill inlined into the system prompt (used once the skill
// set is too large to inline — see resolveSkillsSummary in the agent loop).
type SkillSearchTool struct {
	loader *skills.Loader
}

func NewSkillSearchTool(loader *skills.Loader) *SkillSearchTool {
	return &SkillSearchTool{loader: loader}
}

func (t *SkillSearchTool) Name() string        { return "skill_search" }
func (t *SkillSearchTool) Description() string { return "Search available skills by keyword" }
func (t *SkillSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string", "description": "Keywords to search skill names and descriptions"},
		},
		"required": []string{"query"},
	}
}

func (t *SkillSearchTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.loader == nil {
		return SilentResult("no skills are configured")
	}
	query, _ := args["query"].(string)
	matches := t.loader.Search(query, nil)
	if len(matches) == 0 {
		return SilentResult(fmt.Sprintf("no skills matched %q", query))
	}

	var sb strings.Builder
	for _, s := range matches {
		fmt.Fprintf(&sb, "%s: %s (%s)\n", s.Name, s.Description, s.Path)
	}
	return SilentResult(sb.String())
}
