// Package skills loads markdown skill files — short, named capability
// descriptions with YAML frontmatter — from a global directory and an
// optional per-workspace/per-subagent directory, and exposes them to the
// agent loop either inlined into the system prompt or searchable via the
// skill_search tool.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Skill is one loaded skill file.
type Skill struct {
	Name        string
	Description string
	Path        string // absolute path to the skill file, for read_file follow-up
	Body        string // markdown body after the frontmatter
}

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Loader scans one or more directories for *.md skill files. Global skills
// apply to every agent; workspace skills are specific to one agent's
// workspace; skills from the subagent directory are added to the same set
// as the other two.
type Loader struct {
	globalDir   string
	workspaceDir string
	subagentDir string

	mu     sync.RWMutex
	skills []Skill
}

// NewLoader creates a Loader and performs an initial synchronous scan.
// Any of the three directories may be empty to skip that source.
func NewLoader(workspaceDir, globalDir, subagentDir string) *Loader {
	l := &Loader{
		globalDir:    globalDir,
		workspaceDir: workspaceDir,
		subagentDir:  subagentDir,
	}
	l.Reload()
	return l
}

// Reload re-scans all configured directories, replacing the in-memory skill
// set atomically. Safe to call concurrently with Filter/List/BuildSummary.
func (l *Loader) Reload() {
	var all []Skill
	for _, dir := range []string{l.globalDir, l.workspaceSkillsDir(), l.subagentSkillsDir()} {
		if dir == "" {
			continue
		}
		all = append(all, scanDir(dir)...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	l.mu.Lock()
	l.skills = all
	l.mu.Unlock()
}

func (l *Loader) workspaceSkillsDir() string {
	if l.workspaceDir == "" {
		return ""
	}
	return filepath.Join(l.workspaceDir, "skills")
}

func (l *Loader) subagentSkillsDir() string {
	return l.subagentDir
}

// ListSkills returns every loaded skill, unfiltered.
func (l *Loader) ListSkills() []Skill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Skill, len(l.skills))
	copy(out, l.skills)
	return out
}

// FilterSkills returns the subset of loaded skills whose name is in
// allowList. A nil/empty allowList means "all skills allowed".
func (l *Loader) FilterSkills(allowList []string) []Skill {
	all := l.ListSkills()
	if len(allowList) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(allowList))
	for _, a := range allowList {
		allowed[a] = true
	}
	var out []Skill
	for _, s := range all {
		if allowed[s.Name] {
			out = append(out, s)
		}
	}
	return out
}

// Get returns a single skill by name.
func (l *Loader) Get(name string) (Skill, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, s := range l.skills {
		if s.Name == name {
			return s, true
		}
	}
	return Skill{}, false
}

// Search ranks skills by substring match against name and description —
// skill_search's backing implementation. Matches on name rank above
// matches only on description.
func (l *Loader) Search(query string, allowList []string) []Skill {
	query = strings.ToLower(strings.TrimSpace(query))
	candidates := l.FilterSkills(allowList)
	if query == "" {
		return candidates
	}

	type scored struct {
		skill Skill
		rank  int
	}
	var scoredList []scored
	for _, s := range candidates {
		nameMatch := strings.Contains(strings.ToLower(s.Name), query)
		descMatch := strings.Contains(strings.ToLower(s.Description), query)
		switch {
		case nameMatch:
			scoredList = append(scoredList, scored{s, 2})
		case descMatch:
			scoredList = append(scoredList, scored{s, 1})
		}
	}
	sort.SliceStable(scoredList, func(i, j int) bool { return scoredList[i].rank > scoredList[j].rank })

	out := make([]Skill, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.skill
	}
	return out
}

// BuildSummary renders the allowed skills as an XML block suitable for
// inlining directly into the system prompt.
func (l *Loader) BuildSummary(allowList []string) string {
	filtered := l.FilterSkills(allowList)
	if len(filtered) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<available_skills>\n")
	for _, s := range filtered {
		fmt.Fprintf(&sb, "  <skill name=%q>%s</skill>\n", s.Name, s.Description)
	}
	sb.WriteString("</available_skills>")
	return sb.String()
}

// scanDir reads every *.md file in dir (non-recursive) and parses its
// leading "---\n...\n---" YAML frontmatter. Files without a parseable
// frontmatter name are skipped.
func scanDir(dir string) []Skill {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []Skill
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		fm, body := splitFrontmatter(string(data))
		if fm.Name == "" {
			continue
		}
		out = append(out, Skill{Name: fm.Name, Description: fm.Description, Path: path, Body: body})
	}
	return out
}

func splitFrontmatter(content string) (frontmatter, string) {
	const delim = "---"
	if !strings.HasPrefix(content, delim) {
		return frontmatter{}, content
	}
	rest := content[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx == -1 {
		return frontmatter{}, content
	}
	yamlPart := strings.TrimPrefix(rest[:idx], "\n")
	body := strings.TrimPrefix(rest[idx+len(delim)+1:], "\n")

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(yamlPart), &fm); err != nil {
		return frontmatter{}, content
	}
	return fm, body
}
