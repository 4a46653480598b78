// Package bootstrap seeds and loads the per-agent workspace context files
// (AGENTS.md, SOUL.md, TOOLS.md, IDENTITY.md, USER.md, HEARTBEAT.md, and the
// transient BOOTSTRAP.md) that the agent loop folds into its system prompt
// on every run.
package bootstrap

import (
	"embed"
	"log/slog"
	"os"
	"path/filepath"
)

// Workspace file names the agent loop treats specially.
const (
	AgentsFile    = "AGENTS.md"
	SoulFile      = "SOUL.md"
	ToolsFile     = "TOOLS.md"
	IdentityFile  = "IDENTITY.md"
	UserFile      = "USER.md"
	HeartbeatFile = "HEARTBEAT.md"
	BootstrapFile = "BOOTSTRAP.md"
)

//go:embed templates/*.md
var templateFS embed.FS

// templateFiles lists the templates to seed, in order. BOOTSTRAP.md is
// handled separately — only seeded for brand-new workspaces.
var templateFiles = []string{
	AgentsFile,
	SoulFile,
	ToolsFile,
	IdentityFile,
	UserFile,
	HeartbeatFile,
}

// ContextFile is one workspace context file folded into the system prompt.
type ContextFile struct {
	Path    string
	Content string
}

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureWorkspaceFiles seeds template files into a workspace directory,
// writing only files that don't already exist. BOOTSTRAP.md is seeded only
// when the workspace is brand new (no AGENTS.md yet). Returns the list of
// files that were created.
func EnsureWorkspaceFiles(workspaceDir string) ([]string, error) {
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return nil, err
	}

	var created []string

	_, agentsErr := os.Stat(filepath.Join(workspaceDir, AgentsFile))
	isBrandNew := os.IsNotExist(agentsErr)

	for _, name := range templateFiles {
		ok, err := seedTemplate(workspaceDir, name)
		if err != nil {
			slog.Warn("bootstrap: failed to seed template", "file", name, "error", err)
			continue
		}
		if ok {
			created = append(created, name)
		}
	}

	if isBrandNew {
		ok, err := seedTemplate(workspaceDir, BootstrapFile)
		if err != nil {
			slog.Warn("bootstrap: failed to seed BOOTSTRAP.md", "error", err)
		} else if ok {
			created = append(created, BootstrapFile)
		}
	}

	return created, nil
}

func seedTemplate(workspaceDir, name string) (bool, error) {
	dstPath := filepath.Join(workspaceDir, name)

	f, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		os.Remove(dstPath)
		return false, err
	}

	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}

// allWorkspaceFiles is every file LoadWorkspaceFiles considers, in prompt
// order. BOOTSTRAP.md is last so its removal doesn't reorder the rest.
var allWorkspaceFiles = append(append([]string{}, templateFiles...), BootstrapFile)

// LoadWorkspaceFiles reads whichever of the known workspace context files
// currently exist, skipping any that are missing (e.g. BOOTSTRAP.md after
// cleanup, or a workspace that predates a newer template file).
func LoadWorkspaceFiles(workspaceDir string) []ContextFile {
	var files []ContextFile
	for _, name := range allWorkspaceFiles {
		data, err := os.ReadFile(filepath.Join(workspaceDir, name))
		if err != nil {
			continue
		}
		files = append(files, ContextFile{Path: name, Content: string(data)})
	}
	return files
}
