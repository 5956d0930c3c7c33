package agent

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// SkillConfig is one tool-source entry understood by the agent CLI, either a
// remote MCP endpoint or a locally installed bundle.
type SkillConfig struct {
	Type      string `json:"type"`
	Transport string `json:"transport,omitempty"`
	URL       string `json:"url,omitempty"`
	Name      string `json:"name,omitempty"`
	Path      string `json:"path,omitempty"`
}

// BridgeSkill builds the ephemeral tool source pointing the agent's tool
// resolution at the bridge listener for a single run.
func BridgeSkill(baseURL string) SkillConfig {
	return SkillConfig{Type: "mcp", Transport: "sse", URL: baseURL}
}

// SkillOverride serializes skills into the configuration assignment the CLI
// accepts as a -c flag.
func SkillOverride(skills ...SkillConfig) (string, error) {
	data, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("marshal skill override: %w", err)
	}
	return "skills=" + string(data), nil
}

// FileConfig is the agent's persistent configuration document.
type FileConfig struct {
	Model  string        `json:"model,omitempty"`
	Skills []SkillConfig `json:"skills,omitempty"`
}

// LoadFileConfig reads the agent's persistent config. A missing file yields
// an empty config.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &FileConfig{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read agent config: %w", err)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse agent config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config document, creating parent directories as needed.
func (c *FileConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create agent config dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write agent config: %w", err)
	}
	return nil
}

// EnsureConfig makes sure the agent's persistent config exists and names the
// given model, preserving any skills already registered there.
func EnsureConfig(path, model string) error {
	cfg, err := LoadFileConfig(path)
	if err != nil {
		return err
	}
	if cfg.Model == model {
		return nil
	}
	cfg.Model = model
	return cfg.Save(path)
}

// InstallSkill copies a skill bundle directory into skillsDir and returns the
// local tool-source entry for it. An existing bundle with the same name is
// replaced.
func InstallSkill(srcDir, skillsDir string) (SkillConfig, error) {
	info, err := os.Stat(srcDir)
	if err != nil {
		return SkillConfig{}, fmt.Errorf("skill bundle %s: %w", srcDir, err)
	}
	if !info.IsDir() {
		return SkillConfig{}, fmt.Errorf("skill bundle %s: not a directory", srcDir)
	}

	name := filepath.Base(filepath.Clean(srcDir))
	dest := filepath.Join(skillsDir, name)
	if err := os.RemoveAll(dest); err != nil {
		return SkillConfig{}, fmt.Errorf("clear old skill bundle: %w", err)
	}
	if err := copyTree(srcDir, dest); err != nil {
		return SkillConfig{}, fmt.Errorf("install skill %s: %w", name, err)
	}
	return SkillConfig{Type: "local", Name: name, Path: dest}, nil
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
