package planner

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AppleLamps/Grok-Imagine-FAL/internal/domain"
)

//go:embed roles.yaml
var defaultRoles []byte

type roleBook struct {
	SettingsRule   string  `yaml:"settings_rule"`
	PromptGuidance string  `yaml:"prompt_guidance"`
	Scenes         []scene `yaml:"scenes"`
}

type scene struct {
	Number    int               `yaml:"number"`
	Role      string            `yaml:"role"`
	Directive string            `yaml:"directive"`
	Brief     string            `yaml:"brief"`
	Closing   string            `yaml:"closing"`
	Methods   map[string]string `yaml:"methods"`
}

func loadRoles(raw []byte) (roleBook, error) {
	var book roleBook
	if err := yaml.Unmarshal(raw, &book); err != nil {
		return roleBook{}, fmt.Errorf("planner: parse roles: %w", err)
	}
	if len(book.Scenes) != domain.SceneCount {
		return roleBook{}, fmt.Errorf("planner: roles define %d scenes, want %d", len(book.Scenes), domain.SceneCount)
	}
	for i, s := range book.Scenes {
		if s.Number != i+1 {
			return roleBook{}, fmt.Errorf("planner: role %d is numbered %d", i+1, s.Number)
		}
		for _, m := range domain.AllowedMethods(s.Number, true) {
			if strings.TrimSpace(s.Methods[string(m)]) == "" {
				return roleBook{}, fmt.Errorf("planner: scene %d has no description for %s", s.Number, m)
			}
		}
	}
	return book, nil
}

func (b roleBook) scene(n int) scene {
	return b.Scenes[n-1]
}

// systemPrompt lists only the methods the scene may use, in offer order.
func (b roleBook) systemPrompt(n int, methods []domain.Method) string {
	s := b.scene(n)
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(s.Brief))
	sb.WriteString("\n\n")
	sb.WriteString(strings.TrimSpace(b.SettingsRule))
	sb.WriteString("\n\nYou must choose ONE method:\n")
	for i, m := range methods {
		fmt.Fprintf(&sb, "\n%d. %q: %s\n", i+1, m, strings.TrimSpace(s.Methods[string(m)]))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.TrimSpace(b.PromptGuidance))
	if c := strings.TrimSpace(s.Closing); c != "" {
		sb.WriteString("\n\n")
		sb.WriteString(c)
	}
	return sb.String()
}
