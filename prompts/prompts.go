// Package prompts holds the prompt templates used by the contextual agent.
//
// Templates use single-brace placeholders such as {input}, {context} and
// {question}. A literal brace is written doubled ({{ or }}). Each template
// name accepts a fixed set of placeholders; anything else is rejected when
// the template is loaded, not when it is rendered.
package prompts

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Name identifies a prompt template.
type Name string

const (
	Presence  Name = "presence"
	Relevance Name = "relevance"
	Splitter  Name = "splitter"
	System    Name = "system"
	Answer    Name = "answer"
)

// OverrideFile is the optional YAML file in a prompts directory that
// replaces several templates at once.
const OverrideFile = "prompts.yaml"

//go:embed defaults.yaml
var defaultsYAML []byte

// allowed lists the placeholders each template may reference.
var allowed = map[Name][]string{ //nolint:gochecknoglobals
	Presence:  {"input"},
	Relevance: {"context", "question"},
	Splitter:  {"input"},
	System:    {"context", "question"},
	Answer:    {"context", "question"},
}

// required lists the placeholders a template must reference for the
// model to see its inputs at all.
var required = map[Name][]string{ //nolint:gochecknoglobals
	Presence:  {"input"},
	Relevance: {"context", "question"},
	Splitter:  {"input"},
	Answer:    {"context", "question"},
}

var placeholderRegex = regexp.MustCompile(`\{\{|\}\}|\{([A-Za-z_][A-Za-z0-9_]*)\}`) //nolint:gochecknoglobals

// Names returns every known template name in a stable order.
func Names() []Name {
	return []Name{Presence, Relevance, Splitter, System, Answer}
}

// Template is a parsed prompt.
type Template struct {
	Name         Name
	Description  string
	Text         string
	Placeholders []string
}

// Parse validates text as the template called name.
func Parse(name Name, text string) (Template, error) {
	ok, known := allowed[name]
	if !known {
		return Template{}, fmt.Errorf("unknown prompt template %q", name)
	}
	if strings.TrimSpace(text) == "" {
		return Template{}, fmt.Errorf("prompt template %q is empty", name)
	}

	seen := map[string]bool{}
	var found []string
	for _, m := range placeholderRegex.FindAllStringSubmatch(text, -1) {
		if m[1] == "" || seen[m[1]] {
			continue
		}
		if !contains(ok, m[1]) {
			return Template{}, fmt.Errorf("prompt template %q: unknown placeholder {%s} (allowed: %s)", name, m[1], strings.Join(ok, ", "))
		}
		seen[m[1]] = true
		found = append(found, m[1])
	}
	for _, r := range required[name] {
		if !seen[r] {
			return Template{}, fmt.Errorf("prompt template %q: missing placeholder {%s}", name, r)
		}
	}
	sort.Strings(found)
	return Template{Name: name, Text: text, Placeholders: found}, nil
}

// Render substitutes vars into the template. Every placeholder used by the
// template must have a value; extra vars are ignored.
func (t Template) Render(vars map[string]string) (string, error) {
	var missing []string
	out := placeholderRegex.ReplaceAllStringFunc(t.Text, func(m string) string {
		switch m {
		case "{{":
			return "{"
		case "}}":
			return "}"
		}
		key := m[1 : len(m)-1]
		v, ok := vars[key]
		if !ok {
			missing = append(missing, key)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("prompt template %q: no value for %s", t.Name, strings.Join(missing, ", "))
	}
	return strings.TrimSpace(out), nil
}

// Set is a concurrency-safe collection of templates. Reload swaps the whole
// collection at once so readers never observe a half-applied override.
type Set struct {
	mu        sync.RWMutex
	templates map[Name]Template
	source    string
}

// Default returns the built-in templates.
func Default() (*Set, error) {
	templates, err := parseDefaults()
	if err != nil {
		return nil, err
	}
	return &Set{templates: templates, source: "embedded"}, nil
}

// MustDefault is Default for package initialisation paths.
func MustDefault() *Set {
	s, err := Default()
	if err != nil {
		panic(err)
	}
	return s
}

// Load returns the built-in templates overridden by the contents of dir.
// An empty dir yields the defaults.
func Load(dir string) (*Set, error) {
	templates, err := loadDir(dir)
	if err != nil {
		return nil, err
	}
	return &Set{templates: templates, source: sourceName(dir)}, nil
}

// Reload re-reads dir. On error the current templates are kept.
func (s *Set) Reload(dir string) error {
	templates, err := loadDir(dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.templates = templates
	s.source = sourceName(dir)
	s.mu.Unlock()
	return nil
}

// Get returns the named template.
func (s *Set) Get(name Name) (Template, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[name]
	return t, ok
}

// Render renders the named template with vars.
func (s *Set) Render(name Name, vars map[string]string) (string, error) {
	t, ok := s.Get(name)
	if !ok {
		return "", fmt.Errorf("prompt template %q is not loaded", name)
	}
	return t.Render(vars)
}

// Source reports where the templates were loaded from.
func (s *Set) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

type corpus struct {
	Templates map[string]struct {
		Description string `yaml:"description"`
		Text        string `yaml:"text"`
	} `yaml:"templates"`
}

func parseDefaults() (map[Name]Template, error) {
	templates := make(map[Name]Template, len(allowed))
	if err := mergeYAML(templates, defaultsYAML); err != nil {
		return nil, fmt.Errorf("embedded prompts: %w", err)
	}
	for _, name := range Names() {
		if _, ok := templates[name]; !ok {
			return nil, fmt.Errorf("embedded prompts: template %q is missing", name)
		}
	}
	return templates, nil
}

func mergeYAML(into map[Name]Template, data []byte) error {
	var c corpus
	if err := yaml.Unmarshal(data, &c); err != nil {
		return err
	}
	for key, entry := range c.Templates {
		t, err := Parse(Name(key), entry.Text)
		if err != nil {
			return err
		}
		t.Description = entry.Description
		into[t.Name] = t
	}
	return nil
}

func loadDir(dir string) (map[Name]Template, error) {
	templates, err := parseDefaults()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return templates, nil
	}

	data, err := os.ReadFile(filepath.Join(dir, OverrideFile))
	switch {
	case err == nil:
		if err := mergeYAML(templates, data); err != nil {
			return nil, fmt.Errorf("%s: %w", OverrideFile, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	for _, name := range Names() {
		path := filepath.Join(dir, string(name)+".txt")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		t, err := Parse(name, string(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		t.Description = templates[name].Description
		templates[name] = t
	}
	return templates, nil
}

func sourceName(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return "embedded"
	}
	return dir
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
