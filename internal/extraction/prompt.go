package extraction

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"trialscope/internal/registry/ctgov"
	"trialscope/internal/services"
)

//go:embed default_prompt.tmpl
var defaultPromptText string

// PromptData is the value prompt templates are executed against.
type PromptData struct {
	NCTID      string
	Title      string
	Status     string
	Conditions []string
	// Record is the whole registry record as indented JSON.
	Record string
}

// Prompt renders per-trial prompts.
type Prompt struct {
	tmpl *template.Template
}

// DefaultPrompt returns the built-in extraction prompt.
func DefaultPrompt() *Prompt {
	return &Prompt{tmpl: template.Must(newTemplate("default").Parse(defaultPromptText))}
}

// ParsePrompt compiles text as a prompt template.
func ParsePrompt(name, text string) (*Prompt, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "extraction", "parse prompt", "template is empty", nil)
	}
	tmpl, err := newTemplate(name).Parse(text)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "extraction", "parse prompt", name, err)
	}
	return &Prompt{tmpl: tmpl}, nil
}

// LoadPrompt reads and compiles the template at path.
func LoadPrompt(path string) (*Prompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "extraction", "load prompt", path, err)
	}
	return ParsePrompt(filepath.Base(path), string(data))
}

func newTemplate(name string) *template.Template {
	return template.New(name).Option("missingkey=error")
}

// Render executes the template for one record.
func (p *Prompt) Render(record ctgov.Record) (string, error) {
	data, err := newPromptData(record)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := p.tmpl.Execute(&b, data); err != nil {
		return "", services.Wrap(services.ErrValidation, "extraction", "render prompt", record.NCTID(), err)
	}
	return b.String(), nil
}

func newPromptData(record ctgov.Record) (PromptData, error) {
	encoded, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return PromptData{}, services.Wrap(services.ErrValidation, "extraction", "render prompt", fmt.Sprintf("encode record %s", record.NCTID()), err)
	}
	return PromptData{
		NCTID:      record.NCTID(),
		Title:      record.BriefTitle(),
		Status:     ctgov.HumanizeStatus(record.OverallStatus()),
		Conditions: record.Conditions(),
		Record:     string(encoded),
	}, nil
}
