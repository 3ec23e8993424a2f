package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/sweetpotato0/agentgate/config"
)

// Template names registered by NewGatewayManager.
const (
	NameBase         = "base"
	NameAgent        = "agent"
	NameChat         = "chat"
	NameRequirements = "mode.requirements"
	NameResearch     = "mode.research"
	NameDevelopment  = "mode.development"
	NameAudit        = "mode.audit"
	NameDeployment   = "mode.deployment"
	NameGeneral      = "mode.general"
)

//go:embed defaults/base_instructions.txt
var defaultBase string

const defaultAgent = `{{.Base}}

{{.Modes}}
You are a helpful agent that can interact onchain through the wallet tools you have been given.
If you ever need funds, you can request them from a faucet if on '{{.Network}}'.
If you cannot do something with the current tools, politely explain that it is not supported.
`

const defaultChat = `{{.Base}}

You will read the user's message and first determine which of the following modes best applies:
(requirements, research, development, audit, deployment, or general).

Then produce the response strictly in that mode's format described above. If it's unclear, use "general".

User message: "{{.Message}}"
`

var defaultModes = []struct {
	name, title, text string
}{
	{NameRequirements, "Requirements", "The user wants to discuss new requirements. Provide helpful detail about how to gather requirements,\nsecurity considerations, and objectives. Also list some clarifying questions."},
	{NameResearch, "Research", "The user wants to research or analyze something. Provide thorough background research,\ncompetitor analysis, or relevant data."},
	{NameDevelopment, "Development", "The user wants to discuss development. Provide guidance on best practices, tools, and frameworks."},
	{NameAudit, "Audit", "The user wants to discuss auditing. Provide guidance on security audits, code reviews, and testing."},
	{NameDeployment, "Deployment", "The user wants to discuss deployment. Provide guidance on deployment strategies, hosting, and scaling."},
	{NameGeneral, "General", "The user has a general question. Provide a helpful response."},
}

// NewGatewayManager registers the gateway prompts, replacing each default
// with the matching non-empty override.
func NewGatewayManager(overrides config.PromptConfig) (*Manager, error) {
	m := NewManager()

	byName := map[string]string{
		NameBase:         overrides.Base,
		NameRequirements: overrides.Requirements,
		NameResearch:     overrides.Research,
		NameDevelopment:  overrides.Development,
		NameAudit:        overrides.Audit,
		NameDeployment:   overrides.Deployment,
		NameGeneral:      overrides.General,
	}
	pick := func(name, def string) string {
		if v := strings.TrimSpace(byName[name]); v != "" {
			return v
		}
		return strings.TrimSpace(def)
	}

	// Base and mode texts are registered verbatim: they contain literal JSON
	// braces and are never executed as templates.
	m.RegisterText(NameBase, pick(NameBase, defaultBase))
	for _, mode := range defaultModes {
		m.RegisterText(mode.name, pick(mode.name, mode.text))
	}
	if err := m.RegisterString(NameAgent, defaultAgent); err != nil {
		return nil, err
	}
	if err := m.RegisterString(NameChat, defaultChat); err != nil {
		return nil, err
	}
	return m, nil
}

// SystemPrompt renders the agent's system prompt for the given network.
func (m *Manager) SystemPrompt(network string) (string, error) {
	base, err := m.Text(NameBase)
	if err != nil {
		return "", err
	}

	b := NewBuilder()
	b.AddLine("Mode guidance:")
	for _, mode := range defaultModes {
		text, err := m.Text(mode.name)
		if err != nil {
			return "", err
		}
		b.AddSection(mode.title, text)
	}

	return m.Render(NameAgent, map[string]any{
		"Base":    base,
		"Modes":   b.Build(),
		"Network": network,
	})
}

// ChatPrompt wraps a user message with the mode-selection instructions.
func (m *Manager) ChatPrompt(userMessage string) (string, error) {
	base, err := m.Text(NameBase)
	if err != nil {
		return "", err
	}
	out, err := m.Render(NameChat, map[string]any{
		"Base":    base,
		"Message": userMessage,
	})
	if err != nil {
		return "", fmt.Errorf("render chat prompt: %w", err)
	}
	return out, nil
}
