package reply

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Mode tags a reply payload.
type Mode string

const (
	ModeRequirements Mode = "REQUIREMENTS"
	ModeDevelopment  Mode = "DEVELOPMENT"
	ModeResearch     Mode = "RESEARCH"
	ModeAudit        Mode = "AUDIT"
	ModeDeployment   Mode = "DEPLOYMENT"
	ModeGeneral      Mode = "GENERAL"
)

// Modes lists every mode the agent may answer in.
var Modes = []Mode{ModeRequirements, ModeDevelopment, ModeResearch, ModeAudit, ModeDeployment, ModeGeneral}

// ParseMode normalises s and reports whether it names a known mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Modes {
		if m == known {
			return m, true
		}
	}
	return m, false
}

// Body is the mode-specific part of a payload.
type Body interface {
	Mode() Mode
	validate() error
}

func newBody(m Mode) Body {
	switch m {
	case ModeRequirements:
		return &Requirements{}
	case ModeDevelopment:
		return &Development{}
	case ModeResearch:
		return &Research{}
	case ModeAudit:
		return &Audit{}
	case ModeDeployment:
		return &Deployment{}
	default:
		return &General{}
	}
}

type Requirements struct {
	Project      string          `json:"project"`
	Requirements []string        `json:"requirements"`
	Explanations json.RawMessage `json:"explanations"`
}

func (*Requirements) Mode() Mode { return ModeRequirements }

func (b *Requirements) validate() error {
	switch {
	case b.Project == "":
		return missing("project")
	case len(b.Requirements) == 0:
		return missing("requirements")
	case isNull(b.Explanations):
		return missing("explanations")
	}
	return nil
}

// File is one generated source file of a DEVELOPMENT reply.
type File struct {
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	Language     string `json:"language"`
	Explanation  string `json:"explanation,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
	// Extra holds any other keys the agent set on the file.
	Extra map[string]json.RawMessage `json:"-"`
}

var fileKeys = []string{"filename", "content", "language", "explanation", "lastModified"}

func (f *File) UnmarshalJSON(data []byte) error {
	type plain File
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range fileKeys {
		delete(all, k)
	}
	*f = File(p)
	f.Extra = nil
	if len(all) > 0 {
		f.Extra = all
	}
	return nil
}

// MarshalJSON writes the typed fields over Extra.
func (f File) MarshalJSON() ([]byte, error) {
	type plain File
	raw, err := json.Marshal(plain(f))
	if err != nil || len(f.Extra) == 0 {
		return raw, err
	}
	out := make(map[string]json.RawMessage, len(f.Extra)+len(fileKeys))
	for k, v := range f.Extra {
		out[k] = v
	}
	var typed map[string]json.RawMessage
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		out[k] = v
	}
	return json.Marshal(out)
}

type Development struct {
	Project string `json:"project"`
	Files   []File `json:"files"`
}

func (*Development) Mode() Mode { return ModeDevelopment }

func (b *Development) validate() error {
	if b.Project == "" {
		return missing("project")
	}
	if len(b.Files) == 0 {
		return missing("files")
	}
	for i, f := range b.Files {
		switch {
		case f.Filename == "":
			return missing(fmt.Sprintf("files[%d].filename", i))
		case f.Content == "":
			return missing(fmt.Sprintf("files[%d].content", i))
		case f.Language == "":
			return missing(fmt.Sprintf("files[%d].language", i))
		}
	}
	return nil
}

type Research struct {
	Project        string          `json:"project"`
	Overview       string          `json:"overview"`
	Research       string          `json:"research"`
	KeyFeatures    []string        `json:"key_features"`
	Explanations   json.RawMessage `json:"explanations,omitempty"`
	MarketAnalysis json.RawMessage `json:"market_analysis,omitempty"`
	RiskAnalysis   json.RawMessage `json:"risk_analysis,omitempty"`
}

func (*Research) Mode() Mode { return ModeResearch }

func (b *Research) validate() error {
	switch {
	case b.Project == "":
		return missing("project")
	case b.Overview == "":
		return missing("overview")
	case b.Research == "":
		return missing("research")
	case len(b.KeyFeatures) == 0:
		return missing("key_features")
	}
	return nil
}

// Audit checks may be plain strings or objects, so they are kept raw.
type Audit struct {
	Checks             []json.RawMessage `json:"checks"`
	FailedChecks       []json.RawMessage `json:"failed_checks,omitempty"`
	Explanations       json.RawMessage   `json:"explanations,omitempty"`
	FailedExplanations json.RawMessage   `json:"failed_explanations,omitempty"`
}

func (*Audit) Mode() Mode { return ModeAudit }

func (b *Audit) validate() error {
	if b.Checks == nil {
		return missing("checks")
	}
	return nil
}

type Deployment struct {
	DeploymentSteps []string        `json:"deployment_steps"`
	ABI             json.RawMessage `json:"abi,omitempty"`
	ContractAddress string          `json:"contract_address,omitempty"`
	TransactionURL  string          `json:"transaction_url,omitempty"`
	Explanations    json.RawMessage `json:"explanations,omitempty"`
}

func (*Deployment) Mode() Mode { return ModeDeployment }

func (b *Deployment) validate() error {
	if len(b.DeploymentSteps) == 0 {
		return missing("deployment_steps")
	}
	return nil
}

// General carries nothing beyond the common message fields.
type General struct{}

func (*General) Mode() Mode { return ModeGeneral }

func (*General) validate() error { return nil }

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
