package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPhase is returned for a phase outside the closed enumeration.
var ErrUnknownPhase = errors.New("unknown phase")

// DefaultSeedMessage opens a conversation when a phase sets no seed of its own.
const DefaultSeedMessage = "Hi! How can I help?"

// PhaseID identifies one of the four assistants. The zero value is not a phase.
type PhaseID int

const (
	PhaseEvaluate PhaseID = iota + 1
	PhaseDesign
	PhaseGenerate
	PhaseEvolve
)

// Phases lists every phase in presentation order.
func Phases() []PhaseID {
	return []PhaseID{PhaseEvaluate, PhaseDesign, PhaseGenerate, PhaseEvolve}
}

func (p PhaseID) String() string {
	switch p {
	case PhaseEvaluate:
		return "evaluate"
	case PhaseDesign:
		return "design"
	case PhaseGenerate:
		return "generate"
	case PhaseEvolve:
		return "evolve"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// ParsePhaseID converts a wire identifier such as "design" into a PhaseID.
func ParsePhaseID(s string) (PhaseID, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, p := range Phases() {
		if p.String() == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, s)
}

func (p PhaseID) MarshalText() ([]byte, error) {
	if _, ok := phaseConfigs[p]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPhase, int(p))
	}
	return []byte(p.String()), nil
}

func (p *PhaseID) UnmarshalText(text []byte) error {
	id, err := ParsePhaseID(string(text))
	if err != nil {
		return err
	}
	*p = id
	return nil
}

// PhaseConfig parameterizes the chat surface of one phase.
type PhaseConfig struct {
	ID           PhaseID `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	SystemPrompt string  `json:"systemPrompt"`
	Placeholder  string  `json:"placeholder"`
	SeedMessage  string  `json:"seedMessage"`
}

// Seed returns the welcome line the conversation starts with.
func (c PhaseConfig) Seed() string {
	if c.SeedMessage == "" {
		return DefaultSeedMessage
	}
	return c.SeedMessage
}

// DenialNotice is shown instead of the chat when the plan lacks the phase.
func (c PhaseConfig) DenialNotice() string {
	return c.Title + " is not available for your plan."
}

var phaseConfigs = map[PhaseID]PhaseConfig{
	PhaseEvaluate: {
		ID:           PhaseEvaluate,
		Title:        "Evaluate",
		Description:  "Understand market conditions, trend types, and foundational indicators.",
		SystemPrompt: "You are the Evaluate assistant. Provide basic market education and simple analyses (trend types, MA/RSI intros). Avoid coding.",
		Placeholder:  "Ask about trend types, MAs, RSI, etc.",
		SeedMessage:  "Welcome to Evaluate. Ask about trend types, moving averages, RSI, or basic market structure.",
	},
	PhaseDesign: {
		ID:           PhaseDesign,
		Title:        "Design",
		Description:  "Co-create a rules-based strategy concept using approved indicators.",
		SystemPrompt: "You are the Design assistant. Help the user define clear entry/exit rules using basic indicators. Avoid code—focus on rules.",
		Placeholder:  "Describe the idea you want to turn into rules…",
		SeedMessage:  "Describe your idea and we’ll convert it into clear, rules-based logic (no code here—just rules).",
	},
	PhaseGenerate: {
		ID:           PhaseGenerate,
		Title:        "Generate",
		Description:  "Turn finalized rules into code (NinjaScript / Pine), following platform standards.",
		SystemPrompt: "You are the Generate assistant. Produce complete, functional code from finalized rules. Keep to approved indicators.",
		Placeholder:  "Paste the finalized rules to generate code…",
		SeedMessage:  "Paste finalized rules, then choose target (e.g., NinjaScript). I’ll output complete, formatted code.",
	},
	PhaseEvolve: {
		ID:           PhaseEvolve,
		Title:        "Evolve",
		Description:  "Analyze uploaded backtests, suggest optimizations, and next steps.",
		SystemPrompt: "You are the Evolve assistant. Analyze historical results, find issues, and suggest targeted improvements.",
		Placeholder:  "Paste backtest summary or metrics for analysis…",
		SeedMessage:  "Upload a backtest summary or paste metrics; I’ll diagnose and propose targeted improvements.",
	},
}

// LookupPhase returns the configuration of id.
func LookupPhase(id PhaseID) (PhaseConfig, error) {
	cfg, ok := phaseConfigs[id]
	if !ok {
		return PhaseConfig{}, fmt.Errorf("%w: %d", ErrUnknownPhase, int(id))
	}
	return cfg, nil
}
