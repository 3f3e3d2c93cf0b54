package agent

import (
	"github.com/kwhite/agentgraph/pkg/agentgraph/config"
	"github.com/kwhite/agentgraph/pkg/guardrails"
	"github.com/kwhite/agentgraph/pkg/retrieval"
)

// DefaultMaxIterations caps reasoning passes per turn.
const DefaultMaxIterations = 10

// DefaultSystemPrompt is inserted at the start of the conversation when
// the caller has not provided a system message.
const DefaultSystemPrompt = `You are a helpful AI assistant with access to document knowledge and tools.

Your capabilities:
- Answer questions based on retrieved document context
- Use tools to perform actions when needed
- Provide clear, accurate, and helpful responses

Guidelines:
- If you don't know something, say so
- Use retrieved context when available
- Execute tools when appropriate
- Be concise but thorough`

// Settings holds per-service tuning for the workflow.
type Settings struct {
	// SystemPrompt is prepended when the conversation has no system
	// message.
	SystemPrompt string

	// MaxIterations caps reasoning passes per turn. When reached, the
	// turn ends with a canned message instead of another model call.
	MaxIterations int

	// EnableTools allows the model to request tool executions.
	EnableTools bool

	// TopK and SimilarityThreshold tune context retrieval.
	TopK                int
	SimilarityThreshold float64

	// Guardrails configures the safety gate.
	Guardrails guardrails.Config
}

// DefaultSettings returns production defaults.
func DefaultSettings() Settings {
	return Settings{
		SystemPrompt:        DefaultSystemPrompt,
		MaxIterations:       DefaultMaxIterations,
		EnableTools:         true,
		TopK:                retrieval.DefaultTopK,
		SimilarityThreshold: retrieval.DefaultSimilarityThreshold,
		Guardrails:          guardrails.DefaultConfig(),
	}
}

// SettingsFromConfig builds Settings from a loaded configuration,
// filling gaps with defaults. Expected layout:
//
//	agent:
//	  system_prompt: "..."
//	  max_iterations: 10
//	  enable_tools: true
//	retrieval:
//	  top_k: 5
//	  similarity_threshold: 0.7
//	guardrails:
//	  enabled: true
//	  max_toxicity_score: 0.5
//	  pii_detection: true
//	  fallback_enabled: true
func SettingsFromConfig(cfg config.Config) Settings {
	s := DefaultSettings()

	ac := cfg.Sub("agent")
	s.SystemPrompt = ac.String("system_prompt", s.SystemPrompt)
	s.MaxIterations = ac.Int("max_iterations", s.MaxIterations)
	s.EnableTools = ac.Bool("enable_tools", s.EnableTools)

	rc := cfg.Sub("retrieval")
	s.TopK = rc.Int("top_k", s.TopK)
	s.SimilarityThreshold = rc.Float("similarity_threshold", s.SimilarityThreshold)

	gc := cfg.Sub("guardrails")
	s.Guardrails.Enabled = gc.Bool("enabled", s.Guardrails.Enabled)
	s.Guardrails.MaxToxicityScore = gc.Float("max_toxicity_score", s.Guardrails.MaxToxicityScore)
	s.Guardrails.PIIDetection = gc.Bool("pii_detection", s.Guardrails.PIIDetection)
	s.Guardrails.FallbackEnabled = gc.Bool("fallback_enabled", s.Guardrails.FallbackEnabled)

	return s
}
