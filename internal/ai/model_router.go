package ai

import "strings"

type TaskKind string

const (
	TaskConcept   TaskKind = "concept"
	TaskSalesPage TaskKind = "sales_page"
)

type ModelProfile struct {
	PrimaryModel    string
	FallbackModel   string
	Temperature     float64
	MaxOutputTokens int
}

type ModelRouterConfig struct {
	ConceptPrimary  string
	ConceptFallback string

	SalesPagePrimary  string
	SalesPageFallback string
}

// ModelRouter maps each analysis kind to a model profile so operators can
// tune model choice per task type without touching handler code.
type ModelRouter struct {
	config ModelRouterConfig
}

func NewModelRouter(config ModelRouterConfig) *ModelRouter {
	if strings.TrimSpace(config.ConceptPrimary) == "" {
		config.ConceptPrimary = "gpt-4o"
	}
	if strings.TrimSpace(config.ConceptFallback) == "" {
		config.ConceptFallback = "gpt-4o-mini"
	}
	if strings.TrimSpace(config.SalesPagePrimary) == "" {
		config.SalesPagePrimary = "gpt-4o"
	}
	if strings.TrimSpace(config.SalesPageFallback) == "" {
		config.SalesPageFallback = "gpt-4o-mini"
	}

	return &ModelRouter{config: config}
}

func (r *ModelRouter) Select(task TaskKind) ModelProfile {
	switch task {
	case TaskConcept:
		return ModelProfile{
			PrimaryModel:    r.config.ConceptPrimary,
			FallbackModel:   r.config.ConceptFallback,
			Temperature:     0.2,
			MaxOutputTokens: 2000,
		}
	case TaskSalesPage:
		return ModelProfile{
			PrimaryModel:    r.config.SalesPagePrimary,
			FallbackModel:   r.config.SalesPageFallback,
			Temperature:     0.2,
			MaxOutputTokens: 1600,
		}
	default:
		return ModelProfile{
			PrimaryModel:    r.config.ConceptPrimary,
			FallbackModel:   r.config.ConceptFallback,
			Temperature:     0.2,
			MaxOutputTokens: 1600,
		}
	}
}
