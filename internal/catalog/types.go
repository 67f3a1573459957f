package catalog

import "github.com/af-corp/pricewatch/internal/pricing"

// Model is a model descriptor from the upstream catalog Models API.
type Model struct {
	Slug                string       `json:"id"`
	CanonicalSlug       string       `json:"canonical_slug"`
	Name                string       `json:"name"`
	Description         string       `json:"description"`
	ContextLength       int          `json:"context_length"`
	Architecture        Architecture `json:"architecture"`
	SupportedParameters []string     `json:"supported_parameters"`
	TopProvider         TopProvider  `json:"top_provider"`
	HuggingFaceID       string       `json:"hugging_face_id"`

	// Pricing is nil when the catalog response carried no pricing blob.
	Pricing *pricing.CatalogPricing `json:"pricing"`
}

// Architecture describes a model's modality sets and tokenizer tags.
type Architecture struct {
	InputModalities  []string `json:"input_modalities"`
	OutputModalities []string `json:"output_modalities"`
	Tokenizer        string   `json:"tokenizer"`
	InstructType     string   `json:"instruct_type"`
}

// TopProvider is the free-form metadata the catalog attaches to the model's
// primary upstream.
type TopProvider struct {
	ContextLength       int  `json:"context_length"`
	MaxCompletionTokens *int `json:"max_completion_tokens"`
	IsModerated         bool `json:"is_moderated"`
}

// Provider is a provider descriptor from the upstream catalog Providers API.
type Provider struct {
	Slug               string `json:"slug"`
	Name               string `json:"name"`
	PrivacyPolicyURL   string `json:"privacy_policy_url"`
	TermsOfServiceURL  string `json:"terms_of_service_url"`
	StatusPageURL      string `json:"status_page_url"`
	MayLogPrompts      bool   `json:"may_log_prompts"`
	MayTrainOnData     bool   `json:"may_train_on_data"`
	ModerationRequired bool   `json:"moderation_required"`
}

// Filters narrow the model listing to entities the collector cares about.
type Filters struct {
	SupportedParameters string
	InputModalities     string
	OutputModalities    string
	Distillable         *bool
}

// UsageReport is the usage accounting block of a verification call.
type UsageReport struct {
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	Cost             float64     `json:"cost"`
	CostDetails      CostDetails `json:"cost_details"`
}

// CostDetails carries the upstream-billed figure next to the aggregate cost.
type CostDetails struct {
	UpstreamInferenceCost float64 `json:"upstream_inference_cost"`
}
