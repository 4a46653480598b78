package cmd

import (
	"github.com/nextlevelbuilder/surprisebot/internal/config"
	"github.com/nextlevelbuilder/surprisebot/internal/providers"
)

// registerProviders builds one providers.Provider per configured API key and
// registers it under its canonical name. Providers with no key set are
// skipped — config.HasAnyProvider is the caller's signal that at least one
// of these will register.
func registerProviders(reg *providers.Registry, cfg *config.Config) {
	p := cfg.Providers

	if p.Anthropic.APIKey != "" {
		opts := []providers.AnthropicOption{}
		if p.Anthropic.APIBase != "" {
			opts = append(opts, providers.WithAnthropicBaseURL(p.Anthropic.APIBase))
		}
		reg.Register(providers.NewAnthropicProvider(p.Anthropic.APIKey, opts...))
	}
	if p.OpenAI.APIKey != "" {
		reg.Register(providers.NewOpenAIProvider("openai", p.OpenAI.APIKey, p.OpenAI.APIBase, "gpt-4o"))
	}
	if p.OpenRouter.APIKey != "" {
		base := p.OpenRouter.APIBase
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		reg.Register(providers.NewOpenAIProvider("openrouter", p.OpenRouter.APIKey, base, "anthropic/claude-sonnet-4.5"))
	}
	if p.Groq.APIKey != "" {
		base := p.Groq.APIBase
		if base == "" {
			base = "https://api.groq.com/openai/v1"
		}
		reg.Register(providers.NewOpenAIProvider("groq", p.Groq.APIKey, base, "llama-3.3-70b-versatile"))
	}
	if p.Gemini.APIKey != "" {
		base := p.Gemini.APIBase
		if base == "" {
			base = "https://generativelanguage.googleapis.com/v1beta/openai"
		}
		reg.Register(providers.NewOpenAIProvider("gemini", p.Gemini.APIKey, base, "gemini-2.5-pro"))
	}
	if p.DeepSeek.APIKey != "" {
		base := p.DeepSeek.APIBase
		if base == "" {
			base = "https://api.deepseek.com/v1"
		}
		reg.Register(providers.NewOpenAIProvider("deepseek", p.DeepSeek.APIKey, base, "deepseek-chat"))
	}
	if p.Mistral.APIKey != "" {
		base := p.Mistral.APIBase
		if base == "" {
			base = "https://api.mistral.ai/v1"
		}
		reg.Register(providers.NewOpenAIProvider("mistral", p.Mistral.APIKey, base, "mistral-large-latest"))
	}
	if p.XAI.APIKey != "" {
		base := p.XAI.APIBase
		if base == "" {
			base = "https://api.x.ai/v1"
		}
		reg.Register(providers.NewOpenAIProvider("xai", p.XAI.APIKey, base, "grok-2-latest"))
	}
	if p.MiniMax.APIKey != "" {
		base := p.MiniMax.APIBase
		if base == "" {
			base = "https://api.minimax.chat/v1"
		}
		reg.Register(providers.NewOpenAIProvider("minimax", p.MiniMax.APIKey, base, "abab6.5s-chat"))
	}
	if p.DashScope.APIKey != "" {
		reg.Register(providers.NewDashScopeProvider(p.DashScope.APIKey, p.DashScope.APIBase, ""))
	}
	if p.Cohere.APIKey != "" {
		base := p.Cohere.APIBase
		if base == "" {
			base = "https://api.cohere.ai/compatibility/v1"
		}
		reg.Register(providers.NewOpenAIProvider("cohere", p.Cohere.APIKey, base, "command-r-plus"))
	}
	if p.Perplexity.APIKey != "" {
		base := p.Perplexity.APIBase
		if base == "" {
			base = "https://api.perplexity.ai"
		}
		reg.Register(providers.NewOpenAIProvider("perplexity", p.Perplexity.APIKey, base, "sonar-pro"))
	}
}
