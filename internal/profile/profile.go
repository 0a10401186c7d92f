// Package profile implements the routing record that binds model-name
// patterns to an upstream endpoint, and the resolution algorithm that
// picks one for an incoming model name.
package profile

import (
	"net/url"
	"regexp"
	"time"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/canonical"
)

// MatchType selects how a profile's model_patterns are tested against an
// incoming model name.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchWildcard MatchType = "wildcard"
	MatchRegex    MatchType = "regex"
)

// APIFormat identifies the upstream wire dialect a profile targets.
type APIFormat string

const (
	FormatOpenAI         APIFormat = "openai"
	FormatOpenAIResponse APIFormat = "openai-response"
	FormatAnthropic      APIFormat = "anthropic"
	FormatGemini         APIFormat = "gemini"
	FormatAzureOpenAI    APIFormat = "azure-openai"
)

// Upstream holds the connection details a profile routes to.
type Upstream struct {
	BaseURL   string    `json:"base_url"`
	APIKey    string    `json:"api_key"`
	APIFormat APIFormat `json:"api_format"`
}

// Profile is one routing and rendering record.
type Profile struct {
	ID            string                  `json:"id"`
	Name          string                  `json:"name"`
	ModelPatterns []string                `json:"model_patterns"`
	MatchType     MatchType               `json:"match_type"`
	Priority      int                     `json:"priority"`
	Enabled       bool                    `json:"enabled"`
	Upstream      Upstream                `json:"upstream"`
	LLMParams     canonical.LLMParams     `json:"llm_params"`
	Reasoning     canonical.ReasoningSpec `json:"reasoning"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`

	compiled []*regexp.Regexp // lazily built by Validate for match_type=regex
}

// Validate checks the profile invariants: at least one non-empty pattern
// if enabled, regex patterns compile, effort legal for type, base_url
// syntactically valid, budget_tokens non-negative if present.
func (p *Profile) Validate() error {
	if p.Enabled {
		hasPattern := false
		for _, pat := range p.ModelPatterns {
			if pat != "" {
				hasPattern = true
				break
			}
		}
		if !hasPattern {
			return apperr.ConfigInvalid("profile " + p.ID + ": enabled profile must have at least one non-empty model pattern")
		}
	}

	if p.MatchType == MatchRegex {
		p.compiled = make([]*regexp.Regexp, len(p.ModelPatterns))
		for i, pat := range p.ModelPatterns {
			re, err := regexp.Compile(anchor(pat))
			if err != nil {
				return apperr.Wrap(apperr.KindConfigInvalid, "profile "+p.ID+": invalid regex pattern "+pat, err)
			}
			p.compiled[i] = re
		}
	}

	if p.Reasoning.Type != "" && !canonical.EffortSupported(p.Reasoning.Type, p.Reasoning.Effort) {
		return apperr.ConfigInvalid("profile " + p.ID + ": effort " + string(p.Reasoning.Effort) + " is not supported for reasoning type " + string(p.Reasoning.Type))
	}

	if p.Reasoning.BudgetTokens != nil && *p.Reasoning.BudgetTokens < 0 {
		return apperr.ConfigInvalid("profile " + p.ID + ": budget_tokens must be >= 0")
	}

	if p.Upstream.BaseURL != "" {
		u, err := url.Parse(p.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return apperr.ConfigInvalid("profile " + p.ID + ": base_url is not a valid absolute URL")
		}
	}

	return nil
}

// anchor wraps a regex pattern with ^...$ so match_type=regex is always a
// full-string match, like exact and wildcard.
func anchor(pattern string) string {
	return "^(?:" + pattern + ")$"
}

// Matches reports whether model matches any of p's patterns under its
// match_type. Regex patterns must already be compiled via Validate.
func (p *Profile) Matches(model string) bool {
	switch p.MatchType {
	case MatchExact:
		for _, pat := range p.ModelPatterns {
			if pat == model {
				return true
			}
		}
	case MatchWildcard:
		for _, pat := range p.ModelPatterns {
			if wildcardMatch(pat, model) {
				return true
			}
		}
	case MatchRegex:
		for _, re := range p.compiled {
			if re != nil && re.MatchString(model) {
				return true
			}
		}
	}
	return false
}

// wildcardMatch implements full-string glob matching with '*' and '?',
// deliberately not path.Match/filepath.Match: those give '/' special
// meaning, and model ids like "vendor/model" contain slashes that '*'
// must be able to cross.
func wildcardMatch(pattern, s string) bool {
	return wildcardMatchRunes([]rune(pattern), []rune(s))
}

func wildcardMatchRunes(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	if pattern[0] == '*' {
		if wildcardMatchRunes(pattern[1:], s) {
			return true
		}
		for i := 0; i < len(s); i++ {
			if wildcardMatchRunes(pattern[1:], s[i+1:]) {
				return true
			}
		}
		return false
	}
	if len(s) == 0 {
		return false
	}
	if pattern[0] == '?' || pattern[0] == s[0] {
		return wildcardMatchRunes(pattern[1:], s[1:])
	}
	return false
}
