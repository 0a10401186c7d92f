// Package reasoning maps a canonical ReasoningSpec to the JSON fragment
// each upstream dialect expects and merges it into an outbound request
// body. Merges into object-valued keys recurse; everything else is a
// shallow top-level set.
package reasoning

import (
	"github.com/tidwall/sjson"

	"thinkproxy/internal/canonical"
)

// effortBudget is the default budget_tokens assigned per effort when the
// profile does not carry an explicit budget.
var effortBudget = map[canonical.Effort]int{
	canonical.EffortMinimal: 1024,
	canonical.EffortLow:     4096,
	canonical.EffortMedium:  16384,
	canonical.EffortHigh:    32768,
}

// EffortBudgetDefaults returns a copy of the effort->budget_tokens default
// table, for the /v1/config/reasoning/types catalog endpoint to render
// without duplicating the table.
func EffortBudgetDefaults() map[canonical.Effort]int {
	out := make(map[canonical.Effort]int, len(effortBudget))
	for k, v := range effortBudget {
		out[k] = v
	}
	return out
}

// budgetFor resolves the effective budget_tokens for a spec, using the
// explicit value if present, else the effort-to-budget default table.
// "auto" has no numeric default; callers that need it substitute a
// dialect-specific sentinel (e.g. gemini's -1).
func budgetFor(spec canonical.ReasoningSpec) (int, bool) {
	if spec.BudgetTokens != nil {
		return *spec.BudgetTokens, true
	}
	if b, ok := effortBudget[spec.Effort]; ok {
		return b, true
	}
	return 0, false
}

// deepMergeInto merges frag (a decoded JSON object) into body under path,
// key by key: a map value in frag recurses, so keys already present in
// body beside it are kept; any other value is set at its full path,
// replacing what was there.
func deepMergeInto(body []byte, path string, frag map[string]interface{}) []byte {
	for k, v := range frag {
		fullPath := path
		if fullPath != "" {
			fullPath += "."
		}
		fullPath += k
		if nested, ok := v.(map[string]interface{}); ok {
			body = deepMergeInto(body, fullPath, nested)
			continue
		}
		body, _ = sjson.SetBytes(body, fullPath, v)
	}
	return body
}

// Apply merges the fragment for spec into body (a dialect request JSON),
// returning the modified body. When spec is nil, body is returned
// unchanged. When Enabled is false or Effort is "none", the dialect's
// off-switch (or no-op for dialects with none) is applied instead.
func Apply(body []byte, spec *canonical.ReasoningSpec) []byte {
	if spec == nil {
		return body
	}
	if !spec.Enabled || spec.Effort == canonical.EffortNone {
		return applyOff(body, spec.Type)
	}
	return applyOn(body, *spec)
}

func applyOff(body []byte, t canonical.ReasoningType) []byte {
	switch t {
	case canonical.ReasoningDeepSeek:
		return deepMergeInto(body, "", map[string]interface{}{"thinking": map[string]interface{}{"type": "disabled"}})
	case canonical.ReasoningAnthropic:
		return deepMergeInto(body, "", map[string]interface{}{"thinking": map[string]interface{}{"type": "disabled"}})
	case canonical.ReasoningGemini:
		return deepMergeInto(body, "", map[string]interface{}{"thinkingConfig": map[string]interface{}{"thinkingBudget": 0}})
	case canonical.ReasoningQwen:
		return deepMergeInto(body, "", map[string]interface{}{"enable_thinking": false})
	case canonical.ReasoningOpenRouter:
		return deepMergeInto(body, "", map[string]interface{}{"reasoning": map[string]interface{}{"enabled": false}})
	case canonical.ReasoningOpenAI, canonical.ReasoningCustom:
		return body // no off-switch: omit the param entirely
	default:
		return body
	}
}

func applyOn(body []byte, spec canonical.ReasoningSpec) []byte {
	switch spec.Type {
	case canonical.ReasoningDeepSeek:
		return deepMergeInto(body, "", map[string]interface{}{"thinking": map[string]interface{}{"type": "enabled"}})

	case canonical.ReasoningOpenAI:
		effort := spec.Effort
		switch effort {
		case canonical.EffortMinimal:
			effort = canonical.EffortLow
		case canonical.EffortAuto:
			effort = canonical.EffortMedium
		}
		return deepMergeInto(body, "", map[string]interface{}{"reasoning_effort": string(effort)})

	case canonical.ReasoningAnthropic:
		budget, _ := budgetFor(spec)
		return deepMergeInto(body, "", map[string]interface{}{
			"thinking": map[string]interface{}{"type": "enabled", "budget_tokens": budget},
		})

	case canonical.ReasoningGemini:
		budget, ok := budgetFor(spec)
		thinkCfg := map[string]interface{}{"includeThoughts": true}
		if spec.Effort == canonical.EffortAuto {
			thinkCfg["thinkingBudget"] = -1
		} else if ok {
			thinkCfg["thinkingBudget"] = budget
		}
		return deepMergeInto(body, "", map[string]interface{}{"thinkingConfig": thinkCfg})

	case canonical.ReasoningQwen:
		return deepMergeInto(body, "", map[string]interface{}{"enable_thinking": true})

	case canonical.ReasoningOpenRouter:
		budget, _ := budgetFor(spec)
		return deepMergeInto(body, "", map[string]interface{}{
			"reasoning": map[string]interface{}{"enabled": true, "max_tokens": budget},
		})

	case canonical.ReasoningCustom:
		return deepMergeInto(body, "", spec.CustomParams)

	default:
		return body
	}
}
