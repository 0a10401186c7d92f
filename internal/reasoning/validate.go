package reasoning

import "thinkproxy/internal/canonical"

// fallbacks lists, per effort, the substitution order tried when a dialect
// does not support the requested effort. The chain prefers the nearest
// effort that keeps reasoning enabled; "none" is the last resort. Config
// writes reject an unsupported effort outright (see the profile package);
// the fallback applies only in Normalize, which the chat handler runs at
// request time on the resolved profile's reasoning spec.
var fallbacks = map[canonical.Effort][]canonical.Effort{
	canonical.EffortAuto:    {canonical.EffortMedium, canonical.EffortLow, canonical.EffortHigh, canonical.EffortNone},
	canonical.EffortMinimal: {canonical.EffortLow, canonical.EffortMedium, canonical.EffortAuto, canonical.EffortNone},
	canonical.EffortLow:     {canonical.EffortMinimal, canonical.EffortMedium, canonical.EffortAuto, canonical.EffortNone},
	canonical.EffortMedium:  {canonical.EffortLow, canonical.EffortHigh, canonical.EffortAuto, canonical.EffortNone},
	canonical.EffortHigh:    {canonical.EffortMedium, canonical.EffortLow, canonical.EffortAuto, canonical.EffortNone},
}

// Normalize returns spec with Effort replaced by the nearest effort the
// dialect supports. If spec.Effort is already supported, spec is returned
// unchanged.
func Normalize(t canonical.ReasoningType, spec canonical.ReasoningSpec) canonical.ReasoningSpec {
	if canonical.EffortSupported(t, spec.Effort) {
		return spec
	}
	for _, e := range fallbacks[spec.Effort] {
		if canonical.EffortSupported(t, e) {
			spec.Effort = e
			return spec
		}
	}
	spec.Effort = canonical.EffortNone
	return spec
}
