package profile

import "sort"

// Resolve picks the profile for an incoming model name: consider enabled
// profiles only, collect every profile with a matching pattern, sort by
// descending priority / ascending created_at / ascending id, and return
// the first. defaultProfile is substituted when nothing matches; it may be
// nil, in which case (nil, false) means "fail the request".
func Resolve(profiles []*Profile, model string, defaultProfile *Profile) (*Profile, bool) {
	matches := Matches(profiles, model)
	if len(matches) > 0 {
		return matches[0], true
	}
	if defaultProfile != nil {
		return defaultProfile, true
	}
	return nil, false
}

// Matches returns every enabled profile matching model, ordered by the
// same tie-break Resolve uses. The config API's profile-test endpoint
// reports this full list alongside the winning match.
func Matches(profiles []*Profile, model string) []*Profile {
	var out []*Profile
	for _, p := range profiles {
		if !p.Enabled {
			continue
		}
		if p.Matches(model) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}
