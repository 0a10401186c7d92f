package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/auth"
	"thinkproxy/internal/canonical"
	"thinkproxy/internal/configstore"
	"thinkproxy/internal/profile"
	"thinkproxy/internal/reasoning"
)

// ConfigAPI is the REST surface for configuration: CRUD of profiles and
// proxy settings, resolution dry-run, default-profile selection, and
// import/export of the persisted document. It wraps the same
// *configstore.Service the Router reads snapshots from.
type ConfigAPI struct {
	Store *configstore.Service
}

func NewConfigAPI(store *configstore.Service) *ConfigAPI {
	return &ConfigAPI{Store: store}
}

// GetProxySettings: GET /v1/config/proxy.
func (a *ConfigAPI) GetProxySettings(c *gin.Context) {
	c.JSON(http.StatusOK, a.Store.ProxySettings())
}

// PutProxySettings: PUT /v1/config/proxy -> {success, restart_required}.
func (a *ConfigAPI) PutProxySettings(c *gin.Context) {
	var next configstore.ProxySettings
	if err := c.ShouldBindJSON(&next); err != nil {
		auth.WriteError(c, apperr.BadRequest("invalid proxy settings body"))
		return
	}
	restart, err := a.Store.UpdateProxySettings(next)
	if err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "restart_required": restart})
}

// ListProfiles: GET /v1/config/profiles.
func (a *ConfigAPI) ListProfiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"profiles": a.Store.ListProfiles()})
}

// CreateProfile: POST /v1/config/profiles.
func (a *ConfigAPI) CreateProfile(c *gin.Context) {
	p := new(profile.Profile)
	if err := c.ShouldBindJSON(p); err != nil {
		auth.WriteError(c, apperr.BadRequest("invalid profile body"))
		return
	}
	if err := a.Store.CreateProfile(p); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetProfile: GET /v1/config/profiles/{id}.
func (a *ConfigAPI) GetProfile(c *gin.Context) {
	p := a.Store.GetProfile(c.Param("id"))
	if p == nil {
		auth.WriteError(c, apperr.New(apperr.KindConfigInvalid, "no such profile: "+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateProfile: PUT /v1/config/profiles/{id}.
func (a *ConfigAPI) UpdateProfile(c *gin.Context) {
	p := new(profile.Profile)
	if err := c.ShouldBindJSON(p); err != nil {
		auth.WriteError(c, apperr.BadRequest("invalid profile body"))
		return
	}
	if err := a.Store.UpdateProfile(c.Param("id"), p); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProfile: DELETE /v1/config/profiles/{id}.
func (a *ConfigAPI) DeleteProfile(c *gin.Context) {
	if err := a.Store.DeleteProfile(c.Param("id")); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// TestProfile: POST /v1/config/profiles/test {model} -> resolution dry-run.
func (a *ConfigAPI) TestProfile(c *gin.Context) {
	var body struct {
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Model == "" {
		auth.WriteError(c, apperr.BadRequest("model is required"))
		return
	}
	snap := a.Store.Snapshot()
	matches := profile.Matches(snap.Profiles, body.Model)
	matched, ok := profile.Resolve(snap.Profiles, body.Model, snap.DefaultProfile)
	resp := gin.H{"all_matches": matches}
	if ok {
		resp["matched"] = matched
	} else {
		resp["matched"] = nil
	}
	c.JSON(http.StatusOK, resp)
}

// SetDefaultProfile: PUT /v1/config/default-profile {profile_id}.
func (a *ConfigAPI) SetDefaultProfile(c *gin.Context) {
	var body struct {
		ProfileID string `json:"profile_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ProfileID == "" {
		auth.WriteError(c, apperr.BadRequest("profile_id is required"))
		return
	}
	if err := a.Store.SetDefaultProfile(body.ProfileID); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Export: GET /v1/config/export -> {proxy, profiles[], default_profile}.
func (a *ConfigAPI) Export(c *gin.Context) {
	proxy, profiles, defaultProfile := a.Store.Export()
	c.JSON(http.StatusOK, gin.H{"proxy": proxy, "profiles": profiles, "default_profile": defaultProfile})
}

// Import: POST /v1/config/import?merge=true|false.
func (a *ConfigAPI) Import(c *gin.Context) {
	var body struct {
		Proxy          configstore.ProxySettings `json:"proxy"`
		Profiles       []*profile.Profile        `json:"profiles"`
		DefaultProfile string                    `json:"default_profile"`
	}
	raw, err := c.GetRawData()
	if err != nil {
		auth.WriteError(c, apperr.BadRequest("failed to read import body"))
		return
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		auth.WriteError(c, apperr.BadRequest("invalid import document"))
		return
	}
	merge := c.Query("merge") == "true"
	if err := a.Store.Import(body.Proxy, body.Profiles, body.DefaultProfile, merge); err != nil {
		auth.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// reasoningTypeEntry describes one ReasoningType for the catalog endpoint.
type reasoningTypeEntry struct {
	Type             canonical.ReasoningType `json:"type"`
	Label            string                  `json:"label"`
	SupportedEfforts []canonical.Effort      `json:"supported_efforts"`
}

var reasoningLabels = map[canonical.ReasoningType]string{
	canonical.ReasoningDeepSeek:   "DeepSeek",
	canonical.ReasoningOpenAI:     "OpenAI",
	canonical.ReasoningAnthropic:  "Anthropic",
	canonical.ReasoningGemini:     "Google Gemini",
	canonical.ReasoningQwen:       "Qwen",
	canonical.ReasoningOpenRouter: "OpenRouter",
	canonical.ReasoningCustom:     "Custom",
}

// reasoningTypeOrder fixes catalog ordering so repeated calls are stable
// (map iteration order is not).
var reasoningTypeOrder = []canonical.ReasoningType{
	canonical.ReasoningDeepSeek, canonical.ReasoningOpenAI, canonical.ReasoningAnthropic,
	canonical.ReasoningGemini, canonical.ReasoningQwen, canonical.ReasoningOpenRouter, canonical.ReasoningCustom,
}

var effortOrder = []canonical.Effort{
	canonical.EffortNone, canonical.EffortMinimal, canonical.EffortLow,
	canonical.EffortMedium, canonical.EffortHigh, canonical.EffortAuto,
}

// ReasoningTypes: GET /v1/config/reasoning/types — the enum catalog a
// front-end needs to render reasoning controls without hardcoding the
// per-type effort table.
func (a *ConfigAPI) ReasoningTypes(c *gin.Context) {
	entries := make([]reasoningTypeEntry, 0, len(reasoningTypeOrder))
	for _, t := range reasoningTypeOrder {
		var efforts []canonical.Effort
		for _, e := range effortOrder {
			if canonical.EffortSupported(t, e) {
				efforts = append(efforts, e)
			}
		}
		entries = append(entries, reasoningTypeEntry{Type: t, Label: reasoningLabels[t], SupportedEfforts: efforts})
	}
	c.JSON(http.StatusOK, gin.H{"types": entries, "effort_budget_defaults": reasoning.EffortBudgetDefaults()})
}
