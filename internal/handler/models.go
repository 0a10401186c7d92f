package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/auth"
	"thinkproxy/internal/httpclient"
	"thinkproxy/internal/profile"
)

// ListModels implements GET /v1/models: a pass-through model list from the
// resolved (?model=) or default profile's upstream, reshaped into OpenAI's
// {data:[{id,object:"model"}]}.
func (rt *Router) ListModels(c *gin.Context) {
	snap := rt.Store.Snapshot()

	var prof *profile.Profile
	if m := c.Query("model"); m != "" {
		resolved, ok := profile.Resolve(snap.Profiles, m, snap.DefaultProfile)
		if ok {
			prof = resolved
		}
	}
	if prof == nil {
		prof = snap.DefaultProfile
	}
	if prof == nil {
		auth.WriteError(c, apperr.NoProfileMatch("no default profile configured"))
		return
	}

	url, headers := modelsListRequest(prof.Upstream)
	r := httpclient.GetClient().R().SetContext(c.Request.Context())
	for k, v := range headers {
		r.SetHeader(k, v)
	}

	resp, err := doGet(r, url)
	if err != nil {
		auth.WriteError(c, apperr.UpstreamConnection(err))
		return
	}
	defer resp.Close()

	if !isSuccess(resp.Status) {
		body, _ := io.ReadAll(resp.Body)
		c.Data(resp.Status, "application/json", body)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		auth.WriteError(c, apperr.Internal("failed to read models response", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": parseModelsList(string(prof.Upstream.APIFormat), body)})
}

func modelsListRequest(u profile.Upstream) (url string, headers map[string]string) {
	base := strings.TrimRight(u.BaseURL, "/")
	switch u.APIFormat {
	case profile.FormatAnthropic:
		return base + "/v1/models", map[string]string{"x-api-key": u.APIKey, "anthropic-version": "2023-06-01"}
	case profile.FormatGemini:
		return base + "/v1beta/models?key=" + u.APIKey, nil
	case profile.FormatAzureOpenAI:
		return base + "/openai/models?api-version=2024-06-01", map[string]string{"api-key": u.APIKey}
	default: // openai, openai-response
		return base + "/models", map[string]string{"Authorization": "Bearer " + u.APIKey}
	}
}

// modelEntry is one row of the reshaped {data:[...]} list.
type modelEntry struct {
	ID     string `json:"id"`
	Object string `json:"object"`
}

func parseModelsList(apiFormat string, body []byte) []modelEntry {
	var out []modelEntry
	result := gjson.ParseBytes(body)
	if apiFormat == string(profile.FormatGemini) {
		result.Get("models").ForEach(func(_, v gjson.Result) bool {
			id := strings.TrimPrefix(v.Get("name").String(), "models/")
			out = append(out, modelEntry{ID: id, Object: "model"})
			return true
		})
		return out
	}
	result.Get("data").ForEach(func(_, v gjson.Result) bool {
		out = append(out, modelEntry{ID: v.Get("id").String(), Object: "model"})
		return true
	})
	return out
}
