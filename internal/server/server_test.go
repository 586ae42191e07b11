package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/jackzampolin/promptlab/internal/config"
	"github.com/jackzampolin/promptlab/internal/expand"
	"github.com/jackzampolin/promptlab/internal/home"
	"github.com/jackzampolin/promptlab/internal/lab"
	"github.com/jackzampolin/promptlab/internal/lora"
	"github.com/jackzampolin/promptlab/internal/prompts"
	"github.com/jackzampolin/promptlab/internal/providers"
	"github.com/jackzampolin/promptlab/internal/server/endpoints"
	"github.com/jackzampolin/promptlab/internal/storage"
	"github.com/jackzampolin/promptlab/internal/testutil"
)

const variantBody = `[{"label":"a","prompt":"neon street","negative_prompt":"blurry"},{"label":"b","prompt":"rain {LORA_TOKEN}, night"}]`

type testEnv struct {
	srv  *Server
	http *httptest.Server
	mock *providers.MockClient
}

func newTestEnv(t *testing.T, initialize bool, body string) *testEnv {
	t.Helper()

	cfg := testutil.NewServerConfig(t)
	cm, err := config.NewManager(cfg.ConfigFile)
	if err != nil {
		t.Fatalf("config.NewManager() error = %v", err)
	}
	h, err := home.New(cfg.HomeDir)
	if err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockClient(body)
	srv, err := New(Config{
		Home:          h,
		ConfigManager: cm,
		Client:        mock,
		Logger:        cfg.Logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if initialize {
		if err := srv.initialize(context.Background()); err != nil {
			t.Fatalf("initialize() error = %v", err)
		}
	}

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return &testEnv{srv: srv, http: ts, mock: mock}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestServer_BeforeInit(t *testing.T) {
	env := newTestEnv(t, false, variantBody)

	t.Run("health is served", func(t *testing.T) {
		var resp endpoints.HealthResponse
		if code := env.do(t, "GET", "/health", nil, &resp); code != http.StatusOK || resp.Status != "ok" {
			t.Errorf("health = %d %+v", code, resp)
		}
	})

	t.Run("ready reports degraded", func(t *testing.T) {
		if code := env.do(t, "GET", "/ready", nil, nil); code != http.StatusServiceUnavailable {
			t.Errorf("ready status = %d, want 503", code)
		}
	})

	t.Run("api requires init", func(t *testing.T) {
		var resp endpoints.ErrorResponse
		code := env.do(t, "POST", "/api/generate", map[string]any{"idea": "x"}, &resp)
		if code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", code)
		}
		if !strings.Contains(resp.Error, "not fully initialized") {
			t.Errorf("error = %q", resp.Error)
		}
	})

	t.Run("settings are available", func(t *testing.T) {
		var resp endpoints.SettingsResponse
		if code := env.do(t, "GET", "/api/settings", nil, &resp); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if len(resp.Settings) == 0 {
			t.Error("expected settings")
		}
	})
}

func TestServer_Generate(t *testing.T) {
	env := newTestEnv(t, true, variantBody)

	var resp lab.GenerateResult
	code := env.do(t, "POST", "/api/generate", map[string]any{"idea": "neon city street", "creativity": 5}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if resp.Selection.Method != lora.MethodTags || resp.LoraName != "Neon City" {
		t.Errorf("selection = %+v", resp.Selection)
	}
	if len(resp.Variants) != 2 {
		t.Fatalf("variants = %d, want 2", len(resp.Variants))
	}
	if resp.Variants[0].Prompt != "neon street <lora:city-neon:0.6>" {
		t.Errorf("Prompt[0] = %q", resp.Variants[0].Prompt)
	}
	if resp.Variants[1].Prompt != "rain <lora:city-neon:0.6>, night" {
		t.Errorf("Prompt[1] = %q", resp.Variants[1].Prompt)
	}

	reqs := env.mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("LLM requests = %d, want 1", len(reqs))
	}
	if reqs[0].Temperature != 0.5 {
		t.Errorf("Temperature = %v, want 0.5", reqs[0].Temperature)
	}

	t.Run("blank idea", func(t *testing.T) {
		var resp lab.GenerateResult
		env.do(t, "POST", "/api/generate", map[string]any{"idea": "   "}, &resp)
		if len(resp.Variants) != 0 || resp.ErrorKind != string(providers.KindValidation) {
			t.Errorf("resp = %+v", resp)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		req, _ := http.NewRequest("POST", env.http.URL+"/api/generate", strings.NewReader("{"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
	})

	t.Run("calls are recorded", func(t *testing.T) {
		var calls endpoints.LLMCallsResponse
		if code := env.do(t, "GET", "/api/llmcalls?purpose=expand", nil, &calls); code != http.StatusOK {
			t.Fatalf("status = %d", code)
		}
		if calls.Total != 1 || calls.Calls[0].Idea != "neon city street" {
			t.Fatalf("calls = %+v", calls)
		}

		var one endpoints.LLMCallResponse
		if code := env.do(t, "GET", "/api/llmcalls/"+calls.Calls[0].ID, nil, &one); code != http.StatusOK {
			t.Errorf("get status = %d", code)
		}
		if code := env.do(t, "GET", "/api/llmcalls/nope", nil, nil); code != http.StatusNotFound {
			t.Errorf("missing call status = %d, want 404", code)
		}

		var counts endpoints.LLMCallCountsResponse
		env.do(t, "GET", "/api/llmcalls/counts", nil, &counts)
		if counts.Counts["expand"] != 1 {
			t.Errorf("counts = %v", counts.Counts)
		}

		if code := env.do(t, "GET", "/api/llmcalls?success=maybe", nil, nil); code != http.StatusBadRequest {
			t.Errorf("bad filter status = %d, want 400", code)
		}
	})
}

func TestServer_Templates(t *testing.T) {
	env := newTestEnv(t, true, variantBody)

	var list endpoints.TemplatesResponse
	if code := env.do(t, "GET", "/api/templates", nil, &list); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(list.Templates) != 2 || list.Templates[0].Key != expand.PromptKeyChooseLora || list.Templates[1].Key != expand.PromptKeyExpand {
		t.Fatalf("templates = %+v", list.Templates)
	}
	if code := env.do(t, "GET", "/api/templates/summarize", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown key status = %d, want 404", code)
	}

	cfg := *env.srv.currentConfig()
	cfg.Prompts.Expand = "Give {{.Variants}} takes on {{.Idea}}"
	if err := env.srv.reload(context.Background(), &cfg, nil); err != nil {
		t.Fatalf("reload() error = %v", err)
	}

	var p prompts.Prompt
	env.do(t, "GET", "/api/templates/"+expand.PromptKeyExpand, nil, &p)
	if !p.IsOverride || p.Text != cfg.Prompts.Expand {
		t.Errorf("template = %+v", p)
	}

	var resp lab.GenerateResult
	env.do(t, "POST", "/api/generate", map[string]any{"idea": "neon city", "variants": 2}, &resp)
	reqs := env.mock.Requests()
	if got := reqs[len(reqs)-1].Prompt; got != "Give 2 takes on neon city" {
		t.Errorf("request prompt = %q", got)
	}

	bad := cfg
	bad.Prompts.Expand = "{{.Idea"
	if err := env.srv.reload(context.Background(), &bad, nil); err == nil {
		t.Error("expected reload to reject a broken template")
	}
}

func TestServer_Expand(t *testing.T) {
	env := newTestEnv(t, true, variantBody)

	var resp endpoints.ExpandResponse
	env.do(t, "POST", "/api/expand", map[string]any{"idea": "a red balloon", "creativity": 10}, &resp)
	if len(resp.Variants) != 2 || resp.Temperature != 1.0 {
		t.Errorf("resp = %+v", resp)
	}
	if strings.Contains(resp.Variants[0].Prompt, "<lora:") {
		t.Errorf("expand should not inject a token: %q", resp.Variants[0].Prompt)
	}
}

func TestServer_Loras(t *testing.T) {
	env := newTestEnv(t, true, variantBody)

	var all endpoints.LorasResponse
	env.do(t, "GET", "/api/loras", nil, &all)
	if len(all.Loras) != 3 {
		t.Errorf("loras = %d, want 3", len(all.Loras))
	}

	var filtered endpoints.LorasResponse
	env.do(t, "GET", "/api/loras?tags=moss", nil, &filtered)
	if len(filtered.Loras) != 1 || filtered.Loras[0].ID != "forest" {
		t.Errorf("filtered = %+v", filtered.Loras)
	}

	var one lora.Descriptor
	if code := env.do(t, "GET", "/api/loras/portrait", nil, &one); code != http.StatusOK || one.Name != "Soft Portrait" {
		t.Errorf("get = %d %+v", code, one)
	}
	if code := env.do(t, "GET", "/api/loras/missing", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", code)
	}

	var sel endpoints.SelectLoraResponse
	env.do(t, "POST", "/api/loras/select", map[string]any{"idea": "portrait of a face", "creativity": 10}, &sel)
	if sel.Selection.Method != lora.MethodTags || sel.Token != "<lora:portrait:0.1>" {
		t.Errorf("select = %+v", sel)
	}
	if sel.Selection.Score != 2 {
		t.Errorf("Score = %d, want 2", sel.Selection.Score)
	}

	t.Run("choose", func(t *testing.T) {
		env := newTestEnv(t, true, `{"selected_lora":"forest","suggested_weight":0.35}`)
		var resp endpoints.ChooseLoraResponse
		env.do(t, "POST", "/api/loras/choose", map[string]any{"idea": "an old oak"}, &resp)
		if resp.SelectedLora != "forest" || resp.SuggestedWeight != 0.35 {
			t.Errorf("choose = %+v", resp)
		}
	})

	t.Run("catalog reload", func(t *testing.T) {
		next := lora.Catalog{{ID: "only", Name: "Only", Tags: []string{"x"}, DefaultWeight: 0.5}}
		if err := env.srv.reload(context.Background(), env.srv.currentConfig(), next); err != nil {
			t.Fatal(err)
		}
		var resp endpoints.LorasResponse
		env.do(t, "GET", "/api/loras", nil, &resp)
		if len(resp.Loras) != 1 || resp.Loras[0].ID != "only" {
			t.Errorf("after reload = %+v", resp.Loras)
		}
	})
}

func TestServer_Prompts(t *testing.T) {
	env := newTestEnv(t, true, variantBody)

	weight := 0.6
	var saved lab.SaveResult
	code := env.do(t, "POST", "/api/prompts", lab.SaveRequest{
		Prompt:     "neon street <lora:city-neon:0.6>",
		LoraName:   "Neon City",
		LoraWeight: &weight,
		Tags:       storage.Tags{"neon", "city"},
	}, &saved)
	if code != http.StatusCreated {
		t.Fatalf("save status = %d", code)
	}
	if saved.ID == "" || saved.Status != "Saved: "+saved.ID {
		t.Fatalf("saved = %+v", saved)
	}

	var rec storage.Record
	if code := env.do(t, "GET", "/api/prompts/"+saved.ID, nil, &rec); code != http.StatusOK {
		t.Fatalf("get status = %d", code)
	}
	if rec.Name != lab.DefaultName || rec.LoraID != "city-neon" {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Tags) != 2 || rec.Tags[0] != "neon" || rec.Tags[1] != "city" {
		t.Errorf("Tags = %v", rec.Tags)
	}

	var list endpoints.PromptsResponse
	env.do(t, "GET", "/api/prompts?limit=10", nil, &list)
	if list.Total != 1 || list.Prompts[0].ID != saved.ID {
		t.Errorf("list = %+v", list)
	}
	if code := env.do(t, "GET", "/api/prompts?limit=zero", nil, nil); code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", code)
	}

	var exported endpoints.ExportPromptResponse
	if code := env.do(t, "POST", "/api/prompts/"+saved.ID+"/export", endpoints.ExportPromptRequest{Filename: "../escape.json"}, &exported); code != http.StatusOK {
		t.Fatalf("export status = %d", code)
	}
	if !strings.HasSuffix(exported.Path, "outputs/escape.json") {
		t.Errorf("Path = %q", exported.Path)
	}
	if _, err := os.Stat(exported.Path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}

	var del endpoints.DeletePromptResponse
	if code := env.do(t, "DELETE", "/api/prompts/"+saved.ID, nil, &del); code != http.StatusOK || !del.Deleted {
		t.Errorf("delete = %d %+v", code, del)
	}
	if code := env.do(t, "DELETE", "/api/prompts/"+saved.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", code)
	}
	if code := env.do(t, "GET", "/api/prompts/"+saved.ID, nil, nil); code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", code)
	}
	if code := env.do(t, "POST", "/api/prompts/"+saved.ID+"/export", nil, nil); code != http.StatusNotFound {
		t.Errorf("export after delete status = %d, want 404", code)
	}

	t.Run("empty prompt", func(t *testing.T) {
		if code := env.do(t, "POST", "/api/prompts", lab.SaveRequest{Name: "x"}, nil); code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", code)
		}
	})
}

func TestServer_StatusAndMetrics(t *testing.T) {
	env := newTestEnv(t, true, variantBody)
	env.do(t, "POST", "/api/generate", map[string]any{"idea": "neon city"}, nil)

	var status endpoints.StatusResponse
	env.do(t, "GET", "/status", nil, &status)
	if status.Server != "running" || status.LLM.Client != providers.MockClientName {
		t.Errorf("status = %+v", status)
	}
	if status.Catalog.Loras != 3 {
		t.Errorf("Catalog.Loras = %d, want 3", status.Catalog.Loras)
	}
	if status.Home == "" || status.ConfigFile == "" || status.Storage.Path == "" {
		t.Errorf("status paths = %q %q %q", status.Home, status.ConfigFile, status.Storage.Path)
	}

	resp, err := http.Get(env.http.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		`promptlab_lora_selections_total{method="tags"} 1`,
		`promptlab_llm_calls_total{`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}

	var setting endpoints.Setting
	if code := env.do(t, "GET", "/api/settings/storage.db", nil, &setting); code != http.StatusOK {
		t.Fatalf("setting status = %d", code)
	}
	if !setting.Modified || setting.Value == "" {
		t.Errorf("setting = %+v", setting)
	}
	if code := env.do(t, "GET", "/api/settings/nope", nil, nil); code != http.StatusNotFound {
		t.Errorf("unknown setting status = %d, want 404", code)
	}
}
