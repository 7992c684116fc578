package triage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/config"
	"github.com/JoshiAarya/ai-ticket-app/internal/models"
)

func TestParse_Fences(t *testing.T) {
	body := `{"summary":"DB down","priority":"HIGH","helpfulNotes":"check pool","relatedSkills":["postgres"," SQL "]}`
	inputs := map[string]string{
		"raw":     body,
		"json":    "Here you go:\n```json\n" + body + "\n```\nthanks",
		"generic": "```\n" + body + "\n```",
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			res, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if res.Priority != models.PriorityHigh {
				t.Fatalf("priority = %q", res.Priority)
			}
			if !reflect.DeepEqual(res.RelatedSkills, []string{"postgres", "SQL"}) {
				t.Fatalf("skills = %v", res.RelatedSkills)
			}
			if res.Fallback {
				t.Fatal("parsed result must not be marked fallback")
			}
		})
	}
}

func TestParse_UnknownPriorityIsMedium(t *testing.T) {
	res, err := Parse(`{"summary":"s","priority":"urgent","helpfulNotes":"n","relatedSkills":[]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Priority != models.PriorityMedium {
		t.Fatalf("priority = %q", res.Priority)
	}
	if res.RelatedSkills == nil || len(res.RelatedSkills) != 0 {
		t.Fatalf("skills = %#v", res.RelatedSkills)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"prose":          "I cannot help with that.",
		"missing notes":  `{"summary":"s","priority":"low","relatedSkills":[]}`,
		"null skills":    `{"summary":"s","priority":"low","helpfulNotes":"n","relatedSkills":null}`,
		"skills string":  `{"summary":"s","priority":"low","helpfulNotes":"n","relatedSkills":"go"}`,
		"missing prio":   `{"summary":"s","helpfulNotes":"n","relatedSkills":[]}`,
		"broken in json": "```json\n{\"summary\": \n```",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(raw); !errors.Is(err, ErrInvalidResponse) {
				t.Fatalf("err = %v, want ErrInvalidResponse", err)
			}
		})
	}
}

func TestFallback(t *testing.T) {
	res := Fallback("Printer on fire")
	if res.Summary != "Failed to analyze ticket: Printer on fire" || res.Priority != models.PriorityMedium || !res.Fallback {
		t.Fatalf("unexpected fallback %+v", res)
	}
	if !reflect.DeepEqual(res.RelatedSkills, []string{"support", "troubleshooting"}) {
		t.Fatalf("skills = %v", res.RelatedSkills)
	}
}

func completionServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		b, _ := io.ReadAll(r.Body)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(b, &req); err != nil || req.Model != "test-model" || len(req.Messages) != 2 {
			t.Errorf("unexpected request body %s", b)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testAIConfig(url string) config.AIConfig {
	return config.AIConfig{APIKey: "k", BaseURL: url + "/v1/", Model: "test-model", Timeout: 5 * time.Second}
}

func TestOpenAIClient_Classify(t *testing.T) {
	reply := "```json\n{\"summary\":\"Login broken\",\"priority\":\"low\",\"helpfulNotes\":\"See auth logs\",\"relatedSkills\":[\"auth\"]}\n```"
	srv := completionServer(t, http.StatusOK, reply)

	res, err := NewOpenAIClient(testAIConfig(srv.URL)).Classify(context.Background(), "Login", "cannot log in")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Summary != "Login broken" || res.Priority != models.PriorityLow {
		t.Fatalf("unexpected result %+v", res)
	}
}

type stubClassifier struct {
	res Result
	err error
}

func (s stubClassifier) Classify(context.Context, string, string) (Result, error) { return s.res, s.err }

func TestAnalyzer_Policies(t *testing.T) {
	boom := errors.New("provider down")

	res, err := NewAnalyzer(stubClassifier{err: boom}, PolicyFallback, zerolog.Nop()).Analyze(context.Background(), "T", "d")
	if err != nil || !res.Fallback || res.Summary != "Failed to analyze ticket: T" {
		t.Fatalf("fallback policy: res=%+v err=%v", res, err)
	}

	if _, err := NewAnalyzer(stubClassifier{err: boom}, PolicyFail, zerolog.Nop()).Analyze(context.Background(), "T", "d"); !errors.Is(err, boom) {
		t.Fatalf("fail policy err = %v", err)
	}

	ok := Result{Summary: "s", Priority: models.PriorityHigh}
	if res, err := NewAnalyzer(stubClassifier{res: ok}, PolicyFail, zerolog.Nop()).Analyze(context.Background(), "T", "d"); err != nil || res.Priority != models.PriorityHigh {
		t.Fatalf("success: res=%+v err=%v", res, err)
	}
}

func TestAnalyzer_ProviderErrorFallsBack(t *testing.T) {
	srv := completionServer(t, http.StatusInternalServerError, "")
	a := NewAnalyzer(NewOpenAIClient(testAIConfig(srv.URL)), PolicyFallback, zerolog.Nop())

	res, err := a.Analyze(context.Background(), "Crash", "stack trace")
	if err != nil || !res.Fallback {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}
