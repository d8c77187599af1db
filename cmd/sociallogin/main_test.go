package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dhawalhost/sociallogin/internal/login"
	"github.com/dhawalhost/sociallogin/internal/social"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file="}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestProvidersFromLocalConfig(t *testing.T) {
	t.Setenv("SOCIAL_FACEBOOK_APP_ID", "1234")
	t.Setenv("SOCIAL_FACEBOOK_APP_SECRET", "s3cret")

	out, err := execute(t, "providers", "-o", "yaml")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	var got map[string]map[string]bool
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode yaml %q: %v", out, err)
	}
	if !got["facebook"]["isInitialized"] || got["google"]["isInitialized"] {
		t.Fatalf("unexpected providers %v", got)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if _, err := execute(t, "providers", "-o", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}

func TestLoginRejectsUnknownProvider(t *testing.T) {
	if _, err := execute(t, "login", "twitter"); err == nil {
		t.Fatalf("expected error for twitter")
	}
}

func TestRemoteLoginPrintsResult(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/social/:provider/login", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, login.Attempt{
			ID:     "login-1",
			Status: login.StatusCompleted,
			Result: &social.LoginResult{Provider: social.ProviderGoogle, Code: social.ResultSuccess, ID: "user-7", UserToken: "a@example.com"},
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	out, err := execute(t, "login", "google", "--server", srv.URL+"/api/v1", "--no-browser")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	var got social.LoginResult
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Code != social.ResultSuccess || got.ID != "user-7" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestRemoteLoginFailureExitsNonZero(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/social/:provider/login", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, login.Attempt{
			ID:     "login-2",
			Status: login.StatusCompleted,
			Result: &social.LoginResult{Provider: social.ProviderFacebook, Code: social.ResultCancelled},
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	out, err := execute(t, "login", "facebook", "--server", srv.URL+"/api/v1")
	if err == nil || !strings.Contains(err.Error(), "cancelled") {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if !strings.Contains(out, `"code": "cancelled"`) {
		t.Fatalf("expected result to be printed, got %q", out)
	}
}

func TestPrintValueFormats(t *testing.T) {
	v := map[string]string{"provider": "google"}

	var j bytes.Buffer
	if err := printValue(&j, formatJSON, v); err != nil {
		t.Fatalf("json: %v", err)
	}
	if strings.TrimSpace(j.String()) != "{\n  \"provider\": \"google\"\n}" {
		t.Fatalf("unexpected json %q", j.String())
	}

	var y bytes.Buffer
	if err := printValue(&y, formatYAML, v); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if y.String() != "provider: google\n" {
		t.Fatalf("unexpected yaml %q", y.String())
	}
}
