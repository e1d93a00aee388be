package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/installation"
)

// signPayload computes the webhook HMAC signature for the test secret.
func signPayload(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// postWebhook sends a signed lifecycle payload to the webhook endpoint.
func postWebhook(t *testing.T, handler http.Handler, payload any, sign bool) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
	if sign {
		req.Header.Set(smartthings.WebhookSignatureHeader, signPayload(body))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPing(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	rec := postWebhook(t, router, map[string]any{
		"lifecycle": "PING",
		"pingData":  map[string]string{"challenge": "abc123"},
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		PingData struct {
			Challenge string `json:"challenge"`
		} `json:"pingData"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.PingData.Challenge != "abc123" {
		t.Errorf("challenge: got %q, want abc123", resp.PingData.Challenge)
	}
}

func TestWebhookRejectsUnsignedRequests(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	rec := postWebhook(t, router, map[string]any{
		"lifecycle": "PING",
		"pingData":  map[string]string{"challenge": "abc123"},
	}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("got status %d, want 401", rec.Code)
	}
}

func TestWebhookConfirmation(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	rec := postWebhook(t, router, map[string]any{
		"lifecycle": "CONFIRMATION",
		"confirmationData": map[string]string{
			"appId":           "app-1",
			"confirmationUrl": "https://api.smartthings.com/confirm/xyz",
		},
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["targetUrl"] != "https://api.smartthings.com/confirm/xyz" {
		t.Errorf("targetUrl: got %q", resp["targetUrl"])
	}
}

func TestWebhookInstallPersistsTokens(t *testing.T) {
	srv, repo := testServer(t)
	router := srv.buildRouter()

	rec := postWebhook(t, router, map[string]any{
		"lifecycle": "INSTALL",
		"installData": map[string]any{
			"authToken":    "access-1",
			"refreshToken": "refresh-1",
			"installedApp": map[string]string{
				"installedAppId": "iapp-1",
				"locationId":     "loc-1",
			},
		},
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	inst, err := repo.GetByInstalledAppID(context.Background(), "iapp-1")
	if err != nil {
		t.Fatalf("GetByInstalledAppID: %v", err)
	}
	if inst.AccessToken != "access-1" || inst.RefreshToken != "refresh-1" {
		t.Errorf("tokens: got %q/%q", inst.AccessToken, inst.RefreshToken)
	}
	if inst.LocationID != "loc-1" || inst.AppID != "app-1" {
		t.Errorf("installation: got %+v", inst)
	}
}

func TestWebhookUpdateRotatesTokens(t *testing.T) {
	srv, repo := testServer(t)
	router := srv.buildRouter()

	install := map[string]any{
		"lifecycle": "INSTALL",
		"installData": map[string]any{
			"authToken":    "access-1",
			"refreshToken": "refresh-1",
			"installedApp": map[string]string{
				"installedAppId": "iapp-1",
				"locationId":     "loc-1",
			},
		},
	}
	if rec := postWebhook(t, router, install, true); rec.Code != http.StatusOK {
		t.Fatalf("install: got status %d", rec.Code)
	}

	update := map[string]any{
		"lifecycle": "UPDATE",
		"updateData": map[string]any{
			"authToken":    "access-2",
			"refreshToken": "refresh-2",
			"installedApp": map[string]string{
				"installedAppId": "iapp-1",
				"locationId":     "loc-1",
			},
		},
	}
	if rec := postWebhook(t, router, update, true); rec.Code != http.StatusOK {
		t.Fatalf("update: got status %d", rec.Code)
	}

	inst, err := repo.GetByInstalledAppID(context.Background(), "iapp-1")
	if err != nil {
		t.Fatalf("GetByInstalledAppID: %v", err)
	}
	if inst.AccessToken != "access-2" || inst.RefreshToken != "refresh-2" {
		t.Errorf("tokens after update: got %q/%q", inst.AccessToken, inst.RefreshToken)
	}
}

func TestWebhookUninstallDeletesInstallation(t *testing.T) {
	srv, repo := testServer(t)
	router := srv.buildRouter()

	install := map[string]any{
		"lifecycle": "INSTALL",
		"installData": map[string]any{
			"authToken":    "access-1",
			"refreshToken": "refresh-1",
			"installedApp": map[string]string{
				"installedAppId": "iapp-1",
				"locationId":     "loc-1",
			},
		},
	}
	if rec := postWebhook(t, router, install, true); rec.Code != http.StatusOK {
		t.Fatalf("install: got status %d", rec.Code)
	}

	uninstall := map[string]any{
		"lifecycle": "UNINSTALL",
		"uninstallData": map[string]any{
			"installedApp": map[string]string{"installedAppId": "iapp-1"},
		},
	}
	if rec := postWebhook(t, router, uninstall, true); rec.Code != http.StatusOK {
		t.Fatalf("uninstall: got status %d", rec.Code)
	}

	if _, err := repo.GetByInstalledAppID(context.Background(), "iapp-1"); !errors.Is(err, installation.ErrNotFound) {
		t.Errorf("expected ErrNotFound after uninstall, got %v", err)
	}
}

func TestWebhookEventDispatchesToBroker(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	srv.SetBroker(fb)
	router := srv.buildRouter()

	event := map[string]any{
		"lifecycle": "EVENT",
		"eventData": map[string]any{
			"installedApp": map[string]string{"installedAppId": "iapp-1"},
			"events": []map[string]any{
				{
					"eventType": "DEVICE_EVENT",
					"deviceEvent": map[string]any{
						"deviceId":   "dev-1",
						"capability": "switch",
						"attribute":  "switch",
						"value":      "on",
					},
				},
			},
		},
	}
	rec := postWebhook(t, router, event, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	if len(fb.processed) != 1 {
		t.Fatalf("got %d batches, want 1", len(fb.processed))
	}
	if fb.processed[0].installedAppID != "iapp-1" || fb.processed[0].count != 1 {
		t.Errorf("batch: got %+v", fb.processed[0])
	}
}

func TestWebhookEventBeforeSetupIsDiscarded(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	event := map[string]any{
		"lifecycle": "EVENT",
		"eventData": map[string]any{
			"installedApp": map[string]string{"installedAppId": "iapp-1"},
			"events":       []map[string]any{},
		},
	}
	rec := postWebhook(t, router, event, true)
	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200 even without a broker", rec.Code)
	}
}
