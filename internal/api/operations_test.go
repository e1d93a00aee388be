package api

import (
	"encoding/json"
	"net/http"
	"testing"

	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/broker"
)

func TestListScenes(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	fb.scenes = []smartthings.Scene{
		{SceneID: "scene-1", SceneName: "Movie Night", LocationID: "loc-1"},
		{SceneID: "scene-2", SceneName: "Good Morning", LocationID: "loc-1"},
	}
	srv.SetBroker(fb)

	router := srv.buildRouter()
	token := obtainToken(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/scenes", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	var resp struct {
		Scenes []sceneResponse `json:"scenes"`
		Count  int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 2 {
		t.Fatalf("got %d scenes, want 2", resp.Count)
	}
	if resp.Scenes[0].SceneID != "scene-1" || resp.Scenes[0].Name != "Movie Night" {
		t.Errorf("first scene: got %+v", resp.Scenes[0])
	}
}

func TestExecuteScene(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	srv.SetBroker(fb)

	router := srv.buildRouter()
	token := obtainToken(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scenes/scene-1/execute", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}
	if len(fb.executed) != 1 || fb.executed[0] != "scene-1" {
		t.Errorf("executed: got %v", fb.executed)
	}
}

func TestExecuteSceneNotFound(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	fb.executeErr = broker.ErrSceneNotFound
	srv.SetBroker(fb)

	router := srv.buildRouter()
	token := obtainToken(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/scenes/missing/execute", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestDiagnostics(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	fb.addDevice(testDevice("dev-1", "Lamp", broker.CapabilitySwitch))
	srv.SetBroker(fb)

	router := srv.buildRouter()
	token := obtainToken(t, router)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/diagnostics", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}

	var report broker.DiagnosticsReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.DeviceCount != 1 || report.InstalledAppID != "iapp-1" {
		t.Errorf("report: got %+v", report)
	}
}

func TestHealthCheckAllDevices(t *testing.T) {
	srv, _ := testServer(t)
	fb := newFakeBroker()
	fb.addDevice(testDevice("dev-1", "Lamp", broker.CapabilitySwitch))
	fb.addDevice(testDevice("dev-2", "Sensor", broker.CapabilityBattery))
	srv.SetBroker(fb)

	router := srv.buildRouter()
	token := obtainToken(t, router)

	// Empty body means every device.
	rec := doRequest(t, router, http.MethodPost, "/api/v1/health-check", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d: %s", rec.Code, rec.Body.String())
	}

	var report broker.HealthReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Results) != 2 {
		t.Errorf("got %d results, want 2", len(report.Results))
	}
}

func TestHealthCheckUnknownDevice(t *testing.T) {
	srv, _ := testServer(t)
	srv.SetBroker(newFakeBroker())

	router := srv.buildRouter()
	token := obtainToken(t, router)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/health-check", token, healthCheckRequest{DeviceID: "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}
