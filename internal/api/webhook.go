package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	smartthings "github.com/tj-smith47/smartthings-go"

	"github.com/DSorlov/smartthingsng/internal/installation"
)

// installTokenTTL is how long the token pair carried by INSTALL and UPDATE
// lifecycles is assumed valid. The refresh loop rotates it long before then.
const installTokenTTL = 24 * time.Hour

// handleWebhook dispatches SmartThings lifecycle events.
//
// PING and CONFIRMATION are served at any time so onboarding works before
// the broker exists. Device events are discarded with a warning while no
// broker is attached; the full status fetch during setup covers the gap.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	event, err := smartthings.ParseWebhookRequest(r, s.stCfg.WebhookSecret)
	if err != nil {
		if errors.Is(err, smartthings.ErrInvalidSignature) || errors.Is(err, smartthings.ErrMissingSignature) {
			s.logger.Warn("webhook signature rejected", "error", err)
			writeUnauthorized(w, "invalid webhook signature")
			return
		}
		writeBadRequest(w, "invalid webhook payload")
		return
	}

	switch event.Lifecycle {
	case smartthings.LifecyclePing:
		if event.PingData == nil {
			writeBadRequest(w, "missing pingData")
			return
		}
		writeJSON(w, http.StatusOK, smartthings.PingResponse(event.PingData.Challenge))

	case smartthings.LifecycleConfirmation:
		if event.ConfirmationData == nil {
			writeBadRequest(w, "missing confirmationData")
			return
		}
		s.logger.Info("webhook confirmation requested; open the URL to confirm registration",
			"confirmation_url", event.ConfirmationData.ConfirmationURL)
		writeJSON(w, http.StatusOK, map[string]any{
			"targetUrl": event.ConfirmationData.ConfirmationURL,
		})

	case smartthings.LifecycleInstall:
		if event.InstallData == nil {
			writeBadRequest(w, "missing installData")
			return
		}
		s.handleInstall(w, r, event.InstallData.InstalledApp, event.InstallData.AuthToken, event.InstallData.RefreshToken)

	case smartthings.LifecycleUpdate:
		if event.UpdateData == nil {
			writeBadRequest(w, "missing updateData")
			return
		}
		s.handleInstall(w, r, event.UpdateData.InstalledApp, event.UpdateData.AuthToken, event.UpdateData.RefreshToken)

	case smartthings.LifecycleUninstall:
		if event.UninstallData == nil {
			writeBadRequest(w, "missing uninstallData")
			return
		}
		installedAppID := event.UninstallData.InstalledApp.InstalledAppID
		if err := s.installations.Delete(r.Context(), installedAppID); err != nil && !errors.Is(err, installation.ErrNotFound) {
			s.logger.Error("failed to delete installation", "installed_app_id", installedAppID, "error", err)
			writeInternalError(w, "failed to delete installation")
			return
		}
		s.logger.Info("installation removed", "installed_app_id", installedAppID)
		writeJSON(w, http.StatusOK, map[string]any{"uninstallData": map[string]any{}})

	case smartthings.LifecycleEvent:
		if event.EventData == nil {
			writeBadRequest(w, "missing eventData")
			return
		}
		s.handleEventLifecycle(w, event)

	default:
		s.logger.Debug("ignoring webhook lifecycle", "lifecycle", event.Lifecycle)
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": http.StatusOK})
	}
}

// handleInstall persists the token pair from an INSTALL or UPDATE lifecycle,
// creating the installation record on first contact.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request, app smartthings.InstalledAppRef, accessToken, refreshToken string) {
	expiresAt := time.Now().Add(installTokenTTL)

	err := s.installations.UpdateTokens(r.Context(), app.InstalledAppID, accessToken, refreshToken, expiresAt)
	if errors.Is(err, installation.ErrNotFound) {
		err = s.installations.Create(r.Context(), &installation.Installation{
			ID:             uuid.NewString(),
			AppID:          s.stCfg.AppID,
			InstalledAppID: app.InstalledAppID,
			LocationID:     app.LocationID,
			AccessToken:    accessToken,
			RefreshToken:   refreshToken,
			TokenExpiresAt: expiresAt,
		})
	}
	if err != nil {
		s.logger.Error("failed to persist installation", "installed_app_id", app.InstalledAppID, "error", err)
		writeInternalError(w, "failed to persist installation")
		return
	}

	s.logger.Info("installation tokens stored",
		"installed_app_id", app.InstalledAppID,
		"location_id", app.LocationID,
	)
	writeJSON(w, http.StatusOK, map[string]any{"installData": map[string]any{}})
}

// handleEventLifecycle hands a device event batch to the broker.
func (s *Server) handleEventLifecycle(w http.ResponseWriter, event *smartthings.WebhookEvent) {
	b := s.getBroker()
	if b == nil {
		s.logger.Warn("device events received before setup completed; discarding",
			"installed_app_id", event.EventData.InstalledApp.InstalledAppID,
			"events", len(event.EventData.Events),
		)
		writeJSON(w, http.StatusOK, map[string]any{"eventData": map[string]any{}})
		return
	}

	b.ProcessEvents(event.EventData.InstalledApp.InstalledAppID, event.EventData.Events)
	writeJSON(w, http.StatusOK, map[string]any{"eventData": map[string]any{}})
}
