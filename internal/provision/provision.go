package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ambrook/skirmishd/internal/model"
)

// Provisioner requests game hosts for confirmed sessions. The host reports
// readiness or failure asynchronously through the API surface; RequestLaunch
// only secures the ticket.
type Provisioner interface {
	RequestLaunch(ctx context.Context, session *model.GameSession) (model.LaunchHandle, error)
}

// LaunchRequest is the body sent to the host provisioning endpoint
type LaunchRequest struct {
	SessionID model.SessionID    `json:"session_id"`
	QueueID   model.QueueID      `json:"queue_id"`
	Mode      model.GameMode     `json:"mode"`
	Teams     [][]model.PlayerID `json:"teams"`
}

// LaunchResponse is the host provisioning endpoint's reply
type LaunchResponse struct {
	Handle model.LaunchHandle `json:"handle"`
}

// HTTPProvisioner requests hosts from an external provisioning service over
// HTTP
type HTTPProvisioner struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvisioner creates a provisioner against the given base URL
func NewHTTPProvisioner(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvisioner {
	return &HTTPProvisioner{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("component", "provision")),
	}
}

// RequestLaunch asks the provisioning service for a host. Any transport or
// non-2xx failure surfaces as ErrProvisionFailed; the caller decides what
// happens to the session.
func (p *HTTPProvisioner) RequestLaunch(ctx context.Context, session *model.GameSession) (model.LaunchHandle, error) {
	teams := make([][]model.PlayerID, len(session.Teams))
	for i, t := range session.Teams {
		teams[i] = t.Players()
	}
	body, err := json.Marshal(LaunchRequest{
		SessionID: session.ID,
		QueueID:   session.QueueID,
		Mode:      session.Mode,
		Teams:     teams,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrProvisionFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/launch", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrProvisionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrProvisionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("provisioning request rejected",
			slog.String("session_id", string(session.ID)),
			slog.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: host service returned %d", model.ErrProvisionFailed, resp.StatusCode)
	}

	var decoded LaunchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrProvisionFailed, err)
	}
	if decoded.Handle == "" {
		return "", fmt.Errorf("%w: host service returned no handle", model.ErrProvisionFailed)
	}
	return decoded.Handle, nil
}
