package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// apiClient talks to the fleetbridge internal API.
type apiClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newAPIClient() *apiClient {
	return &apiClient{
		baseURL: serverURL,
		token:   apiToken,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.client.Do(req)
}

func (c *apiClient) decodeOrError(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type mappingsResponse struct {
	Mappings []models.DriverPhoneMapping `json:"mappings"`
	Count    int                         `json:"count"`
}

func (c *apiClient) listMappings(tenantID string) (*mappingsResponse, error) {
	resp, err := c.doRequest(http.MethodGet, "/api/v1/mappings?tenant_id="+tenantID, nil)
	if err != nil {
		return nil, err
	}
	var out mappingsResponse
	if err := c.decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type mappingRequest struct {
	TenantID         string `json:"tenant_id"`
	Platform         string `json:"platform"`
	PlatformDriverID string `json:"platform_driver_id"`
	DriverName       string `json:"driver_name,omitempty"`
	Address          string `json:"address,omitempty"`
	Language         string `json:"language,omitempty"`
}

func (c *apiClient) upsertMapping(req mappingRequest) (*models.DriverPhoneMapping, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/v1/mappings", req)
	if err != nil {
		return nil, err
	}
	var out models.DriverPhoneMapping
	if err := c.decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) deactivateMapping(tenantID, platform, driverID string) (*models.DriverPhoneMapping, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/v1/mappings/deactivate", mappingRequest{
		TenantID:         tenantID,
		Platform:         platform,
		PlatformDriverID: driverID,
	})
	if err != nil {
		return nil, err
	}
	var out models.DriverPhoneMapping
	if err := c.decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type commLogResponse struct {
	Entries []models.CommunicationLog `json:"entries"`
	Count   int                       `json:"count"`
}

func (c *apiClient) listCommLog(tenantID string, limit int) (*commLogResponse, error) {
	resp, err := c.doRequest(http.MethodGet, fmt.Sprintf("/api/v1/comm-log?tenant_id=%s&limit=%d", tenantID, limit), nil)
	if err != nil {
		return nil, err
	}
	var out commLogResponse
	if err := c.decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) sendReply(reply models.InboundReply) (*models.StructuredReply, error) {
	resp, err := c.doRequest(http.MethodPost, "/api/v1/replies", reply)
	if err != nil {
		return nil, err
	}
	var out models.StructuredReply
	if err := c.decodeOrError(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
