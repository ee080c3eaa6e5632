package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/config"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/samsara"
	"github.com/fleetbridge-systems/fleetbridge/internal/webhook"
)

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"token":      false,
		"mappings":   false,
		"seed":       false,
		"send-event": false,
		"reply":      false,
		"comm-log":   false,
		"health":     false,
	}

	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}

	for name, found := range expected {
		assert.True(t, found, "command %q should be registered", name)
	}
}

func TestServerFlagDefaultMatchesServerPort(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	def := rootCmd.PersistentFlags().Lookup("server").DefValue
	assert.Equal(t, fmt.Sprintf("http://localhost:%d", cfg.Server.Port), def)
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, splitCSV(""))
	assert.Equal(t, []string{"a"}, splitCSV("a"))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b"))
	assert.Equal(t, []string{"a", "b"}, splitCSV("a,,b,"))
}

func TestSendEventSignsPayload(t *testing.T) {
	const secret = "wh-secret"

	var gotPath string
	var gotEvent *models.FleetSystemEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.True(t, webhook.VerifySignature(secret, body, r.Header.Get(samsara.SignatureHeader)))

		gotEvent, err = samsara.ParseWebhook("acme", body)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"processed"}`))
	}))
	defer srv.Close()
	serverURL = srv.URL

	cmd := eventCmd
	require.NoError(t, cmd.Flags().Set("tenant", "acme"))
	require.NoError(t, cmd.Flags().Set("platform", "samsara"))
	require.NoError(t, cmd.Flags().Set("secret", secret))
	require.NoError(t, cmd.Flags().Set("type", "route.started"))
	require.NoError(t, cmd.Flags().Set("driver-id", "d-100"))
	require.NoError(t, cmd.Flags().Set("trip-id", "R42"))

	require.NoError(t, runSendEvent(cmd, nil))

	assert.Equal(t, "/webhooks/samsara/acme", gotPath)
	require.NotNil(t, gotEvent)
	assert.Equal(t, "route.started", gotEvent.EventType)
	assert.Equal(t, "d-100", gotEvent.DriverID)
	assert.Equal(t, "R42", gotEvent.TripID)
}

func TestAPIClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "token not valid for tenant"})
	}))
	defer srv.Close()
	serverURL = srv.URL

	_, err := newAPIClient().listMappings("acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token not valid for tenant")
}
