package interpreter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

func testMapping() *models.DriverPhoneMapping {
	return &models.DriverPhoneMapping{
		ID:               "m-1",
		TenantID:         "acme",
		Platform:         models.PlatformSamsara,
		PlatformDriverID: "d-1",
		DriverName:       "Rosa Vega",
		Address:          "+15550001111",
		Active:           true,
	}
}

func newFixture(phase models.DriverStatus) (*Interpreter, *StaticTrips) {
	trips := NewStaticTrips()
	trips.SetTrip("acme", models.PlatformSamsara, "d-1", models.TripContext{
		TripID:       "R42",
		Phase:        phase,
		PickupName:   "Dallas DC",
		DeliveryName: "Austin Store 7",
	})
	return New(trips), trips
}

func buttonReply(payload string) models.InboundReply {
	return models.InboundReply{
		TenantID:    "acme",
		FromAddress: "+15550001111",
		Kind:        models.ReplyButton,
		Payload:     payload,
	}
}

func textReply(text string) models.InboundReply {
	r := buttonReply(text)
	r.Kind = models.ReplyText
	return r
}

func TestInterpret_ConfirmArrivalEnRoute(t *testing.T) {
	i, _ := newFixture(models.StatusEnRoute)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("confirm_arrival"))
	require.NoError(t, err)

	assert.Equal(t, ActionConfirmArrival, out.Action)
	require.NotNil(t, out.Update)
	assert.Equal(t, models.UpdateStatus, out.Update.Kind)
	assert.Equal(t, models.StatusArrivedPickup, out.Update.Status)
	assert.Equal(t, models.PlatformSamsara, out.Update.Platform)
	assert.Equal(t, "d-1", out.Update.PlatformDriverID)

	require.NotEmpty(t, out.Reply.Buttons)
	assert.Equal(t, "start_loading", out.Reply.Buttons[0].ID)
}

func TestInterpret_ConfirmArrivalWhenLoaded(t *testing.T) {
	i, _ := newFixture(models.StatusLoaded)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("confirm_arrival"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusArrivedDelivery, out.Update.Status)
	require.NotEmpty(t, out.Reply.Buttons)
	assert.Equal(t, "start_unloading", out.Reply.Buttons[0].ID)
}

func TestInterpret_LoadingFlow(t *testing.T) {
	i, _ := newFixture(models.StatusArrivedPickup)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("start_loading"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLoading, out.Update.Status)
	assert.Equal(t, "loading_complete", out.Reply.Buttons[0].ID)

	out, err = i.Interpret(context.Background(), testMapping(), buttonReply("loading_complete"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusLoaded, out.Update.Status)
	assert.Contains(t, out.Reply.Message, "Austin Store 7")
}

func TestInterpret_DeliveryConfirmOffersDocumentUpload(t *testing.T) {
	i, _ := newFixture(models.StatusUnloading)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("confirm_delivery"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusDelivered, out.Update.Status)
	require.NotEmpty(t, out.Reply.Buttons)
	assert.Equal(t, "upload_document", out.Reply.Buttons[0].ID)
}

func TestInterpret_ETAButtons(t *testing.T) {
	for payload, want := range map[string]int{"eta_15": 15, "eta_30": 30, "eta_60": 60} {
		i, _ := newFixture(models.StatusEnRoute)
		out, err := i.Interpret(context.Background(), testMapping(), buttonReply(payload))
		require.NoError(t, err)
		require.NotNil(t, out.Update)
		assert.Equal(t, models.UpdateETA, out.Update.Kind)
		assert.Equal(t, want, out.Update.ETADeltaMinutes)
	}
}

func TestInterpret_EmergencyButton(t *testing.T) {
	i, _ := newFixture(models.StatusEnRoute)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("emergency"))
	require.NoError(t, err)

	assert.Equal(t, models.StatusEmergencyStopped, out.Update.Status)
	assert.Contains(t, out.Reply.Message, "911")
}

func TestInterpret_UnmatchedPayloadIsNeverAnError(t *testing.T) {
	i, _ := newFixture(models.StatusEnRoute)

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("launch_rockets"))
	require.NoError(t, err)

	assert.Equal(t, ActionUnknown, out.Action)
	assert.Nil(t, out.Update)
	assert.NotEmpty(t, out.Reply.Message)
}

func TestInterpret_FreeTextKeywords(t *testing.T) {
	cases := []struct {
		text       string
		wantAction Action
		wantStatus models.DriverStatus
	}{
		{"I'm here at the dock", ActionConfirmArrival, models.StatusArrivedPickup},
		{"all loaded up", ActionLoadingComplete, models.StatusLoaded},
		{"done, delivered everything", ActionConfirmDelivery, models.StatusDelivered},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			i, _ := newFixture(models.StatusEnRoute)
			out, err := i.Interpret(context.Background(), testMapping(), textReply(tc.text))
			require.NoError(t, err)
			assert.Equal(t, tc.wantAction, out.Action)
			require.NotNil(t, out.Update)
			assert.Equal(t, tc.wantStatus, out.Update.Status)
		})
	}
}

func TestInterpret_FreeTextHelpAlertsDispatchWithoutStatusWrite(t *testing.T) {
	for _, text := range []string{"can you help with the gate code", "big problem with the trailer"} {
		t.Run(text, func(t *testing.T) {
			i, _ := newFixture(models.StatusEnRoute)

			out, err := i.Interpret(context.Background(), testMapping(), textReply(text))
			require.NoError(t, err)

			assert.Equal(t, ActionHelp, out.Action)
			require.NotNil(t, out.Update)
			assert.Equal(t, models.UpdateNote, out.Update.Kind)
			assert.Empty(t, out.Update.Status)
			assert.Contains(t, out.Update.Notes, text)
			assert.Contains(t, out.Reply.Message, "Dispatch has been alerted")
		})
	}
}

func TestInterpret_FreeTextKeywordOrderFirstMatchWins(t *testing.T) {
	// "here" outranks "done" in the scan order.
	i, _ := newFixture(models.StatusEnRoute)
	out, err := i.Interpret(context.Background(), testMapping(), textReply("here and done"))
	require.NoError(t, err)
	assert.Equal(t, ActionConfirmArrival, out.Action)
}

func TestInterpret_FreeTextETAPrompts(t *testing.T) {
	i, _ := newFixture(models.StatusEnRoute)

	out, err := i.Interpret(context.Background(), testMapping(), textReply("need more time"))
	require.NoError(t, err)

	assert.Nil(t, out.Update)
	assert.Equal(t, "quick_replies", out.Reply.Type)
	require.Len(t, out.Reply.Buttons, 3)
	assert.Equal(t, "eta_15", out.Reply.Buttons[0].ID)
}

func TestInterpret_FreeTextFallsBackToNote(t *testing.T) {
	i, _ := newFixture(models.StatusEnRoute)

	out, err := i.Interpret(context.Background(), testMapping(), textReply("gate code is 4411"))
	require.NoError(t, err)

	require.NotNil(t, out.Update)
	assert.Equal(t, models.UpdateNote, out.Update.Kind)
	assert.Equal(t, "gate code is 4411", out.Update.Notes)
}

func TestInterpret_LocationRecordsWithoutPhaseAdvance(t *testing.T) {
	i, trips := newFixture(models.StatusEnRoute)

	reply := buttonReply("")
	reply.Kind = models.ReplyLocation
	reply.Location = &models.Location{Latitude: 32.78, Longitude: -96.80}

	out, err := i.Interpret(context.Background(), testMapping(), reply)
	require.NoError(t, err)

	require.NotNil(t, out.Update)
	assert.Equal(t, models.UpdateLocation, out.Update.Kind)
	assert.Empty(t, out.Update.Status, "sharing a location never advances the trip phase")

	trip, err := trips.ActiveTrip(context.Background(), "acme", testMapping())
	require.NoError(t, err)
	assert.Equal(t, models.StatusEnRoute, trip.Phase)
}

func TestInterpret_DocumentClassification(t *testing.T) {
	cases := map[string]models.DocumentClass{
		"pod_R42.pdf":        models.DocProofOfDelivery,
		"delivery-slip.pdf":  models.DocProofOfDelivery,
		"fuel_receipt.pdf":   models.DocReceipt,
		"signature_page.pdf": models.DocSignature,
		"dock_photo.heic":    models.DocPhoto,
		"IMG_2041.jpg":       models.DocPhoto,
		"scan01.tiff":        models.DocOther,
	}
	for filename, want := range cases {
		assert.Equal(t, want, ClassifyDocument(filename), filename)
	}
}

func TestInterpret_DocumentReplyBuildsUpload(t *testing.T) {
	i, _ := newFixture(models.StatusDelivered)

	reply := buttonReply("")
	reply.Kind = models.ReplyDocument
	reply.Filename = "pod_R42.pdf"
	reply.MediaURL = "https://media.example.com/pod_R42.pdf"

	out, err := i.Interpret(context.Background(), testMapping(), reply)
	require.NoError(t, err)

	require.NotNil(t, out.Update)
	assert.Equal(t, models.UpdateDocument, out.Update.Kind)
	require.NotNil(t, out.Update.Document)
	assert.Equal(t, models.DocProofOfDelivery, out.Update.Document.Class)
	assert.Equal(t, "R42", out.Update.Document.TripID)
}

func TestInterpret_NoActiveTripIsTerminal(t *testing.T) {
	i := New(NewStaticTrips())

	out, err := i.Interpret(context.Background(), testMapping(), buttonReply("confirm_arrival"))
	require.NoError(t, err)

	assert.Nil(t, out.Update)
	assert.Equal(t, NoActiveTripReply(), out.Reply)
}

func TestInterpret_InformationalActionsMakeNoVendorCall(t *testing.T) {
	for _, payload := range []string{"call_dispatch", "privacy_info", "upload_document"} {
		i, _ := newFixture(models.StatusEnRoute)
		out, err := i.Interpret(context.Background(), testMapping(), buttonReply(payload))
		require.NoError(t, err)
		assert.Nil(t, out.Update, payload)
		assert.NotEmpty(t, out.Reply.Message, payload)
	}
}
