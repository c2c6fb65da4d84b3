package whatsapp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wabaconnect/models"
)

func TestHandleMessageBridgeSuccessLinksTenant(t *testing.T) {
	h := newHarness()
	payload := []byte(`{"type":"WHATSAPP_EMBEDDED_SIGNUP","status":"SUCCESS","waba_id":"WABA123","phone_number_id":"PN1"}`)

	res, err := h.svc.HandleMessage(context.Background(), testTenantID, "https://www.facebook.com", payload)
	require.NoError(t, err)
	assert.True(t, res.Linked)
	assert.False(t, res.RequirePin)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, "WABA123", tenant.WhatsAppBusinessAccountID)
	assert.Equal(t, "PN1", tenant.WhatsAppPhoneNumberID)
	assert.True(t, tenant.WhatsAppEnabled)
	assert.Equal(t, models.WHATSAPP_PHONE_PENDING, tenant.WhatsAppPhoneVerificationStatus)
	assert.Equal(t, models.WHATSAPP_REVIEW_PENDING, tenant.WhatsAppAccountReviewStatus)
	assert.Equal(t, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP, tenant.WhatsAppCreatedVia)
	assert.Equal(t, models.WHATSAPP_PROVIDER_TECH_PROVIDER, tenant.WhatsAppProvider)
	assert.False(t, tenant.WhatsAppTestMode)
	assert.Empty(t, tenant.CheckInvariants())
	assert.Equal(t, 1, h.store.writeCount())

	require.Len(t, h.scheduler.jobs, 1)
	assert.Equal(t, models.REFRESH_REASON_LINKED, h.scheduler.jobs[0].reason)
	assert.Equal(t, []time.Duration{time.Second, 6 * time.Second}, h.scheduler.jobs[0].delays)

	assert.Equal(t, PhaseLinked, h.svc.State(testTenantID).Phase)
	assert.Contains(t, h.events.types(), models.WORKFLOW_EVENT_LINKED)
}

func TestHandleMessageIgnoredChangesNothing(t *testing.T) {
	h := newHarness()

	_, err := h.svc.HandleMessage(context.Background(), testTenantID, "https://evil.example.com", []byte(`{"waba_id":"W"}`))
	assert.ErrorIs(t, err, ErrIgnoredMessage)
	assert.Zero(t, h.links.calls())
	assert.Zero(t, h.store.writeCount())
	assert.Equal(t, PhaseIdle, h.svc.State(testTenantID).Phase)
}

func TestLinkWithoutWabaIDMakesNoCall(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{PhoneNumberID: "PN1"}, models.WHATSAPP_CREATED_VIA_MANUAL_ENTRY)
	assert.ErrorIs(t, err, ErrMissingWabaID)
	assert.Zero(t, h.links.calls())
	assert.Zero(t, h.store.writeCount())
}

func TestLinkWithoutPhoneIsNotRegistered(t *testing.T) {
	h := newHarness()

	res, err := h.svc.LinkManual(context.Background(), testTenantID, ManualLink{WabaID: "WABA1"})
	require.NoError(t, err)
	assert.True(t, res.Linked)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, models.WHATSAPP_PHONE_NOT_REGISTERED, tenant.WhatsAppPhoneVerificationStatus)
	assert.Equal(t, models.WHATSAPP_CREATED_VIA_MANUAL_ENTRY, tenant.WhatsAppCreatedVia)
}

func TestLinkPrefersProcedureIdentifiers(t *testing.T) {
	h := newHarness()
	h.links.respond = func(req LinkRequest) (LinkResponse, error) {
		return LinkResponse{Success: true, WabaID: req.WabaID, PhoneNumberID: "PN-REAL", PhoneNumber: "+15550009"}, nil
	}

	_, err := h.svc.LinkManual(context.Background(), testTenantID, ManualLink{WabaID: "WABA1", PhoneNumberID: "PN-TYPED"})
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, "PN-REAL", tenant.WhatsAppPhoneNumberID)
	assert.Equal(t, "+15550009", tenant.WhatsAppPhoneNumber)
}

func TestRelinkSameAccountKeepsReviewStatus(t *testing.T) {
	h := newHarness(models.TenantAccount{
		ID:                              testTenantID,
		WhatsAppBusinessAccountID:       "WABA123",
		WhatsAppPhoneNumberID:           "PN1",
		WhatsAppEnabled:                 true,
		WhatsAppPhoneRegistered:         true,
		WhatsAppVerified:                true,
		WhatsAppPhoneVerificationStatus: models.WHATSAPP_PHONE_CONNECTED,
		WhatsAppAccountReviewStatus:     models.WHATSAPP_REVIEW_APPROVED,
	})

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA123", PhoneNumberID: "PN1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, models.WHATSAPP_REVIEW_APPROVED, tenant.WhatsAppAccountReviewStatus)
	assert.Equal(t, models.WHATSAPP_PHONE_CONNECTED, tenant.WhatsAppPhoneVerificationStatus)
	assert.True(t, tenant.WhatsAppVerified)
}

func TestLinkDifferentAccountResetsReview(t *testing.T) {
	h := newHarness(models.TenantAccount{
		ID:                              testTenantID,
		WhatsAppBusinessAccountID:       "OLD",
		WhatsAppPhoneNumberID:           "PN-OLD",
		WhatsAppEnabled:                 true,
		WhatsAppPhoneRegistered:         true,
		WhatsAppVerified:                true,
		WhatsAppPhoneVerificationStatus: models.WHATSAPP_PHONE_CONNECTED,
		WhatsAppAccountReviewStatus:     models.WHATSAPP_REVIEW_APPROVED,
	})

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "NEW", PhoneNumberID: "PN-NEW"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, models.WHATSAPP_REVIEW_PENDING, tenant.WhatsAppAccountReviewStatus)
	assert.Equal(t, models.WHATSAPP_PHONE_PENDING, tenant.WhatsAppPhoneVerificationStatus)
	assert.False(t, tenant.WhatsAppPhoneRegistered)
	assert.False(t, tenant.WhatsAppVerified)
	assert.Empty(t, tenant.CheckInvariants())
}

func TestLinkProcedureFailureIsAWarning(t *testing.T) {
	h := newHarness()
	h.links.respond = func(req LinkRequest) (LinkResponse, error) {
		return LinkResponse{}, errors.New("graph unavailable")
	}

	res, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	assert.False(t, res.Linked)
	assert.NotEmpty(t, res.Warning)
	assert.Zero(t, h.store.writeCount())
	assert.Equal(t, PhaseIdle, h.svc.State(testTenantID).Phase)

	require.Len(t, h.scheduler.jobs, 1)
	assert.Equal(t, models.REFRESH_REASON_LINK_FAILED, h.scheduler.jobs[0].reason)
	assert.Equal(t, []time.Duration{0}, h.scheduler.jobs[0].delays)
}

func requirePinUntil(pin string) func(req LinkRequest) (LinkResponse, error) {
	return func(req LinkRequest) (LinkResponse, error) {
		if req.PIN != pin {
			return LinkResponse{RequirePin: true}, nil
		}
		return LinkResponse{Success: true, WabaID: req.WabaID, PhoneNumberID: req.PhoneNumberID}, nil
	}
}

func TestRequirePinHoldsCandidateWithoutWriting(t *testing.T) {
	h := newHarness()
	h.links.respond = requirePinUntil("123456")

	res, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA1", PhoneNumberID: "PN1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	assert.True(t, res.RequirePin)
	assert.Zero(t, h.store.writeCount())

	state := h.svc.State(testTenantID)
	assert.Equal(t, PhaseAwaitingPin, state.Phase)
	require.NotNil(t, state.Pending)
	assert.Equal(t, "WABA1", state.Pending.Candidate.WabaID)

	// wrong pin: still no write, candidate retained
	_, err = h.svc.SubmitPIN(context.Background(), testTenantID, "000000")
	assert.ErrorIs(t, err, ErrIncorrectPIN)
	assert.Zero(t, h.store.writeCount())
	assert.Equal(t, PhaseAwaitingPin, h.svc.State(testTenantID).Phase)

	res, err = h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	require.NoError(t, err)
	assert.True(t, res.Linked)
	assert.Equal(t, "123456", h.links.last().PIN)
	assert.Equal(t, 1, h.store.writeCount())

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, "WABA1", tenant.WhatsAppBusinessAccountID)
	assert.True(t, tenant.WhatsAppPhoneRegistered)
	assert.Equal(t, models.WHATSAPP_PHONE_VALID, tenant.WhatsAppPhoneVerificationStatus)

	state = h.svc.State(testTenantID)
	assert.Equal(t, PhaseLinked, state.Phase)
	assert.Nil(t, state.Pending)
}

func TestPINLinkDifferentAccountClearsVerified(t *testing.T) {
	h := newHarness(models.TenantAccount{
		ID:                              testTenantID,
		WhatsAppBusinessAccountID:       "OLD",
		WhatsAppPhoneNumberID:           "PN-OLD",
		WhatsAppEnabled:                 true,
		WhatsAppPhoneRegistered:         true,
		WhatsAppVerified:                true,
		WhatsAppPhoneVerificationStatus: models.WHATSAPP_PHONE_CONNECTED,
		WhatsAppAccountReviewStatus:     models.WHATSAPP_REVIEW_APPROVED,
	})
	h.links.respond = requirePinUntil("123456")

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "NEW", PhoneNumberID: "PN-NEW"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	_, err = h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, "NEW", tenant.WhatsAppBusinessAccountID)
	assert.True(t, tenant.WhatsAppPhoneRegistered)
	assert.False(t, tenant.WhatsAppVerified)
	assert.False(t, tenant.WhatsAppReady)
	assert.Equal(t, models.WHATSAPP_REVIEW_PENDING, tenant.WhatsAppAccountReviewStatus)
	assert.Empty(t, tenant.CheckInvariants())

	require.Len(t, h.scheduler.jobs, 1)
	assert.Equal(t, models.REFRESH_REASON_LINKED, h.scheduler.jobs[0].reason)
	assert.Equal(t, []time.Duration{time.Second, 6 * time.Second}, h.scheduler.jobs[0].delays)
}

func TestPINRelinkSameNumberKeepsVerified(t *testing.T) {
	h := newHarness(models.TenantAccount{
		ID:                              testTenantID,
		WhatsAppBusinessAccountID:       "WABA1",
		WhatsAppPhoneNumberID:           "PN1",
		WhatsAppEnabled:                 true,
		WhatsAppPhoneRegistered:         true,
		WhatsAppVerified:                true,
		WhatsAppPhoneVerificationStatus: models.WHATSAPP_PHONE_CONNECTED,
		WhatsAppAccountReviewStatus:     models.WHATSAPP_REVIEW_APPROVED,
	})
	h.links.respond = requirePinUntil("123456")

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA1", PhoneNumberID: "PN1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	_, err = h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.True(t, tenant.WhatsAppVerified)
	assert.Equal(t, models.WHATSAPP_REVIEW_APPROVED, tenant.WhatsAppAccountReviewStatus)
}

func TestSubmitPINRejectsMalformedPinWithoutCall(t *testing.T) {
	h := newHarness()
	h.links.respond = requirePinUntil("123456")

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	callsBefore := h.links.calls()

	for _, pin := range []string{"12345", "1234567", "12a456", "", " 123456"} {
		_, err := h.svc.SubmitPIN(context.Background(), testTenantID, pin)
		assert.ErrorIs(t, err, ErrInvalidPIN, pin)
	}
	assert.Equal(t, callsBefore, h.links.calls())
	assert.Equal(t, PhaseAwaitingPin, h.svc.State(testTenantID).Phase)
}

func TestSubmitPINWithoutHeldCandidate(t *testing.T) {
	h := newHarness()

	_, err := h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	assert.ErrorIs(t, err, ErrNoPendingLink)
	assert.Zero(t, h.links.calls())
}

func TestCancelPINDiscardsCandidate(t *testing.T) {
	h := newHarness()
	h.links.respond = requirePinUntil("123456")

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "WABA1"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)

	assert.True(t, h.svc.CancelPIN(testTenantID))
	assert.Equal(t, PhaseIdle, h.svc.State(testTenantID).Phase)
	assert.False(t, h.svc.CancelPIN(testTenantID))

	_, err = h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	assert.ErrorIs(t, err, ErrNoPendingLink)
}

func TestNewAttemptOverwritesHeldCandidate(t *testing.T) {
	h := newHarness()
	h.links.respond = requirePinUntil("123456")

	_, err := h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "FIRST"}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	require.NoError(t, err)
	_, err = h.svc.Link(context.Background(), testTenantID, Candidate{WabaID: "SECOND"}, models.WHATSAPP_CREATED_VIA_MANUAL_ENTRY)
	require.NoError(t, err)

	_, err = h.svc.SubmitPIN(context.Background(), testTenantID, "123456")
	require.NoError(t, err)

	tenant := h.store.tenant(testTenantID)
	assert.Equal(t, "SECOND", tenant.WhatsAppBusinessAccountID)
	assert.Equal(t, models.WHATSAPP_CREATED_VIA_MANUAL_ENTRY, tenant.WhatsAppCreatedVia)
}

func TestSignupErrorIsReported(t *testing.T) {
	h := newHarness()

	_, err := h.svc.HandleMessage(context.Background(), testTenantID, "https://www.facebook.com",
		[]byte(`{"type":"WA_EMBEDDED_SIGNUP","event":"CANCEL","data":{"current_step":"WABA_SETUP"}}`))
	assert.ErrorIs(t, err, ErrSignupReported)
	assert.Zero(t, h.links.calls())
	assert.Contains(t, h.events.types(), models.WORKFLOW_EVENT_LINK_FAILED)
}
