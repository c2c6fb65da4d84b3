package whatsapp

import (
	"context"

	"wabaconnect/models"
)

// DetectResult is the outcome of the popup-closed fallback.
type DetectResult struct {
	// AlreadyDelivered means a signup message already arrived for the session; nothing
	// was looked up.
	AlreadyDelivered bool `json:"alreadyDelivered"`
	LinkResult
}

// Detect runs when the signup popup closed without delivering a result. It asks the
// platform which business accounts are shared with the app and links the newest one.
func (s *Service) Detect(ctx context.Context, tenantID int64, sessionID string) (DetectResult, error) {
	if s.states.deliveredFor(tenantID, sessionID) {
		return DetectResult{AlreadyDelivered: true}, nil
	}

	accounts, err := s.deps.Links.SharedAccounts(ctx)
	if err != nil {
		return DetectResult{}, err
	}
	if len(accounts) == 0 {
		return DetectResult{}, ErrNothingDetected
	}

	// the platform lists the most recently shared account last
	newest := accounts[len(accounts)-1]
	res, err := s.Link(ctx, tenantID, Candidate{
		WabaID:        newest.WabaID,
		PhoneNumberID: newest.PhoneNumberID,
		PhoneNumber:   newest.PhoneNumber,
	}, models.WHATSAPP_CREATED_VIA_EMBEDDED_SIGNUP)
	if err != nil {
		return DetectResult{}, err
	}
	return DetectResult{LinkResult: res}, nil
}
