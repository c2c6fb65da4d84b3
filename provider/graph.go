package provider

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"wabaconnect/models"
	"wabaconnect/tools"
	"wabaconnect/whatsapp"
)

/************************************************
/**** MARK: PENDING ACTIONS ****/
/************************************************/
const ACTION_ACCOUNT_REVIEW = "account_review"
const ACTION_ADD_PHONE_NUMBER = "add_phone_number"
const ACTION_REGISTER_PHONE = "register_phone"
const ACTION_VERIFY_PHONE = "verify_phone"

const whatsappManagementScope = "whatsapp_business_management"

// Graph implements the remote linking and status procedures over the Graph API,
// acting as the tech provider's system user.
type Graph struct {
	client   tools.GraphClient
	appToken string
	logger   *zap.Logger
}

var (
	_ whatsapp.LinkProcedure   = (*Graph)(nil)
	_ whatsapp.StatusProcedure = (*Graph)(nil)
)

// NewGraph builds the procedures. appToken ("appId|appSecret") is only needed for
// SharedAccounts.
func NewGraph(client tools.GraphClient, appToken string, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{client: client, appToken: appToken, logger: logger}
}

func (g *Graph) Link(ctx context.Context, req whatsapp.LinkRequest) (whatsapp.LinkResponse, error) {
	wabaID := strings.TrimSpace(req.WabaID)
	if wabaID == "" {
		return whatsapp.LinkResponse{}, whatsapp.ErrMissingWabaID
	}
	if err := g.client.SubscribeApp(ctx, wabaID); err != nil {
		return whatsapp.LinkResponse{}, err
	}

	phoneID := strings.TrimSpace(req.PhoneNumberID)
	if phoneID == "" {
		numbers, err := g.client.ListPhoneNumbers(ctx, wabaID)
		if err != nil {
			return whatsapp.LinkResponse{}, err
		}
		if len(numbers) > 0 {
			phoneID = numbers[0].ID
		}
	}

	resp := whatsapp.LinkResponse{Success: true, WabaID: wabaID, PhoneNumberID: phoneID, PhoneNumber: req.PhoneNumber}
	if phoneID == "" {
		return resp, nil
	}

	phone, err := g.client.GetPhoneNumber(ctx, phoneID)
	if err != nil {
		return whatsapp.LinkResponse{}, err
	}
	if display := tools.NormalizeDisplayPhone(phone.DisplayPhoneNumber); display != "" {
		resp.PhoneNumber = display
	}
	if phone.OnCloudAPI() {
		return resp, nil
	}

	if req.PIN == "" {
		return whatsapp.LinkResponse{RequirePin: true, WabaID: wabaID, PhoneNumberID: phoneID}, nil
	}

	if err := g.client.Register(ctx, phoneID, req.PIN); err != nil {
		var gerr tools.GraphError
		if errors.As(err, &gerr) {
			switch gerr.Code {
			case tools.GRAPH_ERROR_PIN_MISMATCH, tools.GRAPH_ERROR_PIN_REQUIRED:
				return whatsapp.LinkResponse{RequirePin: true, WabaID: wabaID, PhoneNumberID: phoneID}, nil
			case tools.GRAPH_ERROR_ALREADY_REGISTERED:
				g.logger.Info("phone number already registered", zap.String("phone_number_id", phoneID))
				return resp, nil
			}
		}
		return whatsapp.LinkResponse{}, err
	}
	return resp, nil
}

// SharedAccounts lists the business accounts the system user was granted through
// embedded signup, oldest first.
func (g *Graph) SharedAccounts(ctx context.Context) ([]whatsapp.SharedAccount, error) {
	app := g.client
	app.AccessToken = g.appToken
	scopes, err := app.DebugToken(ctx, g.client.AccessToken)
	if err != nil {
		return nil, err
	}

	var out []whatsapp.SharedAccount
	for _, scope := range scopes {
		if scope.Scope != whatsappManagementScope {
			continue
		}
		for _, wabaID := range scope.TargetIDs {
			account := whatsapp.SharedAccount{WabaID: wabaID}
			numbers, err := g.client.ListPhoneNumbers(ctx, wabaID)
			if err != nil {
				g.logger.Warn("failed to list phone numbers", zap.String("waba_id", wabaID), zap.Error(err))
			} else if len(numbers) > 0 {
				account.PhoneNumberID = numbers[0].ID
				account.PhoneNumber = tools.NormalizeDisplayPhone(numbers[0].DisplayPhoneNumber)
			}
			out = append(out, account)
		}
	}
	return out, nil
}

func (g *Graph) Status(ctx context.Context, req whatsapp.StatusRequest) (whatsapp.StatusResponse, error) {
	ba, err := g.client.GetBusinessAccount(ctx, req.WabaID)
	if err != nil {
		return whatsapp.StatusResponse{}, err
	}

	review := strings.ToUpper(strings.TrimSpace(ba.AccountReviewStatus))
	st := whatsapp.PlatformStatus{
		Waba: whatsapp.WabaStatus{
			ID:                         ba.ID,
			Name:                       ba.Name,
			BusinessVerificationStatus: ba.BusinessVerificationStatus,
		},
		AccountReview: whatsapp.AccountReviewStatus{
			Status:     review,
			IsApproved: review == models.WHATSAPP_REVIEW_APPROVED,
			IsPending:  review == models.WHATSAPP_REVIEW_PENDING,
		},
	}

	actions := []string{}
	if !st.AccountReview.IsApproved {
		actions = append(actions, ACTION_ACCOUNT_REVIEW)
	}

	ready := false
	if req.PhoneNumberID == "" {
		actions = append(actions, ACTION_ADD_PHONE_NUMBER)
		st.Phone.NeedsVerification = true
	} else {
		phone, err := g.client.GetPhoneNumber(ctx, req.PhoneNumberID)
		if err != nil {
			return whatsapp.StatusResponse{}, err
		}
		registered := phone.OnCloudAPI()
		verified := strings.EqualFold(phone.CodeVerificationStatus, "VERIFIED")
		st.Phone = whatsapp.PhoneStatus{
			PhoneNumberID:      phone.ID,
			PhoneNumber:        tools.NormalizeDisplayPhone(phone.DisplayPhoneNumber),
			Registered:         &registered,
			Verified:           &verified,
			VerificationStatus: phoneVerificationStatus(phone, registered, verified),
			NeedsVerification:  !registered || !verified,
		}
		if !registered {
			actions = append(actions, ACTION_REGISTER_PHONE)
		}
		if !verified {
			actions = append(actions, ACTION_VERIFY_PHONE)
		}
		ready = st.AccountReview.IsApproved && registered && verified
	}

	st.Overall = whatsapp.OverallStatus{
		Ready:          &ready,
		NeedsAction:    len(actions) > 0,
		PendingActions: actions,
	}
	return whatsapp.StatusResponse{Success: true, Status: st}, nil
}

func phoneVerificationStatus(phone tools.PhoneNumber, registered, verified bool) string {
	switch {
	case registered && strings.EqualFold(phone.Status, "CONNECTED"):
		return models.WHATSAPP_PHONE_CONNECTED
	case verified:
		return models.WHATSAPP_PHONE_VALID
	case registered || phone.CodeVerificationStatus != "":
		return models.WHATSAPP_PHONE_PENDING
	default:
		return models.WHATSAPP_PHONE_NOT_REGISTERED
	}
}
