package payment

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cardinity-gateway/internal/common"
	"github.com/noah-isme/cardinity-gateway/internal/order"
)

const sessionCookie = "checkout_session"

// Handler exposes the checkout payment endpoints.
type Handler struct {
	Svc      *Service
	Orders   order.Store
	Validate *validator.Validate
	// CallbackURL is the absolute TermUrl the ACS posts the shopper back to.
	CallbackURL string
	Logger      zerolog.Logger
}

type chargeReq struct {
	OrderID string `json:"orderId" validate:"required,uuid4"`
	Card    Card   `json:"card" validate:"required"`
}

type challengeResp struct {
	URL  string `json:"url"`
	Data string `json:"data"`
	MD   string `json:"md"`
}

type chargeResp struct {
	Outcome     Outcome        `json:"outcome"`
	PaymentID   string         `json:"paymentId,omitempty"`
	RedirectURL string         `json:"redirectUrl"`
	Challenge   *challengeResp `json:"challenge,omitempty"`
}

// Charge places a charge for a pending order with the supplied card.
func (h *Handler) Charge(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil || h.Orders == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req chargeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid charge request", validationDetails(err))
			return
		}
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid orderId", nil)
		return
	}
	o, err := h.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "ORDER_FETCH_ERROR", "unable to load order", nil)
		return
	}
	if o.Status != order.StatusPendingPayment {
		common.JSONError(w, http.StatusConflict, "ORDER_STATE", "order does not accept payment", nil)
		return
	}

	sessionID := h.sessionID(w, r)
	state, chargeErr := h.Svc.Charge(r.Context(), sessionID, o, req.Card)
	resp := chargeResp{
		Outcome:     state.Outcome,
		PaymentID:   state.PaymentID,
		RedirectURL: h.Svc.RedirectTarget(state),
	}
	if state.Outcome == OutcomePendingChallenge {
		resp.Challenge = &challengeResp{URL: state.ChallengeURL, Data: state.ChallengeData, MD: state.ExternalOrderID}
	}
	if chargeErr != nil {
		var appErr *common.AppError
		if errors.As(chargeErr, &appErr) {
			status := appErr.HTTPStatus
			if status == 0 {
				status = http.StatusBadRequest
			}
			common.JSON(w, status, map[string]any{
				"error": common.ErrorBody{Code: appErr.Code, Message: appErr.Message},
				"data":  resp,
			})
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "charge failed", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": resp})
}

var challengeTemplate = template.Must(template.New("challenge").Parse(`<!DOCTYPE html>
<html>
<head><title>Redirecting to your bank…</title></head>
<body onload="document.forms[0].submit()">
<form action="{{.URL}}" method="post">
<input type="hidden" name="PaReq" value="{{.PaReq}}">
<input type="hidden" name="MD" value="{{.MD}}">
<input type="hidden" name="TermUrl" value="{{.TermUrl}}">
<noscript><input type="submit" value="Continue"></noscript>
</form>
</body>
</html>
`))

// ChallengePage renders the auto-submitting form that sends the shopper to
// the ACS for the 3-D Secure challenge.
func (h *Handler) ChallengePage(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)
	state, ok, err := h.Svc.States.Load(r.Context(), sessionID)
	if err != nil {
		h.Logger.Error().Err(err).Msg("load authorization state for challenge page")
	}
	if !ok || state.Outcome != OutcomePendingChallenge {
		http.Redirect(w, r, h.Svc.Routes.Failure, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = challengeTemplate.Execute(w, map[string]string{
		"URL":     state.ChallengeURL,
		"PaReq":   state.ChallengeData,
		"MD":      state.ExternalOrderID,
		"TermUrl": h.CallbackURL,
	})
}

// Callback receives the ACS redirect after the shopper completes (or
// abandons) the 3-D Secure challenge. Anything but a well-formed POST is
// treated as a cancellation request.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)
	if r.Method != http.MethodPost {
		h.Svc.CancelCheckout(r.Context(), sessionID)
		http.Redirect(w, r, h.Svc.Routes.Failure, http.StatusFound)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.Svc.CancelCheckout(r.Context(), sessionID)
		http.Redirect(w, r, h.Svc.Routes.Failure, http.StatusFound)
		return
	}
	paRes := strings.TrimSpace(r.PostFormValue("PaRes"))
	md := strings.TrimSpace(r.PostFormValue("MD"))
	if paRes == "" || md == "" {
		h.Svc.CancelCheckout(r.Context(), sessionID)
		http.Redirect(w, r, h.Svc.Routes.Failure, http.StatusFound)
		return
	}
	if h.Svc.Complete(r.Context(), sessionID, md, paRes) {
		http.Redirect(w, r, h.Svc.Routes.Success, http.StatusFound)
		return
	}
	http.Redirect(w, r, h.Svc.Routes.Failure, http.StatusFound)
}

// Cancel aborts the current checkout attempt explicitly.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(w, r)
	h.Svc.CancelCheckout(r.Context(), sessionID)
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"redirectUrl": h.Svc.Routes.Failure}})
}

// sessionID returns the checkout session identifier, minting a cookie when
// the shopper does not carry one yet. SameSite=None so the cookie survives
// the cross-site form post back from the ACS.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && strings.TrimSpace(c.Value) != "" {
		return c.Value
	}
	if header := strings.TrimSpace(r.Header.Get("X-Checkout-Session")); header != "" {
		return header
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
	return id
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace())
	}
	return map[string]any{"fields": fields}
}
