// Package adtag is the HTTP ingress for the resolution engine: it turns one
// GET request into a session, runs the serving policies, and serves the
// orchestrator's response as JSON.
package adtag

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/julienschmidt/httprouter"
	"github.com/shopspring/decimal"

	"github.com/xsp-lib/xsp/errortypes"
	"github.com/xsp-lib/xsp/metrics"
	"github.com/xsp-lib/xsp/orchestrator"
	"github.com/xsp-lib/xsp/policy"
	"github.com/xsp-lib/xsp/session"
)

// Reserved query parameters consumed by the endpoint itself. Everything else
// is a normalized ad parameter and participates in the cache fingerprint.
const (
	paramURL         = "url"
	paramUser        = "user"
	paramCampaign    = "campaign"
	paramFreqLimit   = "freq_limit"
	paramFreqWindowS = "freq_window_s"
	paramPrice       = "price"
	paramBudgetLimit = "budget_limit"
)

// uidCookie is where the user id is read from when the query does not carry
// one.
const uidCookie = "uid"

type noFillResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id"`
}

type errorResponse struct {
	Status       string   `json:"status"`
	Code         int      `json:"code"`
	Message      string   `json:"message"`
	TrackingURLs []string `json:"tracking_urls,omitempty"`
	RequestID    string   `json:"request_id"`
}

// Endpoint serves GET /adtag/:protocol.
type Endpoint struct {
	orch    *orchestrator.Orchestrator
	capper  *policy.FrequencyCapper
	budget  *policy.BudgetTracker
	metrics *metrics.Engine
}

func NewEndpoint(orch *orchestrator.Orchestrator, capper *policy.FrequencyCapper, budget *policy.BudgetTracker, me *metrics.Engine) *Endpoint {
	if me == nil {
		me = metrics.NewBlank()
	}
	return &Endpoint{orch: orch, capper: capper, budget: budget, metrics: me}
}

// Handle is the httprouter entry point.
func (e *Endpoint) Handle(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	query := r.URL.Query()

	tagURL := query.Get(paramURL)
	if tagURL == "" {
		writeError(w, http.StatusBadRequest, &errortypes.BadInput{Message: "missing required parameter \"url\""}, "")
		return
	}

	sc := session.New(cookieMap(r))
	userID := query.Get(paramUser)
	if userID == "" {
		userID, _ = sc.Cookie(uidCookie)
	}
	campaignID := query.Get(paramCampaign)

	// Frequency cap gates the resolution itself; a capped user's request
	// never reaches upstream.
	if campaignID != "" && userID != "" {
		limit, _ := strconv.ParseInt(query.Get(paramFreqLimit), 10, 64)
		windowS, _ := strconv.ParseInt(query.Get(paramFreqWindowS), 10, 64)
		if limit > 0 {
			if !e.capper.CheckAndIncrement(r.Context(), userID, campaignID, limit, time.Duration(windowS)*time.Second) {
				e.metrics.RecordNoFill(true)
				writeJSON(w, http.StatusOK, noFillResponse{Status: "no_fill", Reason: "frequency_cap", RequestID: sc.RequestID()})
				return
			}
		}
	}

	params := map[string]string{}
	for key, values := range query {
		switch key {
		case paramURL, paramUser, paramCampaign, paramFreqLimit, paramFreqWindowS, paramPrice, paramBudgetLimit:
		default:
			if len(values) > 0 {
				params[key] = values[0]
			}
		}
	}

	resp, err := e.orch.Serve(r.Context(), orchestrator.AdRequest{
		Protocol: ps.ByName("protocol"),
		TagURL:   tagURL,
		Params:   params,
		Session:  sc,
	})
	if err != nil {
		writeError(w, statusForError(err), err, sc.RequestID())
		return
	}

	// Budget is charged only for resolutions that will actually serve.
	if campaignID != "" {
		price, priceErr := decimal.NewFromString(query.Get(paramPrice))
		budgetLimit, limitErr := decimal.NewFromString(query.Get(paramBudgetLimit))
		if priceErr == nil && limitErr == nil && price.IsPositive() {
			if !e.budget.TrySpend(r.Context(), campaignID, price, budgetLimit) {
				e.metrics.RecordNoFill(false)
				writeJSON(w, http.StatusOK, noFillResponse{Status: "no_fill", Reason: "budget_exceeded", RequestID: sc.RequestID()})
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func cookieMap(r *http.Request) map[string]string {
	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	return cookies
}

func statusForError(err error) int {
	switch errortypes.ReadCode(err) {
	case errortypes.BadInputErrorCode, errortypes.UnknownProtocolErrorCode:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error, requestID string) {
	writeJSON(w, status, errorResponse{
		Status:       "error",
		Code:         errortypes.ReadCode(err),
		Message:      err.Error(),
		TrackingURLs: errortypes.ReadTrackers(err),
		RequestID:    requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		glog.Errorf("Failed to write response: %v", err)
	}
}
