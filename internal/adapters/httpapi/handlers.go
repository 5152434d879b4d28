package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mikey/phishing-detector/internal/core"
	"github.com/mikey/phishing-detector/internal/ports"
)

// Handler serves the mailbox and phishing endpoints
type Handler struct {
	service ports.PhishingEvaluator
	mail    ports.MailClient
	logger  *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(service ports.PhishingEvaluator, mail ports.MailClient, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		mail:    mail,
		logger:  logger,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

type messagesResponse struct {
	Messages           []core.MessageRecord `json:"messages"`
	NextPageToken      string               `json:"nextPageToken,omitempty"`
	ResultSizeEstimate int64                `json:"resultSizeEstimate"`
}

type evaluationResponse struct {
	Prediction   core.Label `json:"prediction"`
	Probability  []float64  `json:"probability"`
	Explanation  string     `json:"explanation,omitempty"`
	ProcessingID string     `json:"processing_id,omitempty"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// GetMessages lists the caller's mailbox and returns every listed message decoded
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeObject(w, r)
	if !ok || len(data) == 0 {
		writeError(w, http.StatusBadRequest, "No JSON data provided")
		return
	}

	token, err := tokenFromRequest(data)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	cred, err := credentialFromToken(token)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	opts, err := listOptionsFromRequest(data)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	userID := userIDFromRequest(data, token)
	h.logger.Debug("Listing mailbox", zap.String("user_id", userID))

	list, err := h.mail.ListMessages(r.Context(), cred, userID, opts)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := messagesResponse{
		Messages:           []core.MessageRecord{},
		NextPageToken:      list.NextPageToken,
		ResultSizeEstimate: list.ResultSizeEstimate,
	}

	ids := list.IDs()
	if len(ids) > 0 {
		records, err := h.mail.FetchMessages(r.Context(), cred, userID, ids)
		if err != nil {
			h.writeFailure(w, err)
			return
		}
		resp.Messages = records
	}

	h.logger.Info("Retrieved mailbox messages",
		zap.String("user_id", userID),
		zap.Int("count", len(resp.Messages)))

	writeJSON(w, http.StatusOK, resp)
}

// CheckEmail scores a single email supplied in the request body
func (h *Handler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	data, ok := decodeObject(w, r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid input data")
		return
	}

	req, err := evaluationFromRequest(data)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	email := &core.Email{
		From:    req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
		URLs:    req.URLs,
	}

	result, err := h.service.Evaluate(r.Context(), email, core.EvaluateOptions{
		Explain: req.Explain,
		Source:  "http",
	})
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	writeJSON(w, http.StatusOK, evaluationResponse{
		Prediction:   result.Label,
		Probability:  result.Probabilities,
		Explanation:  result.Explanation,
		ProcessingID: result.ProcessingID,
	})
}

// Health reports liveness without touching any dependency
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "Gmail Messages API",
	})
}

// writeFailure maps an error onto the response taxonomy: input and mail
// provider problems are 400, everything else 500
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var bad *errBadInput
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, bad.msg)
		return
	}

	var mailErr *core.MailError
	if errors.As(err, &mailErr) {
		writeError(w, http.StatusBadRequest, mailErr.Message)
		return
	}

	h.logger.Error("Request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, fmt.Sprintf("Server error: %s", err.Error()))
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
