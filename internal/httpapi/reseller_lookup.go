package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reseller_cta/internal/model"
	"github.com/MarkoPoloResearchLab/reseller_cta/internal/storage"
)

const (
	lookupCodeSuccess  = "success"
	lookupCodeNotFound = "user_not_found"
	lookupCodeNoRoute  = "rest_no_route"
	lookupCodeFailed   = "lookup_failed"

	lookupMessageSuccess  = "Reseller found successfully"
	lookupMessageNotFound = "Reseller not found"
	lookupMessageNoRoute  = "No route was found matching the URL and request method."
	lookupMessageFailed   = "Reseller lookup failed"

	routeParameterID = "id"
)

type lookupResponse struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    lookupData `json:"data"`
}

type lookupData struct {
	Status   int             `json:"status"`
	Reseller *lookupReseller `json:"reseller,omitempty"`
}

type lookupReseller struct {
	ID           uint64 `json:"id"`
	Nickname     string `json:"nickname"`
	BillingPhone string `json:"billing_phone"`
	URL          string `json:"url"`
}

// ResellerLookupHandlers serve the public reseller lookup consumed by the widget.
type ResellerLookupHandlers struct {
	repository *storage.ResellerRepository
	logger     *zap.Logger
}

func NewResellerLookupHandlers(repository *storage.ResellerRepository, logger *zap.Logger) *ResellerLookupHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResellerLookupHandlers{repository: repository, logger: logger}
}

func (handlers *ResellerLookupHandlers) GetReseller(context *gin.Context) {
	setNoCacheHeaders(context.Writer.Header())

	identifier, parseErr := model.ParseResellerID(context.Param(routeParameterID))
	if parseErr != nil {
		context.JSON(http.StatusNotFound, lookupFailure(lookupCodeNoRoute, lookupMessageNoRoute, http.StatusNotFound))
		return
	}

	reseller, findErr := handlers.repository.FindByID(context.Request.Context(), identifier)
	if errors.Is(findErr, storage.ErrResellerNotFound) {
		context.JSON(http.StatusNotFound, lookupFailure(lookupCodeNotFound, lookupMessageNotFound, http.StatusNotFound))
		return
	}
	if findErr != nil {
		handlers.logger.Warn("reseller_lookup_query_failed", zap.Uint64("id", identifier), zap.Error(findErr))
		context.JSON(http.StatusInternalServerError, lookupFailure(lookupCodeFailed, lookupMessageFailed, http.StatusInternalServerError))
		return
	}

	context.JSON(http.StatusOK, lookupResponse{
		Code:    lookupCodeSuccess,
		Message: lookupMessageSuccess,
		Data: lookupData{
			Status: http.StatusOK,
			Reseller: &lookupReseller{
				ID:           reseller.ID,
				Nickname:     reseller.Nickname,
				BillingPhone: sanitizeText(reseller.BillingPhone),
				URL:          reseller.URL,
			},
		},
	})
}

func lookupFailure(code string, message string, status int) lookupResponse {
	return lookupResponse{Code: code, Message: message, Data: lookupData{Status: status}}
}
