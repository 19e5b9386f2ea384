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
	jsonKeyError = "error"

	errorValueInvalidJSON     = "invalid_json"
	errorValueInvalidID       = "invalid_id"
	errorValueInvalidNickname = "invalid_nickname"
	errorValueInvalidPhone    = "invalid_phone"
	errorValueInvalidURL      = "invalid_url"
	errorValueUnknownReseller = "unknown_reseller"
	errorValueSaveFailed      = "save_failed"
	errorValueQueryFailed     = "query_failed"
	errorValueDeleteFailed    = "delete_failed"
)

type ResellerAdminHandlers struct {
	repository *storage.ResellerRepository
	logger     *zap.Logger
}

func NewResellerAdminHandlers(repository *storage.ResellerRepository, logger *zap.Logger) *ResellerAdminHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResellerAdminHandlers{repository: repository, logger: logger}
}

type saveResellerRequest struct {
	Nickname     string `json:"nickname"`
	BillingPhone string `json:"billing_phone"`
	URL          string `json:"url"`
}

type resellerResponse struct {
	ID           uint64 `json:"id"`
	Nickname     string `json:"nickname"`
	BillingPhone string `json:"billing_phone"`
	URL          string `json:"url"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type listResellersResponse struct {
	Resellers []resellerResponse `json:"resellers"`
}

func (handlers *ResellerAdminHandlers) ListResellers(context *gin.Context) {
	resellers, listErr := handlers.repository.List(context.Request.Context())
	if listErr != nil {
		handlers.logger.Warn("list_resellers", zap.Error(listErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}

	response := listResellersResponse{Resellers: make([]resellerResponse, 0, len(resellers))}
	for _, reseller := range resellers {
		response.Resellers = append(response.Resellers, toResellerResponse(reseller))
	}
	context.JSON(http.StatusOK, response)
}

func (handlers *ResellerAdminHandlers) SaveReseller(context *gin.Context) {
	var payload saveResellerRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	reseller, validationErr := model.NewReseller(model.ResellerInput{
		ID:           context.Param(routeParameterID),
		Nickname:     payload.Nickname,
		BillingPhone: payload.BillingPhone,
		URL:          payload.URL,
	})
	if validationErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: resellerValidationCode(validationErr)})
		return
	}

	saved, saveErr := handlers.repository.Save(context.Request.Context(), reseller)
	if saveErr != nil {
		handlers.logger.Warn("save_reseller", zap.Uint64("id", reseller.ID), zap.Error(saveErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusOK, toResellerResponse(saved))
}

func (handlers *ResellerAdminHandlers) DeleteReseller(context *gin.Context) {
	identifier, parseErr := model.ParseResellerID(context.Param(routeParameterID))
	if parseErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidID})
		return
	}

	deleted, deleteErr := handlers.repository.Delete(context.Request.Context(), identifier)
	if deleteErr != nil {
		handlers.logger.Warn("delete_reseller", zap.Uint64("id", identifier), zap.Error(deleteErr))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueDeleteFailed})
		return
	}
	if !deleted {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownReseller})
		return
	}
	context.Status(http.StatusNoContent)
}

func resellerValidationCode(validationErr error) string {
	switch {
	case errors.Is(validationErr, model.ErrInvalidResellerID):
		return errorValueInvalidID
	case errors.Is(validationErr, model.ErrInvalidResellerNickname):
		return errorValueInvalidNickname
	case errors.Is(validationErr, model.ErrInvalidResellerPhone):
		return errorValueInvalidPhone
	default:
		return errorValueInvalidURL
	}
}

func toResellerResponse(reseller model.Reseller) resellerResponse {
	return resellerResponse{
		ID:           reseller.ID,
		Nickname:     reseller.Nickname,
		BillingPhone: reseller.BillingPhone,
		URL:          reseller.URL,
		CreatedAt:    reseller.CreatedAt.Unix(),
		UpdatedAt:    reseller.UpdatedAt.Unix(),
	}
}
