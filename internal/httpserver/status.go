package httpserver

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/gin-gonic/gin"
)

const (
	codeWalletNotFound          = "wallet_not_found"
	codeInsufficientBalance     = "insufficient_balance"
	codeInvalidPackage          = "invalid_package"
	codeInvalidStatusTransition = "invalid_status_transition"
	codeAccessDenied            = "access_denied"
	codeValidationError         = "validation_error"
	codePersistenceFailure      = "persistence_failure"
	codeInternalError           = "internal_error"
)

// mapError translates the domain taxonomy into an HTTP status and stable code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, coinledger.ErrWalletNotFound):
		return http.StatusNotFound, codeWalletNotFound
	case errors.Is(err, coinledger.ErrInsufficientBalance):
		return http.StatusConflict, codeInsufficientBalance
	case errors.Is(err, coinledger.ErrInvalidStatusTransition):
		return http.StatusConflict, codeInvalidStatusTransition
	case errors.Is(err, coinledger.ErrInvalidPackage):
		return http.StatusBadRequest, codeInvalidPackage
	case errors.Is(err, coinledger.ErrValidation):
		return http.StatusBadRequest, codeValidationError
	case errors.Is(err, coinledger.ErrAccessDenied):
		return http.StatusForbidden, codeAccessDenied
	case errors.Is(err, coinledger.ErrPersistence):
		return http.StatusBadGateway, codePersistenceFailure
	}
	return http.StatusInternalServerError, codeInternalError
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

func respondError(ctx *gin.Context, err error) {
	status, code := mapError(err)
	ctx.JSON(status, errorResponse(code, err.Error()))
}
