// Package httpserver is the gin façade over the coin ledger service. It
// owns HTTP concerns only: routing, auth, serialization, and status-code
// mapping. All mutation semantics live in pkg/coinledger.
package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/coinledger/internal/metrics"
	"github.com/MarkoPoloResearchLab/coinledger/pkg/coinledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Run boots the HTTP façade and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config, service *coinledger.Service, logger *zap.Logger) error {
	router := NewRouter(cfg, service, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("coinledger api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(cfg Config, service *coinledger.Service, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	handler := &httpHandler{service: service, logger: logger}

	api := router.Group("/api")
	api.Use(authMiddleware([]byte(cfg.JWTSigningKey), cfg.JWTIssuer))

	api.GET("/packages", handler.handleListPackages)
	api.GET("/wallet", handler.handleWallet)
	api.GET("/wallet/transactions", handler.handleListTransactions)
	api.POST("/purchase-requests", handler.handleCreatePurchaseRequest)
	api.GET("/purchase-requests", handler.handleListOwnPurchaseRequests)
	api.POST("/purchase-requests/:id/cancel", handler.handleCancelPurchaseRequest)

	admin := api.Group("/admin")
	admin.POST("/coins/add", handler.handleAddCoins)
	admin.POST("/coins/remove", handler.handleRemoveCoins)
	admin.GET("/purchase-requests", handler.handleListPendingPurchaseRequests)
	admin.POST("/purchase-requests/:id/approve", handler.handleApprovePurchaseRequest)
	admin.POST("/purchase-requests/:id/reject", handler.handleRejectPurchaseRequest)
	admin.POST("/transfers", handler.handleTransfer)
	admin.GET("/report", handler.handleReport)

	return router
}

type httpHandler struct {
	service *coinledger.Service
	logger  *zap.Logger
}

func (handler *httpHandler) handleListPackages(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"packages": toPackagePayloads(handler.service.ListPackages())})
}

func (handler *httpHandler) handleWallet(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	wallet, err := handler.service.GetOrCreateWallet(ctx.Request.Context(), userID)
	if err != nil {
		handler.logger.Error("wallet fetch failed", zap.Error(err))
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"wallet": toWalletPayload(wallet)})
}

func (handler *httpHandler) handleListTransactions(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	entries, err := handler.service.ListTransactions(ctx.Request.Context(), userID, queryLimit(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"transactions": toEntryPayloads(entries)})
}

func (handler *httpHandler) handleCreatePurchaseRequest(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	var body createRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidationError, "expected JSON body with package_id and payment_method"))
		return
	}
	request, err := handler.service.CreatePurchaseRequest(ctx.Request.Context(), userID, body.PackageID, body.PaymentMethod, body.PaymentReference)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"request": toRequestPayload(request)})
}

func (handler *httpHandler) handleListOwnPurchaseRequests(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	requests, err := handler.service.ListPurchaseRequestsFor(ctx.Request.Context(), userID, queryLimit(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"requests": toRequestPayloads(requests)})
}

func (handler *httpHandler) handleCancelPurchaseRequest(ctx *gin.Context) {
	userID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	request, err := handler.service.CancelPurchaseRequest(ctx.Request.Context(), userID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"request": toRequestPayload(request)})
}

func (handler *httpHandler) handleAddCoins(ctx *gin.Context) {
	handler.handleCoinAdjustment(ctx, true)
}

func (handler *httpHandler) handleRemoveCoins(ctx *gin.Context) {
	handler.handleCoinAdjustment(ctx, false)
}

func (handler *httpHandler) handleCoinAdjustment(ctx *gin.Context, isCredit bool) {
	actorID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	var body adminCoinsBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidationError, "expected JSON body with user_id and amount"))
		return
	}
	targetID, err := coinledger.NewUserID(body.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	amount, err := coinledger.NewCoinAmount(body.Amount)
	if err != nil {
		respondError(ctx, err)
		return
	}
	var newBalance int64
	if isCredit {
		newBalance, err = handler.service.AddCoins(ctx.Request.Context(), actorID, targetID, amount, body.Note)
	} else {
		newBalance, err = handler.service.RemoveCoins(ctx.Request.Context(), actorID, targetID, amount, body.Note)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": targetID.String(), "balance": newBalance})
}

func (handler *httpHandler) handleListPendingPurchaseRequests(ctx *gin.Context) {
	actorID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	requests, err := handler.service.ListPendingPurchaseRequests(ctx.Request.Context(), actorID, queryLimit(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"requests": toRequestPayloads(requests)})
}

func (handler *httpHandler) handleApprovePurchaseRequest(ctx *gin.Context) {
	handler.handlePurchaseDecision(ctx, true)
}

func (handler *httpHandler) handleRejectPurchaseRequest(ctx *gin.Context) {
	handler.handlePurchaseDecision(ctx, false)
}

func (handler *httpHandler) handlePurchaseDecision(ctx *gin.Context, isApproval bool) {
	actorID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	var body adminDecisionBody
	if err := ctx.ShouldBindJSON(&body); err != nil && ctx.Request.ContentLength > 0 {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidationError, "expected JSON body"))
		return
	}
	var request coinledger.PurchaseRequest
	if isApproval {
		request, err = handler.service.ApprovePurchaseRequest(ctx.Request.Context(), actorID, ctx.Param("id"), body.Note)
	} else {
		request, err = handler.service.RejectPurchaseRequest(ctx.Request.Context(), actorID, ctx.Param("id"), body.Note)
	}
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"request": toRequestPayload(request)})
}

func (handler *httpHandler) handleTransfer(ctx *gin.Context) {
	actorID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	if err := handler.requireAdminActor(ctx, actorID); err != nil {
		return
	}
	var body adminTransferBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse(codeValidationError, "expected JSON body with from_user_id, to_user_id and amount"))
		return
	}
	fromID, err := coinledger.NewUserID(body.FromUserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	toID, err := coinledger.NewUserID(body.ToUserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	amount, err := coinledger.NewCoinAmount(body.Amount)
	if err != nil {
		respondError(ctx, err)
		return
	}
	newBalance, err := handler.service.Transfer(ctx.Request.Context(), fromID, toID, amount, body.Description)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"to_user_id": toID.String(), "balance": newBalance})
}

func (handler *httpHandler) handleReport(ctx *gin.Context) {
	actorID, err := coinledger.NewUserID(callerUserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	report, err := handler.service.BuildReport(ctx.Request.Context(), actorID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"report": report})
}

// requireAdminActor fronts operations whose service method has no dedicated
// admin gate of its own.
func (handler *httpHandler) requireAdminActor(ctx *gin.Context, actorID coinledger.UserID) error {
	if err := handler.service.RequireAdmin(ctx.Request.Context(), actorID); err != nil {
		respondError(ctx, err)
		return err
	}
	return nil
}

func queryLimit(ctx *gin.Context) int {
	raw, ok := ctx.GetQuery("limit")
	if !ok {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}
