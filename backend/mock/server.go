package mock

import (
	"errors"
	"net/http"
	"strings"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/internal/backendrpc/rpc"
	"github.com/gin-gonic/gin"
)

// Server exposes a Mock through the ledger wire protocol
type Server struct {
	// Ledger to serve
	Mock *Mock
	// Base Gin Group to use for routing
	Base gin.IRoutes
}

func bearer(ctx *gin.Context) (token backend.Token) {
	header := ctx.GetHeader("Authorization")
	return backend.Token(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
}

func abortWithCode(ctx *gin.Context, err error) {
	var backendErr *backend.Error
	switch {
	case errors.Is(err, ErrUnauthorized):
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, rpc.ErrorResponse{Error: ErrUnauthorized.Code})
	case errors.As(err, &backendErr):
		ctx.AbortWithStatusJSON(http.StatusUnprocessableEntity, rpc.ErrorResponse{Error: backendErr.Code})
	case errors.Is(err, ErrInvalidAmount):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, rpc.ErrorResponse{Error: "InvalidAmount"})
	default:
		ctx.AbortWithError(http.StatusInternalServerError, err)
	}
}

func (s *Server) listCharges(ctx *gin.Context) {
	charges, err := s.Mock.ListCharges(ctx, bearer(ctx))
	if err != nil {
		abortWithCode(ctx, err)
		return
	}

	res := rpc.ChargesResponse{Charges: make([]rpc.Charge, 0, len(charges))}
	for _, charge := range charges {
		res.Charges = append(res.Charges, rpc.Charge{
			Name:      charge.Name,
			Amount:    charge.Amount,
			Status:    string(charge.Status),
			AppliesTo: charge.AppliesTo,
		})
	}
	ctx.JSON(http.StatusOK, &res)
}

func (s *Server) submitTransfer(ctx *gin.Context) {
	var req rpc.TransferRequest
	err := ctx.BindJSON(&req)
	if err != nil {
		return
	}

	transfer, err := s.Mock.SubmitTransfer(ctx, bearer(ctx), backend.TransferRequest{
		ReceiverOrSenderEmail: req.ReceiverOrSenderEmail,
		Amount:                req.Amount,
		Pin:                   req.Pin,
		TransactionFee:        req.TransactionFee,
		IdempotencyKey:        ctx.GetHeader(rpc.IdempotencyKey),
	})
	if err != nil {
		abortWithCode(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, &rpc.TransferResponse{
		TransactionId: transfer.TransactionId,
		Message:       transfer.Message,
	})
}

// Register routes in the Gin engine
func (s *Server) Register() {
	s.Base.GET(rpc.ChargesPath, s.listCharges)
	s.Base.POST(rpc.TransfersPath, s.submitTransfer)
}
