package remote

import (
	"context"
	"errors"
	"fmt"

	"anarchy.ttfm/scanpay/backend"
	"anarchy.ttfm/scanpay/internal/backendrpc/rpc"
)

type Config struct {
	Client *rpc.Client
}

type Backend struct {
	client *rpc.Client
}

var _ backend.Backend = (*Backend)(nil)

// Converts ledger answers carrying a code into *backend.Error.
// Anything else keeps its transport shape.
func convertError(err error) error {
	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Code != "" {
		return &backend.Error{Code: rpcErr.Code}
	}
	return err
}

func (b *Backend) ListCharges(ctx context.Context, token backend.Token) (charges []backend.Charge, err error) {
	res, err := b.client.ListCharges(ctx, string(token))
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", convertError(err))
	}

	charges = make([]backend.Charge, 0, len(res.Charges))
	for _, charge := range res.Charges {
		charges = append(charges, backend.Charge{
			Name:      charge.Name,
			Amount:    charge.Amount,
			Status:    backend.ChargeStatus(charge.Status),
			AppliesTo: charge.AppliesTo,
		})
	}
	return charges, nil
}

func (b *Backend) SubmitTransfer(ctx context.Context, token backend.Token, req backend.TransferRequest) (transfer backend.Transfer, err error) {
	res, err := b.client.SubmitTransfer(ctx, string(token), req.IdempotencyKey, &rpc.TransferRequest{
		ReceiverOrSenderEmail: req.ReceiverOrSenderEmail,
		Amount:                req.Amount,
		Pin:                   req.Pin,
		TransactionFee:        req.TransactionFee,
	})
	if err != nil {
		return transfer, fmt.Errorf("failed to submit transfer: %w", convertError(err))
	}

	transfer = backend.Transfer{
		TransactionId: res.TransactionId,
		Message:       res.Message,
	}
	return transfer, nil
}

func New(config Config) (b *Backend) {
	b = &Backend{
		client: config.Client,
	}
	return b
}
