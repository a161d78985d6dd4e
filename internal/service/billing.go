package service

import (
	"context"

	"github.com/curanet/nursebill/internal/domain/carecode"
	"github.com/curanet/nursebill/internal/domain/patient"
	"github.com/curanet/nursebill/internal/domain/prestation"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/types"
	"github.com/curanet/nursebill/internal/validator"
	"github.com/shopspring/decimal"
)

// The statutory split between the insurer share and the patient's
// co-payment. Domain constants fixed by the insurer, not derived.
var (
	insurerRate       = decimal.RequireFromString("0.88")
	participationRate = decimal.RequireFromString("0.12")
)

// BillingService prices one care act. The two components of the split are
// rounded to 2 decimals independently: downstream invoice reconciliation
// sums post-rounded values, so collapsing the arithmetic into a single
// rounding step would change the books by a cent.
type BillingService interface {
	Compute(ctx context.Context, req ComputeBillingRequest) (*types.BillingResult, error)
}

type ComputeBillingRequest struct {
	Act   *prestation.Prestation `validate:"required"`
	Flags *patient.Flags         `validate:"required"`
	// On is the pricing date; the act's own calendar date when zero
	On types.Date
}

type billingService struct {
	catalog  TariffCatalogService
	codeRepo carecode.Repository
	logger   *logger.Logger
}

func NewBillingService(
	catalog TariffCatalogService,
	codeRepo carecode.Repository,
	logger *logger.Logger,
) BillingService {
	return &billingService{
		catalog:  catalog,
		codeRepo: codeRepo,
		logger:   logger,
	}
}

func (s *billingService) Compute(ctx context.Context, req ComputeBillingRequest) (*types.BillingResult, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	on := req.On
	if on.IsZero() {
		on = req.Act.Date()
	}

	// pricing failures propagate unchanged: a missing or ambiguous tariff
	// must never default to zero
	gross, err := s.catalog.ResolvePrice(ctx, req.Act.Code, on)
	if err != nil {
		return nil, err
	}

	if req.Flags.IsPrivate {
		// private acts are never reimbursed through this channel
		return &types.BillingResult{
			Gross:                 gross,
			Net:                   decimal.Zero,
			PersonalParticipation: gross,
		}, nil
	}

	code, err := s.codeRepo.GetByCode(ctx, req.Act.Code)
	if err != nil {
		return nil, err
	}

	if !code.Reimbursed {
		// the insurer pays nothing for non-reimbursed codes; the full price
		// falls to the patient
		return &types.BillingResult{
			Gross:                 gross,
			Net:                   decimal.Zero,
			PersonalParticipation: gross,
		}, nil
	}

	// two-step rounding: the insurer share and the co-payment band are each
	// rounded to 2 decimals before anything is summed
	insurerShare := gross.Mul(insurerRate).Round(2)
	coPayment := gross.Mul(participationRate).Round(2)

	if req.Flags.ParticipationStatutaire {
		// co-payment waived: the insurer covers the participation band too
		return &types.BillingResult{
			Gross:                 gross,
			Net:                   insurerShare.Add(coPayment),
			PersonalParticipation: decimal.Zero,
		}, nil
	}

	return &types.BillingResult{
		Gross:                 gross,
		Net:                   insurerShare,
		PersonalParticipation: coPayment,
	}, nil
}
