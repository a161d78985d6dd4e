package service

import (
	"context"
	"time"

	"github.com/curanet/nursebill/internal/cache"
	"github.com/curanet/nursebill/internal/domain/carecode"
	"github.com/curanet/nursebill/internal/domain/tariff"
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/types"
	"github.com/curanet/nursebill/internal/validator"
	"github.com/shopspring/decimal"
)

const tariffScheduleCachePrefix = "tariff:schedule:"

// TariffCatalogService owns care code definitions and their time-bounded
// prices. Prices never change in place: a new validity interval closes the
// previous one, and the no-overlap invariant is enforced when the interval
// is registered, not discovered at read time.
type TariffCatalogService interface {
	RegisterCareCode(ctx context.Context, req RegisterCareCodeRequest) (*carecode.CareCode, error)
	RegisterValidity(ctx context.Context, req RegisterValidityRequest) (*tariff.ValidityDate, error)
	// ResolvePrice returns the gross amount effective for the care code on
	// the given date. ErrNoPriceDefined when no interval covers the date;
	// ErrAmbiguousPrice when corrupt data makes two intervals cover it.
	ResolvePrice(ctx context.Context, code string, on types.Date) (decimal.Decimal, error)
}

type RegisterCareCodeRequest struct {
	Code           string               `json:"code" validate:"required"`
	Name           string               `json:"name"`
	Reimbursed     bool                 `json:"reimbursed"`
	Channel        types.BillingChannel `json:"channel"`
	AtHomePairCode string               `json:"at_home_pair_code"`
}

type RegisterValidityRequest struct {
	Code        string          `json:"code" validate:"required"`
	Start       types.Date      `json:"start_date" validate:"required"`
	End         *types.Date     `json:"end_date"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
}

type tariffCatalogService struct {
	codeRepo   carecode.Repository
	tariffRepo tariff.Repository
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *logger.Logger
}

func NewTariffCatalogService(
	codeRepo carecode.Repository,
	tariffRepo tariff.Repository,
	c cache.Cache,
	cacheTTL time.Duration,
	logger *logger.Logger,
) TariffCatalogService {
	if cacheTTL <= 0 {
		cacheTTL = cache.DefaultExpiration
	}
	return &tariffCatalogService{
		codeRepo:   codeRepo,
		tariffRepo: tariffRepo,
		cache:      c,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

func (s *tariffCatalogService) RegisterCareCode(ctx context.Context, req RegisterCareCodeRequest) (*carecode.CareCode, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	channel := req.Channel
	if channel == "" {
		channel = types.BillingChannelCNS
	}

	code := &carecode.CareCode{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CARE_CODE),
		Code:           req.Code,
		Name:           req.Name,
		Reimbursed:     req.Reimbursed,
		Channel:        channel,
		AtHomePairCode: req.AtHomePairCode,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if err := code.Validate(); err != nil {
		return nil, err
	}

	if err := s.codeRepo.Create(ctx, code); err != nil {
		return nil, err
	}

	s.logger.Infow("registered care code", "code", code.Code, "reimbursed", code.Reimbursed)
	return code, nil
}

func (s *tariffCatalogService) RegisterValidity(ctx context.Context, req RegisterValidityRequest) (*tariff.ValidityDate, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	code, err := s.codeRepo.GetByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}

	schedule, err := s.loadSchedule(ctx, code)
	if err != nil {
		return nil, err
	}

	validity := &tariff.ValidityDate{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VALIDITY),
		CareCodeID:  code.ID,
		Start:       req.Start,
		End:         req.End,
		GrossAmount: req.GrossAmount,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}

	// write-time enforcement of the no-overlap and open-ended invariants
	if err := schedule.Add(validity); err != nil {
		return nil, err
	}

	if err := s.tariffRepo.Create(ctx, validity); err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, tariffScheduleCachePrefix+code.Code)

	s.logger.Infow("registered validity interval",
		"code", code.Code,
		"start", validity.Start.String(),
		"gross_amount", validity.GrossAmount.String(),
	)
	return validity, nil
}

func (s *tariffCatalogService) ResolvePrice(ctx context.Context, code string, on types.Date) (decimal.Decimal, error) {
	schedule, err := s.getSchedule(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return schedule.PriceOn(on)
}

func (s *tariffCatalogService) getSchedule(ctx context.Context, code string) (*tariff.Schedule, error) {
	key := tariffScheduleCachePrefix + code
	if cached, ok := s.cache.Get(ctx, key); ok {
		if schedule, ok := cached.(*tariff.Schedule); ok {
			return schedule, nil
		}
	}

	record, err := s.codeRepo.GetByCode(ctx, code)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, ierr.WithError(err).
				WithHintf("Unknown care code %s", code).
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	schedule, err := s.loadSchedule(ctx, record)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, schedule, s.cacheTTL)
	return schedule, nil
}

func (s *tariffCatalogService) loadSchedule(ctx context.Context, code *carecode.CareCode) (*tariff.Schedule, error) {
	intervals, err := s.tariffRepo.ListByCareCode(ctx, code.ID)
	if err != nil {
		return nil, err
	}
	return tariff.NewSchedule(code.ID, intervals), nil
}
