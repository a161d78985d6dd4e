package service

import (
	"context"
	"fmt"

	"github.com/curanet/nursebill/internal/domain/carecode"
	"github.com/curanet/nursebill/internal/domain/exclusivity"
	"github.com/curanet/nursebill/internal/domain/invoice"
	"github.com/curanet/nursebill/internal/domain/patient"
	"github.com/curanet/nursebill/internal/domain/prestation"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/types"
	"github.com/curanet/nursebill/internal/validator"
	"github.com/samber/lo"
)

// ValidationService decides whether an act may be billed. Rejections are
// typed results, never errors: turning an act away is a routine outcome the
// invoice-building UI has to show to a user. An error return means the
// check itself could not run.
type ValidationService interface {
	ValidateAct(ctx context.Context, req ValidateActRequest) (*types.ValidationResult, error)
	// CheckInvoiceCapacity runs only the capacity check against the target
	// invoice. The assembler calls it under the per-invoice lock so the
	// resulting count, not the pre-insertion count, is what gets verified.
	CheckInvoiceCapacity(ctx context.Context, act *prestation.Prestation, invoiceID string, replacesActID string) (*types.ValidationResult, error)
	// CheckExclusivity runs only the same-day conflict check. Conflicts are
	// judged against billed peers: a recorded act that never made it onto an
	// invoice reserves nothing. The assembler re-runs this check at
	// placement time so acts placed earlier in the same build count.
	CheckExclusivity(ctx context.Context, act *prestation.Prestation, replacesActID string) (*types.ValidationResult, error)
}

type ValidateActRequest struct {
	Act   *prestation.Prestation `validate:"required"`
	Flags *patient.Flags         `validate:"required"`

	// TargetInvoiceID is the invoice the act would be appended to; when
	// empty the capacity check is skipped (the assembler re-runs it under
	// the invoice lock before appending)
	TargetInvoiceID string

	// ReplacesActID marks an act superseded in the same transaction; it is
	// ignored by the exclusivity and capacity checks
	ReplacesActID string
}

type validationService struct {
	codeRepo        carecode.Repository
	exclusivityRepo exclusivity.Repository
	patientRepo     patient.Repository
	prestationRepo  prestation.Repository
	invoiceRepo     invoice.Repository
	logger          *logger.Logger
}

func NewValidationService(
	codeRepo carecode.Repository,
	exclusivityRepo exclusivity.Repository,
	patientRepo patient.Repository,
	prestationRepo prestation.Repository,
	invoiceRepo invoice.Repository,
	logger *logger.Logger,
) ValidationService {
	return &validationService{
		codeRepo:        codeRepo,
		exclusivityRepo: exclusivityRepo,
		patientRepo:     patientRepo,
		prestationRepo:  prestationRepo,
		invoiceRepo:     invoiceRepo,
		logger:          logger,
	}
}

func (s *validationService) ValidateAct(ctx context.Context, req ValidateActRequest) (*types.ValidationResult, error) {
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := req.Act.Validate(); err != nil {
		return nil, err
	}

	actDate := req.Act.Date()

	if result, err := s.checkHospitalization(ctx, req.Act, actDate); err != nil || !result.Accepted {
		return result, err
	}

	if result := s.checkDeathDate(req.Flags, actDate); !result.Accepted {
		return result, nil
	}

	if result, err := s.CheckExclusivity(ctx, req.Act, req.ReplacesActID); err != nil || !result.Accepted {
		return result, err
	}

	if req.TargetInvoiceID != "" {
		return s.CheckInvoiceCapacity(ctx, req.Act, req.TargetInvoiceID, req.ReplacesActID)
	}

	return types.Accept(), nil
}

func (s *validationService) checkHospitalization(ctx context.Context, act *prestation.Prestation, actDate types.Date) (*types.ValidationResult, error) {
	periods, err := s.patientRepo.ListHospitalizations(ctx, act.PatientID)
	if err != nil {
		return nil, err
	}

	hospitalizations := patient.NewHospitalizations(act.PatientID, periods)
	if hospitalizations.Covers(actDate) {
		return types.Reject(types.RejectionReasonHospitalized,
			fmt.Sprintf("patient was hospitalized on %s", actDate)), nil
	}
	return types.Accept(), nil
}

func (s *validationService) checkDeathDate(flags *patient.Flags, actDate types.Date) *types.ValidationResult {
	if flags.DateOfDeath == nil {
		return types.Accept()
	}
	// acts on the death date itself are already unbillable
	if !actDate.Before(flags.DateOfDeath.Time) {
		return types.Reject(types.RejectionReasonDeceased,
			fmt.Sprintf("patient deceased on %s", flags.DateOfDeath))
	}
	return types.Accept()
}

func (s *validationService) CheckExclusivity(ctx context.Context, act *prestation.Prestation, replacesActID string) (*types.ValidationResult, error) {
	groups, err := s.exclusivityRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	rules := exclusivity.NewRuleSet(groups)

	actDate := act.Date()
	sameDay, err := s.prestationRepo.ListByPatientAndDate(ctx, act.PatientID, actDate)
	if err != nil {
		return nil, err
	}

	// only billed peers reject: a merely recorded act claims nothing yet
	billedCodes := lo.FilterMap(sameDay, func(p *prestation.Prestation, _ int) (string, bool) {
		if !p.Counted() || !p.Invoiced() {
			return "", false
		}
		if p.ID == act.ID || (replacesActID != "" && p.ID == replacesActID) {
			return "", false
		}
		return p.Code, true
	})

	if conflicts := rules.FindConflicts(act.Code, billedCodes); len(conflicts) > 0 {
		return types.Reject(types.RejectionReasonCodeConflict,
			fmt.Sprintf("code %s conflicts with %v already billed on %s",
				act.Code, conflicts, actDate)), nil
	}
	return types.Accept(), nil
}

func (s *validationService) CheckInvoiceCapacity(ctx context.Context, act *prestation.Prestation, invoiceID string, replacesActID string) (*types.ValidationResult, error) {
	attached, err := s.prestationRepo.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	counted := lo.Filter(attached, func(p *prestation.Prestation, _ int) bool {
		if !p.Counted() {
			return false
		}
		return p.ID != act.ID && (replacesActID == "" || p.ID != replacesActID)
	})

	// the resulting count is what matters, not the pre-insertion count
	if len(counted)+1 > types.PrestationLimitMax {
		return types.Reject(types.RejectionReasonCapacityExceeded,
			fmt.Sprintf("invoice holds %d acts, limit is %d", len(counted), types.PrestationLimitMax)), nil
	}

	if act.AtHome {
		return s.checkAtHomeLimit(ctx, act, counted)
	}
	return types.Accept(), nil
}

func (s *validationService) checkAtHomeLimit(ctx context.Context, act *prestation.Prestation, counted []*prestation.Prestation) (*types.ValidationResult, error) {
	atHome := lo.Filter(counted, func(p *prestation.Prestation, _ int) bool {
		return p.AtHome
	})

	if len(atHome)+1 <= types.AtHomeLimitMax {
		return types.Accept(), nil
	}

	// a declared code pair may share one extra at-home slot
	if len(atHome) == types.AtHomeLimitMax {
		code, err := s.codeRepo.GetByCode(ctx, act.Code)
		if err != nil {
			return nil, err
		}
		paired := lo.EveryBy(atHome, func(p *prestation.Prestation) bool {
			return code.PairsWith(p.Code)
		})
		if paired {
			return types.Accept(), nil
		}
	}

	return types.Reject(types.RejectionReasonCapacityExceeded,
		fmt.Sprintf("invoice already holds %d at-home act(s), limit is %d", len(atHome), types.AtHomeLimitMax)), nil
}
