package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/curanet/nursebill/internal/domain/carecode"
	"github.com/curanet/nursebill/internal/domain/invoice"
	"github.com/curanet/nursebill/internal/domain/patient"
	"github.com/curanet/nursebill/internal/domain/prestation"
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/types"
	"github.com/curanet/nursebill/internal/validator"
	"github.com/sourcegraph/conc/pool"
)

// AssemblerService groups validated, priced acts into invoices and invoices
// into submission batches. Appending to an invoice is the engine's only
// contention point: the count-validate-append sequence runs under a lock
// scoped to the target invoice.
type AssemblerService interface {
	AppendToInvoice(ctx context.Context, req AppendToInvoiceRequest) (*AppendResult, error)
	BuildInvoices(ctx context.Context, req BuildInvoicesRequest) (*BuildInvoicesResult, error)
	// IssueInvoice finalizes a draft invoice; the invoice and its acts are
	// frozen afterwards.
	IssueInvoice(ctx context.Context, invoiceID string) (*invoice.Item, error)
	// AssignToBatch recomputes the batch's membership from scratch
	// (disassociate then associate), which makes reassignment idempotent.
	AssignToBatch(ctx context.Context, batchID string) (*AssignmentResult, error)
}

type AppendToInvoiceRequest struct {
	ActID     string `validate:"required"`
	InvoiceID string `validate:"required"`
	// ReplacesActID marks an act superseded in the same transaction
	ReplacesActID string
}

type AppendResult struct {
	Accepted  bool                       `json:"accepted"`
	Rejection *types.ValidationRejection `json:"rejection,omitempty"`
	Billing   *types.BillingResult       `json:"billing,omitempty"`
	InvoiceID string                     `json:"invoice_id,omitempty"`
}

type BuildInvoicesRequest struct {
	PatientID   string     `validate:"required"`
	From        types.Date `validate:"required"`
	To          types.Date `validate:"required"`
	InvoiceDate types.Date
}

type BuildInvoicesResult struct {
	// Invoices created, in creation order, with their accepted act IDs
	Invoices []*BuiltInvoice `json:"invoices"`
	// Rejections per act ID for acts that did not make it onto an invoice
	Rejections map[string]*types.ValidationRejection `json:"rejections,omitempty"`
}

type BuiltInvoice struct {
	Invoice *invoice.Item        `json:"invoice"`
	ActIDs  []string             `json:"act_ids"`
	Totals  *types.BillingResult `json:"totals"`
}

type AssignmentResult struct {
	BatchID  string            `json:"batch_id"`
	Assigned []string          `json:"assigned"`
	Skipped  map[string]string `json:"skipped,omitempty"`
}

type assemblerService struct {
	validation     ValidationService
	billing        BillingService
	codeRepo       carecode.Repository
	patientRepo    patient.Repository
	prestationRepo prestation.Repository
	invoiceRepo    invoice.Repository
	batchRepo      invoice.BatchRepository
	locks          *invoice.LockManager
	logger         *logger.Logger
}

func NewAssemblerService(
	validation ValidationService,
	billing BillingService,
	codeRepo carecode.Repository,
	patientRepo patient.Repository,
	prestationRepo prestation.Repository,
	invoiceRepo invoice.Repository,
	batchRepo invoice.BatchRepository,
	locks *invoice.LockManager,
	logger *logger.Logger,
) AssemblerService {
	return &assemblerService{
		validation:     validation,
		billing:        billing,
		codeRepo:       codeRepo,
		patientRepo:    patientRepo,
		prestationRepo: prestationRepo,
		invoiceRepo:    invoiceRepo,
		batchRepo:      batchRepo,
		locks:          locks,
		logger:         logger,
	}
}

func (s *assemblerService) AppendToInvoice(ctx context.Context, req AppendToInvoiceRequest) (*AppendResult, error) {
	if err := requireActor(ctx); err != nil {
		return nil, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	act, err := s.prestationRepo.Get(ctx, req.ActID)
	if err != nil {
		return nil, err
	}
	if act.Invoiced() {
		return nil, ierr.NewError("act is already attached to an invoice").
			WithHint("Detach the act before re-billing it").
			WithReportableDetails(map[string]any{
				"act_id":     act.ID,
				"invoice_id": act.InvoiceID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	item, err := s.invoiceRepo.Get(ctx, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if item.Issued() {
		return nil, ierr.NewError("invoice has been issued").
			WithHint("Issued invoices are frozen").
			Mark(ierr.ErrInvalidOperation)
	}

	flags, err := s.patientRepo.GetFlags(ctx, act.PatientID)
	if err != nil {
		return nil, err
	}
	if flags.IsPrivate != item.IsPrivate {
		return nil, ierr.NewError("patient classification does not match invoice").
			WithHint("Private acts belong on private invoices only").
			WithReportableDetails(map[string]any{
				"patient_id": act.PatientID,
				"invoice_id": item.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// critical section: two concurrent submissions must not both pass the
	// capacity check on the same stale count
	unlock := s.locks.Lock(item.ID)
	defer unlock()

	result, err := s.validation.ValidateAct(ctx, ValidateActRequest{
		Act:             act,
		Flags:           flags,
		TargetInvoiceID: item.ID,
		ReplacesActID:   req.ReplacesActID,
	})
	if err != nil {
		return nil, err
	}
	if !result.Accepted {
		// no partial side effects on rejection
		return &AppendResult{Accepted: false, Rejection: result.Rejection}, nil
	}

	billing, err := s.billing.Compute(ctx, ComputeBillingRequest{Act: act, Flags: flags})
	if err != nil {
		return nil, err
	}

	act.InvoiceID = item.ID
	act.UpdatedBy = types.GetUserID(ctx)
	if err := s.prestationRepo.Update(ctx, act); err != nil {
		return nil, err
	}

	return &AppendResult{
		Accepted:  true,
		Billing:   billing,
		InvoiceID: item.ID,
	}, nil
}

// actVerdict pairs an act with its validation and pricing outcome during
// invoice building
type actVerdict struct {
	act       *prestation.Prestation
	rejection *types.ValidationRejection
	billing   *types.BillingResult
	channel   types.BillingChannel
}

func (s *assemblerService) BuildInvoices(ctx context.Context, req BuildInvoicesRequest) (*BuildInvoicesResult, error) {
	if err := requireActor(ctx); err != nil {
		return nil, err
	}
	if err := validator.ValidateRequest(req); err != nil {
		return nil, err
	}

	flags, err := s.patientRepo.GetFlags(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	acts, err := s.prestationRepo.ListUninvoicedByPatient(ctx, req.PatientID, req.From, req.To)
	if err != nil {
		return nil, err
	}

	invoiceDate := req.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = req.To
	}

	// validation and pricing are pure reads, so acts fan out concurrently;
	// only the append phase below is serialized
	p := pool.NewWithResults[*actVerdict]().WithContext(ctx)
	for _, act := range acts {
		act := act
		p.Go(func(ctx context.Context) (*actVerdict, error) {
			return s.judgeAct(ctx, act, flags)
		})
	}
	verdicts, err := p.Wait()
	if err != nil {
		return nil, err
	}

	sort.Slice(verdicts, func(i, j int) bool {
		return verdicts[i].act.At.Before(verdicts[j].act.At)
	})

	result := &BuildInvoicesResult{
		Rejections: make(map[string]*types.ValidationRejection),
	}

	// one open invoice per channel at a time; a capacity rejection rolls the
	// channel over to a fresh invoice
	open := make(map[types.BillingChannel]*BuiltInvoice)
	for _, v := range verdicts {
		if v.rejection != nil {
			result.Rejections[v.act.ID] = v.rejection
			continue
		}
		// the fan-out saw none of this run's acts billed yet; re-check
		// same-day conflicts now that earlier acts have been placed, so
		// the earliest act of a conflicting pair wins
		check, err := s.validation.CheckExclusivity(ctx, v.act, "")
		if err != nil {
			return nil, err
		}
		if !check.Accepted {
			result.Rejections[v.act.ID] = check.Rejection
			continue
		}
		if err := s.placeAct(ctx, v, flags, invoiceDate, open, result); err != nil {
			return nil, err
		}
	}

	if len(result.Rejections) == 0 {
		result.Rejections = nil
	}
	return result, nil
}

func (s *assemblerService) judgeAct(ctx context.Context, act *prestation.Prestation, flags *patient.Flags) (*actVerdict, error) {
	verdict := &actVerdict{act: act}

	validation, err := s.validation.ValidateAct(ctx, ValidateActRequest{Act: act, Flags: flags})
	if err != nil {
		return nil, err
	}
	if !validation.Accepted {
		verdict.rejection = validation.Rejection
		return verdict, nil
	}

	billing, err := s.billing.Compute(ctx, ComputeBillingRequest{Act: act, Flags: flags})
	if err != nil {
		return nil, err
	}
	verdict.billing = billing

	if flags.IsPrivate {
		verdict.channel = types.BillingChannelPrivate
		return verdict, nil
	}
	code, err := s.codeRepo.GetByCode(ctx, act.Code)
	if err != nil {
		return nil, err
	}
	verdict.channel = code.Channel
	return verdict, nil
}

func (s *assemblerService) placeAct(
	ctx context.Context,
	v *actVerdict,
	flags *patient.Flags,
	invoiceDate types.Date,
	open map[types.BillingChannel]*BuiltInvoice,
	result *BuildInvoicesResult,
) error {
	for {
		built, ok := open[v.channel]
		if !ok {
			created, err := s.openInvoice(ctx, flags, invoiceDate, v.channel)
			if err != nil {
				return err
			}
			built = &BuiltInvoice{Invoice: created, Totals: &types.BillingResult{}}
			open[v.channel] = built
			result.Invoices = append(result.Invoices, built)
		}

		unlock := s.locks.Lock(built.Invoice.ID)
		capacity, err := s.validation.CheckInvoiceCapacity(ctx, v.act, built.Invoice.ID, "")
		if err != nil {
			unlock()
			return err
		}
		if capacity.Accepted {
			v.act.InvoiceID = built.Invoice.ID
			v.act.UpdatedBy = types.GetUserID(ctx)
			err := s.prestationRepo.Update(ctx, v.act)
			unlock()
			if err != nil {
				return err
			}
			built.ActIDs = append(built.ActIDs, v.act.ID)
			built.Totals.Gross = built.Totals.Gross.Add(v.billing.Gross)
			built.Totals.Net = built.Totals.Net.Add(v.billing.Net)
			built.Totals.PersonalParticipation = built.Totals.PersonalParticipation.Add(v.billing.PersonalParticipation)
			return nil
		}
		unlock()

		// the open invoice is full (or the at-home slot is taken);
		// roll over to a fresh one and retry once against empty capacity
		delete(open, v.channel)
	}
}

func (s *assemblerService) openInvoice(ctx context.Context, flags *patient.Flags, invoiceDate types.Date, channel types.BillingChannel) (*invoice.Item, error) {
	item := &invoice.Item{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber: invoice.NextInvoiceNumber(invoiceDate),
		PatientID:     flags.PatientID,
		InvoiceDate:   invoiceDate,
		IsPrivate:     channel == types.BillingChannelPrivate,
		Channel:       channel,
		InvoiceStatus: types.InvoiceStatusDraft,
		BaseModel:     types.GetDefaultBaseModel(ctx),
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Infow("opened invoice",
		"invoice_id", item.ID,
		"patient_id", item.PatientID,
		"channel", item.Channel,
	)
	return item, nil
}

func (s *assemblerService) IssueInvoice(ctx context.Context, invoiceID string) (*invoice.Item, error) {
	if err := requireActor(ctx); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(invoiceID)
	defer unlock()

	item, err := s.invoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if item.Issued() {
		return nil, ierr.NewError("invoice has already been issued").
			WithHint("Issued invoices are frozen").
			Mark(ierr.ErrInvalidOperation)
	}

	item.InvoiceStatus = types.InvoiceStatusIssued
	item.UpdatedBy = types.GetUserID(ctx)
	if err := s.invoiceRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Infow("issued invoice",
		"invoice_id", item.ID,
		"invoice_number", item.InvoiceNumber,
	)
	return item, nil
}

// requireActor guards every mutating assembler operation: audit fields are
// written from the context actor, so an anonymous context would record
// empty authorship.
func requireActor(ctx context.Context) error {
	if err := types.ValidateActorContext(ctx); err != nil {
		return ierr.WithError(err).
			WithHint("Mutations require an acting user").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (s *assemblerService) AssignToBatch(ctx context.Context, batchID string) (*AssignmentResult, error) {
	if err := requireActor(ctx); err != nil {
		return nil, err
	}

	batch, err := s.batchRepo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Open() {
		return nil, ierr.NewError("batch is closed").
			WithHint("Only open batches accept invoices").
			WithReportableDetails(map[string]any{
				"batch_id": batch.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// disassociate first so rerunning the assignment converges on the same
	// membership instead of accumulating
	members, err := s.invoiceRepo.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		member.BatchID = ""
		member.UpdatedBy = types.GetUserID(ctx)
		if err := s.invoiceRepo.Update(ctx, member); err != nil {
			return nil, err
		}
	}

	candidates, err := s.invoiceRepo.ListByDateRange(ctx, batch.Start, batch.End)
	if err != nil {
		return nil, err
	}

	result := &AssignmentResult{
		BatchID: batch.ID,
		Skipped: make(map[string]string),
	}
	for _, item := range candidates {
		switch {
		case item.IsPrivate:
			result.Skipped[item.ID] = "private invoices are never batched"
		case item.BatchID != "" && item.BatchID != batch.ID:
			result.Skipped[item.ID] = fmt.Sprintf("attached to batch %s", item.BatchID)
		default:
			item.BatchID = batch.ID
			item.UpdatedBy = types.GetUserID(ctx)
			if err := s.invoiceRepo.Update(ctx, item); err != nil {
				return nil, err
			}
			result.Assigned = append(result.Assigned, item.ID)
		}
	}

	if len(result.Skipped) == 0 {
		result.Skipped = nil
	}

	s.logger.Infow("assigned invoices to batch",
		"batch_id", batch.ID,
		"assigned", len(result.Assigned),
	)
	return result, nil
}
