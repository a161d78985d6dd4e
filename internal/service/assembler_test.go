package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/curanet/nursebill/internal/cache"
	"github.com/curanet/nursebill/internal/domain/exclusivity"
	"github.com/curanet/nursebill/internal/domain/invoice"
	"github.com/curanet/nursebill/internal/domain/patient"
	"github.com/curanet/nursebill/internal/domain/prestation"
	ierr "github.com/curanet/nursebill/internal/errors"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/testutil"
	"github.com/curanet/nursebill/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type AssemblerServiceSuite struct {
	suite.Suite
	ctx             context.Context
	assembler       AssemblerService
	catalog         TariffCatalogService
	exclusivityRepo *testutil.InMemoryExclusivityStore
	patientRepo     *testutil.InMemoryPatientStore
	prestationRepo  *testutil.InMemoryPrestationStore
	invoiceRepo     *testutil.InMemoryInvoiceStore
	batchRepo       *testutil.InMemoryBatchStore
}

func TestAssemblerService(t *testing.T) {
	suite.Run(t, new(AssemblerServiceSuite))
}

func (s *AssemblerServiceSuite) SetupTest() {
	s.ctx = testutil.SetupContext()

	codeRepo := testutil.NewInMemoryCareCodeStore()
	tariffRepo := testutil.NewInMemoryTariffStore()
	s.exclusivityRepo = testutil.NewInMemoryExclusivityStore()
	s.patientRepo = testutil.NewInMemoryPatientStore()
	s.invoiceRepo = testutil.NewInMemoryInvoiceStore()
	s.prestationRepo = testutil.NewInMemoryPrestationStore(s.invoiceRepo)
	s.batchRepo = testutil.NewInMemoryBatchStore()

	s.catalog = NewTariffCatalogService(codeRepo, tariffRepo, cache.NewInMemoryCache(), 0, logger.L)
	billing := NewBillingService(s.catalog, codeRepo, logger.L)
	validation := NewValidationService(codeRepo, s.exclusivityRepo, s.patientRepo, s.prestationRepo, s.invoiceRepo, logger.L)

	s.assembler = NewAssemblerService(
		validation,
		billing,
		codeRepo,
		s.patientRepo,
		s.prestationRepo,
		s.invoiceRepo,
		s.batchRepo,
		invoice.NewLockManager(),
		logger.L,
	)
}

func (s *AssemblerServiceSuite) registerTariff(code string, channel types.BillingChannel, gross string) {
	_, err := s.catalog.RegisterCareCode(s.ctx, RegisterCareCodeRequest{
		Code:       code,
		Reimbursed: true,
		Channel:    channel,
	})
	s.Require().NoError(err)
	_, err = s.catalog.RegisterValidity(s.ctx, RegisterValidityRequest{
		Code:        code,
		Start:       types.MustDate("2015-01-01"),
		GrossAmount: decimal.RequireFromString(gross),
	})
	s.Require().NoError(err)
}

func (s *AssemblerServiceSuite) registerPatient(id string, private bool) {
	s.Require().NoError(s.patientRepo.SetFlags(s.ctx, &patient.Flags{
		PatientID: id,
		IsPrivate: private,
	}))
}

func (s *AssemblerServiceSuite) newAct(patientID, code string, at time.Time) *prestation.Prestation {
	act := &prestation.Prestation{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRESTATION),
		PatientID: patientID,
		Code:      code,
		At:        at,
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.prestationRepo.Create(s.ctx, act))
	return act
}

func (s *AssemblerServiceSuite) newDraftInvoice(patientID string, channel types.BillingChannel) *invoice.Item {
	item := &invoice.Item{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber: invoice.NextInvoiceNumber(types.MustDate("2023-05-31")),
		PatientID:     patientID,
		InvoiceDate:   types.MustDate("2023-05-31"),
		IsPrivate:     channel == types.BillingChannelPrivate,
		Channel:       channel,
		InvoiceStatus: types.InvoiceStatusDraft,
		BaseModel:     types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.invoiceRepo.Create(s.ctx, item))
	return item
}

func (s *AssemblerServiceSuite) TestAppendToInvoice() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))

	result, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Require().NoError(err)
	s.True(result.Accepted)
	s.Equal(item.ID, result.InvoiceID)
	s.True(result.Billing.Net.Equal(decimal.RequireFromString("26.40")))

	stored, err := s.prestationRepo.Get(s.ctx, act.ID)
	s.Require().NoError(err)
	s.Equal(item.ID, stored.InvoiceID)
}

func (s *AssemblerServiceSuite) TestAppendRejectionLeavesNoTrace() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	s.Require().NoError(s.patientRepo.CreateHospitalization(s.ctx, &patient.HospitalizationPeriod{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HOSPITALIZATION),
		PatientID: "pat-1",
		Start:     types.MustDate("2023-05-01"),
		End:       types.MustDate("2023-05-31"),
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}))

	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))

	result, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Require().NoError(err)
	s.False(result.Accepted)
	s.Equal(types.RejectionReasonHospitalized, result.Rejection.Reason)

	stored, err := s.prestationRepo.Get(s.ctx, act.ID)
	s.Require().NoError(err)
	s.Empty(stored.InvoiceID)
}

func (s *AssemblerServiceSuite) TestAppendAlreadyInvoicedAct() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))
	act.InvoiceID = "inv_elsewhere"

	_, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *AssemblerServiceSuite) TestAppendToIssuedInvoice() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	item.InvoiceStatus = types.InvoiceStatusIssued
	s.Require().NoError(s.invoiceRepo.Update(s.ctx, item))

	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))

	_, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *AssemblerServiceSuite) TestAppendPrivateMismatch() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", true)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))

	_, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

// TestConcurrentAppendsHonorCapacity submits twice as many acts as one
// invoice can hold, all at once. Without the per-invoice lock two
// submissions can both see 19 acts, both pass the capacity check, and land
// 21 on the invoice.
func (s *AssemblerServiceSuite) TestConcurrentAppendsHonorCapacity() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)

	acts := make([]*prestation.Prestation, 2*types.PrestationLimitMax)
	for i := range acts {
		at := types.MustDate("2023-05-01").AddDays(i % 28).Add(time.Duration(8+i/28) * time.Hour)
		acts[i] = s.newAct("pat-1", "N29", at)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	var firstErr error
	for _, act := range acts {
		wg.Add(1)
		go func(actID string) {
			defer wg.Done()
			result, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
				ActID:     actID,
				InvoiceID: item.ID,
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			if result.Accepted {
				accepted++
			}
		}(act.ID)
	}
	wg.Wait()

	s.Require().NoError(firstErr)
	s.Equal(types.PrestationLimitMax, accepted)

	attached, err := s.prestationRepo.ListByInvoice(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Len(attached, types.PrestationLimitMax)
}

func (s *AssemblerServiceSuite) TestBuildInvoicesRollsOverAtCapacity() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)

	for i := 0; i < 25; i++ {
		at := types.MustDate("2023-05-01").Add(time.Duration(i) * time.Hour)
		s.newAct("pat-1", "N29", at)
	}

	result, err := s.assembler.BuildInvoices(s.ctx, BuildInvoicesRequest{
		PatientID: "pat-1",
		From:      types.MustDate("2023-05-01"),
		To:        types.MustDate("2023-05-31"),
	})
	s.Require().NoError(err)
	s.Nil(result.Rejections)
	s.Require().Len(result.Invoices, 2)
	s.Len(result.Invoices[0].ActIDs, types.PrestationLimitMax)
	s.Len(result.Invoices[1].ActIDs, 5)

	// totals accumulate the per-act split
	s.True(result.Invoices[1].Totals.Gross.Equal(decimal.RequireFromString("150.00")))
	s.True(result.Invoices[1].Totals.Net.Equal(decimal.RequireFromString("132.00")))
	s.True(result.Invoices[1].Totals.PersonalParticipation.Equal(decimal.RequireFromString("18.00")))
}

func (s *AssemblerServiceSuite) TestBuildInvoicesSplitsByChannel() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerTariff("AD10", types.BillingChannelLongTermCare, "45.00")
	s.registerPatient("pat-1", false)

	s.newAct("pat-1", "N29", types.MustDate("2023-05-02").Add(9*time.Hour))
	s.newAct("pat-1", "AD10", types.MustDate("2023-05-02").Add(11*time.Hour))
	s.newAct("pat-1", "N29", types.MustDate("2023-05-03").Add(9*time.Hour))

	result, err := s.assembler.BuildInvoices(s.ctx, BuildInvoicesRequest{
		PatientID: "pat-1",
		From:      types.MustDate("2023-05-01"),
		To:        types.MustDate("2023-05-31"),
	})
	s.Require().NoError(err)
	s.Require().Len(result.Invoices, 2)

	byChannel := make(map[types.BillingChannel]*BuiltInvoice)
	for _, built := range result.Invoices {
		byChannel[built.Invoice.Channel] = built
	}
	s.Len(byChannel[types.BillingChannelCNS].ActIDs, 2)
	s.Len(byChannel[types.BillingChannelLongTermCare].ActIDs, 1)
}

func (s *AssemblerServiceSuite) TestBuildInvoicesSameDayConflictFirstActWins() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerTariff("N30", types.BillingChannelCNS, "41.25")
	s.registerPatient("pat-1", false)
	s.Require().NoError(s.exclusivityRepo.Create(s.ctx, &exclusivity.Group{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EXCLUSIVITY_GROUP),
		Name:      "complex care levels",
		Codes:     []string{"N29", "N30"},
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}))

	first := s.newAct("pat-1", "N29", types.MustDate("2023-05-02").Add(9*time.Hour))
	second := s.newAct("pat-1", "N30", types.MustDate("2023-05-02").Add(14*time.Hour))

	result, err := s.assembler.BuildInvoices(s.ctx, BuildInvoicesRequest{
		PatientID: "pat-1",
		From:      types.MustDate("2023-05-01"),
		To:        types.MustDate("2023-05-31"),
	})
	s.Require().NoError(err)

	// the earlier act is billed; only the later one is turned away
	s.Require().Len(result.Invoices, 1)
	s.Equal([]string{first.ID}, result.Invoices[0].ActIDs)
	s.Require().Contains(result.Rejections, second.ID)
	s.Equal(types.RejectionReasonCodeConflict, result.Rejections[second.ID].Reason)
}

func (s *AssemblerServiceSuite) TestMutationsRequireActingUser() {
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)

	_, err := s.assembler.AppendToInvoice(context.Background(), AppendToInvoiceRequest{
		ActID:     "pres_x",
		InvoiceID: item.ID,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.assembler.IssueInvoice(context.Background(), item.ID)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *AssemblerServiceSuite) TestBuildInvoicesForPrivatePatient() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", true)

	s.newAct("pat-1", "N29", types.MustDate("2023-05-02").Add(9*time.Hour))

	result, err := s.assembler.BuildInvoices(s.ctx, BuildInvoicesRequest{
		PatientID: "pat-1",
		From:      types.MustDate("2023-05-01"),
		To:        types.MustDate("2023-05-31"),
	})
	s.Require().NoError(err)
	s.Require().Len(result.Invoices, 1)
	s.Equal(types.BillingChannelPrivate, result.Invoices[0].Invoice.Channel)
	s.True(result.Invoices[0].Invoice.IsPrivate)
	s.True(result.Invoices[0].Totals.Net.IsZero())
}

func (s *AssemblerServiceSuite) TestBuildInvoicesReportsRejections() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	s.Require().NoError(s.patientRepo.CreateHospitalization(s.ctx, &patient.HospitalizationPeriod{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HOSPITALIZATION),
		PatientID: "pat-1",
		Start:     types.MustDate("2023-05-10"),
		End:       types.MustDate("2023-05-20"),
		BaseModel: types.GetDefaultBaseModel(s.ctx),
	}))

	billable := s.newAct("pat-1", "N29", types.MustDate("2023-05-02").Add(9*time.Hour))
	covered := s.newAct("pat-1", "N29", types.MustDate("2023-05-15").Add(9*time.Hour))

	result, err := s.assembler.BuildInvoices(s.ctx, BuildInvoicesRequest{
		PatientID: "pat-1",
		From:      types.MustDate("2023-05-01"),
		To:        types.MustDate("2023-05-31"),
	})
	s.Require().NoError(err)
	s.Require().Len(result.Invoices, 1)
	s.Equal([]string{billable.ID}, result.Invoices[0].ActIDs)

	s.Require().Contains(result.Rejections, covered.ID)
	s.Equal(types.RejectionReasonHospitalized, result.Rejections[covered.ID].Reason)
}

func (s *AssemblerServiceSuite) TestIssueInvoiceFreezesActs() {
	s.registerTariff("N29", types.BillingChannelCNS, "30.00")
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	act := s.newAct("pat-1", "N29", types.MustDate("2023-05-10").Add(9*time.Hour))

	_, err := s.assembler.AppendToInvoice(s.ctx, AppendToInvoiceRequest{
		ActID:     act.ID,
		InvoiceID: item.ID,
	})
	s.Require().NoError(err)

	issued, err := s.assembler.IssueInvoice(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusIssued, issued.InvoiceStatus)

	// acts on an issued invoice no longer accept mutations
	act.EmployeeID = "emp-2"
	err = s.prestationRepo.Update(s.ctx, act)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	_, err = s.assembler.IssueInvoice(s.ctx, item.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *AssemblerServiceSuite) newBatch(start, end string, status types.BatchStatus) *invoice.Batch {
	b := &invoice.Batch{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BATCH),
		Start:       types.MustDate(start),
		End:         types.MustDate(end),
		BatchStatus: status,
		BaseModel:   types.GetDefaultBaseModel(s.ctx),
	}
	s.Require().NoError(s.batchRepo.Create(s.ctx, b))
	return b
}

func (s *AssemblerServiceSuite) TestAssignToBatch() {
	s.registerPatient("pat-1", false)
	s.registerPatient("pat-2", true)

	inWindow := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	private := s.newDraftInvoice("pat-2", types.BillingChannelPrivate)
	outside := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	outside.InvoiceDate = types.MustDate("2023-07-15")
	s.Require().NoError(s.invoiceRepo.Update(s.ctx, outside))

	batch := s.newBatch("2023-05-01", "2023-05-31", types.BatchStatusOpen)

	result, err := s.assembler.AssignToBatch(s.ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal([]string{inWindow.ID}, result.Assigned)
	s.Contains(result.Skipped, private.ID)
	s.NotContains(result.Skipped, outside.ID)

	assigned, err := s.invoiceRepo.Get(s.ctx, inWindow.ID)
	s.Require().NoError(err)
	s.Equal(batch.ID, assigned.BatchID)

	// rerunning converges on the same membership
	again, err := s.assembler.AssignToBatch(s.ctx, batch.ID)
	s.Require().NoError(err)
	s.Equal(result.Assigned, again.Assigned)
}

func (s *AssemblerServiceSuite) TestAssignToBatchSkipsForeignMembers() {
	s.registerPatient("pat-1", false)
	item := s.newDraftInvoice("pat-1", types.BillingChannelCNS)
	item.BatchID = "batch_other"
	s.Require().NoError(s.invoiceRepo.Update(s.ctx, item))

	batch := s.newBatch("2023-05-01", "2023-05-31", types.BatchStatusOpen)

	result, err := s.assembler.AssignToBatch(s.ctx, batch.ID)
	s.Require().NoError(err)
	s.Empty(result.Assigned)
	s.Equal(fmt.Sprintf("attached to batch %s", "batch_other"), result.Skipped[item.ID])
}

func (s *AssemblerServiceSuite) TestAssignToClosedBatch() {
	batch := s.newBatch("2023-05-01", "2023-05-31", types.BatchStatusClosed)

	_, err := s.assembler.AssignToBatch(s.ctx, batch.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
