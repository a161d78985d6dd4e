package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/curanet/nursebill/internal/cache"
	"github.com/curanet/nursebill/internal/config"
	"github.com/curanet/nursebill/internal/domain/exclusivity"
	"github.com/curanet/nursebill/internal/domain/invoice"
	"github.com/curanet/nursebill/internal/domain/patient"
	"github.com/curanet/nursebill/internal/domain/prestation"
	"github.com/curanet/nursebill/internal/logger"
	"github.com/curanet/nursebill/internal/service"
	"github.com/curanet/nursebill/internal/testutil"
	"github.com/curanet/nursebill/internal/types"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

// fixtureFile is the JSON input billcheck runs the billing engine against:
// the tariff catalog, the exclusivity rules, the patients and their acts,
// and the billing window to assemble invoices for.
type fixtureFile struct {
	CareCodes []struct {
		Code           string               `json:"code"`
		Name           string               `json:"name"`
		Reimbursed     bool                 `json:"reimbursed"`
		Channel        types.BillingChannel `json:"channel"`
		AtHomePairCode string               `json:"at_home_pair_code"`
	} `json:"care_codes"`

	Tariffs []struct {
		Code        string          `json:"code"`
		Start       types.Date      `json:"start_date"`
		End         *types.Date     `json:"end_date"`
		GrossAmount decimal.Decimal `json:"gross_amount"`
	} `json:"tariffs"`

	ExclusivityGroups []struct {
		Name  string   `json:"name"`
		Codes []string `json:"codes"`
	} `json:"exclusivity_groups"`

	Patients []struct {
		ID                      string      `json:"id"`
		IsPrivate               bool        `json:"is_private"`
		ParticipationStatutaire bool        `json:"participation_statutaire"`
		DateOfDeath             *types.Date `json:"date_of_death"`
		Hospitalizations        []struct {
			Start types.Date `json:"start_date"`
			End   types.Date `json:"end_date"`
		} `json:"hospitalizations"`
	} `json:"patients"`

	Acts []struct {
		PatientID  string    `json:"patient_id"`
		Code       string    `json:"code"`
		EmployeeID string    `json:"employee_id"`
		At         time.Time `json:"performed_at"`
		AtHome     bool      `json:"at_home"`
	} `json:"acts"`

	Window struct {
		From types.Date `json:"from"`
		To   types.Date `json:"to"`
	} `json:"billing_window"`
}

func main() {
	fixturesPath := flag.String("fixtures", "", "Path to the fixtures file (overrides config)")
	flag.Parse()

	// Load .env for local development; missing file is fine
	_ = godotenv.Load()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	path := cfg.Fixtures.Path
	if *fixturesPath != "" {
		path = *fixturesPath
	}
	if path == "" {
		path = "fixtures.json"
	}

	fixtures, err := loadFixtures(path)
	if err != nil {
		logger.Fatalw("Failed to load fixtures", "path", path, "error", err)
	}

	ctx := types.SetUserID(context.Background(), types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())

	logger.Infow("starting billing run",
		"request_id", types.GetRequestID(ctx),
		"fixtures", path,
	)

	if err := run(ctx, cfg, fixtures, logger); err != nil {
		logger.Fatalw("Billing run failed", "request_id", types.GetRequestID(ctx), "error", err)
	}
}

func loadFixtures(path string) (*fixtureFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fixtureFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func run(ctx context.Context, cfg *config.Configuration, fixtures *fixtureFile, logger *logger.Logger) error {
	codeRepo := testutil.NewInMemoryCareCodeStore()
	tariffRepo := testutil.NewInMemoryTariffStore()
	exclusivityRepo := testutil.NewInMemoryExclusivityStore()
	patientRepo := testutil.NewInMemoryPatientStore()
	invoiceRepo := testutil.NewInMemoryInvoiceStore()
	prestationRepo := testutil.NewInMemoryPrestationStore(invoiceRepo)
	batchRepo := testutil.NewInMemoryBatchStore()

	scheduleCache := cache.NewDisabledCache()
	if cfg.Cache.Enabled {
		scheduleCache = cache.NewInMemoryCache()
	}

	catalog := service.NewTariffCatalogService(codeRepo, tariffRepo, scheduleCache, cfg.Cache.TariffTTL, logger)
	billing := service.NewBillingService(catalog, codeRepo, logger)
	validation := service.NewValidationService(codeRepo, exclusivityRepo, patientRepo, prestationRepo, invoiceRepo, logger)
	assembler := service.NewAssemblerService(
		validation, billing, codeRepo, patientRepo, prestationRepo,
		invoiceRepo, batchRepo, invoice.NewLockManager(), logger,
	)

	if err := seed(ctx, fixtures, catalog, exclusivityRepo, patientRepo, prestationRepo, codeRepo, logger); err != nil {
		return err
	}

	for _, p := range fixtures.Patients {
		result, err := assembler.BuildInvoices(ctx, service.BuildInvoicesRequest{
			PatientID: p.ID,
			From:      fixtures.Window.From,
			To:        fixtures.Window.To,
		})
		if err != nil {
			return err
		}

		for _, built := range result.Invoices {
			logger.Infow("invoice built",
				"patient_id", p.ID,
				"invoice_number", built.Invoice.InvoiceNumber,
				"channel", built.Invoice.Channel,
				"acts", len(built.ActIDs),
				"gross", built.Totals.Gross.StringFixed(2),
				"net", built.Totals.Net.StringFixed(2),
				"personal_participation", built.Totals.PersonalParticipation.StringFixed(2),
			)
		}
		for actID, rejection := range result.Rejections {
			logger.Warnw("act rejected",
				"patient_id", p.ID,
				"act_id", actID,
				"reason", rejection.Reason,
				"detail", rejection.Message,
			)
		}
	}

	batch := &invoice.Batch{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BATCH),
		Start:       fixtures.Window.From,
		End:         fixtures.Window.To,
		BatchStatus: types.BatchStatusOpen,
		BaseModel:   types.GetDefaultBaseModel(ctx),
	}
	if err := batch.Validate(); err != nil {
		return err
	}
	if err := batchRepo.Create(ctx, batch); err != nil {
		return err
	}

	assignment, err := assembler.AssignToBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	logger.Infow("batch assembled",
		"batch_id", assignment.BatchID,
		"window_from", batch.Start.String(),
		"window_to", batch.End.String(),
		"invoices", len(assignment.Assigned),
		"skipped", len(assignment.Skipped),
	)
	return nil
}

func seed(
	ctx context.Context,
	fixtures *fixtureFile,
	catalog service.TariffCatalogService,
	exclusivityRepo *testutil.InMemoryExclusivityStore,
	patientRepo *testutil.InMemoryPatientStore,
	prestationRepo *testutil.InMemoryPrestationStore,
	codeRepo *testutil.InMemoryCareCodeStore,
	logger *logger.Logger,
) error {
	for _, c := range fixtures.CareCodes {
		if _, err := catalog.RegisterCareCode(ctx, service.RegisterCareCodeRequest{
			Code:           c.Code,
			Name:           c.Name,
			Reimbursed:     c.Reimbursed,
			Channel:        c.Channel,
			AtHomePairCode: c.AtHomePairCode,
		}); err != nil {
			return err
		}
	}

	for _, t := range fixtures.Tariffs {
		if _, err := catalog.RegisterValidity(ctx, service.RegisterValidityRequest{
			Code:        t.Code,
			Start:       t.Start,
			End:         t.End,
			GrossAmount: t.GrossAmount,
		}); err != nil {
			return err
		}
	}

	for _, g := range fixtures.ExclusivityGroups {
		group := &exclusivity.Group{
			ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EXCLUSIVITY_GROUP),
			Name:      g.Name,
			Codes:     g.Codes,
			BaseModel: types.GetDefaultBaseModel(ctx),
		}
		if err := group.Validate(); err != nil {
			return err
		}
		if err := exclusivityRepo.Create(ctx, group); err != nil {
			return err
		}
	}

	for _, p := range fixtures.Patients {
		if err := patientRepo.SetFlags(ctx, &patient.Flags{
			PatientID:               p.ID,
			IsPrivate:               p.IsPrivate,
			ParticipationStatutaire: p.ParticipationStatutaire,
			DateOfDeath:             p.DateOfDeath,
		}); err != nil {
			return err
		}
		for _, h := range p.Hospitalizations {
			if err := patientRepo.CreateHospitalization(ctx, &patient.HospitalizationPeriod{
				ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_HOSPITALIZATION),
				PatientID: p.ID,
				Start:     h.Start,
				End:       h.End,
				BaseModel: types.GetDefaultBaseModel(ctx),
			}); err != nil {
				return err
			}
		}
	}

	for _, a := range fixtures.Acts {
		code, err := codeRepo.GetByCode(ctx, a.Code)
		if err != nil {
			return err
		}
		act := &prestation.Prestation{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRESTATION),
			PatientID:  a.PatientID,
			CareCodeID: code.ID,
			Code:       a.Code,
			EmployeeID: a.EmployeeID,
			At:         a.At,
			AtHome:     a.AtHome,
			BaseModel:  types.GetDefaultBaseModel(ctx),
		}
		if err := act.Validate(); err != nil {
			return err
		}
		if err := prestationRepo.Create(ctx, act); err != nil {
			return err
		}
	}

	logger.Infow("fixtures loaded",
		"care_codes", len(fixtures.CareCodes),
		"tariffs", len(fixtures.Tariffs),
		"patients", len(fixtures.Patients),
		"acts", len(fixtures.Acts),
	)
	return nil
}
