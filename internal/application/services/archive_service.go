package services

import (
	"fmt"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/domain/scoring"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/email"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/telemetry"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/tenant"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

// SessionArchiveService is the TTL expiry hook: it writes each evicted score
// record to the session archive and, for recognized high-intent abandoners
// with a captured email, queues a cart recovery email.
type SessionArchiveService struct {
	tenantManager *tenant.Manager
	emailService  email.Service // nil when recovery email is disabled
	logger        *logging.ChanneledLogger
}

func NewSessionArchiveService(tenantManager *tenant.Manager, emailService email.Service, logger *logging.ChanneledLogger) *SessionArchiveService {
	return &SessionArchiveService{
		tenantManager: tenantManager,
		emailService:  emailService,
		logger:        logger,
	}
}

// OnExpired archives a sweep's evicted records. Runs on its own goroutine so
// the cleanup worker never blocks on database writes.
func (s *SessionArchiveService) OnExpired(tenantID string, records []*scoring.Record) {
	go s.archive(tenantID, records)
}

func (s *SessionArchiveService) archive(tenantID string, records []*scoring.Record) {
	tenantCtx, err := s.tenantManager.NewContextFromID(tenantID)
	if err != nil {
		s.logger.System().Error("Archive skipped, tenant unavailable", "tenantId", tenantID, "error", err.Error())
		return
	}

	repo := telemetry.NewSQLArchiveRepository(database.NewFromConn(tenantCtx.Database.Conn), tenantCtx.Logger)
	now := time.Now().UTC()

	archived := 0
	for _, record := range records {
		var visitorID, source string
		if identity, ok := profiles.ResolveIdentity(record.Fingerprint, record.CustomerID, record.Email); ok {
			visitorID = identity.VisitorID
			source = string(identity.Source)
		}

		session := &telemetry.ArchivedSession{
			SessionToken:    record.SessionToken,
			FunnelID:        record.FunnelID,
			VisitorID:       visitorID,
			IdentitySource:  source,
			Email:           record.Email,
			Device:          record.Device,
			Engagement:      record.Composites.Engagement,
			AbandonmentRisk: record.Composites.AbandonmentRisk,
			PurchaseIntent:  record.Composites.PurchaseIntent,
			MaxStepIndex:    record.MaxStepIndex,
			TotalSteps:      record.TotalSteps,
			CartItems:       record.CartItems,
			Completed:       sessionCompleted(record),
			SessionStart:    record.SessionStart,
			ArchivedAt:      now,
		}
		if err := repo.Store(session); err != nil {
			continue
		}
		archived++

		s.maybeSendRecovery(tenantCtx.Config, record)
	}

	s.logger.System().Info("Expired sessions archived", "tenantId", tenantID, "evicted", len(records), "archived", archived)
}

// maybeSendRecovery queues a recovery email for a session that expired with
// high purchase intent, an incomplete funnel, and a captured email address.
// The tenant's configured sender identity overrides the process default.
func (s *SessionArchiveService) maybeSendRecovery(cfg *tenant.Config, record *scoring.Record) {
	if s.emailService == nil || !config.RecoveryEmailEnabled {
		return
	}
	if record.Email == "" || sessionCompleted(record) {
		return
	}
	if record.Composites.PurchaseIntent < config.RecoveryIntentFloor {
		return
	}

	from := email.Sender{Email: cfg.EmailFrom, Name: cfg.EmailFromName}
	resumeURL := fmt.Sprintf("https://%s/resume?session=%s", record.FunnelID, record.SessionToken)
	if err := s.emailService.SendCartRecoveryEmail(from, record.Email, record.FunnelID, record.CartItems, resumeURL); err != nil {
		s.logger.System().Error("Recovery email failed", "sessionToken", record.SessionToken, "error", err.Error())
		return
	}
	s.logger.System().Info("Recovery email sent", "sessionToken", record.SessionToken, "intent", record.Composites.PurchaseIntent)
}

// sessionCompleted reports whether the session reached the funnel's last step.
func sessionCompleted(record *scoring.Record) bool {
	return record.TotalSteps > 0 && record.MaxStepIndex+1 >= record.TotalSteps
}
