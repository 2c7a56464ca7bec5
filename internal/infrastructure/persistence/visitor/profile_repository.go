// Package visitor provides the concrete SQL-based implementation of the
// trait profile repository.
package visitor

import (
	"database/sql"
	"time"

	"github.com/AtRiskMedia/signalstack-go/internal/domain/profiles"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/signalstack-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/signalstack-go/pkg/config"
)

const profileColumns = `visitor_id, source, session_count, purchase_count, abandon_count,
	       preferred_device, preferred_hour, preferred_day,
	       abandonment_rate, typical_abandon_stage,
	       responds_to_discount, responds_to_urgency, responds_to_social_proof,
	       discount_shown, urgency_shown, social_proof_shown,
	       discount_engaged, urgency_engaged, social_proof_engaged,
	       first_seen, last_aggregated`

// SQLProfileRepository is the SQL-based implementation of the trait profile
// repository. Only the offline aggregator writes; scoring only reads.
type SQLProfileRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

func NewSQLProfileRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLProfileRepository {
	return &SQLProfileRepository{
		db:     db,
		logger: logger,
	}
}

// FindByVisitorID retrieves a trait profile by visitor identity. A missing
// profile is not an error; (nil, nil) means the visitor is new.
func (r *SQLProfileRepository) FindByVisitorID(visitorID string) (*profiles.TraitProfile, error) {
	const query = `SELECT ` + profileColumns + ` FROM trait_profiles WHERE visitor_id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading trait profile", "visitorId", visitorID)

	row := r.db.QueryRow(query, visitorID)
	profile, err := r.scanProfile(row)
	if err != nil {
		r.logger.Database().Error("Failed to load trait profile", "error", err.Error(), "visitorId", visitorID)
		return nil, err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "system")
	}
	return profile, nil
}

// Upsert writes a trait profile, inserting on first sight and replacing the
// full row thereafter. Profiles are never deleted.
func (r *SQLProfileRepository) Upsert(profile *profiles.TraitProfile) error {
	const query = `
		INSERT INTO trait_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(visitor_id) DO UPDATE SET
			source = excluded.source,
			session_count = excluded.session_count,
			purchase_count = excluded.purchase_count,
			abandon_count = excluded.abandon_count,
			preferred_device = excluded.preferred_device,
			preferred_hour = excluded.preferred_hour,
			preferred_day = excluded.preferred_day,
			abandonment_rate = excluded.abandonment_rate,
			typical_abandon_stage = excluded.typical_abandon_stage,
			responds_to_discount = excluded.responds_to_discount,
			responds_to_urgency = excluded.responds_to_urgency,
			responds_to_social_proof = excluded.responds_to_social_proof,
			discount_shown = excluded.discount_shown,
			urgency_shown = excluded.urgency_shown,
			social_proof_shown = excluded.social_proof_shown,
			discount_engaged = excluded.discount_engaged,
			urgency_engaged = excluded.urgency_engaged,
			social_proof_engaged = excluded.social_proof_engaged,
			first_seen = excluded.first_seen,
			last_aggregated = excluded.last_aggregated`

	start := time.Now()
	r.logger.Database().Debug("Executing trait profile upsert", "visitorId", profile.VisitorID)

	_, err := r.db.Exec(
		query,
		profile.VisitorID,
		string(profile.Source),
		profile.SessionCount,
		profile.PurchaseCount,
		profile.AbandonCount,
		profile.PreferredDevice,
		profile.PreferredHour,
		int(profile.PreferredDay),
		profile.AbandonmentRate,
		profile.TypicalAbandonStage,
		boolToInt(profile.RespondsToDiscount),
		boolToInt(profile.RespondsToUrgency),
		boolToInt(profile.RespondsToSocialProof),
		profile.DiscountShown,
		profile.UrgencyShown,
		profile.SocialProofShown,
		profile.DiscountEngaged,
		profile.UrgencyEngaged,
		profile.SocialProofEngaged,
		profile.FirstSeen.UTC().Format(time.RFC3339),
		profile.LastAggregated.UTC().Format(time.RFC3339),
	)
	if err != nil {
		r.logger.Database().Error("Trait profile upsert failed", "error", err.Error(), "visitorId", profile.VisitorID)
		return err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Trait profile upsert completed", "visitorId", profile.VisitorID, "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration, "system")
	}
	return nil
}

// Count returns the number of stored trait profiles.
func (r *SQLProfileRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM trait_profiles`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SQLProfileRepository) scanProfile(row *sql.Row) (*profiles.TraitProfile, error) {
	var p profiles.TraitProfile
	var source string
	var preferredDevice sql.NullString
	var preferredDay int
	var respondsDiscount, respondsUrgency, respondsSocial int
	var firstSeenStr, lastAggregatedStr string

	err := row.Scan(
		&p.VisitorID,
		&source,
		&p.SessionCount,
		&p.PurchaseCount,
		&p.AbandonCount,
		&preferredDevice,
		&p.PreferredHour,
		&preferredDay,
		&p.AbandonmentRate,
		&p.TypicalAbandonStage,
		&respondsDiscount,
		&respondsUrgency,
		&respondsSocial,
		&p.DiscountShown,
		&p.UrgencyShown,
		&p.SocialProofShown,
		&p.DiscountEngaged,
		&p.UrgencyEngaged,
		&p.SocialProofEngaged,
		&firstSeenStr,
		&lastAggregatedStr,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	p.Source = profiles.IdentitySource(source)
	if preferredDevice.Valid {
		p.PreferredDevice = preferredDevice.String
	}
	p.PreferredDay = time.Weekday(preferredDay)
	p.RespondsToDiscount = respondsDiscount != 0
	p.RespondsToUrgency = respondsUrgency != 0
	p.RespondsToSocialProof = respondsSocial != 0

	if p.FirstSeen, err = time.Parse(time.RFC3339, firstSeenStr); err != nil {
		return nil, err
	}
	if p.LastAggregated, err = time.Parse(time.RFC3339, lastAggregatedStr); err != nil {
		return nil, err
	}
	return &p, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
