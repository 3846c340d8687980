package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const endOfDay = TimeOfDay(24 * 60)

// RuleInput describes an availability rule to create or replace.
type RuleInput struct {
	Channel     Channel
	Recurring   bool
	Weekday     time.Weekday
	Date        *time.Time
	StartTime   TimeOfDay
	EndTime     TimeOfDay
	SlotMinutes int
}

func (in RuleInput) validate() error {
	if !in.Channel.Valid() {
		return Errorf(KindInvalidArgument, "unknown channel %q", in.Channel)
	}
	if in.StartTime < 0 || in.EndTime > endOfDay || in.StartTime >= in.EndTime {
		return Errorf(KindInvalidArgument, "start time must be before end time")
	}
	if in.SlotMinutes <= 0 {
		return Errorf(KindInvalidArgument, "slot duration must be positive")
	}
	if in.Recurring {
		if in.Weekday < time.Sunday || in.Weekday > time.Saturday {
			return Errorf(KindInvalidArgument, "invalid weekday %d", in.Weekday)
		}
		return nil
	}
	if in.Date == nil {
		return Errorf(KindInvalidArgument, "date-specific rules need a date")
	}
	return nil
}

func (in RuleInput) applyTo(r *AvailabilityRule) {
	r.Channel = in.Channel
	r.Recurring = in.Recurring
	r.StartTime = in.StartTime
	r.EndTime = in.EndTime
	r.SlotMinutes = in.SlotMinutes
	if in.Recurring {
		r.Weekday = in.Weekday
		r.Date = nil
		return
	}
	y, m, d := in.Date.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	r.Date = &date
	r.Weekday = date.Weekday()
}

// CreateRule adds an active availability rule for the provider.
func (s *Service) CreateRule(ctx context.Context, actor Actor, providerID uuid.UUID, in RuleInput) (*AvailabilityRule, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.create_rule")
	defer span.End()
	span.SetAttributes(attribute.String("provider_id", providerID.String()))

	if actor.Role != RoleProvider || actor.ID != providerID {
		return nil, s.fail(span, "create rule", Errorf(KindUnauthorized, "only the provider may edit availability"))
	}
	if err := in.validate(); err != nil {
		return nil, s.fail(span, "create rule", err)
	}
	if err := s.checkOffers(ctx, providerID, in.Channel); err != nil {
		return nil, s.fail(span, "create rule", err)
	}

	now := s.now()
	rule := &AvailabilityRule{
		ID:         uuid.New(),
		ProviderID: providerID,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	in.applyTo(rule)
	if err := s.saveRule(ctx, rule); err != nil {
		return nil, s.fail(span, "create rule", err)
	}
	return rule, nil
}

// UpdateRule replaces the schedule of an existing rule.
func (s *Service) UpdateRule(ctx context.Context, actor Actor, ruleID uuid.UUID, in RuleInput) (*AvailabilityRule, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.update_rule")
	defer span.End()
	span.SetAttributes(attribute.String("rule_id", ruleID.String()))

	rule, err := s.ownedRule(ctx, actor, ruleID)
	if err != nil {
		return nil, s.fail(span, "update rule", err)
	}
	if err := in.validate(); err != nil {
		return nil, s.fail(span, "update rule", err)
	}
	if err := s.checkOffers(ctx, rule.ProviderID, in.Channel); err != nil {
		return nil, s.fail(span, "update rule", err)
	}
	in.applyTo(rule)
	rule.UpdatedAt = s.now()
	if err := s.saveRule(ctx, rule); err != nil {
		return nil, s.fail(span, "update rule", err)
	}
	return rule, nil
}

// DisableRule soft-deletes a rule. Existing bookings are not touched.
func (s *Service) DisableRule(ctx context.Context, actor Actor, ruleID uuid.UUID) (*AvailabilityRule, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.disable_rule")
	defer span.End()
	span.SetAttributes(attribute.String("rule_id", ruleID.String()))

	rule, err := s.ownedRule(ctx, actor, ruleID)
	if err != nil {
		return nil, s.fail(span, "disable rule", err)
	}
	if !rule.Active {
		return rule, nil
	}
	rule.Active = false
	rule.UpdatedAt = s.now()
	if err := s.saveRule(ctx, rule); err != nil {
		return nil, s.fail(span, "disable rule", err)
	}
	return rule, nil
}

// ListRules returns the provider's rules across all channels.
func (s *Service) ListRules(ctx context.Context, providerID uuid.UUID, includeInactive bool) ([]AvailabilityRule, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.list_rules")
	defer span.End()

	if _, err := s.store.GetProvider(ctx, providerID); err != nil {
		return nil, s.fail(span, "list rules", err)
	}
	rules, err := s.store.ListRules(ctx, providerID, "", includeInactive)
	if err != nil {
		return nil, s.fail(span, "list rules", err)
	}
	return rules, nil
}

func (s *Service) ownedRule(ctx context.Context, actor Actor, ruleID uuid.UUID) (*AvailabilityRule, error) {
	rule, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if actor.Role != RoleProvider || actor.ID != rule.ProviderID {
		return nil, Errorf(KindUnauthorized, "only the provider may edit availability")
	}
	return rule, nil
}

func (s *Service) checkOffers(ctx context.Context, providerID uuid.UUID, ch Channel) error {
	provider, err := s.store.GetProvider(ctx, providerID)
	if err != nil {
		return err
	}
	if !provider.Offers(ch) {
		return Errorf(KindProviderUnavailable, "provider does not offer %s consultations", ch)
	}
	return nil
}

func (s *Service) saveRule(ctx context.Context, rule *AvailabilityRule) error {
	err := s.locked(ctx, rule.ProviderID, func(tx Tx) error {
		return tx.SaveRule(ctx, rule)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, rule.ProviderID)
	return nil
}
