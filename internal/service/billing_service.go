package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nuxtbe/core-api/internal/billing"
	"github.com/nuxtbe/core-api/internal/models"
	"github.com/nuxtbe/core-api/internal/repository"
	"github.com/nuxtbe/core-api/pkg/config"
	appErrors "github.com/nuxtbe/core-api/pkg/errors"
)

type billingStore interface {
	repository.BillingStore
	TeamByOwnerEmail(ctx context.Context, email string) (*models.Team, error)
}

type welcomeMailer interface {
	SendWelcome(ctx context.Context, to, planName string) error
}

type portalClient interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type webhookMetrics interface {
	WebhookProcessed(provider, outcome string)
}

// errDuplicateEvent marks a replayed delivery inside a transition
// transaction. The transaction is aborted and the delivery acknowledged.
var errDuplicateEvent = errors.New("billing event already applied")

// BillingService reconciles normalized provider events against the local
// team/plan records. Events for the same billing subject are serialized
// through a per-subject mutex, so concurrent deliveries cannot interleave
// their read-modify-write cycles.
type BillingService struct {
	store    billingStore
	adapters map[string]billing.Adapter
	mailer   welcomeMailer
	portal   portalClient
	metrics  webhookMetrics
	cfg      config.BillingConfig
	logger   *zap.Logger
	now      func() time.Time

	// Subject locks are a fixed shard array so memory stays constant no
	// matter how many distinct customers deliver events. Two subjects may
	// share a shard, which serializes more than strictly needed but never
	// less.
	locks [subjectLockShards]sync.Mutex
}

const subjectLockShards = 64

// NewBillingService constructs the billing service. mailer, portal and
// metrics may be nil.
func NewBillingService(
	store billingStore,
	adapters []billing.Adapter,
	mailer welcomeMailer,
	portal portalClient,
	metrics webhookMetrics,
	cfg config.BillingConfig,
	logger *zap.Logger,
) *BillingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	byProvider := make(map[string]billing.Adapter, len(adapters))
	for _, a := range adapters {
		byProvider[a.Provider()] = a
	}
	return &BillingService{
		store:    store,
		adapters: byProvider,
		mailer:   mailer,
		portal:   portal,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleWebhook verifies, normalizes and applies one raw delivery for the
// named provider. Signature and parse failures surface before any state is
// touched.
func (s *BillingService) HandleWebhook(ctx context.Context, provider string, body []byte, signatureHeader string) error {
	adapter, ok := s.adapters[provider]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown billing provider")
	}

	event, err := adapter.Parse(body, signatureHeader)
	if err != nil {
		s.record(provider, "rejected")
		return err
	}
	if event == nil {
		s.record(provider, "ignored")
		return nil
	}

	if err := s.ApplyEvent(ctx, event); err != nil {
		if appErr := appErrors.FromError(err); appErr != nil && appErr.Code == appErrors.ErrUnprocessableEvent.Code {
			s.record(provider, "failed")
		} else {
			s.record(provider, "error")
		}
		return err
	}
	s.record(provider, "applied")
	return nil
}

// ApplyEvent runs the idempotent transition for one normalized event. The
// ledger insert and every row the transition touches commit in a single
// transaction; a replayed event aborts before any write.
func (s *BillingService) ApplyEvent(ctx context.Context, event *billing.Event) error {
	unlock := s.lockSubject(event)
	defer unlock()

	var welcome *welcomeNote
	err := s.store.Transact(ctx, func(tx repository.BillingTx) error {
		inserted, err := tx.RecordEvent(ctx, event.Provider, event.ID, event.RawType)
		if err != nil {
			return err
		}
		if !inserted {
			return errDuplicateEvent
		}

		switch event.Kind {
		case billing.KindCheckoutCompleted:
			welcome, err = s.applyCheckout(ctx, tx, event)
			return err
		case billing.KindSubscriptionUpdated:
			return s.applySubscriptionUpdated(ctx, tx, event)
		case billing.KindSubscriptionDeleted:
			return s.applySubscriptionDeleted(ctx, tx, event)
		default:
			return appErrors.Clone(appErrors.ErrUnprocessableEvent, fmt.Sprintf("unhandled event kind %q", event.Kind))
		}
	})

	if err == errDuplicateEvent {
		fields := []zap.Field{
			zap.String("provider", event.Provider),
			zap.String("event_id", event.ID),
		}
		if entry, lookupErr := s.store.LedgerEntry(ctx, event.Provider, event.ID); lookupErr == nil && entry != nil {
			fields = append(fields,
				zap.String("original_status", entry.Status),
				zap.Time("first_received_at", entry.ReceivedAt))
		}
		s.logger.Info("billing event replayed, skipping", fields...)
		return nil
	}
	if err != nil {
		if appErr := appErrors.FromError(err); appErr != nil && appErr.Code == appErrors.ErrUnprocessableEvent.Code {
			// The transition rolled back. Record the failure outside the
			// transaction so redelivery attempts stay visible.
			if markErr := s.store.MarkEventFailed(ctx, event.Provider, event.ID, event.RawType, appErr.Message); markErr != nil {
				s.logger.Error("failed to record billing event failure",
					zap.String("event_id", event.ID), zap.Error(markErr))
			}
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "billing reconciliation failed")
	}

	if welcome != nil {
		s.sendWelcome(ctx, welcome)
	}
	return nil
}

type welcomeNote struct {
	email    string
	planName string
}

func (s *BillingService) applyCheckout(ctx context.Context, tx repository.BillingTx, event *billing.Event) (*welcomeNote, error) {
	plan, err := tx.FindPlanByProductID(ctx, event.ProductID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, appErrors.Clone(appErrors.ErrUnprocessableEvent, fmt.Sprintf("unknown product %q", event.ProductID))
	}

	team, err := s.resolveTeam(ctx, tx, event)
	if err != nil {
		return nil, err
	}
	if team == nil {
		team, err = s.provisionTeam(ctx, tx, event)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.CloseOpenPlans(ctx, team.ID, s.now(), models.EndReasonUpgrade); err != nil {
		return nil, err
	}
	if err := tx.InsertTeamPlan(ctx, team.ID, plan.ID); err != nil {
		return nil, err
	}

	var customerID *string
	if event.CustomerID != "" {
		customerID = &event.CustomerID
	}
	if err := tx.SetTeamSubscription(ctx, team.ID, true, customerID); err != nil {
		return nil, err
	}

	if event.Email != "" {
		return &welcomeNote{email: event.Email, planName: plan.Name}, nil
	}
	return nil, nil
}

func (s *BillingService) applySubscriptionUpdated(ctx context.Context, tx repository.BillingTx, event *billing.Event) error {
	team, err := s.resolveTeam(ctx, tx, event)
	if err != nil {
		return err
	}
	if team == nil {
		return appErrors.Clone(appErrors.ErrUnprocessableEvent, "no team matches subscription event")
	}

	if event.CancelAt != nil {
		// Cancellation scheduled at period end. The open row gets its end
		// stamped now; the team stays subscribed until then.
		if err := tx.ScheduleOpenPlanEnd(ctx, team.ID, *event.CancelAt, models.EndReasonCanceled); err != nil {
			return err
		}
		return nil
	}

	if event.ProductID == "" {
		return nil
	}
	plan, err := tx.FindPlanByProductID(ctx, event.ProductID)
	if err != nil {
		return err
	}
	if plan == nil {
		return appErrors.Clone(appErrors.ErrUnprocessableEvent, fmt.Sprintf("unknown product %q", event.ProductID))
	}

	open, err := tx.OpenPlan(ctx, team.ID)
	if err != nil {
		return err
	}
	if open != nil && open.PlanID == plan.ID {
		return nil
	}

	if _, err := tx.CloseOpenPlans(ctx, team.ID, s.now(), models.EndReasonUpgrade); err != nil {
		return err
	}
	if err := tx.InsertTeamPlan(ctx, team.ID, plan.ID); err != nil {
		return err
	}
	return tx.SetTeamSubscription(ctx, team.ID, true, nil)
}

func (s *BillingService) applySubscriptionDeleted(ctx context.Context, tx repository.BillingTx, event *billing.Event) error {
	team, err := s.resolveTeam(ctx, tx, event)
	if err != nil {
		return err
	}
	if team == nil {
		return appErrors.Clone(appErrors.ErrUnprocessableEvent, "no team matches subscription event")
	}

	reason := models.EndReasonExpired
	if event.CancelReason != "" {
		reason = models.EndReasonCanceled
	}
	if _, err := tx.CloseOpenPlans(ctx, team.ID, s.now(), reason); err != nil {
		return err
	}
	return tx.SetTeamSubscription(ctx, team.ID, false, nil)
}

// resolveTeam locates the billing subject: explicit team reference first,
// then payment customer id, then the owner profile's email.
func (s *BillingService) resolveTeam(ctx context.Context, tx repository.BillingTx, event *billing.Event) (*models.Team, error) {
	if event.TeamRef != "" {
		team, err := tx.FindTeamByID(ctx, event.TeamRef)
		if err != nil || team != nil {
			return team, err
		}
	}
	if event.CustomerID != "" {
		team, err := tx.FindTeamByCustomerID(ctx, event.CustomerID)
		if err != nil || team != nil {
			return team, err
		}
	}
	if event.Email != "" {
		profile, err := tx.FindProfileByEmail(ctx, event.Email)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return tx.FindTeamForProfile(ctx, profile.ProfileID)
		}
	}
	return nil, nil
}

// provisionTeam creates the profile and personal team for a checkout whose
// payer has no local records yet.
func (s *BillingService) provisionTeam(ctx context.Context, tx repository.BillingTx, event *billing.Event) (*models.Team, error) {
	if event.Email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnprocessableEvent, "checkout event has no resolvable billing subject")
	}

	profile, err := tx.FindProfileByEmail(ctx, event.Email)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile, err = tx.CreateProfile(ctx, event.Email)
		if err != nil {
			return nil, err
		}
	}

	team, err := tx.FindTeamForProfile(ctx, profile.ProfileID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		team, err = tx.CreateTeam(ctx, event.Email, profile.ProfileID)
		if err != nil {
			return nil, err
		}
	}
	return team, nil
}

func (s *BillingService) sendWelcome(ctx context.Context, note *welcomeNote) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendWelcome(ctx, note.email, note.planName); err != nil {
		s.logger.Warn("welcome email failed",
			zap.String("email", note.email), zap.Error(err))
	}
}

// CustomerPortalURL returns the provider-hosted billing portal URL for the
// team owned by the given account email.
func (s *BillingService) CustomerPortalURL(ctx context.Context, email, returnURL string) (string, error) {
	team, err := s.store.TeamByOwnerEmail(ctx, email)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve billing team")
	}
	if team == nil || team.PaymentCustomerID == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "no billing customer for this account")
	}

	if s.portal != nil {
		url, err := s.portal.CreatePortalSession(ctx, *team.PaymentCustomerID, returnURL)
		if err != nil {
			return "", appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "billing portal session failed")
		}
		return url, nil
	}
	if s.cfg.CustomerPortalURL != "" {
		return s.cfg.CustomerPortalURL, nil
	}
	return "", appErrors.Clone(appErrors.ErrNotFound, "billing portal not configured")
}

func (s *BillingService) lockSubject(event *billing.Event) func() {
	key := event.TeamRef
	if key == "" {
		key = event.CustomerID
	}
	if key == "" {
		key = event.Email
	}
	if key == "" {
		key = event.Provider + ":" + event.ID
	}

	h := fnv.New32a()
	h.Write([]byte(key)) //nolint:errcheck
	m := &s.locks[h.Sum32()%subjectLockShards]
	m.Lock()
	return m.Unlock
}

func (s *BillingService) record(provider, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookProcessed(provider, outcome)
	}
}
