// internal/service/scheduler.go
package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/haulcrm/campaign-engine/internal/dispatch"
	"github.com/haulcrm/campaign-engine/internal/metrics"
	"github.com/haulcrm/campaign-engine/internal/model"
	"github.com/haulcrm/campaign-engine/internal/repository"
)

// Scheduler is the drip engine: a recurring sweep that advances recipients
// whose per-step delay has elapsed and hands rendered messages to the
// dispatch gateway.
//
// Sweeps are safe to run concurrently with themselves: each dispatch is
// gated by the (recipient, step) execution claim, and each advance is a
// conditional update on current_step_index that also re-verifies the
// campaign is still ACTIVE at commit time. One recipient's failure never
// blocks the rest of the sweep.
type Scheduler struct {
	CampaignRepo  repository.CampaignRepositoryInterface
	RecipientRepo repository.RecipientRepositoryInterface
	TemplateRepo  repository.TemplateRepositoryInterface
	LeadRepo      repository.LeadRepositoryInterface
	Gateway       dispatch.Gateway

	Interval  time.Duration
	BatchSize int

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SweepResult summarizes one sweep for logging.
type SweepResult struct {
	Due      int
	Sent     int
	Failed   int
	OptedOut int
	Skipped  int
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	log.Printf("🕐 drip scheduler running, sweep every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("drip scheduler stopped")
			return
		case <-ticker.C:
			res, err := s.Sweep(ctx)
			if err != nil {
				log.Println("⚠️ sweep failed:", err)
				continue
			}
			if res.Due > 0 {
				log.Printf("✅ sweep: due=%d sent=%d failed=%d opted_out=%d skipped=%d",
					res.Due, res.Sent, res.Failed, res.OptedOut, res.Skipped)
			}
		}
	}
}

// Sweep processes every due recipient once. Running it twice in immediate
// succession yields the same end state as running it once.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	now := s.now()
	batch := s.BatchSize
	if batch <= 0 {
		batch = 200
	}

	due, err := s.RecipientRepo.ListDue(now, batch)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{Due: len(due)}
	campaigns := map[int]*model.Campaign{}
	steps := map[int][]model.CampaignStep{}

	for i := range due {
		rec := &due[i]

		campaign, ok := campaigns[rec.CampaignID]
		if !ok {
			campaign, err = s.CampaignRepo.GetByID(rec.CampaignID)
			if err != nil {
				log.Printf("⚠️ sweep: failed to load campaign %d: %v", rec.CampaignID, err)
				result.Skipped++
				continue
			}
			campaigns[rec.CampaignID] = campaign
			if steps[rec.CampaignID], err = s.CampaignRepo.ListSteps(rec.CampaignID); err != nil {
				log.Printf("⚠️ sweep: failed to load steps for campaign %d: %v", rec.CampaignID, err)
				result.Skipped++
				continue
			}
		}

		// Cheap early check; the conditional update re-verifies at commit.
		if campaign.Status != model.CampaignStatusActive {
			result.Skipped++
			continue
		}

		outcome, err := s.processRecipient(ctx, rec, campaign, steps[rec.CampaignID], now)
		if err != nil {
			log.Printf("⚠️ sweep: recipient %d step %d: %v", rec.ID, rec.CurrentStepIndex, err)
		}
		switch outcome {
		case model.RecipientStatusSent:
			result.Sent++
		case model.RecipientStatusFailed:
			result.Failed++
		case model.RecipientStatusOptedOut:
			result.OptedOut++
		default:
			result.Skipped++
		}
	}

	for id := range campaigns {
		completed, err := s.CampaignRepo.CompleteIfDone(id)
		if err != nil {
			log.Printf("⚠️ sweep: completion check for campaign %d: %v", id, err)
			continue
		}
		if completed {
			log.Printf("🏁 campaign %d completed", id)
		}
	}

	return result, nil
}

// processRecipient fires the recipient's current step. Returns the recipient
// status the step ended in, or "" when nothing was committed (lost race,
// stale row).
func (s *Scheduler) processRecipient(ctx context.Context, rec *model.CampaignRecipient, campaign *model.Campaign, steps []model.CampaignStep, now time.Time) (string, error) {
	idx := rec.CurrentStepIndex
	if idx >= len(steps) {
		return "", fmt.Errorf("recipient %d is PENDING past the last step", rec.ID)
	}

	lead, err := s.LeadRepo.GetByID(rec.LeadID)
	if err != nil {
		return "", err
	}
	if lead == nil {
		return s.fail(rec, campaign, idx, "lead no longer exists", now)
	}

	// Opt-out short-circuit: recognized terminal outcome, not a failure.
	// Checked as a precondition before every send, and no counter moves.
	if lead.OptedOut {
		marked, err := s.RecipientRepo.MarkTerminal(rec.ID, idx, model.RecipientStatusOptedOut, "", now)
		if err != nil || !marked {
			return "", err
		}
		metrics.DispatchTotal.WithLabelValues(campaign.Channel, "opted_out").Inc()
		return model.RecipientStatusOptedOut, nil
	}

	destination := lead.ContactFor(campaign.Channel)
	if destination == "" {
		return s.fail(rec, campaign, idx, "lead has no "+campaign.Channel+" contact", now)
	}

	subject, body, err := ResolveContent(s.TemplateRepo, steps[idx].Content())
	if err != nil {
		return "", err
	}
	if body == "" {
		return s.fail(rec, campaign, idx, "no message body", now)
	}

	claimed, existing, err := s.RecipientRepo.ClaimExecution(rec.ID, idx)
	if err != nil {
		return "", err
	}
	if !claimed {
		// Another sweep owns or owned this step. If its dispatch succeeded
		// but the advance was lost (e.g. the campaign was paused between
		// dispatch and commit), finish the advance now.
		if existing != nil && existing.Status == model.ExecutionStatusSent {
			if advanced, finished := s.advance(rec, campaign, steps, idx, now); advanced && finished {
				return model.RecipientStatusSent, nil
			}
		}
		return "", nil
	}

	rendered := RenderMessage(subject, body, lead)
	d := dispatch.Dispatch{
		Destination:    destination,
		Channel:        campaign.Channel,
		Body:           rendered.Body,
		IdempotencyKey: fmt.Sprintf("recipient-%d-step-%d", rec.ID, idx),
	}
	if campaign.Channel == model.ChannelEmail {
		d.Subject = rendered.Subject
	}

	if err := s.Gateway.Send(ctx, d); err != nil {
		// Terminal by design: a failed or timed-out dispatch is never
		// retried automatically; the operator re-enrolls.
		if ferr := s.RecipientRepo.FinishExecution(rec.ID, idx, model.ExecutionStatusFailed, err.Error(), nil); ferr != nil {
			return "", ferr
		}
		outcome, terr := s.fail(rec, campaign, idx, err.Error(), now)
		if terr != nil {
			return outcome, terr
		}
		return outcome, nil
	}

	sentAt := now
	if err := s.RecipientRepo.FinishExecution(rec.ID, idx, model.ExecutionStatusSent, "", &sentAt); err != nil {
		return "", err
	}
	metrics.DispatchTotal.WithLabelValues(campaign.Channel, "sent").Inc()

	advanced, finished := s.advance(rec, campaign, steps, idx, now)
	if advanced && finished {
		return model.RecipientStatusSent, nil
	}
	return model.RecipientStatusPending, nil
}

// advance moves the recipient past step idx. When that was the final step
// the recipient becomes SENT and totalSent moves exactly once; otherwise the
// next step is scheduled after its delay.
func (s *Scheduler) advance(rec *model.CampaignRecipient, campaign *model.Campaign, steps []model.CampaignStep, idx int, now time.Time) (advanced, finished bool) {
	next := idx + 1
	finished = next >= len(steps)

	status := model.RecipientStatusPending
	nextSendAt := now
	if finished {
		status = model.RecipientStatusSent
	} else {
		nextSendAt = now.Add(steps[next].Delay())
	}

	advanced, err := s.RecipientRepo.AdvanceStep(rec.ID, idx, status, nextSendAt, now)
	if err != nil {
		log.Printf("⚠️ failed to advance recipient %d past step %d: %v", rec.ID, idx, err)
		return false, finished
	}
	if advanced && finished {
		if err := s.CampaignRepo.IncrementSent(campaign.ID); err != nil {
			log.Printf("⚠️ failed to increment total_sent for campaign %d: %v", campaign.ID, err)
		}
	}
	return advanced, finished
}

// fail records a terminal FAILED outcome for the recipient's current step
// and moves totalFailed exactly once (guarded by the conditional update).
func (s *Scheduler) fail(rec *model.CampaignRecipient, campaign *model.Campaign, idx int, reason string, now time.Time) (string, error) {
	marked, err := s.RecipientRepo.MarkTerminal(rec.ID, idx, model.RecipientStatusFailed, reason, now)
	if err != nil {
		return "", err
	}
	if !marked {
		return "", nil
	}
	if err := s.CampaignRepo.IncrementFailed(campaign.ID); err != nil {
		return model.RecipientStatusFailed, err
	}
	metrics.DispatchTotal.WithLabelValues(campaign.Channel, "failed").Inc()
	return model.RecipientStatusFailed, nil
}
