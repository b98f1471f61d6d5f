package campaign

import (
	"time"

	"github.com/ClareAI/astra-campaign-service/internal/config"
	"github.com/ClareAI/astra-campaign-service/internal/domain"
)

// RetrySchedule computes when a contact becomes eligible for the next
// campaign batch after a call finishes.
type RetrySchedule struct {
	Rejection  time.Duration
	MaybeLater time.Duration
	NoAnswer   time.Duration
	Fallback   time.Duration
}

// NewRetrySchedule builds a schedule with the canonical cooldowns.
func NewRetrySchedule() *RetrySchedule {
	return &RetrySchedule{
		Rejection:  config.DefaultRetryRejection,
		MaybeLater: config.DefaultRetryMaybeLater,
		NoAnswer:   config.DefaultRetryNoAnswer,
		Fallback:   config.DefaultRetryFallback,
	}
}

// ShouldReschedule reports whether the outcome warrants an automatic retry.
// Warm outcomes (interest, needs discussion, an order in flight) are handed
// to sales staff instead of being redialed by the machine.
func (s *RetrySchedule) ShouldReschedule(stage domain.Stage, callStatus string) bool {
	switch callStatus {
	case domain.CallStatusNoAnswer, domain.CallStatusBusy, domain.CallStatusFailed:
		return true
	}
	switch stage {
	case domain.StageInterested, domain.StageDiscussingNeeds,
		domain.StageOrderProcess, domain.StageOrderCreated:
		return false
	}
	return true
}

// Offset returns the stage-dependent cooldown before the next attempt.
func (s *RetrySchedule) Offset(stage domain.Stage, callStatus string) time.Duration {
	if callStatus == domain.CallStatusNoAnswer || callStatus == domain.CallStatusBusy {
		return s.NoAnswer
	}
	switch stage {
	case domain.StageRejection:
		return s.Rejection
	case domain.StageMaybeLater:
		return s.MaybeLater
	default:
		return s.Fallback
	}
}

// NextCallDate computes the contact's next-eligible time.
func (s *RetrySchedule) NextCallDate(now time.Time, stage domain.Stage, callStatus string) time.Time {
	return now.Add(s.Offset(stage, callStatus))
}
