package monitor

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"marqlet-monitor/domain"
	"marqlet-monitor/whatsapp"
)

// DefaultLookahead is the reminder selection window.
const DefaultLookahead = 30 * time.Minute

// TaskStore reads due-soon candidates and performs the conditional reminder
// claim.
type TaskStore interface {
	FetchDueSoonCandidates(ctx context.Context, userID string, cutoff time.Time) ([]domain.Task, error)
	ClaimReminder(ctx context.Context, userID, taskID, etag string, at time.Time) error
}

// CredentialSource resolves channel credentials and recipient addresses.
type CredentialSource interface {
	GetChannelCredential(ctx context.Context, userID string) (*domain.ChannelCredential, error)
	GetRecipientPhone(ctx context.Context, userID string) (string, error)
}

// Sender delivers one text message through a messaging channel.
type Sender interface {
	SendText(ctx context.Context, cred domain.ChannelCredential, to, body string) error
}

// ClaimGuard damps duplicate dispatch across service instances before the
// storage-level claim runs. It is advisory: guard failures never stop a pass.
type ClaimGuard interface {
	Acquire(ctx context.Context, userID, taskID string) (bool, error)
	Release(ctx context.Context, userID, taskID string) error
}

// ReminderConfig wires a ReminderService.
type ReminderConfig struct {
	Tasks             TaskStore
	Credentials       CredentialSource
	Sender            Sender
	Guard             ClaimGuard // optional
	DefaultCredential domain.ChannelCredential
	Lookahead         time.Duration
	Now               func() time.Time
	Logger            *log.Logger
}

// ReminderService runs the reminder-dispatch pass: select due-soon tasks,
// claim each one atomically, then send. The claim is the "mark as reminded"
// stamp, so a task is handled at most once regardless of send outcome and
// regardless of how many passes race over it.
type ReminderService struct {
	tasks       TaskStore
	creds       CredentialSource
	sender      Sender
	guard       ClaimGuard
	defaultCred domain.ChannelCredential
	lookahead   time.Duration
	now         func() time.Time
	logger      *log.Logger
}

// NewReminderService creates a ReminderService from cfg.
func NewReminderService(cfg ReminderConfig) *ReminderService {
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = DefaultLookahead
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &ReminderService{
		tasks:       cfg.Tasks,
		creds:       cfg.Credentials,
		sender:      cfg.Sender,
		guard:       cfg.Guard,
		defaultCred: cfg.DefaultCredential,
		lookahead:   cfg.Lookahead,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// RunForUser executes one reminder pass for a user and returns the tasks this
// pass claimed. Per-task failures (lost claims, missing addresses, send
// errors) are contained inside the pass; only storage-level selection
// failures surface as errors.
func (s *ReminderService) RunForUser(ctx context.Context, userID string) ([]domain.Task, error) {
	now := s.now()
	candidates, err := s.tasks.FetchDueSoonCandidates(ctx, userID, now.Add(s.lookahead))
	if err != nil {
		return nil, err
	}

	due := domain.FilterDueSoon(candidates, now)
	claimed := []domain.Task{}
	if len(due) == 0 {
		return claimed, nil
	}

	cred := s.resolveCredential(ctx, userID)
	phone := s.recipientPhone(ctx, userID)

	for _, task := range due {
		if !s.claim(ctx, userID, task, now) {
			continue
		}
		stamp := now
		task.ReminderSentAt = &stamp
		claimed = append(claimed, task)

		if phone == "" {
			s.logger.WithFields(log.Fields{"user": userID, "task": task.ID}).
				Debug("no recipient phone configured, reminder skipped")
			continue
		}
		if !cred.Configured() {
			s.logger.WithFields(log.Fields{"user": userID, "task": task.ID}).
				Warn("no usable channel credential, reminder skipped")
			continue
		}
		if err := s.sender.SendText(ctx, cred, phone, whatsapp.ReminderMessage(task)); err != nil {
			s.logger.WithFields(log.Fields{"user": userID, "task": task.ID}).
				WithError(err).Warn("reminder send failed")
		}
	}
	return claimed, nil
}

// claim reports whether this pass won the task. The guard runs first so two
// instances rarely reach storage for the same task; the ETag-conditional
// write is what actually guarantees at-most-once.
func (s *ReminderService) claim(ctx context.Context, userID string, task domain.Task, now time.Time) bool {
	if s.guard != nil {
		ok, err := s.guard.Acquire(ctx, userID, task.ID)
		if err != nil {
			s.logger.WithError(err).Warn("claim guard unavailable, falling through to storage claim")
		} else if !ok {
			return false
		}
	}

	if err := s.tasks.ClaimReminder(ctx, userID, task.ID, task.ETag, now); err != nil {
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			s.logger.WithFields(log.Fields{"user": userID, "task": task.ID}).
				Debug("reminder already claimed by a concurrent pass")
			return false
		}
		s.logger.WithFields(log.Fields{"user": userID, "task": task.ID}).
			WithError(err).Error("reminder claim failed")
		if s.guard != nil {
			if rerr := s.guard.Release(ctx, userID, task.ID); rerr != nil {
				s.logger.WithError(rerr).Warn("claim guard release failed")
			}
		}
		return false
	}
	return true
}

func (s *ReminderService) resolveCredential(ctx context.Context, userID string) domain.ChannelCredential {
	stored, err := s.creds.GetChannelCredential(ctx, userID)
	if err != nil {
		s.logger.WithField("user", userID).WithError(err).
			Warn("credential lookup failed, using process default")
		stored = nil
	}
	return domain.ResolveCredential(stored, s.defaultCred)
}

func (s *ReminderService) recipientPhone(ctx context.Context, userID string) string {
	phone, err := s.creds.GetRecipientPhone(ctx, userID)
	if err != nil {
		s.logger.WithField("user", userID).WithError(err).
			Warn("recipient lookup failed, reminders will be skipped this pass")
		return ""
	}
	return phone
}
