package notifier

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/internal/queue"
	"github.com/jobintel/notify-api/internal/repository"
	"github.com/jobintel/notify-api/pkg/errors"
	"github.com/jobintel/notify-api/pkg/logger"
	"github.com/jobintel/notify-api/pkg/metrics"
)

const sampleSize = 5

// Mode identifies which addressing mode a request resolved through. The mode
// is chosen once, before any store query, so an empty match in a
// higher-priority mode never falls through to a lower one.
type Mode int

const (
	ModeJobs Mode = iota
	ModeAudience
	ModeDirect
)

func (m Mode) String() string {
	switch m {
	case ModeJobs:
		return "jobs"
	case ModeAudience:
		return "audience"
	default:
		return "direct"
	}
}

// ZeroRecipientMessage explains an empty resolution to the caller; the admin
// UI shows it verbatim.
func ZeroRecipientMessage(mode Mode) string {
	switch mode {
	case ModeJobs:
		return "No applicants found for provided job(s)"
	case ModeAudience:
		return "No users found for provided audience"
	default:
		return "No recipient specified"
	}
}

// Result is the outcome of one send: which addressing mode was honored and
// what the fan-out reported.
type Result struct {
	Mode Mode
	model.DispatchResult
}

type Service interface {
	Send(ctx context.Context, req *model.NotificationRequest) (*Result, error)
	Preview(ctx context.Context, req *model.NotificationRequest) (*model.PreviewResult, error)
}

type service struct {
	apps    repository.ApplicationRepository
	users   repository.UserRepository
	queue   queue.Queue
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(apps repository.ApplicationRepository, users repository.UserRepository, q queue.Queue, logger *logger.Logger, metrics *metrics.Metrics) Service {
	return &service{
		apps:    apps,
		users:   users,
		queue:   q,
		logger:  logger,
		metrics: metrics,
	}
}

// addressing is the validated, tagged form of a request's targeting fields.
// Identifier validation happens here, before any collaborator call, so a
// malformed id is rejected instead of silently under-notifying.
type addressing struct {
	mode     Mode
	jobIDs   []uuid.UUID
	audience string
	toUserID *uuid.UUID
}

func resolveAddressing(req *model.NotificationRequest) (*addressing, error) {
	raw := make([]string, 0, len(req.JobIDs)+1)
	if req.JobID != "" {
		raw = append(raw, req.JobID)
	}
	raw = append(raw, req.JobIDs...)

	if len(raw) > 0 {
		jobIDs := make([]uuid.UUID, 0, len(raw))
		for _, j := range raw {
			id, err := uuid.Parse(j)
			if err != nil {
				return nil, errors.BadRequest(fmt.Sprintf("invalid job id %q", j), err)
			}
			jobIDs = append(jobIDs, id)
		}
		return &addressing{mode: ModeJobs, jobIDs: jobIDs}, nil
	}

	if req.TargetAudience != "" {
		return &addressing{mode: ModeAudience, audience: req.TargetAudience}, nil
	}

	if req.ToUserID != "" {
		id, err := uuid.Parse(req.ToUserID)
		if err != nil {
			return nil, errors.BadRequest(fmt.Sprintf("invalid user id %q", req.ToUserID), err)
		}
		return &addressing{mode: ModeDirect, toUserID: &id}, nil
	}

	return &addressing{mode: ModeDirect}, nil
}

// resolveRecipients expands the addressing into the de-duplicated set of
// target user ids. Zero matches is a normal result, never an error.
func (s *service) resolveRecipients(ctx context.Context, addr *addressing) (map[uuid.UUID]struct{}, error) {
	set := make(map[uuid.UUID]struct{})

	switch addr.mode {
	case ModeJobs:
		apps, err := s.apps.ListByJobIDs(ctx, addr.jobIDs)
		if err != nil {
			s.metrics.StoreOperations.WithLabelValues("list_applications", "error").Inc()
			return nil, errors.Unavailable("applications store", err)
		}
		s.metrics.StoreOperations.WithLabelValues("list_applications", "ok").Inc()
		for _, a := range apps {
			if a.UserID != uuid.Nil {
				set[a.UserID] = struct{}{}
			}
		}

	case ModeAudience:
		var (
			ids []uuid.UUID
			err error
		)
		if addr.audience == model.AudienceAll {
			ids, err = s.users.ListAllIDs(ctx)
		} else {
			ids, err = s.users.ListIDsByTier(ctx, addr.audience)
		}
		if err != nil {
			s.metrics.StoreOperations.WithLabelValues("list_users", "error").Inc()
			return nil, errors.Unavailable("users store", err)
		}
		s.metrics.StoreOperations.WithLabelValues("list_users", "ok").Inc()
		for _, id := range ids {
			set[id] = struct{}{}
		}

	case ModeDirect:
		if addr.toUserID != nil {
			set[*addr.toUserID] = struct{}{}
		}
	}

	return set, nil
}

func (s *service) Send(ctx context.Context, req *model.NotificationRequest) (*Result, error) {
	addr, err := resolveAddressing(req)
	if err != nil {
		return nil, err
	}

	recipients, err := s.resolveRecipients(ctx, addr)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Mode:           addr.mode,
		DispatchResult: s.dispatch(ctx, req, addr, recipients),
	}

	s.metrics.RecipientsPerRequest.Observe(float64(result.Recipients))
	if !result.Queued {
		s.metrics.ZeroRecipientRequests.WithLabelValues(addr.mode.String()).Inc()
	}

	return result, nil
}

// dispatch enqueues one individual notification per recipient. Failures are
// isolated per recipient: a bad enqueue reduces the reported count and is
// logged, but never aborts the remaining fan-out.
func (s *service) dispatch(ctx context.Context, req *model.NotificationRequest, addr *addressing, recipients map[uuid.UUID]struct{}) model.DispatchResult {
	if len(recipients) == 0 {
		return model.DispatchResult{Queued: false, Recipients: 0}
	}

	// In-flight enqueues finish even if the caller disconnects; losing
	// already-issued submissions is worse than a partial fan-out.
	enqueueCtx := context.WithoutCancel(ctx)

	queued, failed := 0, 0
	for uid := range recipients {
		individual := individualize(req, addr, uid)
		if err := s.queue.Enqueue(enqueueCtx, individual); err != nil {
			failed++
			s.metrics.EnqueueFailures.Inc()
			s.logger.Error(err, "failed to enqueue notification", "to_user_id", uid.String())
			continue
		}
		queued++
		s.metrics.NotificationsEnqueued.Inc()
	}

	return model.DispatchResult{Queued: true, Recipients: queued, Failed: failed}
}

// individualize copies the request for one recipient: ToUserID is fixed and
// the job fields are normalized so JobID is set iff exactly one job was
// targeted.
func individualize(req *model.NotificationRequest, addr *addressing, uid uuid.UUID) *model.IndividualNotification {
	n := &model.IndividualNotification{
		ToUserID:       uid.String(),
		TargetAudience: req.TargetAudience,
		Title:          req.Title,
		Message:        req.Message,
		Channel:        req.Channel,
		Link:           req.Link,
		Metadata:       req.Metadata,
	}

	if len(addr.jobIDs) > 0 {
		n.JobIDs = make([]string, len(addr.jobIDs))
		for i, id := range addr.jobIDs {
			n.JobIDs[i] = id.String()
		}
		if len(addr.jobIDs) == 1 {
			n.JobID = addr.jobIDs[0].String()
		}
	}

	return n
}

// Preview runs the identical resolution as Send but never touches the queue.
// The sample is stable-sorted by id so repeated previews against unchanged
// data return the same records.
func (s *service) Preview(ctx context.Context, req *model.NotificationRequest) (*model.PreviewResult, error) {
	addr, err := resolveAddressing(req)
	if err != nil {
		return nil, err
	}

	recipients, err := s.resolveRecipients(ctx, addr)
	if err != nil {
		return nil, err
	}

	result := &model.PreviewResult{
		Recipients: len(recipients),
		Sample:     []model.RecipientSample{},
	}
	if len(recipients) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, 0, len(recipients))
	for id := range recipients {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	if len(ids) > sampleSize {
		ids = ids[:sampleSize]
	}

	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		s.metrics.StoreOperations.WithLabelValues("get_users", "error").Inc()
		return nil, errors.Unavailable("users store", err)
	}
	s.metrics.StoreOperations.WithLabelValues("get_users", "ok").Inc()

	for _, u := range users {
		result.Sample = append(result.Sample, model.RecipientSample{
			ID:    u.ID,
			Email: u.Email,
			Name:  u.Name,
			Tier:  u.Tier,
		})
	}
	sort.Slice(result.Sample, func(i, j int) bool {
		return result.Sample[i].ID.String() < result.Sample[j].ID.String()
	})

	return result, nil
}
