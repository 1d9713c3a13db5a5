package notifier

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobintel/notify-api/internal/model"
	"github.com/jobintel/notify-api/pkg/errors"
	"github.com/jobintel/notify-api/pkg/logger"
	"github.com/jobintel/notify-api/pkg/metrics"
)

var testMetrics = metrics.New("notifier_test")

type fakeApplicationRepo struct {
	apps    []*model.Application
	queried [][]uuid.UUID
	err     error
}

func (f *fakeApplicationRepo) ListByJobIDs(_ context.Context, jobIDs []uuid.UUID) ([]*model.Application, error) {
	f.queried = append(f.queried, jobIDs)
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Application
	for _, a := range f.apps {
		for _, id := range jobIDs {
			if a.JobID == id {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users []*model.User
	calls int
	err   error
}

func (f *fakeUserRepo) ListIDsByTier(_ context.Context, tier string) ([]uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var ids []uuid.UUID
	for _, u := range f.users {
		if u.Tier == tier {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (f *fakeUserRepo) ListAllIDs(_ context.Context) ([]uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var ids []uuid.UUID
	for _, u := range f.users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

func (f *fakeUserRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*model.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.calls++
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %s not found", id)
}

type fakeQueue struct {
	enqueued []*model.IndividualNotification
	failFor  map[string]bool

	// rejectCancelled makes Enqueue behave like a real transport that
	// refuses work on a dead context.
	rejectCancelled bool
}

func (f *fakeQueue) Enqueue(ctx context.Context, n *model.IndividualNotification) error {
	if f.rejectCancelled && ctx.Err() != nil {
		return ctx.Err()
	}
	if f.failFor[n.ToUserID] {
		return fmt.Errorf("enqueue refused for %s", n.ToUserID)
	}
	f.enqueued = append(f.enqueued, n)
	return nil
}

func (f *fakeQueue) Close() error { return nil }

func newTestService(apps *fakeApplicationRepo, users *fakeUserRepo, q *fakeQueue) Service {
	return NewService(apps, users, q, logger.NewLogger(nil), testMetrics)
}

func newUser(tier string) *model.User {
	id := uuid.New()
	return &model.User{
		ID:    id,
		Email: fmt.Sprintf("%s@example.com", id.String()[:8]),
		Name:  "Test User",
		Tier:  tier,
	}
}

func TestSendJobBasedDeduplicatesApplicants(t *testing.T) {
	j1, j2 := uuid.New(), uuid.New()
	u1, u2 := uuid.New(), uuid.New()

	apps := &fakeApplicationRepo{apps: []*model.Application{
		{JobID: j1, UserID: u1},
		{JobID: j1, UserID: u2},
		{JobID: j2, UserID: u1},
	}}
	users := &fakeUserRepo{}
	q := &fakeQueue{}
	svc := newTestService(apps, users, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs: []string{j1.String(), j2.String()},
		Title:  "New update",
	})
	require.NoError(t, err)

	assert.Equal(t, ModeJobs, result.Mode)
	assert.True(t, result.Queued)
	assert.Equal(t, 2, result.Recipients)
	require.Len(t, q.enqueued, 2)

	got := []string{q.enqueued[0].ToUserID, q.enqueued[1].ToUserID}
	sort.Strings(got)
	want := []string{u1.String(), u2.String()}
	sort.Strings(want)
	assert.Equal(t, want, got)
}

func TestSendJobBasedIgnoresAudienceField(t *testing.T) {
	j1 := uuid.New()
	u1 := uuid.New()

	apps := &fakeApplicationRepo{apps: []*model.Application{{JobID: j1, UserID: u1}}}
	users := &fakeUserRepo{users: []*model.User{newUser(model.TierPremium)}}
	q := &fakeQueue{}
	svc := newTestService(apps, users, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs:         []string{j1.String()},
		TargetAudience: model.TierPremium,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeJobs, result.Mode)
	assert.Equal(t, 1, result.Recipients)
	assert.Equal(t, 0, users.calls, "audience field must not be queried when job ids are present")
}

func TestSendEmptyJobMatchIsTerminal(t *testing.T) {
	apps := &fakeApplicationRepo{}
	users := &fakeUserRepo{users: []*model.User{newUser(model.TierFree)}}
	q := &fakeQueue{}
	svc := newTestService(apps, users, q)

	// Audience and explicit recipient are both present but must be ignored:
	// an empty job-based match is a final answer, not a fallthrough.
	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs:         []string{uuid.NewString()},
		TargetAudience: model.AudienceAll,
		ToUserID:       uuid.NewString(),
	})
	require.NoError(t, err)

	assert.Equal(t, ModeJobs, result.Mode)
	assert.False(t, result.Queued)
	assert.Equal(t, 0, result.Recipients)
	assert.Equal(t, 0, users.calls)
	assert.Empty(t, q.enqueued)
	assert.Equal(t, "No applicants found for provided job(s)", ZeroRecipientMessage(result.Mode))
}

func TestSendSingleJobIDFieldExpandsApplicants(t *testing.T) {
	j1 := uuid.New()
	u1 := uuid.New()

	apps := &fakeApplicationRepo{apps: []*model.Application{{JobID: j1, UserID: u1}}}
	q := &fakeQueue{}
	svc := newTestService(apps, &fakeUserRepo{}, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{JobID: j1.String()})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Recipients)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, j1.String(), q.enqueued[0].JobID)
	assert.Equal(t, []string{j1.String()}, q.enqueued[0].JobIDs)
}

func TestSendAudienceAllMatchesEveryTier(t *testing.T) {
	users := &fakeUserRepo{users: []*model.User{
		newUser(model.TierFree),
		newUser(model.TierPremium),
		newUser(model.TierUltra),
	}}
	q := &fakeQueue{}
	svc := newTestService(&fakeApplicationRepo{}, users, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		TargetAudience: model.AudienceAll,
	})
	require.NoError(t, err)

	assert.Equal(t, ModeAudience, result.Mode)
	assert.Equal(t, 3, result.Recipients)
}

func TestSendAudienceTierFiltersExactly(t *testing.T) {
	premium1, premium2, premium3 := newUser(model.TierPremium), newUser(model.TierPremium), newUser(model.TierPremium)
	users := &fakeUserRepo{users: []*model.User{
		premium1, premium2, premium3,
		newUser(model.TierFree), newUser(model.TierFree), newUser(model.TierFree),
		newUser(model.TierFree), newUser(model.TierFree), newUser(model.TierFree),
		newUser(model.TierFree),
		newUser(model.TierUltra),
	}}
	q := &fakeQueue{}
	svc := newTestService(&fakeApplicationRepo{}, users, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		TargetAudience: model.TierPremium,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Recipients)
	for _, n := range q.enqueued {
		assert.Contains(t, []string{premium1.ID.String(), premium2.ID.String(), premium3.ID.String()}, n.ToUserID)
	}
}

func TestSendAudienceEmptyMatchIsTerminal(t *testing.T) {
	users := &fakeUserRepo{users: []*model.User{newUser(model.TierFree)}}
	q := &fakeQueue{}
	svc := newTestService(&fakeApplicationRepo{}, users, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		TargetAudience: model.TierUltra,
		ToUserID:       uuid.NewString(),
	})
	require.NoError(t, err)

	assert.False(t, result.Queued)
	assert.Equal(t, 0, result.Recipients)
	assert.Equal(t, "No users found for provided audience", ZeroRecipientMessage(result.Mode))
	assert.Empty(t, q.enqueued)
}

func TestSendExplicitRecipientFallback(t *testing.T) {
	u5 := uuid.New()
	q := &fakeQueue{}
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{}, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		ToUserID: u5.String(),
		Message:  "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, ModeDirect, result.Mode)
	assert.Equal(t, 1, result.Recipients)
	require.Len(t, q.enqueued, 1)
	assert.Equal(t, u5.String(), q.enqueued[0].ToUserID)
	assert.Equal(t, "hello", q.enqueued[0].Message)
	assert.Empty(t, q.enqueued[0].JobID)
	assert.Empty(t, q.enqueued[0].JobIDs)
}

func TestSendWithoutAnyAddressing(t *testing.T) {
	q := &fakeQueue{}
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{}, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{Title: "lost"})
	require.NoError(t, err)

	assert.False(t, result.Queued)
	assert.Equal(t, 0, result.Recipients)
	assert.Equal(t, "No recipient specified", ZeroRecipientMessage(result.Mode))
}

func TestSendRejectsMalformedJobIDBeforeQuerying(t *testing.T) {
	apps := &fakeApplicationRepo{}
	svc := newTestService(apps, &fakeUserRepo{}, &fakeQueue{})

	_, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs: []string{uuid.NewString(), "not-an-id"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
	assert.Empty(t, apps.queried, "no query may be issued for a malformed id")
}

func TestSendRejectsMalformedUserID(t *testing.T) {
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{}, &fakeQueue{})

	_, err := svc.Send(context.Background(), &model.NotificationRequest{ToUserID: "u-42"})
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
}

func TestSendIsolatesPerRecipientEnqueueFailures(t *testing.T) {
	users := make([]*model.User, 5)
	for i := range users {
		users[i] = newUser(model.TierPremium)
	}
	q := &fakeQueue{failFor: map[string]bool{users[2].ID.String(): true}}
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{users: users}, q)

	result, err := svc.Send(context.Background(), &model.NotificationRequest{
		TargetAudience: model.TierPremium,
	})
	require.NoError(t, err, "a single enqueue failure must not fail the request")

	assert.True(t, result.Queued)
	assert.Equal(t, 4, result.Recipients)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, q.enqueued, 4)
}

func TestSendFinishesFanOutAfterCallerDisconnects(t *testing.T) {
	users := make([]*model.User, 3)
	for i := range users {
		users[i] = newUser(model.TierPremium)
	}
	q := &fakeQueue{rejectCancelled: true}
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{users: users}, q)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Send(ctx, &model.NotificationRequest{
		TargetAudience: model.TierPremium,
	})
	require.NoError(t, err)

	assert.True(t, result.Queued)
	assert.Equal(t, 3, result.Recipients, "submissions in flight must outlive the caller's context")
	assert.Zero(t, result.Failed)
	assert.Len(t, q.enqueued, 3)
}

func TestSendMultipleJobsLeavesSingleJobIDUnset(t *testing.T) {
	j1, j2 := uuid.New(), uuid.New()
	u1 := uuid.New()
	apps := &fakeApplicationRepo{apps: []*model.Application{
		{JobID: j1, UserID: u1},
		{JobID: j2, UserID: u1},
	}}
	q := &fakeQueue{}
	svc := newTestService(apps, &fakeUserRepo{}, q)

	_, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs:  []string{j1.String(), j2.String()},
		Channel: model.ChannelEmail,
	})
	require.NoError(t, err)

	require.Len(t, q.enqueued, 1)
	n := q.enqueued[0]
	assert.Empty(t, n.JobID)
	assert.Equal(t, []string{j1.String(), j2.String()}, n.JobIDs)
	assert.Equal(t, model.ChannelEmail, n.Channel)
}

func TestSendStoreFailurePropagates(t *testing.T) {
	apps := &fakeApplicationRepo{err: fmt.Errorf("connection refused")}
	q := &fakeQueue{}
	svc := newTestService(apps, &fakeUserRepo{}, q)

	_, err := svc.Send(context.Background(), &model.NotificationRequest{
		JobIDs: []string{uuid.NewString()},
	})
	require.Error(t, err)
	assert.False(t, errors.IsBadRequest(err))
	assert.Empty(t, q.enqueued)
}

func TestPreviewNeverEnqueues(t *testing.T) {
	j1 := uuid.New()
	applicant := newUser(model.TierFree)
	apps := &fakeApplicationRepo{apps: []*model.Application{{JobID: j1, UserID: applicant.ID}}}
	users := &fakeUserRepo{users: []*model.User{applicant}}
	q := &fakeQueue{}
	svc := newTestService(apps, users, q)

	req := &model.NotificationRequest{JobIDs: []string{j1.String()}}

	preview, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, q.enqueued)

	sent, err := svc.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, sent.Recipients, preview.Recipients, "preview and send must agree on the recipient count")
}

func TestPreviewJobBasedSample(t *testing.T) {
	j1, j2 := uuid.New(), uuid.New()
	alice := &model.User{ID: uuid.New(), Email: "alice@example.com", Name: "Alice", Tier: model.TierPremium}
	bob := &model.User{ID: uuid.New(), Email: "bob@example.com", Name: "Bob", Tier: model.TierFree}

	apps := &fakeApplicationRepo{apps: []*model.Application{
		{JobID: j1, UserID: alice.ID},
		{JobID: j1, UserID: bob.ID},
		{JobID: j2, UserID: alice.ID},
	}}
	users := &fakeUserRepo{users: []*model.User{alice, bob}}
	q := &fakeQueue{}
	svc := newTestService(apps, users, q)

	preview, err := svc.Preview(context.Background(), &model.NotificationRequest{
		JobIDs: []string{j1.String(), j2.String()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, preview.Recipients)
	require.Len(t, preview.Sample, 2)
	emails := []string{preview.Sample[0].Email, preview.Sample[1].Email}
	assert.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, emails)
	assert.Empty(t, q.enqueued)
}

func TestPreviewSampleCappedAtFiveAndDeterministic(t *testing.T) {
	var pool []*model.User
	for i := 0; i < 12; i++ {
		pool = append(pool, newUser(model.TierPremium))
	}
	users := &fakeUserRepo{users: pool}
	svc := newTestService(&fakeApplicationRepo{}, users, &fakeQueue{})

	req := &model.NotificationRequest{TargetAudience: model.TierPremium}

	first, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 12, first.Recipients)
	assert.Len(t, first.Sample, 5)

	second, err := svc.Preview(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Sample, second.Sample, "sample must be stable across calls on unchanged data")
}

func TestPreviewDirectRecipient(t *testing.T) {
	u := newUser(model.TierFree)
	users := &fakeUserRepo{users: []*model.User{u}}
	svc := newTestService(&fakeApplicationRepo{}, users, &fakeQueue{})

	preview, err := svc.Preview(context.Background(), &model.NotificationRequest{ToUserID: u.ID.String()})
	require.NoError(t, err)

	assert.Equal(t, 1, preview.Recipients)
	require.Len(t, preview.Sample, 1)
	assert.Equal(t, u.Email, preview.Sample[0].Email)
}

func TestPreviewEmptyRequest(t *testing.T) {
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{}, &fakeQueue{})

	preview, err := svc.Preview(context.Background(), &model.NotificationRequest{})
	require.NoError(t, err)

	assert.Equal(t, 0, preview.Recipients)
	assert.Empty(t, preview.Sample)
}

func TestPreviewRejectsMalformedJobID(t *testing.T) {
	svc := newTestService(&fakeApplicationRepo{}, &fakeUserRepo{}, &fakeQueue{})

	_, err := svc.Preview(context.Background(), &model.NotificationRequest{JobID: "J1"})
	require.Error(t, err)
	assert.True(t, errors.IsBadRequest(err))
}
