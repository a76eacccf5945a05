package workflow

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/db"
	"github.com/mealbridge/rescue-service/internal/repository"
)

// In-memory repositories with the same conditional-update semantics as the
// postgres layer. Rows are copied on read so an engine mutation never leaks
// into the store before the conditional write lands.

type fakeTx struct{}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }
func (fakeTx) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return nil, nil
}
func (fakeTx) Get(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (fakeTx) Select(context.Context, interface{}, string, ...interface{}) error { return nil }
func (fakeTx) QueryRow(context.Context, string, ...interface{}) pgx.Row          { return nil }

type fakeDB struct{ fakeTx }

func (fakeDB) BeginTx(context.Context) (db.Tx, error) { return fakeTx{}, nil }

type memDonationRepo struct {
	rows map[string]*repository.Donation
}

func newMemDonationRepo() *memDonationRepo {
	return &memDonationRepo{rows: map[string]*repository.Donation{}}
}

func copyDonation(d *repository.Donation) *repository.Donation {
	out := *d
	return &out
}

func (r *memDonationRepo) Create(_ context.Context, _ db.Tx, d *repository.Donation) error {
	r.rows[d.ID] = copyDonation(d)
	return nil
}

func (r *memDonationRepo) GetByID(_ context.Context, id string) (*repository.Donation, error) {
	d, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "donation %s does not exist", id)
	}
	return copyDonation(d), nil
}

func (r *memDonationRepo) GetByIDTx(ctx context.Context, _ db.Tx, id string) (*repository.Donation, error) {
	return r.GetByID(ctx, id)
}

func (r *memDonationRepo) UpdateStatusTx(_ context.Context, _ db.Tx, id string, from, to repository.DonationStatus, now time.Time) (bool, error) {
	d, ok := r.rows[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.UpdatedAt = now
	return true, nil
}

func (r *memDonationRepo) SetClaimTx(_ context.Context, _ db.Tx, id string, from, to repository.DonationStatus, claimedBy *string, now time.Time) (bool, error) {
	d, ok := r.rows[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.ClaimedBy = claimedBy
	d.UpdatedAt = now
	return true, nil
}

func (r *memDonationRepo) UpdateCoordinates(_ context.Context, id string, lat, lng float64, now time.Time) error {
	if d, ok := r.rows[id]; ok {
		d.Latitude, d.Longitude = &lat, &lng
		d.UpdatedAt = now
	}
	return nil
}

func (r *memDonationRepo) ListAvailable(_ context.Context, now time.Time, limit int) ([]*repository.Donation, error) {
	var out []*repository.Donation
	for _, d := range r.rows {
		if d.Status == repository.DonationAvailable && d.ExpiryAt.After(now) {
			out = append(out, copyDonation(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryAt.Before(out[j].ExpiryAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memDonationRepo) ListByDonor(_ context.Context, donorID string) ([]*repository.Donation, error) {
	var out []*repository.Donation
	for _, d := range r.rows {
		if d.DonorID == donorID {
			out = append(out, copyDonation(d))
		}
	}
	return out, nil
}

type memClaimRepo struct {
	rows map[string]*repository.Claim
}

func newMemClaimRepo() *memClaimRepo {
	return &memClaimRepo{rows: map[string]*repository.Claim{}}
}

func copyClaim(c *repository.Claim) *repository.Claim {
	out := *c
	return &out
}

func (r *memClaimRepo) Create(_ context.Context, _ db.Tx, c *repository.Claim) error {
	r.rows[c.ID] = copyClaim(c)
	return nil
}

func (r *memClaimRepo) GetByID(_ context.Context, id string) (*repository.Claim, error) {
	c, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "claim %s does not exist", id)
	}
	return copyClaim(c), nil
}

func (r *memClaimRepo) GetByIDTx(ctx context.Context, _ db.Tx, id string) (*repository.Claim, error) {
	return r.GetByID(ctx, id)
}

func claimActive(s repository.ClaimStatus) bool {
	switch s {
	case repository.ClaimRejected, repository.ClaimCancelled, repository.ClaimExpired:
		return false
	}
	return true
}

func (r *memClaimRepo) CountActiveByDonation(_ context.Context, _ db.Tx, donationID string) (int, error) {
	count := 0
	for _, c := range r.rows {
		if c.DonationID == donationID && claimActive(c.Status) {
			count++
		}
	}
	return count, nil
}

func (r *memClaimRepo) UpdateStatusTx(_ context.Context, _ db.Tx, id string, from, to repository.ClaimStatus, now time.Time) (bool, error) {
	c, ok := r.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = now
	return true, nil
}

func (r *memClaimRepo) UpdateDecisionTx(_ context.Context, _ db.Tx, id string, to repository.ClaimStatus, message *string, now time.Time) (bool, error) {
	c, ok := r.rows[id]
	if !ok || c.Status != repository.ClaimPending || c.DecidedAt != nil {
		return false, nil
	}
	ts := now
	c.Status = to
	c.DonorMessage = message
	c.DecidedAt = &ts
	c.UpdatedAt = now
	return true, nil
}

func (r *memClaimRepo) SetVolunteerTx(_ context.Context, _ db.Tx, id string, from, to repository.ClaimStatus, volunteerID, role string, now time.Time) (bool, error) {
	c, ok := r.rows[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.VolunteerID = &volunteerID
	c.VolunteerRole = &role
	c.UpdatedAt = now
	return true, nil
}

func (r *memClaimRepo) ListByDonation(_ context.Context, donationID string) ([]*repository.Claim, error) {
	var out []*repository.Claim
	for _, c := range r.rows {
		if c.DonationID == donationID {
			out = append(out, copyClaim(c))
		}
	}
	return out, nil
}

func (r *memClaimRepo) ListByNGO(_ context.Context, ngoID string) ([]*repository.Claim, error) {
	var out []*repository.Claim
	for _, c := range r.rows {
		if c.NGOID == ngoID {
			out = append(out, copyClaim(c))
		}
	}
	return out, nil
}

type memTaskRepo struct {
	rows map[string]*repository.VolunteerTask
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{rows: map[string]*repository.VolunteerTask{}}
}

func copyTask(t *repository.VolunteerTask) *repository.VolunteerTask {
	out := *t
	return &out
}

func (r *memTaskRepo) Create(_ context.Context, _ db.Tx, t *repository.VolunteerTask) error {
	r.rows[t.ID] = copyTask(t)
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*repository.VolunteerTask, error) {
	t, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "volunteer task %s does not exist", id)
	}
	return copyTask(t), nil
}

func (r *memTaskRepo) GetByIDTx(ctx context.Context, _ db.Tx, id string) (*repository.VolunteerTask, error) {
	return r.GetByID(ctx, id)
}

func (r *memTaskRepo) CountActiveByClaim(_ context.Context, _ db.Tx, claimID string) (int, error) {
	count := 0
	for _, t := range r.rows {
		if t.ClaimID != claimID {
			continue
		}
		switch t.Status {
		case repository.TaskDeclined, repository.TaskCompleted, repository.TaskCancelled, repository.TaskFailed:
		default:
			count++
		}
	}
	return count, nil
}

func (r *memTaskRepo) UpdateTransitionTx(_ context.Context, _ db.Tx, t *repository.VolunteerTask, from repository.TaskStatus) (bool, error) {
	stored, ok := r.rows[t.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	r.rows[t.ID] = copyTask(t)
	return true, nil
}

func (r *memTaskRepo) ListByClaim(_ context.Context, claimID string) ([]*repository.VolunteerTask, error) {
	var out []*repository.VolunteerTask
	for _, t := range r.rows {
		if t.ClaimID == claimID {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

func (r *memTaskRepo) ListOverdue(_ context.Context, now time.Time) ([]*repository.VolunteerTask, error) {
	var out []*repository.VolunteerTask
	for _, t := range r.rows {
		if !TaskTerminal(t.Status) && now.After(t.ScheduledPickupAt) {
			out = append(out, copyTask(t))
		}
	}
	return out, nil
}

type memEventRepo struct {
	rows map[string]*repository.PickupEvent
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{rows: map[string]*repository.PickupEvent{}}
}

func copyEvent(e *repository.PickupEvent) *repository.PickupEvent {
	out := *e
	out.Locations = append(repository.LocationTrail(nil), e.Locations...)
	out.Signatures = append(repository.Signatures(nil), e.Signatures...)
	return &out
}

func (r *memEventRepo) Create(_ context.Context, _ db.Tx, e *repository.PickupEvent) error {
	r.rows[e.ID] = copyEvent(e)
	return nil
}

func (r *memEventRepo) GetByID(_ context.Context, id string) (*repository.PickupEvent, error) {
	e, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "pickup event %s does not exist", id)
	}
	return copyEvent(e), nil
}

func (r *memEventRepo) GetByIDTx(ctx context.Context, _ db.Tx, id string) (*repository.PickupEvent, error) {
	return r.GetByID(ctx, id)
}

func (r *memEventRepo) GetByTaskID(_ context.Context, taskID string) (*repository.PickupEvent, error) {
	var latest *repository.PickupEvent
	for _, e := range r.rows {
		if e.TaskID != taskID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, apperrors.Newf(apperrors.KindNotFound, "no pickup event for task %s", taskID)
	}
	return copyEvent(latest), nil
}

func (r *memEventRepo) UpdateTransitionTx(_ context.Context, _ db.Tx, e *repository.PickupEvent, from repository.PickupEventStatus) (bool, error) {
	stored, ok := r.rows[e.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	r.rows[e.ID] = copyEvent(e)
	return true, nil
}

func (r *memEventRepo) AppendLocationsTx(_ context.Context, _ db.Tx, id string, trail repository.LocationTrail, now time.Time) error {
	if e, ok := r.rows[id]; ok {
		e.Locations = append(repository.LocationTrail(nil), trail...)
		e.UpdatedAt = now
	}
	return nil
}

type memFeedbackRepo struct {
	rows map[string]*repository.Feedback
}

func newMemFeedbackRepo() *memFeedbackRepo {
	return &memFeedbackRepo{rows: map[string]*repository.Feedback{}}
}

func copyFeedback(f *repository.Feedback) *repository.Feedback {
	out := *f
	return &out
}

func (r *memFeedbackRepo) Create(_ context.Context, f *repository.Feedback) error {
	r.rows[f.ID] = copyFeedback(f)
	return nil
}

func (r *memFeedbackRepo) GetByID(_ context.Context, id string) (*repository.Feedback, error) {
	f, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "feedback %s does not exist", id)
	}
	return copyFeedback(f), nil
}

func (r *memFeedbackRepo) SetResponse(_ context.Context, id, response string, now time.Time) (bool, error) {
	f, ok := r.rows[id]
	if !ok || f.Response != nil {
		return false, nil
	}
	ts := now
	f.Response = &response
	f.RespondedAt = &ts
	return true, nil
}

type memActorRepo struct {
	rows map[string]*repository.Actor
}

func newMemActorRepo() *memActorRepo {
	return &memActorRepo{rows: map[string]*repository.Actor{}}
}

func (r *memActorRepo) add(id string, actorType repository.ActorType) {
	r.rows[id] = &repository.Actor{ID: id, Type: actorType, Name: id, Username: id}
}

func (r *memActorRepo) Create(_ context.Context, a *repository.Actor, _ string) error {
	out := *a
	r.rows[a.ID] = &out
	return nil
}

func (r *memActorRepo) GetByID(_ context.Context, id string) (*repository.Actor, error) {
	a, ok := r.rows[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", id)
	}
	out := *a
	return &out, nil
}

func (r *memActorRepo) Get(ctx context.Context, actorType repository.ActorType, id string) (*repository.Actor, error) {
	a, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Type != actorType {
		return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s is %s, not %s", id, a.Type, actorType)
	}
	return a, nil
}

func (r *memActorRepo) IncrementCompleted(_ context.Context, id string, now time.Time) error {
	if a, ok := r.rows[id]; ok {
		a.CompletedCount++
		a.UpdatedAt = now
	}
	return nil
}

func (r *memActorRepo) UpdateCoordinates(_ context.Context, id string, lat, lng float64, now time.Time) error {
	if a, ok := r.rows[id]; ok {
		a.Latitude, a.Longitude = &lat, &lng
		a.UpdatedAt = now
	}
	return nil
}

type memOutboxRepo struct {
	events []repository.TransitionEvent
}

func (r *memOutboxRepo) CreateTx(_ context.Context, _ db.Tx, task *repository.OutboxTask) error {
	var ev repository.TransitionEvent
	if err := json.Unmarshal(task.Payload, &ev); err != nil {
		return err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *memOutboxRepo) forEntity(entityID string) []repository.TransitionEvent {
	var out []repository.TransitionEvent
	for _, ev := range r.events {
		if ev.EntityID == entityID {
			out = append(out, ev)
		}
	}
	return out
}

// testEnv wires an engine over the in-memory stores with a controllable clock.
type testEnv struct {
	engine    *Engine
	donations *memDonationRepo
	claims    *memClaimRepo
	tasks     *memTaskRepo
	events    *memEventRepo
	feedback  *memFeedbackRepo
	actors    *memActorRepo
	outbox    *memOutboxRepo
	clock     *time.Time
}

func newTestEnv(start time.Time) *testEnv {
	env := &testEnv{
		donations: newMemDonationRepo(),
		claims:    newMemClaimRepo(),
		tasks:     newMemTaskRepo(),
		events:    newMemEventRepo(),
		feedback:  newMemFeedbackRepo(),
		actors:    newMemActorRepo(),
		outbox:    &memOutboxRepo{},
	}
	clock := start
	env.clock = &clock
	env.engine = NewEngine(Config{
		DB:        fakeDB{},
		Donations: env.donations,
		Claims:    env.claims,
		Tasks:     env.tasks,
		Events:    env.events,
		Feedback:  env.feedback,
		Actors:    env.actors,
		Outbox:    env.outbox,
		Now:       func() time.Time { return *env.clock },
	})
	env.actors.add("donor-1", repository.ActorDonor)
	env.actors.add("ngo-1", repository.ActorNGO)
	env.actors.add("vol-1", repository.ActorVolunteer)
	env.actors.add("ben-1", repository.ActorBeneficiary)
	return env
}

func (env *testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}
