package cascade

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealbridge/rescue-service/internal/apperrors"
	"github.com/mealbridge/rescue-service/internal/repository"
)

type memStore struct {
	donations map[string]*repository.Donation
	claims    map[string]*repository.Claim
	tasks     map[string]*repository.VolunteerTask
	events    map[string]*repository.PickupEvent
	feedback  map[string]*repository.Feedback
	actors    map[string]*repository.Actor

	failTaskDeletes bool
}

func newMemStore() *memStore {
	return &memStore{
		donations: map[string]*repository.Donation{},
		claims:    map[string]*repository.Claim{},
		tasks:     map[string]*repository.VolunteerTask{},
		events:    map[string]*repository.PickupEvent{},
		feedback:  map[string]*repository.Feedback{},
		actors:    map[string]*repository.Actor{},
	}
}

func (s *memStore) ListByDonor(_ context.Context, donorID string) ([]*repository.Donation, error) {
	var out []*repository.Donation
	for _, d := range s.donations {
		if d.DonorID == donorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) ReleaseByNGO(_ context.Context, ngoID string, now time.Time) (int64, error) {
	var n int64
	for _, d := range s.donations {
		if d.ClaimedBy == nil || *d.ClaimedBy != ngoID {
			continue
		}
		switch d.Status {
		case repository.DonationDelivered, repository.DonationExpired, repository.DonationCancelled:
			continue
		}
		d.Status = repository.DonationAvailable
		d.ClaimedBy = nil
		d.UpdatedAt = now
		n++
	}
	return n, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	delete(s.donations, id)
	return nil
}

func (s *memStore) ListByNGO(_ context.Context, ngoID string) ([]*repository.Claim, error) {
	var out []*repository.Claim
	for _, c := range s.claims {
		if c.NGOID == ngoID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) ReleaseVolunteer(_ context.Context, volunteerID string, now time.Time) (int64, error) {
	var n int64
	for _, c := range s.claims {
		if c.VolunteerID == nil || *c.VolunteerID != volunteerID {
			continue
		}
		switch c.Status {
		case repository.ClaimVolunteerAssigned, repository.ClaimPickupScheduled, repository.ClaimInProgress:
			c.Status = repository.ClaimApproved
			c.VolunteerID = nil
			c.VolunteerRole = nil
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteByDonation(_ context.Context, donationID string) (int64, error) {
	var n int64
	for id, c := range s.claims {
		if c.DonationID == donationID {
			delete(s.claims, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteByNGO(_ context.Context, ngoID string) (int64, error) {
	var n int64
	for id, c := range s.claims {
		if c.NGOID == ngoID {
			delete(s.claims, id)
			n++
		}
	}
	return n, nil
}

type taskStore struct{ s *memStore }

func (t taskStore) deleteWhere(pred func(*repository.VolunteerTask) bool) (int64, error) {
	if t.s.failTaskDeletes {
		return 0, errors.New("volunteer_tasks relation unavailable")
	}
	var n int64
	for id, task := range t.s.tasks {
		if pred(task) {
			delete(t.s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (t taskStore) DeleteByDonation(_ context.Context, donationID string) (int64, error) {
	return t.deleteWhere(func(task *repository.VolunteerTask) bool { return task.DonationID == donationID })
}

func (t taskStore) DeleteByVolunteer(_ context.Context, volunteerID string) (int64, error) {
	return t.deleteWhere(func(task *repository.VolunteerTask) bool { return task.VolunteerID == volunteerID })
}

func (t taskStore) DeleteByClaim(_ context.Context, claimID string) (int64, error) {
	return t.deleteWhere(func(task *repository.VolunteerTask) bool { return task.ClaimID == claimID })
}

type eventStore struct{ s *memStore }

func (e eventStore) deleteWhere(pred func(*repository.PickupEvent) bool) (int64, error) {
	var n int64
	for id, ev := range e.s.events {
		if pred(ev) {
			delete(e.s.events, id)
			n++
		}
	}
	return n, nil
}

func (e eventStore) DeleteByDonation(_ context.Context, donationID string) (int64, error) {
	return e.deleteWhere(func(ev *repository.PickupEvent) bool { return ev.DonationID == donationID })
}

func (e eventStore) DeleteByVolunteer(_ context.Context, volunteerID string) (int64, error) {
	return e.deleteWhere(func(ev *repository.PickupEvent) bool { return ev.VolunteerID == volunteerID })
}

func (e eventStore) DeleteByClaim(_ context.Context, claimID string) (int64, error) {
	return e.deleteWhere(func(ev *repository.PickupEvent) bool { return ev.ClaimID == claimID })
}

type feedbackStore struct{ s *memStore }

func (f feedbackStore) DeleteByActor(_ context.Context, actorID string) (int64, error) {
	var n int64
	for id, fb := range f.s.feedback {
		if fb.AuthorID == actorID || fb.RevieweeID == actorID {
			delete(f.s.feedback, id)
			n++
		}
	}
	return n, nil
}

type actorStore struct{ s *memStore }

func (a actorStore) GetByID(_ context.Context, id string) (*repository.Actor, error) {
	actor, ok := a.s.actors[id]
	if !ok {
		return nil, apperrors.Newf(apperrors.KindNotFound, "actor %s does not exist", id)
	}
	return actor, nil
}

func (a actorStore) Delete(_ context.Context, id string) error {
	delete(a.s.actors, id)
	return nil
}

func newTestManager(s *memStore) *Manager {
	return NewManager(Config{
		Donations: s,
		Claims:    s,
		Tasks:     taskStore{s},
		Events:    eventStore{s},
		Feedback:  feedbackStore{s},
		Actors:    actorStore{s},
	})
}

func seedDonorGraph(s *memStore) {
	s.actors["donor-1"] = &repository.Actor{ID: "donor-1", Type: repository.ActorDonor}
	s.donations["d1"] = &repository.Donation{ID: "d1", DonorID: "donor-1"}
	s.claims["c1"] = &repository.Claim{ID: "c1", DonationID: "d1", NGOID: "ngo-1"}
	s.tasks["t1"] = &repository.VolunteerTask{ID: "t1", ClaimID: "c1", DonationID: "d1", VolunteerID: "vol-1"}
	s.events["e1"] = &repository.PickupEvent{ID: "e1", TaskID: "t1", ClaimID: "c1", DonationID: "d1", VolunteerID: "vol-1"}
	s.feedback["f1"] = &repository.Feedback{ID: "f1", AuthorID: "ngo-1", RevieweeID: "donor-1"}
}

func TestDeleteDonorCascadesWholeGraph(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	seedDonorGraph(s)

	report, err := newTestManager(s).DeleteActor(context.Background(), "donor-1")
	require.NoError(t, err)
	assert.False(t, report.Failed)

	assert.Empty(t, s.donations)
	assert.Empty(t, s.claims)
	assert.Empty(t, s.tasks)
	assert.Empty(t, s.events)
	assert.Empty(t, s.feedback)
	assert.NotContains(t, s.actors, "donor-1")
}

func TestDeleteVolunteerKeepsDonationGraph(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	seedDonorGraph(s)
	s.actors["vol-1"] = &repository.Actor{ID: "vol-1", Type: repository.ActorVolunteer}

	report, err := newTestManager(s).DeleteActor(context.Background(), "vol-1")
	require.NoError(t, err)
	assert.False(t, report.Failed)

	assert.Empty(t, s.tasks)
	assert.Empty(t, s.events)
	assert.Contains(t, s.donations, "d1", "donor's donation survives")
	assert.Contains(t, s.claims, "c1", "NGO's claim survives")
	assert.NotContains(t, s.actors, "vol-1")
}

func TestDeleteNGOReleasesHeldDonations(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	ngo := "ngo-1"
	s.actors[ngo] = &repository.Actor{ID: ngo, Type: repository.ActorNGO}
	s.donations["d1"] = &repository.Donation{
		ID: "d1", DonorID: "donor-1",
		Status: repository.DonationClaimed, ClaimedBy: &ngo,
	}
	s.donations["d2"] = &repository.Donation{
		ID: "d2", DonorID: "donor-1",
		Status: repository.DonationDelivered, ClaimedBy: &ngo,
	}
	s.claims["c1"] = &repository.Claim{
		ID: "c1", DonationID: "d1", NGOID: ngo, Status: repository.ClaimApproved,
	}

	report, err := newTestManager(s).DeleteActor(context.Background(), ngo)
	require.NoError(t, err)
	assert.False(t, report.Failed)

	assert.Empty(t, s.claims)
	assert.NotContains(t, s.actors, ngo)

	// The in-flight hold clears so other NGOs can claim the donation again.
	require.Contains(t, s.donations, "d1")
	assert.Equal(t, repository.DonationAvailable, s.donations["d1"].Status)
	assert.Nil(t, s.donations["d1"].ClaimedBy)

	// Completed history keeps its record of who received it.
	require.Contains(t, s.donations, "d2")
	assert.Equal(t, repository.DonationDelivered, s.donations["d2"].Status)
	assert.NotNil(t, s.donations["d2"].ClaimedBy)

	var holdStep *StepResult
	for i := range report.Steps {
		if report.Steps[i].Step == "donation_holds" {
			holdStep = &report.Steps[i]
		}
	}
	require.NotNil(t, holdStep)
	assert.EqualValues(t, 1, holdStep.Deleted)
}

func TestDeleteVolunteerRewindsAssignedClaims(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	vol := "vol-1"
	role := "pickup_delivery"
	s.actors[vol] = &repository.Actor{ID: vol, Type: repository.ActorVolunteer}
	s.donations["d1"] = &repository.Donation{
		ID: "d1", DonorID: "donor-1", Status: repository.DonationClaimed,
	}
	s.claims["c1"] = &repository.Claim{
		ID: "c1", DonationID: "d1", NGOID: "ngo-1",
		Status: repository.ClaimVolunteerAssigned, VolunteerID: &vol, VolunteerRole: &role,
	}
	s.tasks["t1"] = &repository.VolunteerTask{
		ID: "t1", ClaimID: "c1", DonationID: "d1", VolunteerID: vol,
	}

	report, err := newTestManager(s).DeleteActor(context.Background(), vol)
	require.NoError(t, err)
	assert.False(t, report.Failed)
	assert.Empty(t, s.tasks)

	// The claim survives but goes back to approved, unassigned, so the NGO
	// can line up a replacement.
	require.Contains(t, s.claims, "c1")
	assert.Equal(t, repository.ClaimApproved, s.claims["c1"].Status)
	assert.Nil(t, s.claims["c1"].VolunteerID)
	assert.Nil(t, s.claims["c1"].VolunteerRole)
}

func TestPartialFailureKeepsActorAndReportsSteps(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	seedDonorGraph(s)
	s.failTaskDeletes = true

	report, err := newTestManager(s).DeleteActor(context.Background(), "donor-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCascadeFailure, apperrors.KindOf(err))
	require.NotNil(t, report)
	assert.True(t, report.Failed)

	// Events were cleaned before the failing step; the actor row survives
	// so the cascade can be retried.
	assert.Empty(t, s.events)
	assert.Contains(t, s.tasks, "t1")
	assert.Contains(t, s.actors, "donor-1")

	var taskStep *StepResult
	for i := range report.Steps {
		if report.Steps[i].Step == "volunteer_tasks" {
			taskStep = &report.Steps[i]
		}
	}
	require.NotNil(t, taskStep)
	assert.NotEmpty(t, taskStep.Error)
}

func TestDeleteUnknownActor(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	_, err := newTestManager(s).DeleteActor(context.Background(), "ghost")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDeleteBeneficiaryOnlyTouchesFeedback(t *testing.T) {
	t.Parallel()
	s := newMemStore()
	seedDonorGraph(s)
	s.actors["ben-1"] = &repository.Actor{ID: "ben-1", Type: repository.ActorBeneficiary}
	s.feedback["f2"] = &repository.Feedback{ID: "f2", AuthorID: "ben-1", RevieweeID: "vol-1"}

	report, err := newTestManager(s).DeleteActor(context.Background(), "ben-1")
	require.NoError(t, err)
	assert.False(t, report.Failed)

	assert.NotContains(t, s.feedback, "f2")
	assert.Contains(t, s.feedback, "f1", "unrelated feedback survives")
	assert.Contains(t, s.donations, "d1")
}
