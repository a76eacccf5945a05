package workflow

import (
	"github.com/mealbridge/rescue-service/internal/repository"
)

// Entity type labels used in transition events and error messages.
const (
	EntityDonation    = "donation"
	EntityClaim       = "claim"
	EntityTask        = "volunteer_task"
	EntityPickupEvent = "pickup_event"
	EntityFeedback    = "feedback"
)

// donationTransitions is the full legality table for the donation machine.
// claimed -> available is the revert edge used when a pending claim expires
// while still holding the donation.
var donationTransitions = map[repository.DonationStatus][]repository.DonationStatus{
	repository.DonationAvailable: {
		repository.DonationClaimed,
		repository.DonationExpired,
		repository.DonationCancelled,
	},
	repository.DonationClaimed: {
		repository.DonationPickupScheduled,
		repository.DonationAvailable,
		repository.DonationExpired,
		repository.DonationCancelled,
	},
	repository.DonationPickupScheduled: {
		repository.DonationPickedUp,
		repository.DonationExpired,
		repository.DonationCancelled,
	},
	repository.DonationPickedUp: {
		repository.DonationDelivered,
		repository.DonationExpired,
		repository.DonationCancelled,
	},
}

var claimTransitions = map[repository.ClaimStatus][]repository.ClaimStatus{
	repository.ClaimPending: {
		repository.ClaimApproved,
		repository.ClaimRejected,
		repository.ClaimCancelled,
		repository.ClaimExpired,
	},
	repository.ClaimApproved: {
		repository.ClaimVolunteerAssigned,
		repository.ClaimCancelled,
		repository.ClaimExpired,
	},
	repository.ClaimVolunteerAssigned: {
		repository.ClaimVolunteerAssigned, // replacement after a declined/failed task
		repository.ClaimPickupScheduled,
		repository.ClaimCancelled,
		repository.ClaimExpired,
	},
	repository.ClaimPickupScheduled: {
		repository.ClaimInProgress,
		repository.ClaimCancelled,
		repository.ClaimExpired,
	},
	repository.ClaimInProgress: {
		repository.ClaimCompleted,
		repository.ClaimCancelled,
		repository.ClaimExpired,
	},
}

func DonationTerminal(s repository.DonationStatus) bool {
	switch s {
	case repository.DonationDelivered, repository.DonationExpired, repository.DonationCancelled:
		return true
	}
	return false
}

func ClaimTerminal(s repository.ClaimStatus) bool {
	switch s {
	case repository.ClaimRejected, repository.ClaimCancelled, repository.ClaimExpired, repository.ClaimCompleted:
		return true
	}
	return false
}

func TaskTerminal(s repository.TaskStatus) bool {
	switch s {
	case repository.TaskCompleted, repository.TaskCancelled, repository.TaskFailed:
		return true
	}
	return false
}

func EventTerminal(s repository.PickupEventStatus) bool {
	switch s {
	case repository.EventCompleted, repository.EventCancelled, repository.EventFailed:
		return true
	}
	return false
}

func CanDonationTransition(from, to repository.DonationStatus) bool {
	for _, next := range donationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanClaimTransition(from, to repository.ClaimStatus) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// taskRank orders the happy path so field updates may skip intermediate
// statuses (a volunteer device can miss a report and resume further along).
var taskRank = map[repository.TaskStatus]int{
	repository.TaskAssigned:        0,
	repository.TaskAccepted:        1,
	repository.TaskEnRoutePickup:   2,
	repository.TaskAtPickup:        3,
	repository.TaskPickupCompleted: 4,
	repository.TaskEnRouteDelivery: 5,
	repository.TaskAtDelivery:      6,
	repository.TaskCompleted:       7,
}

func taskDeliveryLeg(s repository.TaskStatus) bool {
	return s == repository.TaskEnRouteDelivery || s == repository.TaskAtDelivery
}

// CanTaskTransition validates one task status move. Rules:
//   - cancelled reachable from any non-terminal status, failed likewise;
//   - assigned only advances through accepted or declined;
//   - declined never advances (a replacement task is created instead);
//   - otherwise forward moves along the ordered path, skips allowed;
//   - pickup_only tasks never enter the delivery leg.
func CanTaskTransition(taskType repository.TaskType, from, to repository.TaskStatus) bool {
	if TaskTerminal(from) {
		return false
	}
	if to == repository.TaskCancelled || to == repository.TaskFailed {
		return true
	}
	if from == repository.TaskAssigned {
		return to == repository.TaskAccepted || to == repository.TaskDeclined
	}
	if from == repository.TaskDeclined {
		return false
	}
	if taskType == repository.TaskPickupOnly && taskDeliveryLeg(to) {
		return false
	}
	fromRank, okFrom := taskRank[from]
	toRank, okTo := taskRank[to]
	return okFrom && okTo && toRank > fromRank
}

var eventRank = map[repository.PickupEventStatus]int{
	repository.EventScheduled:        0,
	repository.EventVolunteerEnRoute: 1,
	repository.EventVolunteerArrived: 2,
	repository.EventFoodAssessment:   3,
	repository.EventPickupInProgress: 4,
	repository.EventPickupCompleted:  5,
	repository.EventDeliveryStarted:  6,
	repository.EventDelivered:        7,
	repository.EventCompleted:        8,
}

func eventDeliveryLeg(s repository.PickupEventStatus) bool {
	return s == repository.EventDeliveryStarted || s == repository.EventDelivered
}

// CanEventTransition mirrors the task rules one level more granular.
func CanEventTransition(taskType repository.TaskType, from, to repository.PickupEventStatus) bool {
	if EventTerminal(from) {
		return false
	}
	if to == repository.EventCancelled || to == repository.EventFailed {
		return true
	}
	if taskType == repository.TaskPickupOnly && eventDeliveryLeg(to) {
		return false
	}
	fromRank, okFrom := eventRank[from]
	toRank, okTo := eventRank[to]
	return okFrom && okTo && toRank > fromRank
}

// eventReached reports whether the event has progressed at least to the given
// milestone (terminal cancelled/failed never count).
func eventReached(s, milestone repository.PickupEventStatus) bool {
	r, ok := eventRank[s]
	m, okM := eventRank[milestone]
	return ok && okM && r >= m
}
