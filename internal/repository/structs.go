package repository

import (
	"time"
)

type ActorType string

const (
	ActorDonor       ActorType = "donor"
	ActorNGO         ActorType = "ngo"
	ActorVolunteer   ActorType = "volunteer"
	ActorBeneficiary ActorType = "beneficiary"
)

func ParseActorType(s string) (ActorType, bool) {
	switch ActorType(s) {
	case ActorDonor, ActorNGO, ActorVolunteer, ActorBeneficiary:
		return ActorType(s), true
	}
	return "", false
}

type DonationStatus string

const (
	DonationAvailable       DonationStatus = "available"
	DonationClaimed         DonationStatus = "claimed"
	DonationPickupScheduled DonationStatus = "pickup_scheduled"
	DonationPickedUp        DonationStatus = "picked_up"
	DonationDelivered       DonationStatus = "delivered"
	DonationExpired         DonationStatus = "expired"
	DonationCancelled       DonationStatus = "cancelled"
)

type ClaimStatus string

const (
	ClaimPending           ClaimStatus = "pending"
	ClaimApproved          ClaimStatus = "approved"
	ClaimRejected          ClaimStatus = "rejected"
	ClaimVolunteerAssigned ClaimStatus = "volunteer_assigned"
	ClaimPickupScheduled   ClaimStatus = "pickup_scheduled"
	ClaimInProgress        ClaimStatus = "in_progress"
	ClaimCompleted         ClaimStatus = "completed"
	ClaimCancelled         ClaimStatus = "cancelled"
	ClaimExpired           ClaimStatus = "expired"
)

type TaskStatus string

const (
	TaskAssigned        TaskStatus = "assigned"
	TaskAccepted        TaskStatus = "accepted"
	TaskDeclined        TaskStatus = "declined"
	TaskEnRoutePickup   TaskStatus = "en_route_pickup"
	TaskAtPickup        TaskStatus = "at_pickup"
	TaskPickupCompleted TaskStatus = "pickup_completed"
	TaskEnRouteDelivery TaskStatus = "en_route_delivery"
	TaskAtDelivery      TaskStatus = "at_delivery"
	TaskCompleted       TaskStatus = "completed"
	TaskCancelled       TaskStatus = "cancelled"
	TaskFailed          TaskStatus = "failed"
)

type TaskType string

const (
	TaskPickupDelivery TaskType = "pickup_delivery"
	TaskPickupOnly     TaskType = "pickup_only"
)

type PickupEventStatus string

const (
	EventScheduled        PickupEventStatus = "scheduled"
	EventVolunteerEnRoute PickupEventStatus = "volunteer_en_route"
	EventVolunteerArrived PickupEventStatus = "volunteer_arrived"
	EventFoodAssessment   PickupEventStatus = "food_assessment"
	EventPickupInProgress PickupEventStatus = "pickup_in_progress"
	EventPickupCompleted  PickupEventStatus = "pickup_completed"
	EventDeliveryStarted  PickupEventStatus = "delivery_in_progress"
	EventDelivered        PickupEventStatus = "delivered"
	EventCompleted        PickupEventStatus = "completed"
	EventCancelled        PickupEventStatus = "cancelled"
	EventFailed           PickupEventStatus = "failed"
)

type ModerationStatus string

const (
	ModerationPending   ModerationStatus = "pending"
	ModerationPublished ModerationStatus = "published"
	ModerationHidden    ModerationStatus = "hidden"
	ModerationRemoved   ModerationStatus = "removed"
)

type Actor struct {
	ID             string    `db:"id"`
	BusinessID     string    `db:"business_id"`
	Type           ActorType `db:"type"`
	Name           string    `db:"name"`
	Username       string    `db:"username"`
	PasswordHash   string    `db:"password_hash"`
	Address        string    `db:"address"`
	Latitude       *float64  `db:"latitude"`
	Longitude      *float64  `db:"longitude"`
	AverageRating  float64   `db:"average_rating"`
	TotalRatings   int       `db:"total_ratings"`
	CompletedCount int       `db:"completed_count"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type Donation struct {
	ID                string         `db:"id"`
	BusinessID        string         `db:"business_id"`
	DonorID           string         `db:"donor_id"`
	Description       string         `db:"description"`
	Quantity          float64        `db:"quantity"`
	Unit              string         `db:"unit"`
	ExpiryAt          time.Time      `db:"expiry_at"`
	PickupWindowStart time.Time      `db:"pickup_window_start"`
	PickupWindowEnd   time.Time      `db:"pickup_window_end"`
	PickupAddress     string         `db:"pickup_address"`
	Latitude          *float64       `db:"latitude"`
	Longitude         *float64       `db:"longitude"`
	Status            DonationStatus `db:"status"`
	ClaimedBy         *string        `db:"claimed_by"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

type Claim struct {
	ID               string      `db:"id"`
	BusinessID       string      `db:"business_id"`
	DonationID       string      `db:"donation_id"`
	NGOID            string      `db:"ngo_id"`
	Status           ClaimStatus `db:"status"`
	ExpiresAt        time.Time   `db:"expires_at"`
	IntendedUse      string      `db:"intended_use"`
	BeneficiaryCount int         `db:"beneficiary_count"`
	ProposedPickupAt time.Time   `db:"proposed_pickup_at"`
	DonorMessage     *string     `db:"donor_message"`
	DecidedAt        *time.Time  `db:"decided_at"`
	VolunteerID      *string     `db:"volunteer_id"`
	VolunteerRole    *string     `db:"volunteer_role"`
	CreatedAt        time.Time   `db:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at"`
}

type VolunteerTask struct {
	ID                string       `db:"id"`
	BusinessID        string       `db:"business_id"`
	ClaimID           string       `db:"claim_id"`
	DonationID        string       `db:"donation_id"`
	VolunteerID       string       `db:"volunteer_id"`
	Type              TaskType     `db:"task_type"`
	Status            TaskStatus   `db:"status"`
	DeclineReason     *string      `db:"decline_reason"`
	ScheduledPickupAt time.Time    `db:"scheduled_pickup_at"`
	AcceptedAt        *time.Time   `db:"accepted_at"`
	PickupStartedAt   *time.Time   `db:"pickup_started_at"`
	PickedUpAt        *time.Time   `db:"picked_up_at"`
	CompletedAt       *time.Time   `db:"completed_at"`
	Evidence          Evidence     `db:"evidence"`
	Issues            IssueReports `db:"issues"`
	CreatedAt         time.Time    `db:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at"`
}

type PickupEvent struct {
	ID            string            `db:"id"`
	BusinessID    string            `db:"business_id"`
	TaskID        string            `db:"task_id"`
	ClaimID       string            `db:"claim_id"`
	DonationID    string            `db:"donation_id"`
	VolunteerID   string            `db:"volunteer_id"`
	Status        PickupEventStatus `db:"status"`
	Locations     LocationTrail     `db:"location_samples"`
	FoodCondition *string           `db:"food_condition"`
	Signatures    Signatures        `db:"signatures"`
	ActualStartAt *time.Time        `db:"actual_start_at"`
	ActualEndAt   *time.Time        `db:"actual_end_at"`
	CreatedAt     time.Time         `db:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"`
}

type Feedback struct {
	ID            string           `db:"id"`
	BusinessID    string           `db:"business_id"`
	AuthorType    ActorType        `db:"author_type"`
	AuthorID      string           `db:"author_id"`
	RevieweeType  ActorType        `db:"reviewee_type"`
	RevieweeID    string           `db:"reviewee_id"`
	DonationID    *string          `db:"donation_id"`
	ClaimID       *string          `db:"claim_id"`
	TaskID        *string          `db:"task_id"`
	PickupEventID *string          `db:"pickup_event_id"`
	Rating        int              `db:"rating"`
	Comment       string           `db:"comment"`
	Moderation    ModerationStatus `db:"moderation_status"`
	Response      *string          `db:"response"`
	RespondedAt   *time.Time       `db:"responded_at"`
	PublishedAt   *time.Time       `db:"published_at"`
	CreatedAt     time.Time        `db:"created_at"`
}
