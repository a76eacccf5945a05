package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mealbridge/rescue-service/internal/repository"
)

// Business IDs are human-readable handles shown in the UI and in support
// conversations: PREFIX-YYYYMMDD-XXXXXX. The primary key stays a UUID.
const (
	PrefixDonation    = "DON"
	PrefixClaim       = "CLM"
	PrefixTask        = "TSK"
	PrefixPickupEvent = "PKP"
	PrefixFeedback    = "FBK"
)

// ActorPrefix picks the business-ID prefix by actor role.
func ActorPrefix(t repository.ActorType) string {
	switch t {
	case repository.ActorDonor:
		return "DNR"
	case repository.ActorNGO:
		return "NGO"
	case repository.ActorVolunteer:
		return "VOL"
	case repository.ActorBeneficiary:
		return "BEN"
	}
	return "ACT"
}

func NewBusinessID(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}
