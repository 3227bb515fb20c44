package billing

import (
	"encoding/json"

	"github.com/servicenegotiator/api/internal/model"
)

// Event types this subsystem reacts to. Anything else is acknowledged
// and skipped.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// Event is the provider's webhook envelope. The payload object stays raw
// until the event type determines its shape.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// customerRef unmarshals a customer field that is either a bare id string
// or an expanded object carrying an id.
type customerRef string

func (c *customerRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*c = customerRef(id)
		return nil
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*c = customerRef(obj.ID)
	return nil
}

// checkoutSessionPayload is the object of a checkout.session.completed event.
type checkoutSessionPayload struct {
	ID              string      `json:"id"`
	Customer        customerRef `json:"customer"`
	CustomerEmail   string      `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

// email prefers the verified checkout email over the pre-filled one.
func (p *checkoutSessionPayload) email() string {
	if p.CustomerDetails.Email != "" {
		return p.CustomerDetails.Email
	}
	return p.CustomerEmail
}

// subscriptionPayload is the object of a customer.subscription.* event.
type subscriptionPayload struct {
	ID       string            `json:"id"`
	Customer customerRef       `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// planFromMetadata reads the plan tier from event metadata.
// Absent or unknown values default to homeowner, the cheapest paid tier,
// matching what an unlabelled checkout is sold as.
func planFromMetadata(metadata map[string]string) model.Plan {
	plan := model.Plan(metadata["plan"])
	if !plan.IsValid() {
		return model.PlanHomeowner
	}
	return plan
}
