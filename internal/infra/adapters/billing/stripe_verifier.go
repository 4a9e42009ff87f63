package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"pet-subscription-sync/internal/domain"
	"pet-subscription-sync/internal/domain/model"
	"pet-subscription-sync/internal/domain/ports/adapter"
)

var _ adapter.EventVerifier = (*StripeVerifier)(nil)

// StripeVerifier checks the Stripe-Signature header and decodes the event.
type StripeVerifier struct {
	secret string
}

func NewStripeVerifier(secret string) *StripeVerifier {
	return &StripeVerifier{secret: strings.TrimSpace(secret)}
}

func (v *StripeVerifier) SignatureHeader() string { return "Stripe-Signature" }

// Configured reports whether a signing secret is present.
func (v *StripeVerifier) Configured() bool { return v.secret != "" }

func (v *StripeVerifier) Verify(payload []byte, signature string) (*model.BillingEvent, error) {
	if v.secret == "" {
		return nil, fmt.Errorf("webhook secret: %w", domain.ErrMissingConfig)
	}
	if strings.TrimSpace(signature) == "" {
		return nil, domain.ErrInvalidSignature
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(domain.ErrInvalidSignature, err)
	}
	return decodeEvent(event)
}

// eventObject holds the fields read from subscription and invoice payloads.
// Customer may be a bare id or an expanded object.
type eventObject struct {
	Customer      json.RawMessage `json:"customer"`
	CustomerEmail string          `json:"customer_email"`
}

func decodeEvent(event stripelib.Event) (*model.BillingEvent, error) {
	if strings.TrimSpace(event.ID) == "" {
		return nil, fmt.Errorf("event id: %w", domain.ErrInvalidArgument)
	}
	out := &model.BillingEvent{
		ID:   event.ID,
		Type: model.BillingEventType(event.Type),
	}
	if event.Data == nil {
		return out, nil
	}

	if len(event.Data.Raw) > 0 {
		var obj eventObject
		if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
			return nil, fmt.Errorf("decode event object: %w", err)
		}
		out.CustomerID = customerID(obj.Customer)
		out.CustomerEmail = model.NormalizeEmail(obj.CustomerEmail)
	}

	if event.Data.PreviousAttributes != nil {
		out.ChangedFields = make([]string, 0, len(event.Data.PreviousAttributes))
		for k := range event.Data.PreviousAttributes {
			out.ChangedFields = append(out.ChangedFields, k)
		}
		sort.Strings(out.ChangedFields)
	}
	return out, nil
}

func customerID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return strings.TrimSpace(id)
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.ID)
	}
	return ""
}
