package usecase

import (
	"strconv"
	"strings"

	"pet-subscription-sync/internal/domain/model"
)

// TierClassifier maps a unit price to a subscription tier. Ceilings are
// inclusive so a price equal to a ceiling stays in the lower tier.
type TierClassifier struct {
	BasicMax   int64
	PremiumMax int64
}

func (c TierClassifier) Classify(unitAmount int64) model.SubscriptionTier {
	switch {
	case unitAmount <= c.BasicMax:
		return model.TierBasic
	case unitAmount <= c.PremiumMax:
		return model.TierPremium
	default:
		return model.TierEnterprise
	}
}

// AddonCounter recognises "additional capacity" line items by metadata.
type AddonCounter struct {
	Key      string // e.g. addon_type
	Value    string // e.g. additional_pet
	UnitsKey string // e.g. units_per_item
}

func (a AddonCounter) IsAddon(item model.BillingLineItem) bool {
	if item.Metadata == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(item.Metadata[a.Key]), a.Value)
}

// UnitsPerItem defaults to 1 when the metadata is missing or not a positive integer.
func (a AddonCounter) UnitsPerItem(item model.BillingLineItem) int64 {
	raw := strings.TrimSpace(item.Metadata[a.UnitsKey])
	if raw == "" {
		return 1
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// Units sums quantity × units-per-item over every add-on item of subs.
func (a AddonCounter) Units(subs []model.BillingSubscription) int {
	var total int64
	for _, s := range subs {
		for _, item := range s.Items {
			if !a.IsAddon(item) || item.Quantity <= 0 {
				continue
			}
			total += item.Quantity * a.UnitsPerItem(item)
		}
	}
	return int(total)
}

// PrimaryItem is the first non add-on item, or the first item when every
// item is an add-on.
func (a AddonCounter) PrimaryItem(s model.BillingSubscription) (model.BillingLineItem, bool) {
	for _, item := range s.Items {
		if !a.IsAddon(item) {
			return item, true
		}
	}
	if len(s.Items) > 0 {
		return s.Items[0], true
	}
	return model.BillingLineItem{}, false
}
