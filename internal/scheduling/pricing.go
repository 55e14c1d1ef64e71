package scheduling

// Quote is the outcome of a total computation. Clamped reports that the
// discount would have driven the total negative and was capped, so callers
// can surface it instead of silently absorbing it.
type Quote struct {
	PriceCents      int64
	AdditionalCents int64
	DiscountCents   int64
	TotalCents      int64
	Clamped         bool
}

// ComputeTotal derives the payable amount for a booking. Services with a
// price range (min != max) require an explicit vendor-chosen price inside
// the inclusive range; fixed-price services take min (explicit price, if
// supplied, must still fall in the degenerate range). The total is
// price + additional - discount, clamped at zero.
func ComputeTotal(minCents, maxCents int64, explicitCents *int64, additionalCents, discountCents int64) (Quote, error) {
	if additionalCents < 0 {
		return Quote{}, validationErr("additional_charges", "must not be negative")
	}
	if discountCents < 0 {
		return Quote{}, validationErr("discount_amount", "must not be negative")
	}

	price := minCents
	if explicitCents != nil {
		if *explicitCents < minCents || *explicitCents > maxCents {
			return Quote{}, &PriceOutOfRangeError{MinCents: minCents, MaxCents: maxCents, GivenCents: *explicitCents}
		}
		price = *explicitCents
	} else if minCents != maxCents {
		return Quote{}, validationErr("price", "service has a price range; an explicit price is required")
	}

	q := Quote{
		PriceCents:      price,
		AdditionalCents: additionalCents,
		DiscountCents:   discountCents,
	}
	q.TotalCents = price + additionalCents - discountCents
	if q.TotalCents < 0 {
		q.TotalCents = 0
		q.Clamped = true
	}
	return q, nil
}
