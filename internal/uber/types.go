package uber

// Profile is the rider profile returned by GET /v1.2/me.
type Profile struct {
	UUID           string `json:"uuid,omitempty"`
	RiderID        string `json:"rider_id,omitempty"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Picture        string `json:"picture,omitempty"`
	PromoCode      string `json:"promo_code,omitempty"`
	MobileVerified bool   `json:"mobile_verified,omitempty"`
}

// EstimateRequest describes a trip to price.
type EstimateRequest struct {
	StartLatitude  float64 `json:"start_latitude" validate:"latitude"`
	StartLongitude float64 `json:"start_longitude" validate:"longitude"`
	EndLatitude    float64 `json:"end_latitude" validate:"latitude"`
	EndLongitude   float64 `json:"end_longitude" validate:"longitude"`
	StartPlace     string  `json:"start_place_id,omitempty"`
	EndPlace       string  `json:"end_place_id,omitempty"`
	SeatCount      int     `json:"seat_count,omitempty" validate:"omitempty,min=1,max=2"`
	ProductID      string  `json:"product_id,omitempty"`
}

// PriceEstimate is one product's price range.
type PriceEstimate struct {
	ProductID            string  `json:"product_id"`
	CurrencyCode         string  `json:"currency_code,omitempty"`
	DisplayName          string  `json:"display_name,omitempty"`
	LocalizedDisplayName string  `json:"localized_display_name,omitempty"`
	Estimate             string  `json:"estimate,omitempty"`
	LowEstimate          float64 `json:"low_estimate,omitempty"`
	HighEstimate         float64 `json:"high_estimate,omitempty"`
	SurgeMultiplier      float64 `json:"surge_multiplier,omitempty"`
	Duration             int     `json:"duration,omitempty"`
	Distance             float64 `json:"distance,omitempty"`
}

// Fare is the upfront price for a product.
type Fare struct {
	FareID       string  `json:"fare_id,omitempty"`
	Value        float64 `json:"value,omitempty"`
	Display      string  `json:"display,omitempty"`
	CurrencyCode string  `json:"currency_code,omitempty"`
	ExpiresAt    int64   `json:"expires_at,omitempty"`
}

// TripEstimate is the trip part of an upfront fare response.
type TripEstimate struct {
	DistanceUnit     string  `json:"distance_unit,omitempty"`
	DurationEstimate int     `json:"duration_estimate,omitempty"`
	DistanceEstimate float64 `json:"distance_estimate,omitempty"`
}

// UpfrontFare is returned by POST /v1.2/requests/estimate.
type UpfrontFare struct {
	Fare           *Fare         `json:"fare,omitempty"`
	Trip           *TripEstimate `json:"trip,omitempty"`
	PickupEstimate int           `json:"pickup_estimate,omitempty"`
}

// FareQuote pairs a price estimate with its upfront fare, when one was found.
type FareQuote struct {
	Estimate    *PriceEstimate `json:"estimate"`
	UpfrontFare *UpfrontFare   `json:"upfront_fare"`
}

// RideRequest is the body of an order.
type RideRequest struct {
	ProductID      string  `json:"product_id" validate:"required"`
	FareID         string  `json:"fare_id,omitempty"`
	StartLatitude  float64 `json:"start_latitude" validate:"latitude"`
	StartLongitude float64 `json:"start_longitude" validate:"longitude"`
	EndLatitude    float64 `json:"end_latitude" validate:"latitude"`
	EndLongitude   float64 `json:"end_longitude" validate:"longitude"`
	SeatCount      int     `json:"seat_count,omitempty" validate:"omitempty,min=1,max=2"`
}
