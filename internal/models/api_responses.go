package models

import "time"

// PriceStats is the price block of an analytics summary.
type PriceStats struct {
	AvgPrice float64 `json:"avg_price"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// MileageBucket summarizes listings inside one mileage range.
type MileageBucket struct {
	AvgPrice float64 `json:"avg_price"`
	Count    int     `json:"count"`
}

// MileageStats groups listings by mileage range.
type MileageStats struct {
	Range0To50k   MileageBucket `json:"range_0_50k"`
	Range50To100k MileageBucket `json:"range_50_100k"`
	Range100kPlus MileageBucket `json:"range_100k_plus"`
}

// AnalyticsSummary mirrors the upstream analytics payload.
type AnalyticsSummary struct {
	TotalCars    int          `json:"total_cars"`
	PriceStats   PriceStats   `json:"price_stats"`
	MileageStats MileageStats `json:"mileage_stats"`
	Offline      bool         `json:"offline"`
}

// MileageSeries holds one price series per mileage band.
type MileageSeries struct {
	Low    []float64 `json:"low"`
	Medium []float64 `json:"medium"`
	High   []float64 `json:"high"`
}

// ChartStatistics summarizes a price trend chart.
type ChartStatistics struct {
	Average          float64 `json:"average"`
	ChangePercentage float64 `json:"change_percentage"`
	Volatility       float64 `json:"volatility"`
}

// PriceTrendChart mirrors the upstream chart payload.
type PriceTrendChart struct {
	Dates      []string        `json:"dates"`
	Overall    []float64       `json:"overall"`
	ByMileage  MileageSeries   `json:"by_mileage"`
	Statistics ChartStatistics `json:"statistics"`
	Offline    bool            `json:"offline"`
}

// OfflineMarker is returned for endpoints without a dedicated offline shape.
type OfflineMarker struct {
	Offline bool   `json:"offline"`
	Message string `json:"message"`
}

// VersionResponse answers a GET_VERSION control message.
type VersionResponse struct {
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
}

// SuccessResponse answers control messages that only acknowledge.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ClickResponse tells the caller how a notification click was resolved.
type ClickResponse struct {
	Action  string `json:"action"`
	URL     string `json:"url,omitempty"`
	Focused bool   `json:"focused"`
	Opened  bool   `json:"opened"`
}

// LiveStatusResponse describes the live update channel.
type LiveStatusResponse struct {
	State           string     `json:"state"`
	Mode            string     `json:"mode"`
	RealTimeEnabled bool       `json:"real_time_enabled"`
	LastUpdate      *time.Time `json:"last_update"`
}

// StatusResponse is returned by the status endpoint.
type StatusResponse struct {
	Worker  string              `json:"worker"`
	Version string              `json:"version"`
	Stores  []string            `json:"stores"`
	Clients int                 `json:"clients"`
	Live    *LiveStatusResponse `json:"live,omitempty"`
}
