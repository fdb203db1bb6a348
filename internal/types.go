package internal

import "time"

type ErrorKind string

const (
	ErrUpstreamUnavailable   ErrorKind = "UpstreamUnavailable"
	ErrUpstreamMalformed     ErrorKind = "UpstreamMalformed"
	ErrValidationFailed      ErrorKind = "ValidationFailed"
	ErrConcurrentRunRejected ErrorKind = "ConcurrentRunRejected"
	ErrIntegrityDegraded     ErrorKind = "IntegrityDegraded"
	ErrInternal              ErrorKind = "Internal"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhaseMatching   Phase = "matching"
	PhasePreserving Phase = "preserving"
	PhaseValidating Phase = "validating"
	PhaseCommitting Phase = "committing"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
	TriggerCLI    Trigger = "cli"
)

type PriceSource string

const (
	PriceSourceNone         PriceSource = ""
	PriceSourceProductID    PriceSource = "product_id"
	PriceSourceExternalID   PriceSource = "external_id"
	PriceSourceInternalCode PriceSource = "internal_code"
)

// RawProduct is one product record as returned by the ERP.
type RawProduct struct {
	ID           int
	Name         string
	ShortDesc    *string
	Unit         *string
	SectionID    *int
	GroupID      *int
	BrandID      *int
	GenreID      *int
	ExternalID   *string
	InternalCode *string
	Image        *string
	ActiveOnline bool
	StockTracked bool
	Discountable bool
	CreatedAt    *string
	UpdatedAt    *string
}

// RawPrice is one price record. ExternalID and InternalCode are not trustworthy
// keys: they may be blank or carry a placeholder shared by many records.
type RawPrice struct {
	ID           int
	ProductID    int
	ExternalID   *string
	InternalCode *string
	StoreID      int
	SalePrice1   float64
	OfferPrice1  float64
	SalePrice2   float64
	OfferPrice2  float64
	SalePrice3   float64
	OfferPrice3  float64
	MinQty2      int
	MinQty3      int
}

type RawStock struct {
	ProductID int
	StoreID   int
	Balance   float64
}

type TaxonomyRecord struct {
	ID          int
	Description string
}

type GroupRecord struct {
	ID          int
	SectionID   int
	Description string
}

type PriceTiers struct {
	Price1      float64 `json:"price1"`
	OfferPrice1 float64 `json:"offerPrice1"`
	Price2      float64 `json:"price2"`
	OfferPrice2 float64 `json:"offerPrice2"`
	Price3      float64 `json:"price3"`
	OfferPrice3 float64 `json:"offerPrice3"`
	MinQty2     int     `json:"minQuantityPrice2"`
	MinQty3     int     `json:"minQuantityPrice3"`
}

type ERPRef struct {
	ExternalID   string `json:"externalId,omitempty"`
	InternalCode string `json:"internalCode,omitempty"`
	SectionID    *int   `json:"sectionId,omitempty"`
	GroupID      *int   `json:"groupId,omitempty"`
	BrandID      *int   `json:"brandId,omitempty"`
	GenreID      *int   `json:"genreId,omitempty"`
	ActiveOnline bool   `json:"activeOnline"`
	StockTracked bool   `json:"stockTracked"`
	Discountable bool   `json:"discountable"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Product is the canonical catalog entry served to the storefront.
type Product struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	Price           float64     `json:"price"`
	OriginalPrice   float64     `json:"originalPrice"`
	Prices          PriceTiers  `json:"prices"`
	HasOffers       bool        `json:"hasOffers"`
	IsOnSale        bool        `json:"isOnSale"`
	DiscountPercent int         `json:"discountPercent"`
	PriceUnresolved bool        `json:"priceUnresolved,omitempty"`
	PriceSource     PriceSource `json:"priceSource,omitempty"`
	Category        string      `json:"category"`
	Brand           string      `json:"brand"`
	Genre           string      `json:"genre,omitempty"`
	Group           string      `json:"group,omitempty"`
	Unit            string      `json:"unit"`
	Image           string      `json:"image"`
	Stock           float64     `json:"stock"`
	InStock         bool        `json:"inStock"`
	Tags            []string    `json:"tags"`
	Source          string      `json:"source"`
	ERP             ERPRef      `json:"erp"`
}

type SyncCounts struct {
	Products        int `json:"products"`
	Prices          int `json:"prices"`
	Sections        int `json:"sections"`
	Groups          int `json:"groups"`
	Brands          int `json:"brands"`
	Genres          int `json:"genres"`
	Stock           int `json:"stock"`
	PriceUnresolved int `json:"priceUnresolved"`
	ImagesPreserved int `json:"imagesPreserved"`
	SkippedRecords  int `json:"skippedRecords"`
}

type SyncResult struct {
	Counts      SyncCounts `json:"counts"`
	CompletedAt time.Time  `json:"completedAt"`
	DurationMs  int64      `json:"durationMs"`
}

type SyncError struct {
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Phase    Phase     `json:"phase,omitempty"`
	Resource string    `json:"resource,omitempty"`
	Status   int       `json:"status,omitempty"`
}

func (e *SyncError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

type SyncRun struct {
	IsRunning  bool        `json:"isRunning"`
	RunID      string      `json:"runId,omitempty"`
	Phase      Phase       `json:"phase"`
	Trigger    Trigger     `json:"trigger,omitempty"`
	StartTime  *time.Time  `json:"startTime"`
	EndTime    *time.Time  `json:"endTime"`
	DurationMs *int64      `json:"duration"`
	LastResult *SyncResult `json:"lastResult"`
	LastError  *SyncError  `json:"lastError"`
	LastUpdate *time.Time  `json:"lastUpdate"`
}

type HistoryEntry struct {
	ID         string     `json:"id"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    time.Time  `json:"endTime"`
	DurationMs int64      `json:"durationMs"`
	Trigger    Trigger    `json:"trigger"`
	Success    bool       `json:"success"`
	Counts     SyncCounts `json:"counts"`
	Error      *SyncError `json:"error,omitempty"`
}

type SyncSettings struct {
	AutoSync        bool `json:"autoSync"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

func (s SyncSettings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}
