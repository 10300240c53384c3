package models

// ProductType identifies which order product a bulk row purchases.
type ProductType string

const (
	ProductPlaceTraffic  ProductType = "place_traffic"
	ProductPlaceSave     ProductType = "place_save"
	ProductReceiptReview ProductType = "receipt_review"
	ProductBlogReview    ProductType = "blog_review"
)

// ChargeFormula selects how a row's cost is derived from its quantities.
type ChargeFormula int

const (
	// FormulaTotalCount charges total_count * price.
	FormulaTotalCount ChargeFormula = iota
	// FormulaDailyDuration charges daily_count * operation_days * price.
	FormulaDailyDuration
)

// Record store names. They double as table names.
const (
	StoreTrafficOrders = "traffic_orders"
	StoreSaveOrders    = "save_orders"
	StoreReviewOrders  = "review_orders"
	StoreBlogOrders    = "blog_orders"
)

// ProductSpec is the static configuration of one product type.
type ProductSpec struct {
	Type          ProductType
	PricingKey    string
	NumberingCode string
	StoreName     string
	Formula       ChargeFormula
	// MIDMandatory makes a missing merchant identifier abort the whole run.
	MIDMandatory bool
}

// Catalogue is the product table every stage of the pipeline reads from.
// Adding a product means adding an entry here plus a record store.
var Catalogue = map[ProductType]ProductSpec{
	ProductPlaceTraffic: {
		Type:          ProductPlaceTraffic,
		PricingKey:    "traffic",
		NumberingCode: "TR",
		StoreName:     StoreTrafficOrders,
		Formula:       FormulaDailyDuration,
		MIDMandatory:  true,
	},
	ProductPlaceSave: {
		Type:          ProductPlaceSave,
		PricingKey:    "save",
		NumberingCode: "SV",
		StoreName:     StoreSaveOrders,
		Formula:       FormulaDailyDuration,
		MIDMandatory:  true,
	},
	ProductReceiptReview: {
		Type:          ProductReceiptReview,
		PricingKey:    "receipt_review",
		NumberingCode: "RR",
		StoreName:     StoreReviewOrders,
		Formula:       FormulaTotalCount,
	},
	ProductBlogReview: {
		Type:          ProductBlogReview,
		PricingKey:    "blog_review",
		NumberingCode: "BR",
		StoreName:     StoreBlogOrders,
		Formula:       FormulaTotalCount,
	},
}

// LookupProduct returns the catalogue entry for t.
func LookupProduct(t ProductType) (ProductSpec, bool) {
	spec, ok := Catalogue[t]
	return spec, ok
}
