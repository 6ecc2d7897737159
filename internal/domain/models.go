package domain

import "time"

const (
	FacetTypeTerms       = "terms"
	FacetTypeNumberStats = "number_stats"
	FacetTypeToggle      = "toggle"
)

// FacetField is one selectable value within a facet. Hierarchical (category)
// values additionally carry their category id, parent label and tree path.
type FacetField struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	Count    int      `json:"count"`
	CatID    string   `json:"cat_id,omitempty"`
	CatName  string   `json:"cat_name,omitempty"`
	TreePath []string `json:"tree_path,omitempty"`
	Parent   string   `json:"parent,omitempty"`
}

type Facet struct {
	Name   string       `json:"name"`
	Type   string       `json:"type"`
	Values []FacetField `json:"values"`
	Min    *int64       `json:"min,omitempty"`
	Max    *int64       `json:"max,omitempty"`
}

type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

type Product struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Brand      string     `json:"brand"`
	Color      string     `json:"color"`
	Size       string     `json:"size"`
	PriceCents int64      `json:"price_cents"`
	Categories []Category `json:"categories"`
	Active     bool       `json:"active"`
}

// Document is a CMS content entry searchable through content facets.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	Summary     string    `json:"summary"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
}

type SearchRequest struct {
	Text     string                  `json:"text"`
	Selected map[string][]FacetField `json:"selected"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"page_size"`
}

type ProductSearchResult struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Facets   []Facet   `json:"facets"`
}

type ContentSearchResult struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	Facets    []Facet    `json:"facets"`
}

type CartItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Qty        int    `json:"qty"`
}

type Cart struct {
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (c Cart) Empty() bool {
	return len(c.Items) == 0
}

func (c Cart) SubtotalCents() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceCents * int64(item.Qty)
	}
	return total
}

func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Qty
	}
	return count
}

type CartAddRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartUpdateRequest struct {
	Qty int `json:"qty"`
}

type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// Order is both the in-progress checkout draft and, once Draft is false, a
// completed order. Draft is a pointer so that an absent value can be told
// apart from an explicit false.
type Order struct {
	ID            string     `json:"id,omitempty"`
	Draft         *bool      `json:"draft,omitempty"`
	Email         string     `json:"email,omitempty"`
	ShipMethod    string     `json:"shipMethod,omitempty"`
	Billing       *Address   `json:"billing,omitempty"`
	Shipping      *Address   `json:"shipping,omitempty"`
	Items         []CartItem `json:"items"`
	SubtotalCents int64      `json:"subtotal_cents"`
	TaxCents      int64      `json:"tax_cents"`
	TotalCents    int64      `json:"total_cents"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type BillingRequest struct {
	Email             string  `json:"email"`
	ShipMethod        string  `json:"ship_method"`
	Billing           Address `json:"billing"`
	Shipping          Address `json:"shipping"`
	ShippingAsBilling bool    `json:"shipping_as_billing"`
}

type OrderCompletedEvent struct {
	OrderID     string    `json:"order_id"`
	SessionID   string    `json:"session_id"`
	ItemCount   int       `json:"item_count"`
	TotalCents  int64     `json:"total_cents"`
	CompletedAt time.Time `json:"completed_at"`
}

type FacetToggleRequest struct {
	Path    string `json:"path"`
	Query   string `json:"query"`
	Content bool   `json:"content"`
	Facet   string `json:"facet"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}
