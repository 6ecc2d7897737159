package checkout

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"storefront/internal/domain"
)

const (
	msgRequired = "required"
	// msgInvalid marks a present value the checkout cannot use.
	msgInvalid  = "invalid"
)

var shipMethods = map[string]bool{
	"standard": true,
	"express":  true,
	"pickup":   true,
}

// ValidationError carries per-field messages for a rejected billing form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

func normalizeBilling(req *domain.BillingRequest) {
	req.Email = strings.TrimSpace(req.Email)
	req.ShipMethod = strings.ToLower(strings.TrimSpace(req.ShipMethod))
	trimAddress(&req.Billing)
	trimAddress(&req.Shipping)
	if req.ShippingAsBilling {
		req.Shipping = req.Billing
	}
}

func trimAddress(a *domain.Address) {
	a.FirstName = strings.TrimSpace(a.FirstName)
	a.LastName = strings.TrimSpace(a.LastName)
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.TrimSpace(a.Country)
	a.Phone = strings.TrimSpace(a.Phone)
}

func validateBilling(req domain.BillingRequest) error {
	fields := map[string]string{}
	if req.Email == "" {
		fields["email"] = msgRequired
	} else if _, err := mail.ParseAddress(req.Email); err != nil {
		fields["email"] = msgInvalid
	}
	if req.ShipMethod == "" {
		fields["ship_method"] = msgRequired
	} else if !shipMethods[req.ShipMethod] {
		fields["ship_method"] = msgInvalid
	}
	requireAddress(fields, "billing", req.Billing)
	requireAddress(fields, "shipping", req.Shipping)

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func requireAddress(fields map[string]string, prefix string, a domain.Address) {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", a.FirstName},
		{"last_name", a.LastName},
		{"street", a.Street},
		{"city", a.City},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if f.value == "" {
			fields[prefix+"."+f.name] = msgRequired
		}
	}
}
