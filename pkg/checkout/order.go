package checkout

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var summaryPolicy = bluemonday.StrictPolicy()

// Order is the merchant context carried in a deep link.
type Order struct {
	OrderID      string `json:"order_id"`
	Amount       string `json:"amount"`
	Email        string `json:"email"`
	CustomerName string `json:"customer_name,omitempty"`
	Currency     string `json:"currency,omitempty"`
	SuccessURL   string `json:"success_url,omitempty"`
	FailureURL   string `json:"failure_url,omitempty"`
	Summary      string `json:"order_summary,omitempty"`
}

// ParseOrder reads deep-link query parameters. Markup in order_summary is
// stripped and return URLs that are not absolute http(s) URLs are dropped.
func ParseOrder(q url.Values) Order {
	get := func(k string) string { return strings.TrimSpace(q.Get(k)) }

	return Order{
		OrderID:      get("order_id"),
		Amount:       get("amount"),
		Email:        get("email"),
		CustomerName: get("customer_name"),
		Currency:     strings.ToUpper(get("currency")),
		SuccessURL:   safeReturnURL(get("success_url")),
		FailureURL:   safeReturnURL(get("failure_url")),
		Summary:      strings.TrimSpace(summaryPolicy.Sanitize(q.Get("order_summary"))),
	}
}

// HasContext reports whether the link carried a usable order.
func (o Order) HasContext() bool {
	return o.OrderID != "" && o.Amount != "" && o.Email != ""
}

// Prefill copies the order's amount, email, name and currency into f.
func (o Order) Prefill(f *Form) {
	f.Amount = o.Amount
	f.Customer.Email = o.Email
	if o.CustomerName != "" {
		f.Customer.Name = o.CustomerName
	}
	if o.Currency != "" {
		f.Currency = o.Currency
	}
	f.OrderID = o.OrderID
}

// ReturnURL is where the payer goes after out. It is empty when the merchant
// supplied no URL for that result.
func (o Order) ReturnURL(out *Outcome) string {
	target := o.FailureURL
	if out != nil && out.Status == StatusSuccess {
		target = o.SuccessURL
	}
	if target == "" {
		return ""
	}

	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	q := u.Query()
	if out != nil {
		if out.Reference != "" {
			q.Set("reference", out.Reference)
		}
		q.Set("status", string(out.Status))
	}
	q.Set("order_id", o.OrderID)
	u.RawQuery = q.Encode()
	return u.String()
}

func safeReturnURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
