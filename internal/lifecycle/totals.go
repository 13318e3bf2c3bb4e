package lifecycle

import "bwitty-orders/internal/model"

// ComputeTotals sums the item snapshot and adds shipping and fees.
func ComputeTotals(items []model.OrderItem, shipping, fees int64, currency string) model.Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.Price * int64(item.Quantity)
	}
	return model.Totals{
		Subtotal:   subtotal,
		Shipping:   shipping,
		Fees:       fees,
		GrandTotal: subtotal + shipping + fees,
		Currency:   currency,
	}
}

// CustomerName joins first and last name, falling back to the email.
func CustomerName(first, last, email string) string {
	name := first
	if last != "" {
		if name != "" {
			name += " "
		}
		name += last
	}
	if name == "" {
		return email
	}
	return name
}
