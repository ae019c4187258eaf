package factory

import (
	"encoding/json"
)

// CreditCardJSON returns JSON for a credit card with a billing cycle and
// no outstanding balance.
func CreditCardJSON(id, name string, usageStartDay, paymentDay int, limit float64) string {
	aj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"type":     "CREDIT_CARD",
		"balance":  0,
		"currency": "KRW",
		"limit":    limit,
		"credit": map[string]interface{}{
			"usage_start_day": usageStartDay,
			"payment_day":     paymentDay,
		},
	}
	b, _ := json.MarshalIndent(aj, "", "  ")
	return string(b)
}

// CheckingJSON returns JSON for a checking account.
func CheckingJSON(id, name string, balance float64) string {
	aj := map[string]interface{}{
		"id":       id,
		"name":     name,
		"type":     "CHECKING",
		"balance":  balance,
		"currency": "KRW",
	}
	b, _ := json.MarshalIndent(aj, "", "  ")
	return string(b)
}

// InstallmentPurchaseJSON returns JSON for an expense split over months.
func InstallmentPurchaseJSON(assetID, date string, amount float64, months int, interestFree bool) string {
	tj := map[string]interface{}{
		"asset_id": assetID,
		"type":     "EXPENSE",
		"date":     date,
		"amount":   amount,
		"installment": map[string]interface{}{
			"total_months":  months,
			"interest_free": interestFree,
		},
	}
	b, _ := json.MarshalIndent(tj, "", "  ")
	return string(b)
}
