package crm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ninjapay/payments-reconciler/internal/data"
)

// amountKeys are probed in order when neither the payment row nor its aux amount holds
// a usable value.
var amountKeys = []string{"amount_minor", "amountMinor", "amount", "total_amount", "totalAmount", "total"}

// BuildPayload assembles the CRM notification body for a payment. It is pure: the same
// payment always yields the same payload.
func BuildPayload(payment data.Payment, operation data.CrmOperation) map[string]any {
	return map[string]any{
		"rutDepositante":    depositorRut(payment),
		"nombreDepositante": depositorName(payment),
		"paymentMethod":     string(payment.Provider),
		"transactionId":     transactionID(payment),
		"monto":             truncateAmountToString(resolveAmount(payment)),
		"listContrato":      contractList(payment),
		"listCuota":         quotaList(payment),
	}
}

// CanNotifyCRM reports whether a payment carries everything the CRM needs. It is
// exposed for optional gating but the poller enqueues unconditionally.
func CanNotifyCRM(payment data.Payment) bool {
	if payment.ShouldNotifyCrm == nil || !*payment.ShouldNotifyCrm {
		return false
	}
	if !strings.EqualFold(payment.Currency, "CLP") && payment.AuxAmountMinor == nil {
		return false
	}
	if isQuotaPayment(payment) {
		return len(payment.QuotaNumbers) > 0
	}
	return payment.ContractNumber != nil
}

func depositorRut(payment data.Payment) any {
	candidates := []any{}
	if payment.DepositorRut != nil {
		candidates = append(candidates, *payment.DepositorRut)
	}
	if payment.OrderCustomerRut != nil {
		candidates = append(candidates, *payment.OrderCustomerRut)
	}
	candidates = append(candidates,
		extractFromMap(payment.Context, "customer_rut"),
		extractFromMap(payment.ProviderMetadata, "rut"),
	)

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}
		if rut := sanitizeRut(fmt.Sprintf("%v", candidate)); rut != "" {
			return rut
		}
	}
	return nil
}

func sanitizeRut(rut string) string {
	cleaned := strings.ReplaceAll(rut, ".", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	return strings.TrimSpace(cleaned)
}

func depositorName(payment data.Payment) any {
	if payment.DepositorName != nil && *payment.DepositorName != "" {
		return *payment.DepositorName
	}
	if v := extractFromMap(payment.Context, "customer_name"); v != nil {
		return v
	}
	if v := extractFromMap(payment.ProviderMetadata, "name"); v != nil {
		return v
	}
	return string(payment.Provider)
}

func transactionID(payment data.Payment) any {
	if payment.PaymentOrderID != nil {
		return strconv.FormatInt(*payment.PaymentOrderID, 10)
	}
	if payment.AuthorizationCode != nil && *payment.AuthorizationCode != "" {
		return *payment.AuthorizationCode
	}
	if payment.Token != nil && *payment.Token != "" {
		return *payment.Token
	}
	return strconv.FormatInt(payment.ID, 10)
}

// resolveAmount picks the amount source: the aux amount for non-CLP payments, then the
// payment's own amount, then the first amount-like value buried in context or provider
// metadata.
func resolveAmount(payment data.Payment) any {
	if !strings.EqualFold(payment.Currency, "CLP") && payment.AuxAmountMinor != nil {
		return *payment.AuxAmountMinor
	}
	if payment.AmountMinor != 0 {
		return payment.AmountMinor
	}
	if v := searchAmount(payment.Context); v != nil {
		return v
	}
	if v := searchAmount(payment.ProviderMetadata); v != nil {
		return v
	}
	return payment.AmountMinor
}

// searchAmount walks the map depth-first looking for a non-zero value under any of the
// amount keys. Nested maps are visited in sorted key order so the result is stable.
func searchAmount(m map[string]any) any {
	if m == nil {
		return nil
	}

	for _, key := range amountKeys {
		if v, ok := m[key]; ok && isNonZeroNumber(v) {
			return v
		}
	}

	nestedKeys := make([]string, 0, len(m))
	for key := range m {
		if _, ok := m[key].(map[string]any); ok {
			nestedKeys = append(nestedKeys, key)
		}
	}
	sort.Strings(nestedKeys)

	for _, key := range nestedKeys {
		if found := searchAmount(m[key].(map[string]any)); found != nil {
			return found
		}
	}
	return nil
}

func isNonZeroNumber(v any) bool {
	if v == nil {
		return false
	}
	d, err := decimal.NewFromString(fmt.Sprintf("%v", v))
	return err == nil && !d.IsZero()
}

// truncateAmountToString renders the amount as a base-10 integer string, truncated
// toward zero. Unparseable values become "0".
func truncateAmountToString(amount any) string {
	d, err := decimal.NewFromString(fmt.Sprintf("%v", amount))
	if err != nil {
		return "0"
	}
	return d.Truncate(0).String()
}

func isQuotaPayment(payment data.Payment) bool {
	if payment.PaymentType == nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(*payment.PaymentType)) {
	case "cuota", "cuotas":
		return true
	default:
		return false
	}
}

func contractList(payment data.Payment) any {
	if isQuotaPayment(payment) || payment.ContractNumber == nil {
		return nil
	}
	return []int64{*payment.ContractNumber}
}

func quotaList(payment data.Payment) any {
	if !isQuotaPayment(payment) || len(payment.QuotaNumbers) == 0 {
		return nil
	}
	return []int64(payment.QuotaNumbers)
}

func extractFromMap(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	return v
}
