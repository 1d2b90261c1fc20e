package crm

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/ninjapay/payments-reconciler/internal/data"
	"github.com/ninjapay/payments-reconciler/internal/utils"
)

func Test_BuildPayload(t *testing.T) {
	t.Run("prefers deposit info and strips rut formatting", func(t *testing.T) {
		payment := data.Payment{
			ID:             10,
			Provider:       data.WebpayProvider,
			Currency:       "CLP",
			AmountMinor:    15990,
			DepositorRut:   utils.StringPtr("12.345.678-9 "),
			DepositorName:  utils.StringPtr("Maria Perez"),
			PaymentOrderID: utils.Int64Ptr(777),
			ContractNumber: utils.Int64Ptr(4001),
			Context:        data.JSONMap{"customer_rut": "99.999.999-9", "customer_name": "Other"},
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)

		assert.Equal(t, "123456789", payload["rutDepositante"])
		assert.Equal(t, "Maria Perez", payload["nombreDepositante"])
		assert.Equal(t, "webpay", payload["paymentMethod"])
		assert.Equal(t, "777", payload["transactionId"])
		assert.Equal(t, "15990", payload["monto"])
		assert.Equal(t, []int64{4001}, payload["listContrato"])
		assert.Nil(t, payload["listCuota"])
	})

	t.Run("falls back through rut and name sources", func(t *testing.T) {
		payment := data.Payment{
			ID:          11,
			Provider:    data.StripeProvider,
			Currency:    "CLP",
			AmountMinor: 100,
			Context:     data.JSONMap{"customer_rut": "7.654.321-0"},
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)

		assert.Equal(t, "76543210", payload["rutDepositante"])
		assert.Equal(t, "stripe", payload["nombreDepositante"])
		assert.Equal(t, "11", payload["transactionId"])
	})

	t.Run("empty rut after sanitizing becomes null", func(t *testing.T) {
		payment := data.Payment{
			ID:           12,
			Provider:     data.WebpayProvider,
			Currency:     "CLP",
			AmountMinor:  100,
			DepositorRut: utils.StringPtr(" .- "),
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)

		assert.Nil(t, payload["rutDepositante"])
	})

	t.Run("cuota payments list quotas instead of the contract", func(t *testing.T) {
		payment := data.Payment{
			ID:             13,
			Provider:       data.WebpayProvider,
			Currency:       "CLP",
			AmountMinor:    100,
			PaymentType:    utils.StringPtr("cuotas"),
			ContractNumber: utils.Int64Ptr(4001),
			QuotaNumbers:   pq.Int64Array{3, 4},
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)

		assert.Nil(t, payload["listContrato"])
		assert.Equal(t, []int64{3, 4}, payload["listCuota"])
	})

	t.Run("transaction id falls back through authorization code and token", func(t *testing.T) {
		payment := data.Payment{
			ID:                14,
			Provider:          data.PayPalProvider,
			Currency:          "CLP",
			AmountMinor:       100,
			AuthorizationCode: utils.StringPtr("AUTH-9"),
			Token:             utils.StringPtr("tok-1"),
		}
		payload := BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "AUTH-9", payload["transactionId"])

		payment.AuthorizationCode = nil
		payload = BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "tok-1", payload["transactionId"])
	})
}

func Test_BuildPayload_monto(t *testing.T) {
	t.Run("non-CLP payments use the aux amount", func(t *testing.T) {
		payment := data.Payment{
			Provider:       data.StripeProvider,
			Currency:       "USD",
			AmountMinor:    999,
			AuxAmountMinor: utils.Int64Ptr(850000),
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "850000", payload["monto"])
	})

	t.Run("zero amount searches context then provider metadata", func(t *testing.T) {
		payment := data.Payment{
			Provider:         data.WebpayProvider,
			Currency:         "CLP",
			AmountMinor:      0,
			Context:          data.JSONMap{"detail": map[string]any{"total_amount": float64(4990)}},
			ProviderMetadata: data.JSONMap{"amount": float64(1)},
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "4990", payload["monto"])
	})

	t.Run("fractional amounts truncate toward zero", func(t *testing.T) {
		payment := data.Payment{
			Provider:    data.WebpayProvider,
			Currency:    "CLP",
			AmountMinor: 0,
			Context:     data.JSONMap{"amount": "15990.99"},
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "15990", payload["monto"])
	})

	t.Run("nothing usable falls back to amount_minor", func(t *testing.T) {
		payment := data.Payment{
			Provider:    data.WebpayProvider,
			Currency:    "CLP",
			AmountMinor: 0,
		}

		payload := BuildPayload(payment, data.PaymentApprovedOperation)
		assert.Equal(t, "0", payload["monto"])
	})

	t.Run("is deterministic for the same payment", func(t *testing.T) {
		payment := data.Payment{
			Provider:    data.WebpayProvider,
			Currency:    "CLP",
			AmountMinor: 0,
			Context: data.JSONMap{
				"b": map[string]any{"amount": float64(200)},
				"a": map[string]any{"amount": float64(100)},
			},
		}

		first := BuildPayload(payment, data.PaymentApprovedOperation)
		for i := 0; i < 20; i++ {
			assert.Equal(t, first, BuildPayload(payment, data.PaymentApprovedOperation))
		}
		assert.Equal(t, "100", first["monto"])
	})
}

func Test_CanNotifyCRM(t *testing.T) {
	base := data.Payment{
		Provider:        data.WebpayProvider,
		Currency:        "CLP",
		AmountMinor:     100,
		ShouldNotifyCrm: utils.BoolPtr(true),
		ContractNumber:  utils.Int64Ptr(4001),
	}

	t.Run("contract payment with notify flag", func(t *testing.T) {
		assert.True(t, CanNotifyCRM(base))
	})

	t.Run("notify flag off or missing", func(t *testing.T) {
		p := base
		p.ShouldNotifyCrm = utils.BoolPtr(false)
		assert.False(t, CanNotifyCRM(p))

		p.ShouldNotifyCrm = nil
		assert.False(t, CanNotifyCRM(p))
	})

	t.Run("non-CLP requires the aux amount", func(t *testing.T) {
		p := base
		p.Currency = "USD"
		assert.False(t, CanNotifyCRM(p))

		p.AuxAmountMinor = utils.Int64Ptr(850000)
		assert.True(t, CanNotifyCRM(p))
	})

	t.Run("cuota requires quota numbers", func(t *testing.T) {
		p := base
		p.PaymentType = utils.StringPtr("cuota")
		assert.False(t, CanNotifyCRM(p))

		p.QuotaNumbers = pq.Int64Array{1}
		assert.True(t, CanNotifyCRM(p))
	})

	t.Run("contract payment without a contract number", func(t *testing.T) {
		p := base
		p.ContractNumber = nil
		assert.False(t, CanNotifyCRM(p))
	})
}
