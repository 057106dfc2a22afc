package api

import (
	"bytes"
	"encoding/json"

	"ventas/internal/sales"

	"github.com/shopspring/decimal"
)

// flexAmount accepts a JSON number, a JSON string or a form value. Anything
// unparseable becomes zero, the same leniency the HTML forms always had.
type flexAmount struct {
	value decimal.Decimal
}

func (a flexAmount) Decimal() decimal.Decimal {
	return a.value
}

func (a *flexAmount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			a.value = sales.Zero
			return nil
		}
		a.value = sales.ParseAmount(s)
		return nil
	}
	// null, numbers and anything else
	if bytes.Equal(b, []byte("null")) {
		a.value = sales.Zero
		return nil
	}
	a.value = sales.ParseAmount(string(b))
	return nil
}

// UnmarshalParam implements gin's binding.BindUnmarshaler for form values.
func (a *flexAmount) UnmarshalParam(param string) error {
	a.value = sales.ParseAmount(param)
	return nil
}

type createSaleRequest struct {
	Client     string     `json:"cliente" form:"cliente" binding:"max=255"`
	TotalValue flexAmount `json:"valor_total" form:"valor_total"`
	Paid       flexAmount `json:"abono" form:"abono"`
	Categories []string   `json:"rubros" form:"rubros" binding:"dive,max=50"`
	Date       string     `json:"fecha" form:"fecha"`
}

type paymentRequest struct {
	Amount flexAmount `json:"monto" form:"monto_pago"`
	Kind   string     `json:"tipo" form:"tipo_pago" binding:"max=50"`
}

type closingRequest struct {
	Month int `json:"mes" form:"mes" binding:"omitempty,min=1,max=12"`
	Year  int `json:"año" form:"año" binding:"omitempty,min=1"`
	// Anio is the ASCII spelling some clients send.
	Anio int `json:"anio" form:"anio" binding:"omitempty,min=1"`
}

func (r closingRequest) year() int {
	if r.Year != 0 {
		return r.Year
	}
	return r.Anio
}
