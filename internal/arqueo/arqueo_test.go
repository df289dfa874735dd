package arqueo

import (
	"testing"

	"novapos/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalcularCuadraCajaExacta(t *testing.T) {
	// Apertura 100, ventas efectivo 250, devoluciones 10 → esperado 340.
	totales := TotalesLedger{
		Ventas:       Montos{Efectivo: d("250.00")},
		Devoluciones: Montos{Efectivo: d("10.00")},
		CantVentas:   5, CantDevoluciones: 1,
	}
	declarado := Montos{Efectivo: d("340.00")}

	res := Calcular(d("100.00"), totales, declarado)

	assert.True(t, res.Esperado.Efectivo.Equal(d("340.00")), "esperado %s", res.Esperado.Efectivo)
	assert.True(t, res.Diferencia.Efectivo.IsZero())
	assert.True(t, res.DiferenciaTotal.IsZero())
}

func TestCalcularFaltanteEfectivo(t *testing.T) {
	totales := TotalesLedger{
		Ventas:       Montos{Efectivo: d("250.00")},
		Devoluciones: Montos{Efectivo: d("10.00")},
	}
	declarado := Montos{Efectivo: d("335.00")}

	res := Calcular(d("100.00"), totales, declarado)

	assert.True(t, res.Diferencia.Efectivo.Equal(d("-5.00")), "diferencia %s", res.Diferencia.Efectivo)
	assert.True(t, res.DiferenciaTotal.Equal(d("-5.00")))
}

func TestCalcularRetirosYRefuerzosSoloTocanEfectivo(t *testing.T) {
	totales := TotalesLedger{
		Ventas:         Montos{Efectivo: d("500.00"), Debito: d("300.00"), Pix: d("120.50")},
		MontoRetiros:   d("200.00"),
		MontoRefuerzos: d("50.00"),
		CantRetiros:    2, CantRefuerzos: 1,
	}
	res := Calcular(d("100.00"), totales, Montos{})

	// efectivo: 100 + 500 - 200 + 50
	assert.True(t, res.Esperado.Efectivo.Equal(d("450.00")))
	// electronic tenders are untouched by drawer movements
	assert.True(t, res.Esperado.Debito.Equal(d("300.00")))
	assert.True(t, res.Esperado.Pix.Equal(d("120.50")))
	assert.True(t, res.Esperado.Credito.IsZero())
}

func TestCalcularDevolucionNoCashResta(t *testing.T) {
	totales := TotalesLedger{
		Ventas:       Montos{Credito: d("1000.00")},
		Devoluciones: Montos{Credito: d("150.00")},
	}
	res := Calcular(decimal.Zero, totales, Montos{Credito: d("850.00")})

	assert.True(t, res.Esperado.Credito.Equal(d("850.00")))
	assert.True(t, res.DiferenciaTotal.IsZero())
}

func TestCalcularDiferenciaTotalEsSumaDePorMetodo(t *testing.T) {
	totales := TotalesLedger{
		Ventas: Montos{Efectivo: d("100.00"), Debito: d("200.00"), Otro: d("33.33")},
	}
	declarado := Montos{Efectivo: d("95.00"), Debito: d("210.00"), Otro: d("33.33")}

	res := Calcular(decimal.Zero, totales, declarado)

	suma := decimal.Zero
	for _, metodo := range model.Metodos {
		suma = suma.Add(res.Diferencia.PorMetodo(metodo))
	}
	assert.True(t, res.DiferenciaTotal.Equal(suma))
	assert.True(t, res.DiferenciaTotal.Equal(d("5.00"))) // -5 + 10 + 0
}

func TestMontosTotalYPorMetodo(t *testing.T) {
	m := Montos{
		Efectivo: d("1.00"), Debito: d("2.00"), Credito: d("3.00"),
		Pix: d("4.00"), Otro: d("5.00"),
	}
	assert.True(t, m.Total().Equal(d("15.00")))
	assert.True(t, m.PorMetodo(model.MetodoPix).Equal(d("4.00")))
	assert.True(t, m.PorMetodo("desconocido").Equal(d("5.00")), "unknown buckets to otro")
}

func TestTieneActividad(t *testing.T) {
	t.Run("venta electronica", func(t *testing.T) {
		tl := TotalesLedger{Ventas: Montos{Debito: d("10.00")}}
		assert.True(t, tl.TieneActividad(model.MetodoDebito))
		assert.False(t, tl.TieneActividad(model.MetodoEfectivo))
	})

	t.Run("solo retiro cuenta como actividad en efectivo", func(t *testing.T) {
		tl := TotalesLedger{MontoRetiros: d("50.00")}
		assert.True(t, tl.TieneActividad(model.MetodoEfectivo))
		assert.False(t, tl.TieneActividad(model.MetodoDebito))
	})

	t.Run("sin movimientos", func(t *testing.T) {
		var tl TotalesLedger
		for _, metodo := range model.Metodos {
			assert.False(t, tl.TieneActividad(metodo))
		}
	})
}
