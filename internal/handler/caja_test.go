package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"novapos/internal/apierror"
	"novapos/internal/dto"
	"novapos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubCajaService returns canned results so the tests exercise only the HTTP
// edge: binding, claims parsing and the error-to-status mapping.
type stubCajaService struct {
	abrirErr   error
	cerrarErr  error
	reporteErr error
}

func (s *stubCajaService) Abrir(_ context.Context, _, _ uuid.UUID, _ dto.AbrirCajaRequest) (*dto.SesionCajaResponse, error) {
	if s.abrirErr != nil {
		return nil, s.abrirErr
	}
	return &dto.SesionCajaResponse{ID: uuid.NewString(), Estado: "abierta"}, nil
}

func (s *stubCajaService) Cerrar(_ context.Context, _, _, _ uuid.UUID, _ dto.CerrarCajaRequest) (*dto.SesionCajaResponse, error) {
	if s.cerrarErr != nil {
		return nil, s.cerrarErr
	}
	return &dto.SesionCajaResponse{Estado: "cerrada"}, nil
}

func (s *stubCajaService) ListSesiones(_ context.Context, _ uuid.UUID, _ dto.ListarSesionesFiltro) ([]dto.SesionCajaResponse, error) {
	return []dto.SesionCajaResponse{}, nil
}

func (s *stubCajaService) SesionActiva(_ context.Context, _ uuid.UUID, _ int) (*dto.SesionCajaResponse, error) {
	return &dto.SesionCajaResponse{Estado: "abierta"}, nil
}

func (s *stubCajaService) ObtenerReporte(_ context.Context, _, _ uuid.UUID) (*dto.ReporteCierreResponse, error) {
	if s.reporteErr != nil {
		return nil, s.reporteErr
	}
	return &dto.ReporteCierreResponse{HashSeguridad: "abc"}, nil
}

func testClaims() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &middleware.JWTClaims{
			UserID:     uuid.NewString(),
			ComercioID: uuid.NewString(),
			Rol:        "cajero",
		})
	}
}

func setupCajaRouter(svc *stubCajaService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCajaHandler(svc, nil)
	r := gin.New()
	r.Use(testClaims())
	r.POST("/v1/caja/abrir", h.Abrir)
	r.POST("/v1/caja/:id/cierre", h.Cerrar)
	r.GET("/v1/caja/:id/reporte", h.ObtenerReporte)
	r.GET("/v1/caja", h.Listar)
	r.GET("/v1/caja/activa", h.Activa)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAbrirDevuelve201(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodPost, "/v1/caja/abrir", dto.AbrirCajaRequest{
		PuntoDeVenta: 1,
		MontoInicial: decimal.RequireFromString("100.00"),
	})

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAbrirJSONInvalido(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	req := httptest.NewRequest(http.MethodPost, "/v1/caja/abrir", bytes.NewBufferString("{no es json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAbrirSinPuntoDeVenta(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodPost, "/v1/caja/abrir", gin.H{"monto_inicial": "100.00"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMapeoDeErroresAStatus(t *testing.T) {
	sesionID := uuid.NewString()
	declaracion := gin.H{"declaracion": gin.H{"efectivo": "10.00"}}

	casos := []struct {
		nombre string
		err    error
		status int
	}{
		{"conflict", apierror.Conflict("caja ya abierta"), http.StatusConflict},
		{"state", apierror.State("ya cerrada"), http.StatusConflict},
		{"not_found", apierror.NotFound("no existe"), http.StatusNotFound},
		{"validation", apierror.ValidationField("motivo_diferencia", "required_when_diferencia"), http.StatusUnprocessableEntity},
		{"dependency", apierror.Dependency("ledger caido", nil), http.StatusServiceUnavailable},
	}
	for _, tc := range casos {
		t.Run(tc.nombre, func(t *testing.T) {
			r := setupCajaRouter(&stubCajaService{cerrarErr: tc.err})
			w := doJSON(t, r, http.MethodPost, "/v1/caja/"+sesionID+"/cierre", declaracion)
			assert.Equal(t, tc.status, w.Code)

			var body apierror.Error
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, apierror.KindOf(tc.err), body.Kind)
		})
	}
}

func TestCerrarIDMalformado(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodPost, "/v1/caja/not-a-uuid/cierre", gin.H{
		"declaracion": gin.H{},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCerrarDeclaracionNegativa(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodPost, "/v1/caja/"+uuid.NewString()+"/cierre", gin.H{
		"declaracion": gin.H{"efectivo": "-5.00"},
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestReporteDeSesionAbiertaEs409(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{
		reporteErr: apierror.State("La sesión aún está abierta, no hay reporte de cierre"),
	})

	w := doJSON(t, r, http.MethodGet, "/v1/caja/"+uuid.NewString()+"/reporte", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestActivaRequierePuntoDeVenta(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodGet, "/v1/caja/activa", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListarEstadoInvalido(t *testing.T) {
	r := setupCajaRouter(&stubCajaService{})

	w := doJSON(t, r, http.MethodGet, "/v1/caja?estado=pendiente", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
