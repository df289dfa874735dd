//go:build integration

package e2e

// e2e_test.go
// End-to-end integration tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./tests/e2e/... -v
//
// These tests:
//   T-E2E-1: Full session cycle (login → abrir → ledger activity → cerrar → reporte)
//   T-E2E-2: Duplicate apertura loses against the partial unique index
//   T-E2E-3: Double cierre: second closer gets 409
//   T-E2E-4: Active tender without declaration is rejected with 422
//   T-E2E-5: Seal survives a round-trip through Postgres and detects edits
//   T-E2E-6: Health reports connectivity and the cierre DLQ depth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"novapos/internal/arqueo"
	"novapos/internal/config"
	"novapos/internal/infra"
	"novapos/internal/model"
	"novapos/internal/router"
	"novapos/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body *bytes.Buffer, token string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, srv.URL+path, body)
	} else {
		req, err = http.NewRequest(method, srv.URL+path, nil)
	}
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server     *httptest.Server
	db         *gorm.DB
	token      string // cajero JWT
	comercioID uuid.UUID
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("novapos_test"),
		tcPostgres.WithUsername("novapos"),
		tcPostgres.WithPassword("novapos"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:                    8000,
		Env:                     "test",
		JWTSecret:               "test-secret-key",
		JWTExpirationHours:      8,
		JWTRefreshHours:         24,
		DatabaseURL:             pgURL,
		RedisURL:                rdURL,
		WorkerPoolSize:          1,
		CierreMotivoObligatorio: true,
		PDFStoragePath:          t.TempDir(),
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	// Seed one cajero for the test comercio.
	comercioID := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("secreto-e2e"), 4)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
		INSERT INTO usuarios (id, comercio_id, username, nombre, password_hash, rol, activo, created_at, updated_at)
		VALUES (gen_random_uuid(), ?, 'cajero@e2e.test', 'Cajero E2E', ?, 'cajero', true, NOW(), NOW())`,
		comercioID, string(hash)).Error)

	r := router.New(cfg, db, rdb)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	loginResp := do(t, srv, "POST", "/v1/auth/login",
		jsonBody(t, map[string]string{"username": "cajero@e2e.test", "password": "secreto-e2e"}),
		"",
	)
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var loginBody struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &loginBody)
	require.NotEmpty(t, loginBody.AccessToken)

	return &testEnv{
		server:     srv,
		db:         db,
		token:      loginBody.AccessToken,
		comercioID: comercioID,
	}
}

// seedMovimiento inserts one ledger row for the test comercio.
func (env *testEnv) seedMovimiento(t *testing.T, pdv int, tipo string, metodo *string, monto string) {
	t.Helper()
	require.NoError(t, env.db.Exec(`
		INSERT INTO movimientos_ledger (id, comercio_id, punto_de_venta, tipo, metodo_pago, monto, referencia_id, created_at)
		VALUES (gen_random_uuid(), ?, ?, ?, ?, ?, gen_random_uuid(), NOW())`,
		env.comercioID, pdv, tipo, metodo, monto).Error)
}

func ptr(s string) *string { return &s }

type sesionBody struct {
	ID              string            `json:"id"`
	Estado          string            `json:"estado"`
	DiferenciaTotal *string           `json:"diferencia_total"`
	Esperado        map[string]string `json:"esperado"`
	HashSeguridad   *string           `json:"hash_seguridad"`
}

// ── Tests ────────────────────────────────────────────────────────────────────

// T-E2E-1: Full session cycle
func TestE2E_CicloCompletoDeSesion(t *testing.T) {
	env := setupTestEnv(t)

	// 1. Abrir caja with 100.00
	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 1, "monto_inicial": "100.00"}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion sesionBody
	decodeJSON(t, abrirResp, &sesion)
	require.NotEmpty(t, sesion.ID)

	// 2. Ledger activity during the session
	env.seedMovimiento(t, 1, model.LedgerVenta, ptr("efectivo"), "250.00")
	env.seedMovimiento(t, 1, model.LedgerDevolucion, ptr("efectivo"), "10.00")
	env.seedMovimiento(t, 1, model.LedgerVenta, ptr("debito"), "120.00")
	env.seedMovimiento(t, 1, model.LedgerRetiro, nil, "50.00")

	// 3. The register shows as active
	activaResp := do(t, env.server, "GET", "/v1/caja/activa?punto_de_venta=1", nil, env.token)
	require.Equal(t, http.StatusOK, activaResp.StatusCode)
	activaResp.Body.Close()

	// 4. Cerrar: expected efectivo = 100 + 250 - 10 - 50 = 290, debito = 120
	cerrarResp := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID),
		jsonBody(t, map[string]any{
			"declaracion": map[string]string{"efectivo": "290.00", "debito": "120.00"},
		}),
		env.token,
	)
	require.Equal(t, http.StatusOK, cerrarResp.StatusCode)
	var cerrada sesionBody
	decodeJSON(t, cerrarResp, &cerrada)
	assert.Equal(t, "cerrada", cerrada.Estado)
	require.NotNil(t, cerrada.DiferenciaTotal)
	assert.Equal(t, "0", *cerrada.DiferenciaTotal)
	assert.Equal(t, "290", cerrada.Esperado["efectivo"])
	require.NotNil(t, cerrada.HashSeguridad)
	assert.Len(t, *cerrada.HashSeguridad, 64)

	// 5. Closing report matches the sealed row
	repResp := do(t, env.server, "GET", fmt.Sprintf("/v1/caja/%s/reporte", sesion.ID), nil, env.token)
	require.Equal(t, http.StatusOK, repResp.StatusCode)
	var reporte struct {
		HashSeguridad   string `json:"hash_seguridad"`
		EsperadoTotal   string `json:"esperado_total"`
		DiferenciaTotal string `json:"diferencia_total"`
		Totales         struct {
			Ventas  int `json:"ventas"`
			Retiros int `json:"retiros"`
		} `json:"totales"`
	}
	decodeJSON(t, repResp, &reporte)
	assert.Equal(t, *cerrada.HashSeguridad, reporte.HashSeguridad)
	assert.Equal(t, "410", reporte.EsperadoTotal)
	assert.Equal(t, 2, reporte.Totales.Ventas)
	assert.Equal(t, 1, reporte.Totales.Retiros)
}

// T-E2E-6: Health reports connectivity and an empty cierre DLQ
func TestE2E_Health(t *testing.T) {
	env := setupTestEnv(t)

	resp := do(t, env.server, "GET", "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var salud struct {
		OK        bool   `json:"ok"`
		DB        string `json:"db"`
		Redis     string `json:"redis"`
		DLQCierre int64  `json:"dlq_cierre"`
	}
	decodeJSON(t, resp, &salud)
	assert.True(t, salud.OK)
	assert.Equal(t, "connected", salud.DB)
	assert.Equal(t, "connected", salud.Redis)
	assert.Equal(t, int64(0), salud.DLQCierre)
}

// T-E2E-2: Duplicate apertura loses against the partial unique index
func TestE2E_AperturaDuplicada(t *testing.T) {
	env := setupTestEnv(t)

	first := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 2, "monto_inicial": "0.00"}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, first.StatusCode)
	first.Body.Close()

	second := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 2, "monto_inicial": "0.00"}),
		env.token,
	)
	assert.Equal(t, http.StatusConflict, second.StatusCode)
	second.Body.Close()

	// A different register is unaffected.
	otro := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 3, "monto_inicial": "0.00"}),
		env.token,
	)
	assert.Equal(t, http.StatusCreated, otro.StatusCode)
	otro.Body.Close()
}

// T-E2E-3: Double cierre — second closer gets 409
func TestE2E_DobleCierre(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 1, "monto_inicial": "50.00"}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion sesionBody
	decodeJSON(t, abrirResp, &sesion)

	body := map[string]any{"declaracion": map[string]string{"efectivo": "50.00"}}
	primero := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID), jsonBody(t, body), env.token)
	require.Equal(t, http.StatusOK, primero.StatusCode)
	primero.Body.Close()

	segundo := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID), jsonBody(t, body), env.token)
	assert.Equal(t, http.StatusConflict, segundo.StatusCode)
	segundo.Body.Close()
}

// T-E2E-4: Active tender without declaration is rejected
func TestE2E_MetodoActivoSinDeclarar(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 1, "monto_inicial": "0.00"}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion sesionBody
	decodeJSON(t, abrirResp, &sesion)

	env.seedMovimiento(t, 1, model.LedgerVenta, ptr("pix"), "75.00")

	resp := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID),
		jsonBody(t, map[string]any{"declaracion": map[string]string{"efectivo": "0.00"}}),
		env.token,
	)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var cuerpo struct {
		Fields map[string]string `json:"fields"`
	}
	decodeJSON(t, resp, &cuerpo)
	assert.Contains(t, cuerpo.Fields, "declaracion.pix")

	// Still closeable once declared.
	ok := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID),
		jsonBody(t, map[string]any{
			"declaracion": map[string]string{"efectivo": "0.00", "pix": "75.00"},
		}),
		env.token,
	)
	assert.Equal(t, http.StatusOK, ok.StatusCode)
	ok.Body.Close()
}

// T-E2E-5: Seal round-trips through Postgres and detects edits
func TestE2E_SelloDetectaAlteracion(t *testing.T) {
	env := setupTestEnv(t)

	abrirResp := do(t, env.server, "POST", "/v1/caja/abrir",
		jsonBody(t, map[string]any{"punto_de_venta": 1, "monto_inicial": "100.00"}),
		env.token,
	)
	require.Equal(t, http.StatusCreated, abrirResp.StatusCode)
	var sesion sesionBody
	decodeJSON(t, abrirResp, &sesion)

	env.seedMovimiento(t, 1, model.LedgerVenta, ptr("efectivo"), "200.00")

	cerrarResp := do(t, env.server, "POST", fmt.Sprintf("/v1/caja/%s/cierre", sesion.ID),
		jsonBody(t, map[string]any{
			"declaracion":       map[string]string{"efectivo": "295.00"},
			"motivo_diferencia": "faltante de cambio",
		}),
		env.token,
	)
	require.Equal(t, http.StatusOK, cerrarResp.StatusCode)
	cerrarResp.Body.Close()

	// Recompute the seal from the persisted row, the way the audit tool does.
	var fila model.SesionCaja
	require.NoError(t, env.db.First(&fila, "id = ?", sesion.ID).Error)
	require.NotNil(t, fila.HashSeguridad)
	assert.Equal(t, *fila.HashSeguridad, arqueo.Sellar(service.SnapshotDeSesion(&fila)))

	// Tamper with the stored declaration directly in SQL.
	require.NoError(t, env.db.Exec(
		`UPDATE sesiones_caja SET declarado_efectivo = '300.00' WHERE id = ?`, sesion.ID).Error)
	require.NoError(t, env.db.First(&fila, "id = ?", sesion.ID).Error)
	assert.NotEqual(t, *fila.HashSeguridad, arqueo.Sellar(service.SnapshotDeSesion(&fila)))
}
