package handler

import (
	"net/http"
	"strconv"

	"novapos/internal/apierror"
	"novapos/internal/dto"
	"novapos/internal/middleware"
	"novapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CajaHandler struct {
	svc service.CajaService
	pdf service.ReportePDFRenderer
}

func NewCajaHandler(svc service.CajaService, pdf service.ReportePDFRenderer) *CajaHandler {
	return &CajaHandler{svc: svc, pdf: pdf}
}

// claimIDs extracts the (usuario, comercio) pair from the JWT. A token with
// malformed ids never reaches the services.
func claimIDs(c *gin.Context) (usuarioID, comercioID uuid.UUID, ok bool) {
	claims := middleware.GetClaims(c)
	usuarioID, errU := uuid.Parse(claims.UserID)
	comercioID, errC := uuid.Parse(claims.ComercioID)
	if errU != nil || errC != nil {
		c.JSON(http.StatusUnauthorized, apierror.New(apierror.KindUnauthorized, "Token mal formado"))
		return uuid.Nil, uuid.Nil, false
	}
	return usuarioID, comercioID, true
}

// Abrir godoc
// @Summary Abre una nueva sesion de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.Error
// @Failure 422 {object} apierror.Error
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}

	resp, err := h.svc.Abrir(c.Request.Context(), comercioID, usuarioID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Cerrar godoc
// @Summary Cierra la sesion: arqueo por metodo de pago, sellado e informe
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Param body body dto.CerrarCajaRequest true "Declaracion de cierre"
// @Success 200 {object} dto.SesionCajaResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Failure 422 {object} apierror.Error
// @Failure 503 {object} apierror.Error
// @Router /v1/caja/{id}/cierre [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	sesionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "ID inválido"))
		return
	}
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}

	resp, err := h.svc.Cerrar(c.Request.Context(), comercioID, usuarioID, sesionID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary Lista sesiones de caja del comercio, mas recientes primero
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param punto_de_venta query int false "Filtrar por punto de venta"
// @Param estado query string false "abierta | cerrada"
// @Success 200 {array} dto.SesionCajaResponse
// @Router /v1/caja [get]
func (h *CajaHandler) Listar(c *gin.Context) {
	_, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}

	var f dto.ListarSesionesFiltro
	if v := c.Query("punto_de_venta"); v != "" {
		pdv, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "punto_de_venta inválido"))
			return
		}
		f.PuntoDeVenta = &pdv
	}
	f.Estado = c.Query("estado")
	if f.Estado != "" && f.Estado != "abierta" && f.Estado != "cerrada" {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "estado inválido"))
		return
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			f.Limit = limit
		}
	}

	resp, err := h.svc.ListSesiones(c.Request.Context(), comercioID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Activa returns the open session for a register, if any.
func (h *CajaHandler) Activa(c *gin.Context) {
	_, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}
	pdv, err := strconv.Atoi(c.Query("punto_de_venta"))
	if err != nil || pdv < 1 {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "punto_de_venta requerido"))
		return
	}

	resp, err := h.svc.SesionActiva(c.Request.Context(), comercioID, pdv)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerReporte godoc
// @Summary Obtiene el reporte de cierre de una sesion cerrada
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.ReporteCierreResponse
// @Failure 404 {object} apierror.Error
// @Failure 409 {object} apierror.Error
// @Router /v1/caja/{id}/reporte [get]
func (h *CajaHandler) ObtenerReporte(c *gin.Context) {
	sesionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "ID inválido"))
		return
	}
	_, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}

	resp, err := h.svc.ObtenerReporte(c.Request.Context(), comercioID, sesionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DescargarReportePDF renders the closing report as a PDF for print/archive.
// Same sealed data as the JSON report — rendering only, no recomputation.
func (h *CajaHandler) DescargarReportePDF(c *gin.Context) {
	sesionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(apierror.KindValidation, "ID inválido"))
		return
	}
	_, comercioID, ok := claimIDs(c)
	if !ok {
		return
	}

	reporte, err := h.svc.ObtenerReporte(c.Request.Context(), comercioID, sesionID)
	if err != nil {
		writeError(c, err)
		return
	}
	path, err := h.pdf.RenderReporteCierre(reporte)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New(apierror.KindInternal, "No se pudo generar el PDF"))
		return
	}
	c.FileAttachment(path, "cierre_"+reporte.SesionID+".pdf")
}
