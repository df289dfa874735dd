package service

import (
	"testing"
	"time"

	"novapos/internal/apierror"
	"novapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBuildReporteCierreRechazaSesionAbierta(t *testing.T) {
	s := &model.SesionCaja{Estado: model.EstadoAbierta}

	_, err := BuildReporteCierre(s)

	assert.Equal(t, apierror.KindState, apierror.KindOf(err))
}

func TestBuildReporteCierreRechazaCierreIncompleto(t *testing.T) {
	// A cerrada row without its seal can only come from out-of-band edits.
	now := time.Now().UTC()
	cerradaPor := uuid.New()
	s := &model.SesionCaja{
		Estado:       model.EstadoCerrada,
		ClosedAt:     &now,
		CerradaPorID: &cerradaPor,
		MontoInicial: decimal.Zero,
	}

	_, err := BuildReporteCierre(s)

	assert.Equal(t, apierror.KindState, apierror.KindOf(err))
}
