package handler

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/julienschmidt/httprouter"
	"github.com/vfg2006/social-metrics-api/infrastructure/repository"
	"github.com/vfg2006/social-metrics-api/internal/domain"
	"github.com/vfg2006/social-metrics-api/internal/usecases/reporting"
	"github.com/vfg2006/social-metrics-api/pkg/apiErrors"
	"github.com/vfg2006/social-metrics-api/pkg/log"
	"github.com/vfg2006/social-metrics-api/pkg/middleware"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GetAccountReport retorna o relatório agregado de todas as plataformas
// conectadas da conta. Falhas parciais de plataforma não derrubam a
// resposta: os registros degradados e os erros por fonte vêm no corpo
func GetAccountReport(reporter reporting.Reporter, accountRepo repository.AccountRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.ForContext(r.Context())

		accountID := httprouter.ParamsFromContext(r.Context()).ByName("id")
		if accountID == "" {
			apiErrors.WriteError(w, apiErrors.ErrMissingRequiredData, "Identificador da conta não informado", nil)
			return
		}

		userClaims, ok := r.Context().Value(middleware.ContextKeyUser).(*domain.Claims)
		if !ok {
			apiErrors.WriteError(w, apiErrors.ErrInvalidToken, "Credenciais de acesso ausentes", nil)
			return
		}

		if !userClaims.CanReadAccount(accountID) {
			logger.WithField("account_id", accountID).Warn("Acesso negado ao relatório de outra conta")
			apiErrors.WriteError(w, apiErrors.ErrInsufficientPrivilege, "Sem permissão para ler o relatório desta conta", nil)
			return
		}

		account, err := accountRepo.GetAccountByID(r.Context(), accountID)
		if err != nil {
			logger.WithField("account_id", accountID).WithError(err).Error("Erro ao buscar conta para relatório")
			apiErrors.WriteError(w, apiErrors.ErrDatabaseOperation, "Erro ao buscar conta", nil)
			return
		}

		if account == nil {
			apiErrors.WriteError(w, apiErrors.ErrAccountNotFound, "Conta não encontrada", nil)
			return
		}

		report, err := reporter.GetReport(r.Context(), account)
		if err != nil {
			logger.WithField("account_id", accountID).WithError(err).Error("Erro ao agregar relatório da conta")
			apiErrors.WriteError(w, apiErrors.ErrInternalServer, "Erro ao gerar relatório", nil)
			return
		}

		logger.WithFields(log.Fields{
			"account_id":    accountID,
			"sources":       len(report.Records),
			"source_errors": len(report.Errors),
		}).Info("Relatório agregado gerado")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.WithError(err).Error("Erro ao serializar relatório")
		}
	}
}
