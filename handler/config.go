package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/mstgnz/hummpay/infra/config"
	"github.com/mstgnz/hummpay/infra/logger"
	"github.com/mstgnz/hummpay/infra/response"
	"github.com/mstgnz/hummpay/provider/humm"
	"github.com/shopspring/decimal"
)

// secretMask replaces secrets in responses. Sending it back keeps the stored value.
const secretMask = "********"

// SettingsFactory builds services and exposes the settings repository.
type SettingsFactory interface {
	ForSettings(settings config.Settings) *humm.Service
	Settings() config.SettingsRepository
}

var _ SettingsFactory = (*humm.Factory)(nil)

// ConfigHandler serves the per-store Humm configuration page.
type ConfigHandler struct {
	factory  SettingsFactory
	validate *validator.Validate
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(factory SettingsFactory, validate *validator.Validate) *ConfigHandler {
	return &ConfigHandler{factory: factory, validate: validate}
}

// ConfigurationModel is the admin view of the store settings.
// Credentials of the selected environment are required.
type ConfigurationModel struct {
	UseSandbox              bool            `json:"use_sandbox"`
	SandboxAccountID        string          `json:"sandbox_account_id" validate:"required_if=UseSandbox true"`
	SandboxClientID         string          `json:"sandbox_client_id" validate:"required_if=UseSandbox true"`
	SandboxClientSecret     string          `json:"sandbox_client_secret" validate:"required_if=UseSandbox true"`
	SandboxRefreshToken     string          `json:"sandbox_refresh_token" validate:"required_if=UseSandbox true"`
	ProductionAccountID     string          `json:"production_account_id" validate:"required_if=UseSandbox false"`
	ProductionClientID      string          `json:"production_client_id" validate:"required_if=UseSandbox false"`
	ProductionClientSecret  string          `json:"production_client_secret" validate:"required_if=UseSandbox false"`
	ProductionRefreshToken  string          `json:"production_refresh_token" validate:"required_if=UseSandbox false"`
	AdditionalFee           decimal.Decimal `json:"additional_fee"`
	AdditionalFeePercentage bool            `json:"additional_fee_percentage"`
	LogIpnErrors            bool            `json:"log_ipn_errors"`
	RefundIncludesAmount    *bool           `json:"refund_includes_amount,omitempty"`
	Configured              bool            `json:"configured"`
	InstanceURL             string          `json:"instance_url,omitempty"`
}

func modelFromSettings(s config.Settings, configured bool) ConfigurationModel {
	refundIncludesAmount := s.RefundIncludesAmount
	return ConfigurationModel{
		UseSandbox:              s.IsSandbox,
		SandboxAccountID:        s.Sandbox.AccountID,
		SandboxClientID:         s.Sandbox.ClientID,
		SandboxClientSecret:     mask(s.Sandbox.ClientSecret),
		SandboxRefreshToken:     mask(s.Sandbox.RefreshToken),
		ProductionAccountID:     s.Production.AccountID,
		ProductionClientID:      s.Production.ClientID,
		ProductionClientSecret:  mask(s.Production.ClientSecret),
		ProductionRefreshToken:  mask(s.Production.RefreshToken),
		AdditionalFee:           s.AdditionalFee,
		AdditionalFeePercentage: s.AdditionalFeePercentage,
		LogIpnErrors:            s.LogIpnErrors,
		RefundIncludesAmount:    &refundIncludesAmount,
		Configured:              configured,
		InstanceURL:             s.InstanceURL,
	}
}

// unmasked replaces masked secrets with the stored ones.
func (m ConfigurationModel) unmasked(current config.Settings) ConfigurationModel {
	m.SandboxClientSecret = unmask(m.SandboxClientSecret, current.Sandbox.ClientSecret)
	m.SandboxRefreshToken = unmask(m.SandboxRefreshToken, current.Sandbox.RefreshToken)
	m.ProductionClientSecret = unmask(m.ProductionClientSecret, current.Production.ClientSecret)
	m.ProductionRefreshToken = unmask(m.ProductionRefreshToken, current.Production.RefreshToken)
	return m
}

// apply copies an unmasked model onto current.
func (m ConfigurationModel) apply(current config.Settings) config.Settings {
	next := current
	next.IsSandbox = m.UseSandbox
	next.Sandbox = config.Credentials{
		AccountID:    m.SandboxAccountID,
		ClientID:     m.SandboxClientID,
		ClientSecret: m.SandboxClientSecret,
		RefreshToken: m.SandboxRefreshToken,
	}
	next.Production = config.Credentials{
		AccountID:    m.ProductionAccountID,
		ClientID:     m.ProductionClientID,
		ClientSecret: m.ProductionClientSecret,
		RefreshToken: m.ProductionRefreshToken,
	}
	next.AdditionalFee = m.AdditionalFee
	next.AdditionalFeePercentage = m.AdditionalFeePercentage
	next.LogIpnErrors = m.LogIpnErrors
	if m.RefundIncludesAmount != nil {
		next.RefundIncludesAmount = *m.RefundIncludesAmount
	}
	return next
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return secretMask
}

func unmask(given, stored string) string {
	if given == secretMask {
		return stored
	}
	return given
}

// GetSettings handles GET /admin/stores/{storeID}/humm/settings.
func (h *ConfigHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid store id", err)
		return
	}

	settings, err := h.factory.Settings().Load(r.Context(), storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	configured := h.factory.ForSettings(settings).IsConfigured()
	response.Success(w, http.StatusOK, "Settings loaded", modelFromSettings(settings, configured))
}

// UpdateSettings handles PUT /admin/stores/{storeID}/humm/settings. A new
// session is requested with the submitted credentials; nothing is saved when that fails.
func (h *ConfigHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid store id", err)
		return
	}

	var model ConfigurationModel
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	repo := h.factory.Settings()
	current, err := repo.Load(r.Context(), storeID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}

	model = model.unmasked(current)
	if errs := h.validationErrors(model); len(errs) > 0 {
		response.Errors(w, http.StatusUnprocessableEntity, "Validation failed", errs)
		return
	}

	next := model.apply(current)
	result := h.factory.ForSettings(current).GetPrerequisites(r.Context(), next)
	if !result.Success {
		logger.WithStore(storeID, humm.SystemName).Warn("Settings rejected by the provider")
		response.Errors(w, http.StatusUnprocessableEntity, "Could not obtain an access token", result.Errors)
		return
	}

	next = next.WithSession(result.AccessToken, result.InstanceURL)
	if err := repo.Save(r.Context(), next); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	logger.WithStore(storeID, humm.SystemName).Info("Settings updated")
	response.Success(w, http.StatusOK, "Settings saved", modelFromSettings(next, true))
}

// DeleteSettings handles DELETE /admin/stores/{storeID}/humm/settings. The
// store falls back to the defaults and stops offering the payment method.
func (h *ConfigHandler) DeleteSettings(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid store id", err)
		return
	}

	if err := h.factory.Settings().Delete(r.Context(), storeID); err != nil {
		response.Error(w, http.StatusInternalServerError, "Failed to delete settings", err)
		return
	}

	logger.WithStore(storeID, humm.SystemName).Info("Settings deleted")
	response.Success(w, http.StatusOK, "Settings deleted", modelFromSettings(config.DefaultSettings(storeID), false))
}

func (h *ConfigHandler) validationErrors(model ConfigurationModel) []string {
	err := h.validate.Struct(model)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	errs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fmt.Sprintf("The field '%s' is required.", fe.Field()))
	}
	return errs
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}
