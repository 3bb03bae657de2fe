package config

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrSettingsNotFound is returned by storages that hold no record for a store.
var ErrSettingsNotFound = errors.New("settings not found")

// Credentials is the credential set of one provider environment.
type Credentials struct {
	AccountID    string `json:"account_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

// Settings is the provider configuration of one store.
type Settings struct {
	StoreID                 int64           `json:"store_id"`
	IsSandbox               bool            `json:"is_sandbox"`
	Sandbox                 Credentials     `json:"sandbox"`
	Production              Credentials     `json:"production"`
	AccessToken             string          `json:"access_token"`
	InstanceURL             string          `json:"instance_url"`
	AdditionalFee           decimal.Decimal `json:"additional_fee"`
	AdditionalFeePercentage bool            `json:"additional_fee_percentage"`
	LogIpnErrors            bool            `json:"log_ipn_errors"`
	RefundIncludesAmount    bool            `json:"refund_includes_amount"`
}

// DefaultSettings returns the settings a store starts with.
func DefaultSettings(storeID int64) Settings {
	return Settings{
		StoreID:              storeID,
		IsSandbox:            true,
		RefundIncludesAmount: true,
	}
}

// ActiveCredentials returns the credentials selected by IsSandbox.
func (s Settings) ActiveCredentials() Credentials {
	if s.IsSandbox {
		return s.Sandbox
	}
	return s.Production
}

// Environment names the active environment.
func (s Settings) Environment() string {
	if s.IsSandbox {
		return "sandbox"
	}
	return "production"
}

// WithSession returns a copy holding the given access token and instance URL.
func (s Settings) WithSession(accessToken, instanceURL string) Settings {
	s.AccessToken = accessToken
	s.InstanceURL = instanceURL
	return s
}

// SettingsRepository loads and persists per-store settings.
// Save and Delete invalidate any cached copy; Invalidate drops it explicitly.
type SettingsRepository interface {
	Load(ctx context.Context, storeID int64) (Settings, error)
	Save(ctx context.Context, settings Settings) error
	Delete(ctx context.Context, storeID int64) error
	Invalidate(ctx context.Context, storeID int64) error
}
