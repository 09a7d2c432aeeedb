// internal/domain/models/pilitosettings.go
package models

import "time"

// Option group and names for the Pilito sync settings screen.
const (
	PilitoSettingsGroup = "pilito_ps_settings"

	OptionAPIToken       = "pilito_ps_api_token"
	OptionEnableLogging  = "pilito_ps_enable_logging"
	OptionAPIURL         = "pilito_ps_api_url"
	DefaultPilitoAPIURL  = "https://api.pilito.com/"
	CapabilityManageShop = "manage_woocommerce"
)

// OptionRecord is one persisted option value.
// Values are stored in their coerced form (string or bool).
type OptionRecord struct {
	Name      string    `bson:"name" json:"name"`
	Group     string    `bson:"group" json:"group"`
	Value     any       `bson:"value" json:"value"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	UpdatedBy string    `bson:"updated_by,omitempty" json:"updated_by,omitempty"`
}

// PilitoSettings is a typed snapshot of the Pilito option group.
type PilitoSettings struct {
	APIToken       string
	LoggingEnabled bool
	APIURL         string
}

// HasToken reports whether an API token has been saved.
func (s PilitoSettings) HasToken() bool {
	return s.APIToken != ""
}
