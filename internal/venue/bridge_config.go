package venue

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// BridgeConfig contains configuration for the terminal bridge gateway.
type BridgeConfig struct {
	BridgeURL string `json:"bridgeUrl" jsonschema:"title=Bridge URL,description=Base URL of the terminal bridge" validate:"required,url"`
	Login     int64  `json:"login" jsonschema:"title=Login,description=Venue account login" validate:"required,gt=0"`
	Password  string `json:"password" jsonschema:"title=Password,description=Venue account password"`
	TimeoutS  int    `json:"timeout" jsonschema:"title=Timeout,description=Request timeout in seconds,default=30" validate:"gte=0"`
}

// Validate validates the BridgeConfig struct.
func (c *BridgeConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, "invalid bridge gateway config", err)
	}

	return nil
}

// parseBridgeConfig parses a JSON configuration string into a BridgeConfig.
func parseBridgeConfig(jsonConfig string) (*BridgeConfig, error) {
	var config BridgeConfig
	if err := json.Unmarshal([]byte(jsonConfig), &config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, "failed to parse bridge config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
