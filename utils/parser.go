package utils

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/walletsession/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateConfig runs struct-tag validation on an already decoded Config
func ValidateConfig(config *types.Config) error {
	if err := validate.Struct(config); err != nil {
		return &types.WalletError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}

// ValidateChainConfig checks a network description before it is offered to a wallet
func ValidateChainConfig(chain *types.ChainConfig) error {
	if err := validate.Struct(chain); err != nil {
		return &types.WalletError{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}
	return nil
}
