package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

type WebConfig struct {
	Listen string

	// Token ArgoCD presents as a bearer token. Empty disables authentication.
	Token string
}

func NewWebConfig(listen, tokenFile string) (WebConfig, error) {
	self := WebConfig{Listen: listen}

	if tokenFile != "" {
		if v, err := os.ReadFile(tokenFile); err != nil {
			return self, errors.WithMessage(err, "While reading web bearer token file")
		} else {
			self.Token = strings.TrimSpace(string(v))
		}
	}

	return self, nil
}
