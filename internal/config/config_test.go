package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
origin: https://shop.example.com
checkoutApiBaseUrl: https://api.example.com
pricingApiBaseUrl: https://pricing.example.com
callbackUrl: https://shop.example.com/payments/callback
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 5, cfg.RateLimit.Ceiling)
	assert.Equal(t, 3, cfg.RateLimit.WarnAt)
	assert.Equal(t, 15*time.Minute, cfg.Window())
	assert.Equal(t, 5*time.Minute, cfg.CallbackTimeout())
	assert.Equal(t, 400*time.Millisecond, cfg.Debounce())
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
listen: ":9090"
redisUrl: redis://localhost:6379/0
rateLimit:
  ceiling: 4
  warnAt: 2
  windowMinutes: 10
callbackTimeoutSeconds: 120
debounceMillis: 250
gateways:
  - id: cardpay
    strategy: redirect
  - id: transferpay
    strategy: popup
  - id: walletconnect
    strategy: wallet
policyRules:
  - id: repeated-declines
    expression: "code == 'CARD_DECLINED' && attempt_count >= 3"
    priority: 1
    requireNewMethod: true
    escalateSupport: true
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, 4, cfg.RateLimit.Ceiling)
	assert.Equal(t, 10*time.Minute, cfg.Window())
	assert.Equal(t, 2*time.Minute, cfg.CallbackTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce())
	require.Len(t, cfg.Gateways, 3)
	assert.Equal(t, "wallet", cfg.Gateways[2].Strategy)
	require.Len(t, cfg.PolicyRules, 1)
	assert.True(t, cfg.PolicyRules[0].EscalateSupport)
}

func TestLoad_ListenEnvOverride(t *testing.T) {
	t.Setenv("CHECKOUT_LISTEN", ":7070")
	cfg, err := Load(writeConfig(t, minimalConfig+"listen: \":9090\"\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen)
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"missing origin": `
checkoutApiBaseUrl: https://api.example.com
pricingApiBaseUrl: https://pricing.example.com
`,
		"missing checkout api": `
origin: https://shop.example.com
pricingApiBaseUrl: https://pricing.example.com
`,
		"warnAt above ceiling": minimalConfig + `
rateLimit:
  ceiling: 2
  warnAt: 4
`,
		"unknown gateway strategy": minimalConfig + `
gateways:
  - id: cardpay
    strategy: iframe
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "origin: [unclosed"))
	assert.Error(t, err)
}
