package config

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", ":memory:")
	t.Setenv("ACCOUNT_POLICY_FILE", "")
	t.Setenv("DEFAULT_WITHDRAWAL_KIND", string(models.WithdrawalKindCrypto))
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    uint64
		wantErr bool
	}{
		{name: "plain", value: "1000", want: 1000},
		{name: "max bigint", value: strconv.FormatInt(math.MaxInt64, 10), want: math.MaxInt64},
		{name: "negative", value: "-1", wantErr: true},
		{name: "zero", value: "0", wantErr: true},
		{name: "above bigint", value: "9223372036854775808", wantErr: true},
		{name: "garbage", value: "ten", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseThreshold(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_RejectsNegativeDefaultThreshold(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEFAULT_THRESHOLD", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_THRESHOLD")
}

func TestLoad_ExecutorDestinations(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DEFAULT_THRESHOLD", "500")
	t.Setenv("EXECUTOR_DESTINATION_CRYPTO", "  bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh ")
	t.Setenv("EXECUTOR_DESTINATION_GIFT_CARD", "")
	t.Setenv("EXECUTOR_DESTINATION_CASH_TRANSFER", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, uint64(500), cfg.DefaultPolicy.Threshold)
	assert.Equal(t, map[models.WithdrawalKind]string{
		models.WithdrawalKindCrypto: "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh",
	}, cfg.ExecutorDestinations)

	t.Setenv("EXECUTOR_DESTINATION_GIFT_CARD", "bad\x01dest")
	_, err = Load()
	assert.Error(t, err)
}
