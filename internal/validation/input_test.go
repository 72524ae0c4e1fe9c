package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAccountID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{name: "plain", value: "survey-panel"},
		{name: "unicode", value: "опросы"},
		{name: "empty", value: "", wantErr: true},
		{name: "spaces only", value: "   ", wantErr: true},
		{name: "too long", value: strings.Repeat("a", MaxAccountIDLength+1), wantErr: true},
		{name: "max length", value: strings.Repeat("я", MaxAccountIDLength)},
		{name: "control char", value: "acc\n1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccountID(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	assert.NoError(t, ValidateCategory("amazon"))
	assert.Error(t, ValidateCategory(""))
	assert.Error(t, ValidateCategory(strings.Repeat("c", MaxCategoryLength+1)))
}

func TestValidateSubject(t *testing.T) {
	assert.NoError(t, ValidateSubject("olga"))
	assert.Error(t, ValidateSubject(""))
	assert.Error(t, ValidateSubject("two words"))
}

func TestValidateWebhookURL(t *testing.T) {
	assert.NoError(t, ValidateWebhookURL("https://payouts.example.com/hook"))
	assert.NoError(t, ValidateWebhookURL("http://localhost:9000/gift"))
	assert.Error(t, ValidateWebhookURL("ftp://example.com"))
	assert.Error(t, ValidateWebhookURL("https://"))
	assert.Error(t, ValidateWebhookURL(""))
}

func TestValidateDestination(t *testing.T) {
	assert.NoError(t, ValidateDestination("bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"))
	assert.NoError(t, ValidateDestination("payouts@example.com"))
	assert.Error(t, ValidateDestination("  "))
	assert.Error(t, ValidateDestination("addr\x00"))
	assert.Error(t, ValidateDestination(strings.Repeat("d", MaxDestinationLength+1)))
}

func TestValidateSigningSecret(t *testing.T) {
	assert.NoError(t, ValidateSigningSecret("0123456789abcdef0123456789abcdef"))
	assert.Error(t, ValidateSigningSecret("short"))
	assert.Error(t, ValidateSigningSecret(strings.Repeat("x", 40)))
}
