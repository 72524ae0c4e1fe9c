package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ignatzorin/earnings-ledger/internal/models"
)

// policyFile формат файла политик:
//
//	accounts:
//	  survey-panel:
//	    threshold: 300
//	    withdrawal_kind: gift_card
type policyFile struct {
	Accounts map[string]models.AccountPolicy `yaml:"accounts"`
}

// LoadPolicies читает YAML с порогами и способами вывода по аккаунтам.
// Незаполненные поля берутся из fallback.
func LoadPolicies(path string, fallback models.AccountPolicy) (map[string]models.AccountPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: не удалось прочитать файл политик %s: %w", path, err)
	}
	return ParsePolicies(raw, fallback)
}

// ParsePolicies разбирает содержимое файла политик.
func ParsePolicies(raw []byte, fallback models.AccountPolicy) (map[string]models.AccountPolicy, error) {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("config: невалидный YAML политик: %w", err)
	}

	policies := make(map[string]models.AccountPolicy, len(file.Accounts))
	for accountID, p := range file.Accounts {
		if p.Threshold == 0 {
			p.Threshold = fallback.Threshold
		}
		if p.WithdrawalKind == "" {
			p.WithdrawalKind = fallback.WithdrawalKind
		}
		if err := validatePolicy(accountID, p); err != nil {
			return nil, err
		}
		policies[accountID] = p
	}
	return policies, nil
}

func validatePolicy(name string, p models.AccountPolicy) error {
	if p.Threshold == 0 {
		return fmt.Errorf("config: порог для %q должен быть положительным", name)
	}
	if p.Threshold > math.MaxInt64 {
		return fmt.Errorf("config: порог для %q больше %d", name, int64(math.MaxInt64))
	}
	if !p.WithdrawalKind.IsValid() {
		return fmt.Errorf("config: неизвестный способ вывода %q для %q", p.WithdrawalKind, name)
	}
	return nil
}
