package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxAccountIDLength   = 128
	MaxCategoryLength    = 64
	MaxSubjectLength     = 64
	MaxWebhookURLLength  = 500
	MaxDestinationLength = 256
	MinSigningSecretLen  = 32
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateAccountID проверяет идентификатор источника начислений.
// Ожидается уже обрезанная строка.
func ValidateAccountID(accountID string) error {
	if err := ValidateNonEmpty("идентификатор аккаунта", accountID); err != nil {
		return err
	}
	if err := ValidateLength("идентификатор аккаунта", accountID, 1, MaxAccountIDLength); err != nil {
		return err
	}
	if strings.IndexFunc(accountID, unicode.IsControl) >= 0 {
		return fmt.Errorf("идентификатор аккаунта содержит управляющие символы")
	}
	return nil
}

// ValidateCategory проверяет категорию записи хранилища.
func ValidateCategory(category string) error {
	if err := ValidateNonEmpty("категория", category); err != nil {
		return err
	}
	return ValidateLength("категория", category, 1, MaxCategoryLength)
}

// ValidateSubject проверяет имя оператора для токена.
func ValidateSubject(subject string) error {
	subject = strings.TrimSpace(subject)
	if err := ValidateNonEmpty("имя оператора", subject); err != nil {
		return err
	}
	if err := ValidateLength("имя оператора", subject, 1, MaxSubjectLength); err != nil {
		return err
	}
	for _, r := range subject {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("имя оператора не должно содержать пробелов")
		}
	}
	return nil
}

// ValidateWebhookURL проверяет адрес внешнего исполнителя выплат.
func ValidateWebhookURL(link string) error {
	link = strings.TrimSpace(link)
	if err := ValidateLength("адрес исполнителя", link, 1, MaxWebhookURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("адрес должен начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("адрес должен содержать доменное имя")
	}
	return nil
}

// ValidateDestination проверяет реквизиты получателя выплаты
// (адрес кошелька, email для карты, номер счёта).
func ValidateDestination(destination string) error {
	if err := ValidateNonEmpty("реквизиты получателя", destination); err != nil {
		return err
	}
	if err := ValidateLength("реквизиты получателя", destination, 1, MaxDestinationLength); err != nil {
		return err
	}
	if strings.IndexFunc(destination, unicode.IsControl) >= 0 {
		return fmt.Errorf("реквизиты получателя содержат управляющие символы")
	}
	return nil
}

// ValidateSigningSecret проверяет секрет подписи токенов.
// Требования:
// - Минимум 32 символа
// - Не из одного повторяющегося символа
func ValidateSigningSecret(secret string) error {
	if len(secret) < MinSigningSecretLen {
		return fmt.Errorf("секрет должен быть не менее %d символов", MinSigningSecretLen)
	}
	if strings.Count(secret, secret[:1]) == len(secret) {
		return fmt.Errorf("секрет не должен состоять из одного символа")
	}
	return nil
}
