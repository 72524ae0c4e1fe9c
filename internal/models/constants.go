package models

// WithdrawalKind способ вывода средств.
type WithdrawalKind string

const (
	WithdrawalKindCrypto       WithdrawalKind = "crypto"
	WithdrawalKindGiftCard     WithdrawalKind = "gift_card"
	WithdrawalKindCashTransfer WithdrawalKind = "cash_transfer"
)

// WithdrawalState состояние заявки на вывод.
type WithdrawalState string

const (
	WithdrawalStateQueued     WithdrawalState = "queued"
	WithdrawalStateProcessing WithdrawalState = "processing"
	WithdrawalStateCompleted  WithdrawalState = "completed"
	WithdrawalStateFailed     WithdrawalState = "failed"
)

// VaultEntryStatus статус записи в хранилище секретов.
type VaultEntryStatus string

const (
	VaultEntryStatusActive   VaultEntryStatus = "active"
	VaultEntryStatusRedeemed VaultEntryStatus = "redeemed"
)

// AuditEventType тип события журнала аудита.
type AuditEventType string

const (
	AuditPointsCredited      AuditEventType = "points_credited"
	AuditAccountConfigured   AuditEventType = "account_configured"
	AuditWithdrawalQueued    AuditEventType = "withdrawal_queued"
	AuditWithdrawalStarted   AuditEventType = "withdrawal_started"
	AuditWithdrawalCompleted AuditEventType = "withdrawal_completed"
	AuditWithdrawalFailed    AuditEventType = "withdrawal_failed"
	AuditWithdrawalRecovered AuditEventType = "withdrawal_recovered"
	AuditVaultEntryStored    AuditEventType = "vault_entry_stored"
	AuditVaultEntryRedeemed  AuditEventType = "vault_entry_redeemed"
)

// ValidWithdrawalKinds список допустимых способов вывода
var ValidWithdrawalKinds = map[WithdrawalKind]struct{}{
	WithdrawalKindCrypto:       {},
	WithdrawalKindGiftCard:     {},
	WithdrawalKindCashTransfer: {},
}

// ValidWithdrawalStates список допустимых состояний заявки
var ValidWithdrawalStates = map[WithdrawalState]struct{}{
	WithdrawalStateQueued:     {},
	WithdrawalStateProcessing: {},
	WithdrawalStateCompleted:  {},
	WithdrawalStateFailed:     {},
}

// ValidVaultEntryStatuses список допустимых статусов записей хранилища
var ValidVaultEntryStatuses = map[VaultEntryStatus]struct{}{
	VaultEntryStatusActive:   {},
	VaultEntryStatusRedeemed: {},
}

// ValidAuditEventTypes список известных событий журнала
var ValidAuditEventTypes = map[AuditEventType]struct{}{
	AuditPointsCredited:      {},
	AuditAccountConfigured:   {},
	AuditWithdrawalQueued:    {},
	AuditWithdrawalStarted:   {},
	AuditWithdrawalCompleted: {},
	AuditWithdrawalFailed:    {},
	AuditWithdrawalRecovered: {},
	AuditVaultEntryStored:    {},
	AuditVaultEntryRedeemed:  {},
}

// IsValid проверяет, что способ вывода известен.
func (k WithdrawalKind) IsValid() bool {
	_, ok := ValidWithdrawalKinds[k]
	return ok
}

// IsValid проверяет, что состояние известно.
func (s WithdrawalState) IsValid() bool {
	_, ok := ValidWithdrawalStates[s]
	return ok
}

// IsTerminal сообщает, что заявка больше не изменится.
func (s WithdrawalState) IsTerminal() bool {
	return s == WithdrawalStateCompleted || s == WithdrawalStateFailed
}

// IsValid проверяет, что статус известен.
func (s VaultEntryStatus) IsValid() bool {
	_, ok := ValidVaultEntryStatuses[s]
	return ok
}

// IsValid проверяет, что тип события известен.
func (t AuditEventType) IsValid() bool {
	_, ok := ValidAuditEventTypes[t]
	return ok
}
