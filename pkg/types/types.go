package types

// ChainFamily constants
const (
	// ChainFamilyAccount covers account-model chains (EVM-style keccak addresses)
	ChainFamilyAccount = "account"
	// ChainFamilyLedger covers ledger/cell-model chains (base58check addresses)
	ChainFamilyLedger = "ledger"
)

// ShardType constants
const (
	ShardTypeHot      = "hot"      // held by the client, returned once at creation
	ShardTypeSecurity = "security" // held by the custody server
	ShardTypeRecovery = "recovery" // reserved for guardian-assisted recovery
)

// ShardTypes lists every shard type in a complete set
var ShardTypes = []string{ShardTypeHot, ShardTypeSecurity, ShardTypeRecovery}

// PolicyType constants
const (
	PolicyTypeDailyLimit = "daily_limit"
	PolicyTypeWhitelist  = "whitelist"
	PolicyTypeMultiSig   = "multi_sig"
)

// RecoveryStatus constants
const (
	RecoveryStatusPending   = "pending"
	RecoveryStatusApproved  = "approved"
	RecoveryStatusCancelled = "cancelled"
)

// TransactionStatus constants
const (
	TxStatusPending   = "pending"
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)

// SealerProvider constants
const (
	SealerProviderLocal  = "local"
	SealerProviderAWSKMS = "aws-kms"
	SealerProviderVault  = "vault"
)
