package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldWalletID   = "wallet_id"
	FieldWalletName = "wallet_name"
	FieldPage       = "page"
	FieldLimit      = "limit"
	FieldAssetName  = "asset_name"
	FieldCurrency   = "currency"
	FieldFundID     = "fund_id"
	FieldFileName   = "file_name"
	FieldUserID     = "user_id"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentServer  = "server"
	ComponentAPI     = "api"
	ComponentAuth    = "auth"
	ComponentManager = "manager"
	ComponentStore   = "store"
	ComponentShipper = "shipper"
)
