package utils

// CtxKey is the key type for request-scoped context values
type CtxKey string

const (
	RequestIDKey  CtxKey = "request_id"
	UserAgentKey  CtxKey = "user_agent"
	IPAddressKey  CtxKey = "ip_address"
	EndpointKey   CtxKey = "endpoint"
	CancelFuncKey CtxKey = "cancel_func"
)
