package domain

// ErrorType is the classification label assigned to a failed remote call.
type ErrorType string

const (
	ErrorTypeDNS           ErrorType = "dns"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeRefused       ErrorType = "refused"
	ErrorTypeReset         ErrorType = "reset"
	ErrorTypeUnreachable   ErrorType = "unreachable"
	ErrorTypeRateLimit     ErrorType = "rate-limit"
	ErrorTypeAbuseDetected ErrorType = "abuse-detected"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// AllErrorTypes lists every label in classification priority order.
var AllErrorTypes = []ErrorType{
	ErrorTypeDNS,
	ErrorTypeTimeout,
	ErrorTypeRefused,
	ErrorTypeReset,
	ErrorTypeUnreachable,
	ErrorTypeRateLimit,
	ErrorTypeAbuseDetected,
	ErrorTypeUnknown,
}

// FaultCategory groups error types by how the access layer reacts to them.
type FaultCategory string

const (
	CategoryTransientNetwork FaultCategory = "transient_network"
	CategoryPermanentNetwork FaultCategory = "permanent_network"
	CategoryQuotaExceeded    FaultCategory = "quota_exceeded"
	CategoryAbuseDetected    FaultCategory = "abuse_detected"
	CategoryUnclassified     FaultCategory = "unclassified"
)

// Category returns the handling category for the error type.
func (t ErrorType) Category() FaultCategory {
	switch t {
	case ErrorTypeDNS, ErrorTypeTimeout, ErrorTypeReset, ErrorTypeUnreachable:
		return CategoryTransientNetwork
	case ErrorTypeRefused:
		return CategoryPermanentNetwork
	case ErrorTypeRateLimit:
		return CategoryQuotaExceeded
	case ErrorTypeAbuseDetected:
		return CategoryAbuseDetected
	default:
		return CategoryUnclassified
	}
}

// IsNetwork reports whether the type is a connection-level fault.
func (t ErrorType) IsNetwork() bool {
	c := t.Category()
	return c == CategoryTransientNetwork || c == CategoryPermanentNetwork
}
