package fault

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/vietddude/reqtrack/internal/core/domain"
)

// Classification is the verdict for a single fault.
type Classification struct {
	Type        domain.ErrorType
	Category    domain.FaultCategory
	UserMessage string
	Retryable   bool
}

var userMessages = map[domain.ErrorType]string{
	domain.ErrorTypeDNS:           "cannot resolve the remote host, check the network connection or DNS settings",
	domain.ErrorTypeTimeout:       "the remote service did not respond in time",
	domain.ErrorTypeRefused:       "the remote service refused the connection",
	domain.ErrorTypeReset:         "the connection to the remote service was reset",
	domain.ErrorTypeUnreachable:   "the remote service is unreachable from this network",
	domain.ErrorTypeRateLimit:     "API rate limit exceeded",
	domain.ErrorTypeAbuseDetected: "requests were throttled by secondary rate limiting, slow down",
	domain.ErrorTypeUnknown:       "the remote call failed",
}

var (
	dnsCodes         = []string{"ENOTFOUND", "EAI_AGAIN"}
	dnsPatterns      = []string{"no such host", "getaddrinfo", "server misbehaving", "name resolution"}
	timeoutCodes     = []string{"ETIMEDOUT", "ESOCKETTIMEDOUT"}
	timeoutPatterns  = []string{"timeout", "timed out", "deadline exceeded"}
	refusedPatterns  = []string{"connection refused"}
	resetPatterns    = []string{"connection reset", "broken pipe"}
	unreachPatterns  = []string{"no route to host", "network is unreachable", "host is unreachable"}
	primaryPatterns  = []string{"api rate limit exceeded"}
	abusePatterns    = []string{"secondary rate limit", "abuse detection", "abuse-detection"}
	retryableByClass = map[domain.ErrorType]bool{
		domain.ErrorTypeDNS:         true,
		domain.ErrorTypeTimeout:     true,
		domain.ErrorTypeReset:       true,
		domain.ErrorTypeUnreachable: true,
	}
)

// Classify maps err to one label. It is total: nil and unrecognised errors
// are ErrorTypeUnknown.
func Classify(err error) Classification {
	return classification(classifyType(err))
}

// For returns the classification of a known type.
func For(t domain.ErrorType) Classification {
	return classification(t)
}

func classification(t domain.ErrorType) Classification {
	return Classification{
		Type:        t,
		Category:    t.Category(),
		UserMessage: userMessages[t],
		Retryable:   retryableByClass[t],
	}
}

func classifyType(err error) domain.ErrorType {
	if err == nil {
		return domain.ErrorTypeUnknown
	}

	var (
		status int
		code   string
		quota  domain.Quota
	)
	var f *Fault
	if errors.As(err, &f) {
		status = f.StatusCode
		code = strings.ToUpper(f.Code)
		quota = f.Quota
	}
	if code == "" {
		code = errnoCode(err)
	}
	msg := strings.ToLower(err.Error())
	// A server message is the API's own text, not a transport failure.
	netMsg := msg
	if status != 0 {
		netMsg = ""
	}

	// DNS
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) || matchCode(code, dnsCodes) || contains(netMsg, dnsPatterns) {
		return domain.ErrorTypeDNS
	}

	// Timeout
	var te interface{ Timeout() bool }
	if (errors.As(err, &te) && te.Timeout()) ||
		errors.Is(err, context.DeadlineExceeded) ||
		matchCode(code, timeoutCodes) || contains(netMsg, timeoutPatterns) ||
		status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout {
		return domain.ErrorTypeTimeout
	}

	// Connection level
	if code == "ECONNREFUSED" || contains(netMsg, refusedPatterns) {
		return domain.ErrorTypeRefused
	}
	if code == "ECONNRESET" || code == "EPIPE" ||
		errors.Is(err, io.ErrUnexpectedEOF) || contains(netMsg, resetPatterns) {
		return domain.ErrorTypeReset
	}
	if code == "EHOSTUNREACH" || code == "ENETUNREACH" || contains(netMsg, unreachPatterns) {
		return domain.ErrorTypeUnreachable
	}

	// Quota
	if status == http.StatusForbidden || status == http.StatusTooManyRequests {
		if (quota.Known() && quota.Remaining == 0) || contains(msg, primaryPatterns) {
			return domain.ErrorTypeRateLimit
		}
		if contains(msg, abusePatterns) {
			return domain.ErrorTypeAbuseDetected
		}
		if status == http.StatusTooManyRequests {
			return domain.ErrorTypeRateLimit
		}
	}

	return domain.ErrorTypeUnknown
}

func errnoCode(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case syscall.ECONNREFUSED:
		return "ECONNREFUSED"
	case syscall.ECONNRESET:
		return "ECONNRESET"
	case syscall.EPIPE:
		return "EPIPE"
	case syscall.EHOSTUNREACH:
		return "EHOSTUNREACH"
	case syscall.ENETUNREACH:
		return "ENETUNREACH"
	case syscall.ETIMEDOUT:
		return "ETIMEDOUT"
	default:
		return ""
	}
}

func matchCode(code string, codes []string) bool {
	if code == "" {
		return false
	}
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

func contains(msg string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
