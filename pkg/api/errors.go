package api

import (
	"errors"
	"net/http"
)

// Kind classifies every failure a call can produce.
type Kind int

const (
	KindNone     Kind = iota
	KindNetwork       // no HTTP response at all: DNS, refused, timeout, cancelled
	KindClient        // 4xx
	KindServer        // 5xx or any other non-2xx
	KindBusiness      // envelope success=false, message written by the server
	KindProtocol      // 2xx whose body is not a valid envelope
	KindChannel       // realtime socket failure, never returned by Do
	KindRequest       // the request could not be built: bad path or unencodable body
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindClient:
		return "client"
	case KindServer:
		return "server"
	case KindBusiness:
		return "business"
	case KindProtocol:
		return "protocol"
	case KindChannel:
		return "channel"
	case KindRequest:
		return "request"
	default:
		return "unknown"
	}
}

// User-facing messages. The server and the users are French-speaking.
const (
	MsgNetwork      = "Vérifiez votre connexion internet"
	MsgBadRequest   = "Données invalides. Veuillez vérifier vos informations."
	MsgUnauthorized = "Session expirée. Veuillez vous reconnecter."
	MsgForbidden    = "Vous n'avez pas la permission pour cette action."
	MsgNotFound     = "Élément non trouvé."
	MsgServer       = "Erreur serveur. Veuillez réessayer plus tard."
	MsgUnavailable  = "Service temporairement indisponible."
	MsgConnection   = "Erreur de connexion."
	MsgChannel      = "Connexion temps réel interrompue."
)

// Error is the single classified error value returned by every call.
// Error() is the short message meant for the user; the cause is kept for logs.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response was received
	Code    string // server error code for KindBusiness
	Message string
	cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Classify maps an HTTP status to its fixed message. The body is never consulted.
func Classify(status int) *Error {
	kind := KindServer
	if status >= 400 && status < 500 {
		kind = KindClient
	}

	msg := MsgConnection
	switch status {
	case http.StatusBadRequest:
		msg = MsgBadRequest
	case http.StatusUnauthorized:
		msg = MsgUnauthorized
	case http.StatusForbidden:
		msg = MsgForbidden
	case http.StatusNotFound:
		msg = MsgNotFound
	case http.StatusInternalServerError:
		msg = MsgServer
	case http.StatusServiceUnavailable:
		msg = MsgUnavailable
	}
	return &Error{Kind: kind, Status: status, Message: msg}
}

func newNetworkError(cause error) *Error {
	return &Error{Kind: KindNetwork, Message: MsgNetwork, cause: cause}
}

func newProtocolError(status int, cause error) *Error {
	return &Error{Kind: KindProtocol, Status: status, Message: MsgServer, cause: cause}
}

func newRequestError(cause error) *Error {
	return &Error{Kind: KindRequest, Message: MsgConnection, cause: cause}
}

func newBusinessError(status int, code, message string) *Error {
	return &Error{Kind: KindBusiness, Status: status, Code: code, Message: message}
}

// NewChannelError wraps a realtime socket failure.
func NewChannelError(cause error) *Error {
	return &Error{Kind: KindChannel, Message: MsgChannel, cause: cause}
}

// KindOf returns the Kind of err, or KindNone when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// IsSessionExpired reports a 401: the caller should prompt for a new login.
func IsSessionExpired(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindClient && e.Status == http.StatusUnauthorized
}
