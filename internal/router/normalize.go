package router

import "github.com/undercontrol/gateway/internal/adapter"

// redactedFaultMessage is what callers see when an adapter violated its
// contract. The real failure is logged server-side only.
const redactedFaultMessage = "internal adapter fault"

// normalize maps an adapter invocation result onto the canonical envelope.
//
// It is a pure function: a nil error wraps the payload as success; a
// declared *adapter.Error maps kind-for-kind; anything else is a contract
// violation and becomes a redacted internal fault. Callers are responsible
// for logging the unredacted detail of internal faults.
func normalize(payload any, err error) Envelope {
	if err == nil {
		return success(payload)
	}

	aerr, ok := adapter.AsError(err)
	if !ok {
		return failure(FailInternalFault, redactedFaultMessage)
	}

	env := failure(mapKind(aerr.Kind), aerr.Message)
	if len(aerr.Detail) > 0 {
		env.Error.Detail = aerr.Detail
	}
	return env
}

// mapKind translates the adapter error taxonomy into envelope failure kinds.
// An adapter-declared "unsupported" surfaces as unsupported_operation, the
// same kind the router uses for operations outside the declared set.
func mapKind(k adapter.Kind) string {
	switch k {
	case adapter.KindInvalidParams:
		return FailInvalidParams
	case adapter.KindUnauthorized:
		return FailUnauthorized
	case adapter.KindUnreachable:
		return FailUnreachable
	case adapter.KindVendorError:
		return FailVendorError
	case adapter.KindUnsupported:
		return FailUnsupportedOperation
	default:
		// An adapter inventing kinds outside the taxonomy is itself a
		// contract violation.
		return FailInternalFault
	}
}
