package monitor

// classifyHTTPStatus turns a final HTTP status code into a Status/ReasonCode
// pair given the check's accepted list. Pure function, independent of any
// network state, so the classification is trivially testable.
func classifyHTTPStatus(statusCode int, accepted []StatusCodeValue) (Status, ReasonCode) {
	if IsStatusCodeAccepted(accepted, statusCode) {
		return StatusOk, ReasonOk
	}
	switch {
	case statusCode >= 400 && statusCode < 500:
		return StatusFailed, ReasonHTTP4xx
	case statusCode >= 500 && statusCode < 600:
		return StatusFailed, ReasonHTTP5xx
	default:
		return StatusFailed, ReasonHTTPOther
	}
}

// classifyTLSDaysLeft implements the TLS probe's three-way outcome rule.
func classifyTLSDaysLeft(daysLeft int, warnDays int) (Status, ReasonCode) {
	switch {
	case daysLeft < 0:
		return StatusFailed, ReasonTLSExpired
	case daysLeft <= warnDays:
		return StatusWarn, ReasonTLSExpiringSoon
	default:
		return StatusOk, ReasonOk
	}
}
