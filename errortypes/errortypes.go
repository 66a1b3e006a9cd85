package errortypes

// Transport should be used when a hop fetch fails at the network level:
// connection refused, DNS failure, timeout, or a non-2xx upstream status.
//
// The tracking URLs collected from the hops that did complete are attached so
// the caller can still fire them; ad-serving convention is that every
// traversed wrapper's trackers fire even when the chain ultimately fails.
type Transport struct {
	Message      string
	TrackingURLs []string
	Hops         int
}

func (err *Transport) Error() string {
	return err.Message
}

func (err *Transport) Code() int {
	return TransportErrorCode
}

func (err *Transport) Severity() Severity {
	return SeverityFatal
}

func (err *Transport) CollectedTrackers() []string {
	return err.TrackingURLs
}

// DepthExceeded should be used when a wrapper chain requires more hops than
// the configured maximum. It is a definitive failure and is never retried.
type DepthExceeded struct {
	Message      string
	MaxDepth     int
	TrackingURLs []string
	Hops         int
}

func (err *DepthExceeded) Error() string {
	return err.Message
}

func (err *DepthExceeded) Code() int {
	return DepthExceededErrorCode
}

func (err *DepthExceeded) Severity() Severity {
	return SeverityFatal
}

func (err *DepthExceeded) CollectedTrackers() []string {
	return err.TrackingURLs
}

// MalformedResponse should be used when an upstream payload cannot be
// classified as either a wrapper or a terminal creative.
type MalformedResponse struct {
	Message      string
	TrackingURLs []string
	Hops         int
}

func (err *MalformedResponse) Error() string {
	return err.Message
}

func (err *MalformedResponse) Code() int {
	return MalformedResponseErrorCode
}

func (err *MalformedResponse) Severity() Severity {
	return SeverityFatal
}

func (err *MalformedResponse) CollectedTrackers() []string {
	return err.TrackingURLs
}

// UnknownProtocol should be used when a request names a protocol tag with no
// registered resolver.
type UnknownProtocol struct {
	Message string
}

func (err *UnknownProtocol) Error() string {
	return err.Message
}

func (err *UnknownProtocol) Code() int {
	return UnknownProtocolErrorCode
}

func (err *UnknownProtocol) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad input.
// It should _not_ be used if the error is a server-side issue.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// StateBackend should be used when a state store operation fails outright
// (unreachable backend, protocol error). Policy layers normally recover from
// these locally via their fail-open/fail-closed setting rather than
// propagating them.
type StateBackend struct {
	Message string
}

func (err *StateBackend) Error() string {
	return err.Message
}

func (err *StateBackend) Code() int {
	return StateBackendErrorCode
}

func (err *StateBackend) Severity() Severity {
	return SeverityWarning
}

// TrackerCarrier is implemented by resolution errors that abort a chain after
// some hops already completed.
type TrackerCarrier interface {
	CollectedTrackers() []string
}

// ReadTrackers returns the tracking URLs collected before err aborted a
// resolution chain, or nil if the error carries none.
func ReadTrackers(err error) []string {
	if c, ok := err.(TrackerCarrier); ok {
		return c.CollectedTrackers()
	}
	return nil
}
