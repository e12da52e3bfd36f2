package session

// Session defines a public type used by goAccount APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SessionID string
	AccountID string
	TenantID  string

	DeviceLabel         string
	BrowserLabel        string
	SourceIP            string
	ApproximateLocation string

	CreatedAt    int64
	LastActiveAt int64
	ExpiresAt    int64
}
