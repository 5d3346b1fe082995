package collector

// Endpoint holds the connection settings shared by every provider.
type Endpoint struct {
	BaseURL    string
	APIKey     string
	PerMinute  int // rate budget; 0 means unlimited
	MaxRetries int // total attempts; 0 uses the client default
}
