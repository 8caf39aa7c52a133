package models

// TopicCount is one entry in the popularity ranking. Topics are compared
// case-insensitively but the display casing of the first use is kept.
type TopicCount struct {
	Topic    string `json:"topic"`
	Count    int    `json:"count"`
	LastUsed int64  `json:"lastUsed,omitempty"`
}
