package credstore

// Bundle is the persisted form of a credential set. One bundle per named
// flow configuration; last write wins. Exactly one token kind is
// authoritative, recorded in TokenKind — the other kind's material is kept so
// switching back does not discard a still-valid token.
type Bundle struct {
	EnvironmentID string `json:"environmentId"`
	Username      string `json:"username"`
	DeviceType    string `json:"deviceType,omitempty"`
	Region        string `json:"region,omitempty"`
	CustomDomain  string `json:"customDomain,omitempty"`
	PolicyID      string `json:"policyId,omitempty"`

	TokenKind       string `json:"tokenKind"`
	WorkerToken     string `json:"workerToken,omitempty"`
	WorkerExpiresAt int64  `json:"workerExpiresAt,omitempty"`
	UserToken       string `json:"userToken,omitempty"`
}
