package protocol

// ImplementationInfo identifies a peer's name and version, exchanged during
// the initialize handshake.
type ImplementationInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RootCapability advertises that a client can list filesystem roots.
type RootCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ResourceCapability advertises resource-related features a server offers.
type ResourceCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// FeatureCapability is the generic "this feature exists, and may notify on
// change" shape shared by prompts and tools capabilities.
type FeatureCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ClientCapabilities is what a client advertises in its initialize request.
type ClientCapabilities struct {
	Roots    *RootCapability        `json:"roots,omitempty"`
	Sampling map[string]interface{} `json:"sampling,omitempty"`
}

// ServerCapabilities is what a server advertises in its initialize result.
type ServerCapabilities struct {
	Prompts   *FeatureCapability  `json:"prompts,omitempty"`
	Resources *ResourceCapability `json:"resources,omitempty"`
	Tools     *FeatureCapability  `json:"tools,omitempty"`
}

// InitializeParams is the body of a client's "initialize" request.
type InitializeParams struct {
	ProtocolVersion string              `json:"protocolVersion"`
	Capabilities    ClientCapabilities  `json:"capabilities"`
	ClientInfo      ImplementationInfo  `json:"clientInfo"`
}

// InitializeResult is the body of a server's reply to "initialize".
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ImplementationInfo `json:"serverInfo"`
}

// CancelledParams is the body of a "notifications/cancelled" notification.
type CancelledParams struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// ProgressParams is the body of a "$/progress" notification.
type ProgressParams struct {
	ProgressToken string      `json:"progressToken"`
	Value         interface{} `json:"value"`
}
