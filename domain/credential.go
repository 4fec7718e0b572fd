package domain

// ChannelCredential is the configuration of a messaging channel: the bearer
// token, the channel endpoint (phone ID), the API base URL and an optional
// sender number.
type ChannelCredential struct {
	Token      string `json:"-"`
	PhoneID    string `json:"phoneId"`
	APIBaseURL string `json:"apiUrl"`
	FromNumber string `json:"fromNumber,omitempty"`
}

// Configured reports whether the credential can be used to send.
func (c ChannelCredential) Configured() bool {
	return c.Token != "" && c.PhoneID != ""
}

// ResolveCredential picks the channel configuration for a user: a stored
// per-user credential fully replaces the process-wide default. There is no
// field-by-field merge; a stored row wins as a whole.
func ResolveCredential(stored *ChannelCredential, def ChannelCredential) ChannelCredential {
	if stored != nil {
		return *stored
	}
	return def
}
