package model

// MaxDeviceTokens caps how many push tokens a member keeps; older tokens are dropped first.
const MaxDeviceTokens = 5

type Member struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Email        string   `json:"email,omitempty"`
	PhotoURL     string   `json:"photo_url,omitempty"`
	DeviceTokens []string `json:"device_tokens,omitempty"`
}

// AddDeviceToken appends token unless it is already registered, keeping the
// newest MaxDeviceTokens entries. It reports whether the list changed.
func (m *Member) AddDeviceToken(token string) bool {
	for _, t := range m.DeviceTokens {
		if t == token {
			return false
		}
	}
	tokens := append(append([]string(nil), m.DeviceTokens...), token)
	if len(tokens) > MaxDeviceTokens {
		tokens = tokens[len(tokens)-MaxDeviceTokens:]
	}
	m.DeviceTokens = tokens
	return true
}

// RemoveDeviceTokens drops every token in dead and reports how many were removed.
func (m *Member) RemoveDeviceTokens(dead []string) int {
	if len(dead) == 0 {
		return 0
	}
	drop := make(map[string]struct{}, len(dead))
	for _, t := range dead {
		drop[t] = struct{}{}
	}
	kept := m.DeviceTokens[:0:0]
	for _, t := range m.DeviceTokens {
		if _, ok := drop[t]; !ok {
			kept = append(kept, t)
		}
	}
	removed := len(m.DeviceTokens) - len(kept)
	m.DeviceTokens = kept
	return removed
}
