package entity

// Identity is the authenticated caller as supplied by the identity
// collaborator. Every chat operation takes it explicitly; there is no ambient
// current-user session in this package.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (i Identity) SignedIn() bool {
	return i.ID != ""
}

func (i Identity) DisplayNameOrDefault() string {
	if i.DisplayName == "" {
		return DefaultDisplayName
	}
	return i.DisplayName
}
