package auth

// Credential is a closed variant over the ways a principal can prove who
// they are. Both kinds dispatch through Service.Authenticate; there is no
// runtime strategy registry.
type Credential interface {
	credential()
}

// LocalCredential is an email/password pair.
type LocalCredential struct {
	Email    string
	Password string
}

// ExternalCredential is an identity already verified by an external
// provider: the provider name, the provider's stable subject id and the
// email the provider reports.
type ExternalCredential struct {
	Provider  string
	SubjectID string
	Email     string
}

func (LocalCredential) credential()    {}
func (ExternalCredential) credential() {}
