package domain

// APIKey exchange credentials. Both String and GoString redact the secret so
// the key cannot leak through formatting or logging.
type APIKey struct {
	Key    string
	Secret string
}

// IsEmpty reports whether either part is missing.
func (k APIKey) IsEmpty() bool {
	return k.Key == "" || k.Secret == ""
}

func (k APIKey) String() string {
	if k.IsEmpty() {
		return "APIKey(empty)"
	}
	return "APIKey(redacted)"
}

func (k APIKey) GoString() string { return k.String() }
