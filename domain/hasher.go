package domain

// Hasher derives stable, non-reversible identifiers from raw input.
type Hasher interface {
	Hash(data []byte) string
}
