package repository

// IVault encrypts secrets at rest. Decrypt failures wrap model.ErrDecryption.
type IVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Mask(plaintext string) string
}
