package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash возвращает hex-представление SHA-256 хэша содержимого.
// Хэш служит ключом контрольной точки: точка действительна только для того
// файла, из которого она была вычислена
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
