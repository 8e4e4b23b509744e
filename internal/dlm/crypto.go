package dlm

// EncryptionKey - ключ XOR-шифрования тела карты. Длина ключа задаёт модуль повторения.
const EncryptionKey = "649ae451ca33ec53bbcbcc33becf15f4"

// xorKey возвращает новый буфер data XOR ключ
func xorKey(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ EncryptionKey[i%len(EncryptionKey)]
	}
	return out
}

// Decrypt расшифровывает тело карты
func Decrypt(ciphertext []byte) []byte {
	return xorKey(ciphertext)
}

// Encrypt шифрует тело карты. Операция симметрична Decrypt.
func Encrypt(plaintext []byte) []byte {
	return xorKey(plaintext)
}
