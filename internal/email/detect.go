package email

import (
	"net/http"
	"os"
)

// sniffLength is the number of leading bytes inspected for content detection.
const sniffLength = 512

// DetectContentType guesses a media type from the magic bytes of data.
func DetectContentType(data []byte) string {
	if len(data) > sniffLength {
		data = data[:sniffLength]
	}
	return http.DetectContentType(data)
}

// readFile reads path in full and, when contentType is empty, detects it.
func readFile(path, contentType string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	if contentType == "" {
		contentType = DetectContentType(data)
	}
	return data, contentType, nil
}
