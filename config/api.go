package config

// GetAuthSkipperPaths returns a list of paths to skip authentication for
func GetAuthSkipperPaths() []string {
	// QBWC does its own authenticate handshake inside the SOAP exchange
	return []string{"/qbwc", "/api/inventory/health"}
}
