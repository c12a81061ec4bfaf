package rpc

import (
	"net/http"
)

// Config holds the configuration of a ledger rpc client.
type Config struct {
	// Base URL of the ledger API, without trailing slash
	// Example: https://ledger.example.com/api/v1
	Url string
	// Custom headers to send
	CustomHeaders map[string]string
	// HTTP Client to use
	Client *http.Client
}
