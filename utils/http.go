// utils/http.go
package utils

import (
	"net/http"
	"time"
)

var HTTPClient = &http.Client{
	Timeout: 30 * time.Second, // profile sync batches are small JSON
}
