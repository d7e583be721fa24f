package instance

import "os"

// GetID returns the server instance identifier or a default value.
func GetID() string {
	if id := os.Getenv("STOREFRONT_INSTANCE_ID"); id != "" {
		return id
	}
	return "storefront-0"
}
