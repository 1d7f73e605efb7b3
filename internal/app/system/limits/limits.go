// internal/app/system/limits/limits.go
package limits

// Request and payload size limits.
// These keep oversized input from exhausting memory.
const (
	// MaxJSONBody bounds API request bodies.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxWSMessage bounds a single inbound WebSocket message. Clients only
	// send small control messages.
	MaxWSMessage = 4 << 10 // 4 KB

	// MaxNotificationList caps the page size a client may request.
	MaxNotificationList = 200
)
