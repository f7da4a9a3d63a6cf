package httpserver

import (
	"encoding/json"
	"net/http"
	"time"
)

// writeHealthBody renders the health payload.
func writeHealthBody(w http.ResponseWriter, status string, dueDeliveries int64) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        status,
		"uptime":        time.Since(serverStartTime).Round(time.Second).String(),
		"dueDeliveries": dueDeliveries,
	})
}
