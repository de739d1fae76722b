package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tailscale.com/tsweb"
)

// tailEvent is the per-image metadata line streamed by the debug tail. The
// pixel payload itself never crosses the debug endpoint.
type tailEvent struct {
	FrameID      string    `json:"frame_id"`
	Stamp        time.Time `json:"stamp"`
	Width        uint32    `json:"width"`
	Height       uint32    `json:"height"`
	Encoding     string    `json:"encoding"`
	Bytes        int       `json:"bytes"`
	RectifyValid bool      `json:"rectify_valid"`
}

// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP
// mux served at /debug/. These routes are accessible only over
// localhost/via Tailscale and are not publicly accessible.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to issue Server-Side Events (SSE) describing each image as
	// it is published.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.pub.Subscribe("debug-tail")
		defer s.pub.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case pair, ok := <-c:
				if !ok {
					// Channel closed, exit gracefully
					return
				}
				payload, err := json.Marshal(tailEvent{
					FrameID:      pair.Image.FrameID,
					Stamp:        pair.Image.Stamp,
					Width:        pair.Image.Width,
					Height:       pair.Image.Height,
					Encoding:     pair.Image.Encoding,
					Bytes:        len(pair.Image.Data),
					RectifyValid: pair.Calibration.ROI.RectifyValid,
				})
				if err != nil {
					continue
				}
				_, err = w.Write([]byte(fmt.Sprintf("data: %s\n\n", payload)))
				if err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
