package ingest

import (
	"io"
	"net/http"
)

// HTTPHandler decodes JSON snapshots and forwards them to the sink.
// Params: sink receives validated snapshots, max body limits payload size.
// Returns: HTTP handler for the snapshot endpoint.
type HTTPHandler struct {
	sink        SnapshotSink
	maxBodySize int64
}

// NewHTTPHandler creates the snapshot HTTP handler.
// Params: sink and max request body size in bytes.
// Returns: configured handler.
func NewHTTPHandler(sink SnapshotSink, maxBodySize int64) *HTTPHandler {
	return &HTTPHandler{sink: sink, maxBodySize: maxBodySize}
}

// ServeHTTP handles one incoming snapshot request.
// Params: HTTP request/response writer pair.
// Returns: writes status code according to decode/apply result.
func (h *HTTPHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	snapshot, err := decodeSnapshot(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.sink.Apply(snapshot); err != nil {
		writer.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writer.WriteHeader(http.StatusAccepted)
}
