package gateway

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/storegate/3rdparty/glog"
	"github.com/NVIDIA/storegate/cmn"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// errorBody is the wire shape for every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set(cmn.HeaderContentType, "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		glog.Errorf("gateway: failed to encode response body: %v", err)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError classifies err via cmn's error taxonomy and writes the
// matching status and {code, message} body.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := cmn.AsError(err); ok {
		writeJSON(w, e.Status(), errorBody{Code: string(e.Kind), Message: e.Message})
		return
	}
	glog.Errorf("gateway: unclassified error: %v", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: "Internal", Message: "internal error"})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cmn.Wrap(cmn.BadRequest, err, "malformed request body")
	}
	return nil
}
