package fileserver

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
)

// API exposes a Storage's unary control surface (§6) as an HTTP handler.
type API struct {
	storage *Storage
	Handler http.Handler
}

// NewAPI wires up the routes for Ping, Initialize, WriteFile, ReadFile,
// and DeleteFile.
func NewAPI(storage *Storage) *API {
	api := &API{storage: storage}

	router := httprouter.New()
	router.GET(rpc.FilePathPing, api.pingHandler)
	router.POST(rpc.FilePathInit, api.pingHandler)
	router.POST(rpc.FilePathWrite, api.writeHandler)
	router.POST(rpc.FilePathRead, api.readHandler)
	router.POST(rpc.FilePathDelete, api.deleteHandler)

	api.Handler = router
	return api
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errkind.KindOf(err) {
	case errkind.KindNotFound:
		status = http.StatusNotFound
	case errkind.KindInvalidArgument:
		status = http.StatusBadRequest
	case errkind.KindTransportFailed:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpc.ErrorBody{Message: err.Error(), Kind: string(errkind.KindOf(err))})
}

func (api *API) pingHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) writeHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.FileWriteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	if err := api.storage.Write(body.ChunkFilename, body.K, body.Offset, body.Buf); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (api *API) readHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.FileReadRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	content, err := api.storage.Read(body.ChunkFilename, body.K, body.Offset, body.NumBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rpc.FileReadResponse{Content: content, BytesRead: len(content)})
}

func (api *API) deleteHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.FileDeleteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	if err := api.storage.Delete(body.FilenameStem); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
