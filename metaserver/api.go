package metaserver

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
	"github.com/pfs-project/pfs/striping"
)

// API exposes the Registry's unary control surface (§6) as an HTTP
// handler built with httprouter, the same router the file service uses.
type API struct {
	registry  *Registry
	destroyer ChunkDestroyer
	Handler   http.Handler
}

// NewAPI wires up the routes for Ping, Initialize, and the file
// operations backed by registry. fileAddrs names the file services to
// fan a DeleteFile out to; it may be empty in tests that never exercise
// delete against live file services.
func NewAPI(registry *Registry, fileAddrs []string) *API {
	api := &API{registry: registry, destroyer: newFileServiceFanout(fileAddrs)}

	router := httprouter.New()
	router.NotFound = http.HandlerFunc(notFoundHandler)

	router.GET(rpc.MetaPathPing, api.pingHandler)
	router.POST(rpc.MetaPathInitialize, api.initializeHandler)
	router.POST(rpc.MetaPathCreateFile, api.createFileHandler)
	router.POST(rpc.MetaPathOpenFile, api.openFileHandler)
	router.POST(rpc.MetaPathCloseFile, api.closeFileHandler)
	router.POST(rpc.MetaPathDeleteFile, api.deleteFileHandler)
	router.POST(rpc.MetaPathFileMetadata, api.fileMetadataHandler)
	router.POST(rpc.MetaPathReadPlan, api.readPlanHandler)
	router.POST(rpc.MetaPathWritePlan, api.writePlanHandler)

	api.Handler = router
	return api
}

func notFoundHandler(w http.ResponseWriter, req *http.Request) {
	writeError(w, errkind.NotFound(httpRouteNotFound{req.URL.Path}))
}

type httpRouteNotFound struct{ path string }

func (e httpRouteNotFound) Error() string { return "no such route: " + e.path }

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError translates an errkind-tagged error into an HTTP status and
// JSON error body. Errors with no recognized Kind are reported as 500s.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errkind.KindOf(err) {
	case errkind.KindNotFound:
		status = http.StatusNotFound
	case errkind.KindAlreadyExists:
		status = http.StatusConflict
	case errkind.KindInvalidArgument:
		status = http.StatusBadRequest
	case errkind.KindBusy:
		status = http.StatusLocked
	case errkind.KindTransportFailed:
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(rpc.ErrorBody{
		Message: err.Error(),
		Kind:    string(errkind.KindOf(err)),
	})
}

func (api *API) pingHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	writeSuccess(w)
}

func (api *API) initializeHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	writeJSON(w, rpc.InitializeResponse{ClientID: api.registry.NextClientID()})
}

func (api *API) createFileHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.CreateFileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	if err := api.registry.Create(body.Name, body.StripeWidth); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (api *API) openFileHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.OpenFileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	d, err := api.registry.Open(body.Name, Mode(body.Mode), body.ClientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rpc.OpenFileResponse{Descriptor: uint64(d)})
}

func (api *API) closeFileHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.CloseFileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	if err := api.registry.Close(Descriptor(body.Descriptor)); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (api *API) deleteFileHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.DeleteFileRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	if err := api.registry.Delete(body.Name, api.destroyer); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}

func (api *API) fileMetadataHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.FileMetadataRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	meta, err := api.registry.FileStat(Descriptor(body.Descriptor))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rpc.FileMetadataResponse{
		Name:        meta.Name,
		Size:        meta.Size,
		CTime:       meta.CTime,
		MTime:       meta.MTime,
		StripeWidth: meta.StripeWidth,
		Chunks:      toWireChunks(meta.Chunks),
	})
}

func (api *API) readPlanHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.PlanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	name, plan, err := api.registry.ReadPlan(Descriptor(body.Descriptor), body.Offset, body.NumBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rpc.PlanResponse{Filename: name, Plan: toWirePlan(plan)})
}

func (api *API) writePlanHandler(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	var body rpc.PlanRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, errkind.InvalidArgument(err))
		return
	}
	name, plan, err := api.registry.WritePlan(Descriptor(body.Descriptor), body.Offset, body.NumBytes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rpc.PlanResponse{Filename: name, Plan: toWirePlan(plan)})
}

func toWireChunks(chunks map[uint64]striping.Extent) []rpc.ChunkExtent {
	out := make([]rpc.ChunkExtent, 0, len(chunks))
	for k, e := range chunks {
		out = append(out, rpc.ChunkExtent{K: k, StartByte: e.StartByte, EndByte: e.EndByte})
	}
	return out
}

func toWirePlan(plan striping.Plan) []rpc.PlanEntry {
	out := make([]rpc.PlanEntry, len(plan))
	for i, e := range plan {
		out[i] = rpc.PlanEntry{K: e.K, ServerIndex: e.ServerIndex, PlanStart: e.PlanStart, PlanEnd: e.PlanEnd}
	}
	return out
}
