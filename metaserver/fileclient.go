package metaserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
)

// fileServiceClient issues unary RPCs against one file service's
// control surface. It mirrors client/httpclient.go's rpcClient, since
// both are the same JSON-over-HTTP binding described in §6; the
// metadata server only ever needs it to fan a delete out to every
// file service, never to read or write chunk bytes.
type fileServiceClient struct {
	addr string
	http *http.Client
}

func newFileServiceClient(addr string) *fileServiceClient {
	return &fileServiceClient{addr: addr, http: http.DefaultClient}
}

func (c *fileServiceClient) deleteChunks(serverIndex int, stem string) error {
	var reqBody bytes.Buffer
	err := json.NewEncoder(&reqBody).Encode(rpc.FileDeleteRequest{
		FilenameStem:     stem,
		FileserverNumber: serverIndex,
	})
	if err != nil {
		return errkind.InvalidArgument(err)
	}

	resp, err := c.http.Post("http://"+c.addr+rpc.FilePathDelete, "application/json", &reqBody)
	if err != nil {
		return errkind.TransportFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var errBody rpc.ErrorBody
	if decErr := json.NewDecoder(resp.Body).Decode(&errBody); decErr != nil {
		return errkind.TransportFailed(fmt.Errorf("file service %s: delete chunk: status %d", c.addr, resp.StatusCode))
	}
	return errkind.New(errkind.Kind(errBody.Kind), fmt.Errorf("file service %s: %s", c.addr, errBody.Message))
}

// fileServiceFanout implements ChunkDestroyer against the real set of
// file services named in the deployment's server list.
type fileServiceFanout struct {
	clients []*fileServiceClient
}

// newFileServiceFanout returns a ChunkDestroyer that dials fileAddrs in
// index order; fileAddrs[i] is the file service with server index i,
// the one striping.ServerIndex picks for chunk k when k mod the file's
// stripe width is i.
func newFileServiceFanout(fileAddrs []string) *fileServiceFanout {
	clients := make([]*fileServiceClient, len(fileAddrs))
	for i, addr := range fileAddrs {
		clients[i] = newFileServiceClient(addr)
	}
	return &fileServiceFanout{clients: clients}
}

// DestroyChunks implements ChunkDestroyer.
func (f *fileServiceFanout) DestroyChunks(serverIndex int, filename string) error {
	if serverIndex < 0 || serverIndex >= len(f.clients) {
		return errkind.InvalidArgument(fmt.Errorf("server index %d out of range (%d file services)", serverIndex, len(f.clients)))
	}
	return f.clients[serverIndex].deleteChunks(serverIndex, filename)
}
