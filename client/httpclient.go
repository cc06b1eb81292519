package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
)

var errTransportClosed = errkind.TransportFailed(fmt.Errorf("token stream closed"))

// rpcClient issues JSON requests against one server's unary control
// surface and translates its error bodies back into errkind-tagged
// errors.
type rpcClient struct {
	addr string
	http *http.Client
}

func newRPCClient(addr string) *rpcClient {
	return &rpcClient{addr: addr, http: http.DefaultClient}
}

func (c *rpcClient) call(path string, body, out interface{}) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return errkind.InvalidArgument(err)
		}
	}

	resp, err := c.http.Post("http://"+c.addr+path, "application/json", &reqBody)
	if err != nil {
		return errkind.TransportFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if resp.StatusCode >= 300 {
		var errBody rpc.ErrorBody
		if decErr := json.NewDecoder(resp.Body).Decode(&errBody); decErr != nil {
			return errkind.TransportFailed(fmt.Errorf("rpc %s: status %d", path, resp.StatusCode))
		}
		return errkind.New(errkind.Kind(errBody.Kind), fmt.Errorf("%s", errBody.Message))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errkind.TransportFailed(err)
	}
	return nil
}

func (c *rpcClient) ping() error {
	resp, err := c.http.Get("http://" + c.addr + rpc.MetaPathPing)
	if err != nil {
		return errkind.TransportFailed(err)
	}
	defer resp.Body.Close()
	return nil
}
