package client

import (
	"fmt"

	"github.com/pfs-project/pfs/errkind"
	"github.com/pfs-project/pfs/rpc"
)

// Read implements the read() client call (§4.5): it tries the data cache
// first, falls back to a TokenRequest when the range isn't READ-covered,
// fetches a plan from the metadata server, fans the plan out to the
// owning file services, and populates the cache with what it fetched.
func (c *Client) Read(descriptor uint64, numBytes, offset uint64) ([]byte, error) {
	of, err := c.descriptorFile(descriptor)
	if err != nil {
		return nil, err
	}
	if numBytes == 0 {
		return nil, nil
	}
	end := offset + numBytes - 1

	if data, ok := c.cache.Read(of.name, offset, end); ok {
		c.stats.incReadHits()
		return data, nil
	}

	if !c.tokens.Covered(of.name, offset, end, rpc.TokenRead) {
		if err := c.stream.RequestToken(descriptor, c.id, of.name, offset, end, rpc.TokenRead); err != nil {
			return nil, err
		}
	}

	var planResp rpc.PlanResponse
	err = c.meta.call(rpc.MetaPathReadPlan, rpc.PlanRequest{
		Descriptor: descriptor,
		Offset:     offset,
		NumBytes:   numBytes,
	}, &planResp)
	if err != nil {
		return nil, err
	}
	if len(planResp.Plan) == 0 {
		return nil, nil
	}

	var out []byte
	for _, entry := range planResp.Plan {
		fc, err := c.fileClient(entry.ServerIndex)
		if err != nil {
			return nil, err
		}
		localOffset := entry.PlanStart - entry.K*c.chunkSize
		n := entry.PlanEnd - entry.PlanStart + 1

		var readResp rpc.FileReadResponse
		err = fc.call(rpc.FilePathRead, rpc.FileReadRequest{
			ChunkFilename: of.name,
			K:             entry.K,
			Start:         entry.PlanStart,
			End:           entry.PlanEnd,
			NumBytes:      n,
			Offset:        localOffset,
		}, &readResp)
		if err != nil {
			return nil, err
		}
		out = append(out, readResp.Content...)
	}

	c.cache.Update(of.name, offset, offset+uint64(len(out))-1, out)
	return out, nil
}

// Write implements the write() client call (§4.5): check WRITE coverage
// (requesting a token if needed), get a plan from the metadata server
// (which applies the file's size/chunk-map update synchronously), and
// fan the write out to each chunk's file service. Writes are
// write-through: no cache block is populated. The metadata server
// revokes any other client's overlapping token (invalidating that
// client's cache), and this client's own cached blocks in the written
// range are dropped when Write returns.
func (c *Client) Write(descriptor uint64, buf []byte, offset uint64) (int, error) {
	of, err := c.descriptorFile(descriptor)
	if err != nil {
		return 0, err
	}
	numBytes := uint64(len(buf))
	if numBytes == 0 {
		return 0, nil
	}
	end := offset + numBytes - 1
	defer c.cache.Invalidate(of.name, cacheRange{start: offset, end: end})

	if !c.tokens.Covered(of.name, offset, end, rpc.TokenWrite) {
		if err := c.stream.RequestToken(descriptor, c.id, of.name, offset, end, rpc.TokenWrite); err != nil {
			return 0, err
		}
	} else {
		c.stats.incWriteHits()
	}

	var planResp rpc.PlanResponse
	err = c.meta.call(rpc.MetaPathWritePlan, rpc.PlanRequest{
		Descriptor: descriptor,
		Offset:     offset,
		NumBytes:   numBytes,
	}, &planResp)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, entry := range planResp.Plan {
		fc, err := c.fileClient(entry.ServerIndex)
		if err != nil {
			return written, err
		}
		localOffset := entry.PlanStart - entry.K*c.chunkSize
		sliceStart := entry.PlanStart - offset
		sliceEnd := entry.PlanEnd - offset + 1
		chunkBuf := buf[sliceStart:sliceEnd]

		err = fc.call(rpc.FilePathWrite, rpc.FileWriteRequest{
			ChunkFilename: of.name,
			K:             entry.K,
			Start:         entry.PlanStart,
			End:           entry.PlanEnd,
			NumBytes:      uint64(len(chunkBuf)),
			Offset:        localOffset,
			Buf:           chunkBuf,
		}, nil)
		if err != nil {
			return written, err
		}
		written += len(chunkBuf)
	}
	return written, nil
}

func (c *Client) fileClient(serverIndex int) (*rpcClient, error) {
	if serverIndex < 0 || serverIndex >= len(c.files) {
		return nil, errkind.InvalidArgument(fmt.Errorf("server index %d out of range (%d file services)", serverIndex, len(c.files)))
	}
	return c.files[serverIndex], nil
}
