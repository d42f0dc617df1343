package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"previewd/internal/store"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Previewd.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobList returns every registered job, newest first.
func (c *Client) JobList() (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Previewd.JobList", JobListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobDescribe returns one job snapshot.
func (c *Client) JobDescribe(id string) (*JobDescribeResponse, error) {
	var resp JobDescribeResponse
	if err := c.client.Call("Previewd.JobDescribe", JobDescribeRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateJob starts a new preview job.
func (c *Client) CreateJob(req CreateJobRequest) (*CreateJobResponse, error) {
	var resp CreateJobResponse
	if err := c.client.Call("Previewd.CreateJob", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CancelJob cancels a running or pending job.
func (c *Client) CancelJob(id string) (*CancelJobResponse, error) {
	var resp CancelJobResponse
	if err := c.client.Call("Previewd.CancelJob", CancelJobRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteJob removes a terminal job.
func (c *Client) DeleteJob(id string) (*DeleteJobResponse, error) {
	var resp DeleteJobResponse
	if err := c.client.Call("Previewd.DeleteJob", DeleteJobRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Notify delivers an import notification to the debouncer.
func (c *Client) Notify(req NotifyRequest) (*NotifyResponse, error) {
	var resp NotifyResponse
	if err := c.client.Call("Previewd.Notify", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleList returns every persisted schedule.
func (c *Client) ScheduleList() (*ScheduleListResponse, error) {
	var resp ScheduleListResponse
	if err := c.client.Call("Previewd.ScheduleList", ScheduleListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleAdd persists and registers a new schedule.
func (c *Client) ScheduleAdd(sched store.Schedule) (*ScheduleAddResponse, error) {
	var resp ScheduleAddResponse
	if err := c.client.Call("Previewd.ScheduleAdd", ScheduleAddRequest{Schedule: sched}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleRemove deletes a schedule by name.
func (c *Client) ScheduleRemove(name string) (*ScheduleRemoveResponse, error) {
	var resp ScheduleRemoveResponse
	if err := c.client.Call("Previewd.ScheduleRemove", ScheduleRemoveRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleEnable toggles a schedule by name.
func (c *Client) ScheduleEnable(name string, enabled bool) (*ScheduleEnableResponse, error) {
	var resp ScheduleEnableResponse
	req := ScheduleEnableRequest{Name: name, Enabled: enabled}
	if err := c.client.Call("Previewd.ScheduleEnable", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScheduleRun fires a schedule immediately.
func (c *Client) ScheduleRun(name string) (*ScheduleRunResponse, error) {
	var resp ScheduleRunResponse
	if err := c.client.Call("Previewd.ScheduleRun", ScheduleRunRequest{Name: name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns recent finished jobs and notifications.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Previewd.History", HistoryRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
