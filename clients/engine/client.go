// Package engine is an HTTP client for a data-sync engine daemon. It is the
// production implementation of the engine interface the gateway is written
// against: project lookup and creation go over plain HTTP, replication
// attaches to the engine's websocket endpoint.
package engine

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	comapeo "github.com/digidem/comapeo-cloud"
	"github.com/digidem/comapeo-cloud/errors"
)

type Client struct {
	baseURL string
	client  *http.Client

	deviceID string
}

// NewClient connects to the engine daemon at baseURL and fetches this
// deployment's device id.
func NewClient(ctx context.Context, c *http.Client, baseURL string) (*Client, error) {
	if c == nil {
		c = http.DefaultClient
	}

	client := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  c,
	}

	var res deviceResponse
	if err := client.get(ctx, "/v1/device", &res); err != nil {
		return nil, errors.New("could not reach engine", errors.WithCause(err))
	}
	client.deviceID = res.DeviceID

	return client, nil
}

// deviceResponse is the engine's device payload: the device info plus the
// engine's stable device id.
type deviceResponse struct {
	DeviceID string `json:"deviceId"`
	comapeo.DeviceInfo
}

func (c *Client) DeviceID() string {
	return c.deviceID
}

func (c *Client) DeviceInfo(ctx context.Context) (comapeo.DeviceInfo, error) {
	var res deviceResponse
	err := c.get(ctx, "/v1/device", &res)
	return res.DeviceInfo, err
}

func (c *Client) SetDeviceInfo(ctx context.Context, info comapeo.DeviceInfo) error {
	return c.do(ctx, "PUT", "/v1/device", info, nil)
}

func (c *Client) ListProjects(ctx context.Context) ([]comapeo.ProjectInfo, error) {
	var infos []comapeo.ProjectInfo
	err := c.get(ctx, "/v1/projects", &infos)
	return infos, err
}

func (c *Client) Project(ctx context.Context, publicID string) (comapeo.Project, error) {
	var info comapeo.ProjectInfo
	err := c.get(ctx, fmt.Sprintf("/v1/projects/%s", publicID), &info)
	if err != nil {
		return nil, err
	}

	return &project{client: c, id: info.ID, name: info.Name}, nil
}

func (c *Client) CreateProject(ctx context.Context, cfg comapeo.ProjectConfig) (string, error) {
	body := map[string]interface{}{
		"projectKey":     hex.EncodeToString(cfg.Key),
		"projectName":    cfg.Name,
		"encryptionKeys": cfg.EncryptionKeys,
	}

	var created struct {
		ProjectID string `json:"projectId"`
	}
	if err := c.do(ctx, "PUT", "/v1/projects", body, &created); err != nil {
		return "", err
	}
	return created.ProjectID, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, "GET", path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", path, comapeo.ErrProjectNotFound)
	}
	if res.StatusCode != http.StatusOK {
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		return errors.New(
			fmt.Sprintf("engine call failed: %s", string(data)),
			errors.WithCode(res.StatusCode),
		)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

type project struct {
	client *Client
	id     string
	name   string
}

func (p *project) Name() string {
	return p.name
}

func (p *project) StartSync(ctx context.Context) error {
	return p.client.do(ctx, "POST", fmt.Sprintf("/v1/projects/%s/sync", p.id), nil, nil)
}

// Replicate attaches to the engine's replication websocket and exposes it as
// a byte stream.
func (p *project) Replicate(ctx context.Context) (io.ReadWriteCloser, error) {
	wsURL := "ws" + strings.TrimPrefix(p.client.baseURL, "http")
	wsURL = fmt.Sprintf("%s/v1/projects/%s/replicate", wsURL, p.id)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: p.client.client,
	})
	if err != nil {
		return nil, errors.New("could not open replication stream", errors.WithCause(err))
	}

	return websocket.NetConn(context.WithoutCancel(ctx), conn, websocket.MessageBinary), nil
}
