package fusionsolar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FusionSolar northbound API failure codes.
const (
	codeOK             = 0
	codeSessionExpired = 305
)

// ErrLoginFailed is returned when the vendor rejects the credentials.
var ErrLoginFailed = errors.New("fusionsolar: login failed")

// ErrSessionExpired is returned when the vendor invalidates the session
// (failCode 305). Callers should log in again and retry.
var ErrSessionExpired = errors.New("fusionsolar: session expired")

// Session carries the authenticated state from a login. It is an explicit
// value rather than hidden client state so callers control its lifetime.
type Session struct {
	XSRFToken string
	Cookies   []*http.Cookie
}

// Valid reports whether the session carries a token.
func (s *Session) Valid() bool {
	return s != nil && s.XSRFToken != ""
}

// Client is a FusionSolar northbound REST client.
type Client struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient constructs a FusionSolar client.
func NewClient(baseURL, username, password string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("fusionsolar: empty base url")
	}
	if username == "" || password == "" {
		return nil, errors.New("fusionsolar: missing credentials")
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Station is one plant visible to the account.
type Station struct {
	Code     string  `json:"stationCode"`
	Name     string  `json:"stationName"`
	Capacity float64 `json:"capacity"`
}

// Device is one device within a station.
type Device struct {
	ID          int64  `json:"id"`
	Name        string `json:"devName"`
	TypeID      int    `json:"devTypeId"`
	StationCode string `json:"stationCode"`
}

// StringInverterType is the devTypeId of string inverters, the only device
// class that reports per-string PV voltage.
const StringInverterType = 1

// InverterKPI is the realtime telemetry of one inverter.
type InverterKPI struct {
	DeviceID    int64
	PV1Voltage  float64
	PV1Current  float64
	ActivePower float64
	DayEnergy   float64
	TotalEnergy float64
	Temperature float64
	GridVoltage float64
	GridFreq    float64
}

// Login authenticates and returns a fresh session.
func (c *Client) Login(ctx context.Context) (*Session, error) {
	body := map[string]any{
		"userName":   c.username,
		"systemCode": c.password,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/thirdData/login", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fusionsolar: login http %d", resp.StatusCode)
	}

	var envelope struct {
		Success  bool `json:"success"`
		FailCode int  `json:"failCode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.FailCode != codeOK {
		return nil, fmt.Errorf("%w: failCode %d", ErrLoginFailed, envelope.FailCode)
	}

	session := &Session{Cookies: resp.Cookies()}
	for _, cookie := range session.Cookies {
		if strings.EqualFold(cookie.Name, "XSRF-TOKEN") {
			session.XSRFToken = cookie.Value
		}
	}
	if session.XSRFToken == "" {
		return nil, fmt.Errorf("%w: no xsrf token in response", ErrLoginFailed)
	}
	return session, nil
}

// Stations lists the plants visible to the account.
func (c *Client) Stations(ctx context.Context, session *Session) ([]Station, error) {
	var out struct {
		Data struct {
			List []Station `json:"list"`
		} `json:"data"`
	}
	body := map[string]any{"pageNo": 1}
	if err := c.doJSON(ctx, session, "/thirdData/stations", body, &out); err != nil {
		return nil, err
	}
	return out.Data.List, nil
}

// DeviceList returns the string inverters of the given stations.
func (c *Client) DeviceList(ctx context.Context, session *Session, stationCodes []string) ([]Device, error) {
	var out struct {
		Data []Device `json:"data"`
	}
	body := map[string]any{"stationCodes": strings.Join(stationCodes, ",")}
	if err := c.doJSON(ctx, session, "/thirdData/getDevList", body, &out); err != nil {
		return nil, err
	}
	inverters := make([]Device, 0, len(out.Data))
	for _, dev := range out.Data {
		if dev.TypeID == StringInverterType {
			inverters = append(inverters, dev)
		}
	}
	return inverters, nil
}

// DeviceRealKPI fetches realtime telemetry for the given inverters.
func (c *Client) DeviceRealKPI(ctx context.Context, session *Session, deviceIDs []int64) ([]InverterKPI, error) {
	ids := make([]string, len(deviceIDs))
	for i, id := range deviceIDs {
		ids[i] = fmt.Sprintf("%d", id)
	}
	body := map[string]any{
		"devIds":    strings.Join(ids, ","),
		"devTypeId": StringInverterType,
	}
	var out struct {
		Data []struct {
			DevID       int64              `json:"devId"`
			DataItemMap map[string]float64 `json:"dataItemMap"`
		} `json:"data"`
	}
	if err := c.doJSON(ctx, session, "/thirdData/getDevRealKpi", body, &out); err != nil {
		return nil, err
	}

	kpis := make([]InverterKPI, 0, len(out.Data))
	for _, item := range out.Data {
		m := item.DataItemMap
		kpis = append(kpis, InverterKPI{
			DeviceID:    item.DevID,
			PV1Voltage:  m["pv1_u"],
			PV1Current:  m["pv1_i"],
			ActivePower: m["active_power"],
			DayEnergy:   m["day_cap"],
			TotalEnergy: m["total_cap"],
			Temperature: m["temperature"],
			GridVoltage: m["a_u"],
			GridFreq:    m["elec_freq"],
		})
	}
	return kpis, nil
}

func (c *Client) doJSON(ctx context.Context, session *Session, path string, body any, out any) error {
	if !session.Valid() {
		return ErrSessionExpired
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("XSRF-TOKEN", session.XSRFToken)
	for _, cookie := range session.Cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("fusionsolar: http %d on %s", resp.StatusCode, path)
	}

	raw, err := decodeEnvelope(resp.Body, out)
	if err != nil {
		return err
	}
	if raw.FailCode == codeSessionExpired {
		return ErrSessionExpired
	}
	if raw.FailCode != codeOK {
		return fmt.Errorf("fusionsolar: failCode %d on %s", raw.FailCode, path)
	}
	return nil
}

type envelope struct {
	Success  bool `json:"success"`
	FailCode int  `json:"failCode"`
}

func decodeEnvelope(r io.Reader, out any) (envelope, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return envelope{}, err
	}
	var env envelope
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		return envelope{}, err
	}
	if out != nil && env.FailCode == codeOK {
		if err := json.Unmarshal(buf.Bytes(), out); err != nil {
			return envelope{}, err
		}
	}
	return env, nil
}
