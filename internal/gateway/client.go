package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"visitbot/internal/monitor"
)

// Config configures the HTTP gateway client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per-request; default 10s
	RatePerSec int           // outbound request pacing; default 5
}

// Client is the HTTP implementation of Gateway. One instance serves all
// accounts; credentials come from the SessionProvider per call.
type Client struct {
	cfg      Config
	hc       *http.Client
	sessions SessionProvider
	limiter  *rate.Limiter
	log      zerolog.Logger
}

func NewClient(cfg Config, sessions SessionProvider, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		cfg:      cfg,
		hc:       &http.Client{Timeout: timeout},
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(rps), rps),
		log:      log,
	}
}

type termPayload struct {
	ScheduleID int64  `json:"scheduleId"`
	StartAt    string `json:"startAt"`
	ClinicID   int    `json:"clinicId"`
	DoctorID   int    `json:"doctorId"`
	RoomID     int    `json:"roomId"`
	DoctorName string `json:"doctorName"`
	ClinicName string `json:"clinicName"`
}

type searchResponse struct {
	Terms []termPayload `json:"terms"`
}

func (c *Client) Search(ctx context.Context, accountID int64, crit monitor.Criteria) ([]monitor.Term, error) {
	from, to := crit.Window(time.Now())
	q := url.Values{}
	q.Set("cityId", strconv.Itoa(crit.CityID))
	q.Set("serviceId", strconv.Itoa(crit.ServiceID))
	q.Set("dateFrom", from.Format(time.RFC3339))
	q.Set("dateTo", to.Format(time.RFC3339))
	if crit.ClinicID != 0 {
		q.Set("clinicId", strconv.Itoa(crit.ClinicID))
	}
	if crit.DoctorID != 0 {
		q.Set("doctorId", strconv.Itoa(crit.DoctorID))
	}
	if crit.PayerID != 0 {
		q.Set("payerId", strconv.Itoa(crit.PayerID))
	}

	var resp searchResponse
	if err := c.do(ctx, accountID, http.MethodGet, "/api/terms?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]monitor.Term, 0, len(resp.Terms))
	for _, t := range resp.Terms {
		start, err := time.Parse(time.RFC3339, t.StartAt)
		if err != nil {
			c.log.Warn().Str("start_at", t.StartAt).Err(err).Msg("skipping term with bad timestamp")
			continue
		}
		out = append(out, monitor.Term{
			ScheduleID: t.ScheduleID,
			StartAt:    start,
			ClinicID:   t.ClinicID,
			DoctorID:   t.DoctorID,
			RoomID:     t.RoomID,
			DoctorName: t.DoctorName,
			ClinicName: t.ClinicName,
		})
	}
	return out, nil
}

func (c *Client) Reserve(ctx context.Context, accountID int64, t monitor.Term) error {
	return c.do(ctx, accountID, http.MethodPost, "/api/reservations", reserveBody(t), nil)
}

func (c *Client) UpdateReservation(ctx context.Context, accountID int64, t monitor.Term) error {
	return c.do(ctx, accountID, http.MethodPut, "/api/reservations", reserveBody(t), nil)
}

func reserveBody(t monitor.Term) any {
	return termPayload{
		ScheduleID: t.ScheduleID,
		StartAt:    t.StartAt.Format(time.RFC3339),
		ClinicID:   t.ClinicID,
		DoctorID:   t.DoctorID,
		RoomID:     t.RoomID,
	}
}

func (c *Client) do(ctx context.Context, accountID int64, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	token, err := c.sessions.Token(ctx, accountID)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.sessions.Invalidate(accountID)
		return ErrInvalidCredentials
	case resp.StatusCode == http.StatusConflict:
		return ErrAlreadyBooked
	case resp.StatusCode >= 400:
		var e struct {
			Message string `json:"message"`
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(b, &e)
		if e.Message != "" {
			return fmt.Errorf("gateway: %s (status=%d)", e.Message, resp.StatusCode)
		}
		return fmt.Errorf("gateway: status=%d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
