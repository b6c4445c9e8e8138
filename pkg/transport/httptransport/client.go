// Package httptransport implements convergence.Transport over plain
// HTTP POST, per the sync endpoint wire format: bearer-authenticated,
// JSON body, one request per sync round.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/errs"
	"github.com/tidalsync/core/pkg/protover"
	"github.com/tidalsync/core/pkg/schema"
	"golang.org/x/time/rate"
)

// wireRequest/wireResponse mirror the spec's sync envelope exactly
// (group_id/client_id/messages/merkle in, status/reason/data out), plus
// a protocol_version field so either side can refuse an incompatible
// peer before touching the op-log.
type wireRequest struct {
	GroupID         string      `json:"group_id"`
	ClientID        string      `json:"client_id"`
	Messages        interface{} `json:"messages"`
	Merkle          interface{} `json:"merkle"`
	ProtocolVersion string      `json:"protocol_version"`
}

type wireResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Data   struct {
		Messages json.RawMessage `json:"messages"`
		Merkle   json.RawMessage `json:"merkle"`
	} `json:"data"`
}

// Client is a convergence.Transport backed by an HTTP sync endpoint. It
// rate-limits outgoing requests, attaches a bearer token, and validates
// its own outgoing payload against the wire schema before sending.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
	Signer     *TokenSigner
	Limiter    *rate.Limiter
	Validator  *schema.Validator
}

// NewClient builds a Client with sane defaults: a 10s-timeout HTTP
// client and a 5 req/s limiter with a burst of 1 sync round.
func NewClient(endpoint string, signer *TokenSigner) (*Client, error) {
	v, err := schema.New()
	if err != nil {
		return nil, err
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Signer:     signer,
		Limiter:    rate.NewLimiter(rate.Limit(5), 1),
		Validator:  v,
	}, nil
}

// Exchange implements convergence.Transport.
func (c *Client) Exchange(ctx context.Context, req convergence.SyncRequest) (convergence.SyncResponse, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Network, "httptransport.exchange", "rate limiter wait failed", err)
	}

	body, err := json.Marshal(wireRequest{
		GroupID:         req.GroupID,
		ClientID:        req.ClientID,
		Messages:        req.Messages,
		Merkle:          req.Merkle,
		ProtocolVersion: protover.Version,
	})
	if err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Format, "httptransport.exchange", "encoding request failed", err)
	}

	if c.Validator != nil {
		if err := c.Validator.ValidateSyncRequest(body); err != nil {
			return convergence.SyncResponse{}, errs.Wrap(errs.Format, "httptransport.exchange", "outgoing payload failed schema validation", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Network, "httptransport.exchange", "building request failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	if c.Signer != nil {
		token, err := c.Signer.Sign(req.ClientID, 5*time.Minute)
		if err != nil {
			return convergence.SyncResponse{}, errs.Wrap(errs.Network, "httptransport.exchange", "signing bearer token failed", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Network, "httptransport.exchange", "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Network, "httptransport.exchange", "reading response body failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		return convergence.SyncResponse{}, errs.New(errs.ServerError, "httptransport.exchange", fmt.Sprintf("peer returned HTTP %d", resp.StatusCode))
	}

	var wireResp wireResponse
	if err := json.Unmarshal(raw, &wireResp); err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Format, "httptransport.exchange", "decoding response failed", err)
	}

	if wireResp.Status != "ok" {
		return convergence.SyncResponse{}, errs.New(errs.ServerError, "httptransport.exchange", wireResp.Reason)
	}

	var syncResp convergence.SyncResponse
	if err := json.Unmarshal(wireResp.Data.Messages, &syncResp.Messages); err != nil {
		return convergence.SyncResponse{}, errs.Wrap(errs.Format, "httptransport.exchange", "decoding messages failed", err)
	}
	if len(wireResp.Data.Merkle) > 0 {
		if err := json.Unmarshal(wireResp.Data.Merkle, &syncResp.Merkle); err != nil {
			return convergence.SyncResponse{}, errs.Wrap(errs.Format, "httptransport.exchange", "decoding merkle failed", err)
		}
	}

	return syncResp, nil
}
