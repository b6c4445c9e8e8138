package httptransport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidalsync/core/pkg/convergence"
	"github.com/tidalsync/core/pkg/hlc"
	"github.com/tidalsync/core/pkg/merkle"
	"github.com/tidalsync/core/pkg/oplog"
	"github.com/tidalsync/core/pkg/protover"
	"github.com/tidalsync/core/pkg/schema"
)

// Handler implements the peer-facing side of the sync endpoint: it
// decodes a wireRequest, applies its messages against a local Engine,
// and responds with the node's own outstanding entries in the
// {status, reason?, data} envelope.
type Handler struct {
	Engine     *convergence.Engine
	Signer     *TokenSigner
	Validator  *schema.Validator
	Negotiator *protover.Negotiator
}

// NewHandler builds a Handler, compiling the wire schemas once and
// accepting any peer protocol version compatible with this build's
// major version.
func NewHandler(engine *convergence.Engine, signer *TokenSigner) (*Handler, error) {
	v, err := schema.New()
	if err != nil {
		return nil, err
	}
	n, err := protover.NewNegotiator(fmt.Sprintf("^%s", protover.Version))
	if err != nil {
		return nil, err
	}
	return &Handler{Engine: engine, Signer: signer, Validator: v, Negotiator: n}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.Signer != nil {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := h.Signer.Verify(token); err != nil {
			writeError(w, http.StatusUnauthorized, "invalid bearer token: "+err.Error())
			return
		}
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body failed")
		return
	}

	if h.Validator != nil {
		if err := h.Validator.ValidateSyncRequest(raw); err != nil {
			writeError(w, http.StatusBadRequest, "schema validation failed: "+err.Error())
			return
		}
	}

	var req struct {
		GroupID         string        `json:"group_id"`
		ClientID        string        `json:"client_id"`
		Messages        []oplog.Entry `json:"messages"`
		Merkle          *merkle.Node  `json:"merkle"`
		ProtocolVersion string        `json:"protocol_version"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request failed")
		return
	}

	if h.Negotiator != nil && req.ProtocolVersion != "" {
		ok, err := h.Negotiator.Accepts(req.ProtocolVersion)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid protocol_version: "+err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "incompatible protocol_version: "+req.ProtocolVersion)
			return
		}
	}

	ctx := r.Context()
	for _, remote := range req.Messages {
		remoteTS, err := hlc.Parse(remote.Timestamp)
		if err != nil {
			writeError(w, http.StatusBadRequest, "parsing timestamp failed: "+err.Error())
			return
		}
		if _, err := h.Engine.Clock.Recv(h.Engine.Now(), remoteTS); err != nil {
			writeError(w, http.StatusBadRequest, "clock.recv failed: "+err.Error())
			return
		}
		if _, err := h.Engine.Apply.Apply(ctx, remote); err != nil {
			writeError(w, http.StatusInternalServerError, "apply failed: "+err.Error())
			return
		}
	}

	var outgoing []oplog.Entry
	if req.Merkle != nil {
		if d, diverges := merkle.Diff(req.Merkle, h.Engine.Apply.MerkleRoot); diverges {
			outgoing, err = h.Engine.Apply.OpLog.Since(ctx, sinceTimestamp(d))
			if err != nil {
				writeError(w, http.StatusInternalServerError, "computing outgoing entries failed: "+err.Error())
				return
			}
		}
	}

	resp := struct {
		Status string `json:"status"`
		Data   struct {
			Messages []oplog.Entry `json:"messages"`
			Merkle   *merkle.Node  `json:"merkle"`
		} `json:"data"`
	}{Status: "ok"}
	resp.Data.Messages = outgoing
	resp.Data.Merkle = h.Engine.Apply.MerkleRoot

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// sinceTimestamp renders a minute-boundary divergence point (in epoch
// ms) as the lower-bound canonical timestamp string oplog.Since expects.
func sinceTimestamp(ms int64) string {
	return hlc.Timestamp{PhysicalMS: ms, Counter: 0, NodeID: "0000000000000000"}.String()
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}{Status: "error", Reason: reason})
}
