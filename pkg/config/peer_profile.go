package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PeerProfile configures how this node syncs with one remote peer:
// where to reach it, how long to wait, how to authenticate, and how
// tolerant to be of its clock skew. One profile_<peer_id>.yaml file per
// peer, loaded the same way a regional compliance profile would be.
type PeerProfile struct {
	PeerID      string        `yaml:"peer_id" json:"peer_id"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	Transport   string        `yaml:"transport" json:"transport"` // "http", "filestore", "s3", "gcs", "redis"
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Auth        PeerAuth      `yaml:"auth" json:"auth"`
	DriftPolicy DriftPolicy   `yaml:"drift_policy" json:"drift_policy"`
}

// PeerAuth configures bearer-token auth presented to the peer's sync endpoint.
type PeerAuth struct {
	Scheme string `yaml:"scheme,omitempty" json:"scheme,omitempty"` // "none", "bearer"
	Token  string `yaml:"token,omitempty" json:"token,omitempty"`
}

// DriftPolicy overrides the default clock-drift tolerance for a specific
// peer — some peers (e.g. a rarely-synced offline client) may warrant a
// wider allowance than the engine default.
type DriftPolicy struct {
	MaxDriftMS  int64 `yaml:"max_drift_ms,omitempty" json:"max_drift_ms,omitempty"`
	RejectOnly  bool  `yaml:"reject_only,omitempty" json:"reject_only,omitempty"` // log, don't fail, when true
}

// LoadPeerProfile loads a single peer profile YAML by peer id. It
// searches profilesDir for profile_<peer_id>.yaml.
func LoadPeerProfile(profilesDir, peerID string) (*PeerProfile, error) {
	id := strings.ToLower(peerID)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", id))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: load peer profile %q: %w", peerID, err)
	}

	var profile PeerProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("config: parse peer profile %q: %w", peerID, err)
	}

	if profile.PeerID == "" {
		profile.PeerID = peerID
	}
	return &profile, nil
}

// LoadAllPeerProfiles loads every profile_*.yaml file in profilesDir,
// keyed by peer id.
func LoadAllPeerProfiles(profilesDir string) (map[string]*PeerProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*PeerProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}

		var profile PeerProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}

		if profile.PeerID == "" {
			base := filepath.Base(path)
			profile.PeerID = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}
		profiles[profile.PeerID] = &profile
	}

	return profiles, nil
}

// EffectiveMaxDriftMS returns the peer's drift override, falling back to
// the engine-wide default when unset.
func (p *PeerProfile) EffectiveMaxDriftMS(defaultMaxDriftMS int64) int64 {
	if p.DriftPolicy.MaxDriftMS > 0 {
		return p.DriftPolicy.MaxDriftMS
	}
	return defaultMaxDriftMS
}
