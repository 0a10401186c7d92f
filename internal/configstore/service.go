package configstore

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"thinkproxy/internal/apperr"
	"thinkproxy/internal/profile"
)

// Snapshot is a consistent, read-only view of the store captured once per
// request and used for the remainder of that request's lifetime.
type Snapshot struct {
	Proxy          ProxySettings
	Profiles       []*profile.Profile
	DefaultProfile *profile.Profile
}

// Service is the configuration handle passed explicitly to the router and
// config API. It owns the persisted document, serializes mutations under
// a single mutex, and hands out copy-on-write snapshots to readers.
type Service struct {
	path string

	mu  sync.Mutex
	doc *document
}

// Open loads (or bootstraps) the document at path and returns a ready
// Service.
func Open(path string) (*Service, error) {
	doc, err := load(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfigInvalid, "failed to load config document", err)
	}
	for _, p := range doc.Profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	return &Service{path: path, doc: doc}, nil
}

// Snapshot returns a copy-on-write view: the slice and settings are copies,
// so later mutation of the Service does not retarget a request already in
// flight.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles := make([]*profile.Profile, len(s.doc.Profiles))
	copy(profiles, s.doc.Profiles)

	var def *profile.Profile
	for _, p := range profiles {
		if p.ID == s.doc.DefaultProfile {
			def = p
			break
		}
	}

	return Snapshot{Proxy: s.doc.Proxy, Profiles: profiles, DefaultProfile: def}
}

// ProxySettings returns the current proxy settings.
func (s *Service) ProxySettings() ProxySettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Proxy
}

// UpdateProxySettings replaces the proxy settings (port, api_key) and
// persists the document. Returns restartRequired = true iff the port
// changed; the running listener cannot rebind without a restart.
func (s *Service) UpdateProxySettings(next ProxySettings) (restartRequired bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if next.Port < 1 || next.Port > 65535 {
		return false, apperr.ConfigInvalid("port must be in range 1..65535")
	}

	restartRequired = next.Port != s.doc.Proxy.Port
	s.doc.Proxy = next
	if err := save(s.path, s.doc); err != nil {
		return false, apperr.Wrap(apperr.KindInternal, "failed to persist proxy settings", err)
	}
	return restartRequired, nil
}

// ListProfiles returns every profile (enabled or not).
func (s *Service) ListProfiles() []*profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*profile.Profile, len(s.doc.Profiles))
	copy(out, s.doc.Profiles)
	return out
}

// GetProfile returns the profile with the given id, or nil.
func (s *Service) GetProfile(id string) *profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.doc.Profiles {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// CreateProfile validates and inserts p, assigning an id if p.ID is empty.
// Duplicate ids are rejected.
func (s *Service) CreateProfile(p *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range s.doc.Profiles {
		if existing.ID == p.ID {
			return apperr.ConfigInvalid("profile id " + p.ID + " already exists")
		}
	}
	if err := p.Validate(); err != nil {
		return err
	}
	now := nowISO()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.doc.Profiles = append(s.doc.Profiles, p)
	if err := save(s.path, s.doc); err != nil {
		s.doc.Profiles = s.doc.Profiles[:len(s.doc.Profiles)-1]
		return apperr.Wrap(apperr.KindInternal, "failed to persist new profile", err)
	}
	return nil
}

// UpdateProfile replaces the profile with the given id, setting next.ID to
// id before validation. Port is not part of
// profile state so there is nothing to protect there; update is otherwise a
// full replace (id is immutable).
func (s *Service) UpdateProfile(id string, next *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.doc.Profiles {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperr.New(apperr.KindConfigInvalid, "no such profile: "+id)
	}

	next.ID = id
	if err := next.Validate(); err != nil {
		return err
	}
	next.CreatedAt = s.doc.Profiles[idx].CreatedAt
	next.UpdatedAt = nowISO()

	prev := s.doc.Profiles[idx]
	s.doc.Profiles[idx] = next
	if err := save(s.path, s.doc); err != nil {
		s.doc.Profiles[idx] = prev
		return apperr.Wrap(apperr.KindInternal, "failed to persist profile update", err)
	}
	return nil
}

// DeleteProfile removes the profile with id, clearing DefaultProfile if it
// pointed at the deleted profile.
func (s *Service) DeleteProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, p := range s.doc.Profiles {
		if p.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return apperr.New(apperr.KindConfigInvalid, "no such profile: "+id)
	}

	prevProfiles := s.doc.Profiles
	prevDefault := s.doc.DefaultProfile

	s.doc.Profiles = append(append([]*profile.Profile{}, s.doc.Profiles[:idx]...), s.doc.Profiles[idx+1:]...)
	if s.doc.DefaultProfile == id {
		s.doc.DefaultProfile = ""
	}
	if err := save(s.path, s.doc); err != nil {
		s.doc.Profiles = prevProfiles
		s.doc.DefaultProfile = prevDefault
		return apperr.Wrap(apperr.KindInternal, "failed to persist profile deletion", err)
	}
	return nil
}

// SetDefaultProfile sets the designated default profile id.
func (s *Service) SetDefaultProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, p := range s.doc.Profiles {
		if p.ID == id {
			found = true
			break
		}
	}
	if !found {
		return apperr.New(apperr.KindConfigInvalid, "no such profile: "+id)
	}

	prev := s.doc.DefaultProfile
	s.doc.DefaultProfile = id
	if err := save(s.path, s.doc); err != nil {
		s.doc.DefaultProfile = prev
		return apperr.Wrap(apperr.KindInternal, "failed to persist default profile", err)
	}
	return nil
}

// Export returns the full document for GET /v1/config/export.
func (s *Service) Export() (ProxySettings, []*profile.Profile, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := make([]*profile.Profile, len(s.doc.Profiles))
	copy(profiles, s.doc.Profiles)
	return s.doc.Proxy, profiles, s.doc.DefaultProfile
}

// Import replaces (merge=false) or merges (merge=true) the document's
// profiles with incoming, validating every profile before committing any
// change.
func (s *Service) Import(proxy ProxySettings, incoming []*profile.Profile, defaultProfile string, merge bool) error {
	for _, p := range incoming {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := *s.doc

	if merge {
		byID := make(map[string]*profile.Profile, len(s.doc.Profiles))
		for _, p := range s.doc.Profiles {
			byID[p.ID] = p
		}
		for _, p := range incoming {
			byID[p.ID] = p
		}
		merged := make([]*profile.Profile, 0, len(byID))
		for _, p := range byID {
			merged = append(merged, p)
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
		s.doc.Profiles = merged
	} else {
		s.doc.Profiles = incoming
	}
	s.doc.Proxy = proxy
	if defaultProfile != "" {
		s.doc.DefaultProfile = defaultProfile
	}

	if err := save(s.path, s.doc); err != nil {
		*s.doc = prev
		return apperr.Wrap(apperr.KindInternal, "failed to persist import", err)
	}
	return nil
}
